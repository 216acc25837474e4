package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/originpoint/internal/controller"
	"github.com/ppiankov/originpoint/internal/model"
	"github.com/ppiankov/originpoint/internal/worker"
)

var (
	concurrency   int
	outputDir     string
	batchTimeout  time.Duration
	defaultModule string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run many queries from a file in parallel",
	Long: `Batch runs one query per line of the input file:
- "module<TAB>query" selects the module, a bare line uses --module
- blank lines and lines starting with # are skipped
- calls are rate limited per model (rate_limiting in the config)
- one JSON and one Markdown report per query in --output-dir

Example:
  originpoint batch queries.txt
  originpoint batch queries.txt --concurrency 2 --output-dir ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./originpoint-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVarP(&defaultModule, "module", "m", string(model.ModuleSearch), "module for lines without one")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	module, err := model.ParseModule(defaultModule)
	if err != nil {
		return err
	}

	p, err := newPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	workers := concurrency
	if workers <= 0 {
		workers = p.Config().Concurrency.Workers
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  OriginPoint Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Backend:      %s\n", p.Backend().Name())
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	processor := worker.NewBatchProcessor(p, workers)
	results, err := processor.ProcessFile(ctx, file, module)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0

	for _, result := range results {
		label := fmt.Sprintf("line %d [%s] %s", result.Item.Line, result.Item.Module, result.Item.Query)
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, result.Error)
			continue
		}

		base := filepath.Join(outputDir, reportName(result.Item))
		if err := p.RenderReport(result.Snapshot, base+".json", base+".md"); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s%s\n", label, outcomeNote(result.Snapshot))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d queries\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// outcomeNote gives a short per-query note for the progress line
func outcomeNote(s controller.Snapshot) string {
	switch s.Kind {
	case controller.KindConflicts:
		return fmt.Sprintf(" (%d discrepancies)", len(s.Conflicts))
	case controller.KindEmpty:
		return " (no discrepancies)"
	case controller.KindVisualization:
		if s.Visualization == nil {
			return ""
		}
		return fmt.Sprintf(" (%d events)", len(s.Visualization.Timeline))
	case controller.KindText:
		if s.Result != nil && s.Result.VerificationScore != nil {
			return fmt.Sprintf(" (verification: %d/100)", *s.Result.VerificationScore)
		}
		if s.Result != nil {
			return fmt.Sprintf(" (%d sources)", len(s.Result.Sources))
		}
	}
	return ""
}

// reportName builds a file name from the line number, module and query
func reportName(item worker.Item) string {
	return fmt.Sprintf("%03d-%s-%s", item.Line, item.Module, sanitizeFilename(item.Query))
}

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(strings.TrimSpace(s))

	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
