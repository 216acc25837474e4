package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/originpoint/internal/controller"
	"github.com/ppiankov/originpoint/internal/model"
	"github.com/ppiankov/originpoint/internal/pipeline"
	"github.com/ppiankov/originpoint/internal/render"
)

var (
	outJSON      string
	outMD        string
	style        string
	queryTimeout time.Duration
	moduleName   string

	challengeID       string
	challengeEvidence string
)

// queryCmd runs one query against any module
var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a grounded query against a module",
	Long: `Query runs one grounded query and prints the answer with its sources.

Modules: search, analyze, map, audit, conflicts, visualize.

Example:
  originpoint query --module search "Smith homestead, Ashford County"
  originpoint query --module audit "The Smith deed was filed in 1851" --md audit.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		module, err := model.ParseModule(moduleName)
		if err != nil {
			return err
		}
		return runQuery(cmd, module, strings.Join(args, " "))
	},
}

// moduleCommand builds a shortcut command for one module
func moduleCommand(module model.Module, short, example string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     string(module) + " <text>",
		Short:   short,
		Example: example,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, module, strings.Join(args, " "))
		},
	}
	addOutputFlags(cmd)
	return cmd
}

var conflictsCmd = moduleCommand(model.ModuleConflicts,
	"Find discrepancies between records, optionally challenging one",
	`  originpoint conflicts "Smith homestead"
  originpoint conflicts "Smith homestead" --challenge c1 --evidence "The 1852 deed supersedes the draft"`)

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	cmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	cmd.Flags().StringVar(&style, "style", "", "terminal style: auto, dark, light, notty (default from config)")
	cmd.Flags().DurationVar(&queryTimeout, "timeout", 5*time.Minute, "overall timeout")
}

func init() {
	addOutputFlags(queryCmd)
	queryCmd.Flags().StringVarP(&moduleName, "module", "m", string(model.ModuleSearch), "module to query")

	conflictsCmd.Flags().StringVar(&challengeID, "challenge", "", "conflict id to challenge after detection")
	conflictsCmd.Flags().StringVar(&challengeEvidence, "evidence", "", "counter-evidence for --challenge")

	rootCmd.AddCommand(
		queryCmd,
		moduleCommand(model.ModuleSearch, "Search historical records", `  originpoint search "Smith homestead, Ashford County"`),
		moduleCommand(model.ModuleAnalyze, "Search with deep reasoning and no summary", `  originpoint analyze "Smith family lineage 1820-1900"`),
		moduleCommand(model.ModuleMap, "Look up a property on the map", `  originpoint map "Lot 4, Ashford Township"`),
		moduleCommand(model.ModuleAudit, "Check a claim against live sources", `  originpoint audit "The Smith deed was filed in 1851"`),
		conflictsCmd,
		moduleCommand(model.ModuleVisualize, "Build an ownership timeline and lineage map", `  originpoint visualize "Smith homestead"`),
	)
}

func runQuery(cmd *cobra.Command, module model.Module, query string) error {
	if module == model.ModuleScan {
		return fmt.Errorf("the scan module takes a document: use 'originpoint scan <image>'")
	}
	if challengeID != "" && strings.TrimSpace(challengeEvidence) == "" {
		return fmt.Errorf("--challenge requires --evidence")
	}

	p, err := newPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
	defer cancel()

	c := p.NewController(module)
	fmt.Fprintf(os.Stderr, "⚙️  %s via %s...\n", render.ModuleTitle(module), p.Backend().Name())
	if err := c.Submit(ctx, query); err != nil {
		return finish(cmd, p, c.Snapshot(), err)
	}

	if module == model.ModuleConflicts && challengeID != "" {
		if err := c.SelectConflict(challengeID); err != nil {
			return fmt.Errorf("challenge %s: %w", challengeID, err)
		}
		fmt.Fprintf(os.Stderr, "⚙️  Challenging %s...\n", challengeID)
		if err := c.SubmitChallenge(ctx, challengeEvidence); err != nil {
			return finish(cmd, p, c.Snapshot(), err)
		}
	}

	return finish(cmd, p, c.Snapshot(), nil)
}

// finish prints the snapshot, writes the requested reports and returns runErr
func finish(cmd *cobra.Command, p *pipeline.Pipeline, snap controller.Snapshot, runErr error) error {
	cfg := p.Config()
	termStyle := style
	if termStyle == "" {
		termStyle = cfg.Output.Style
	}
	if err := render.NewTerminal(cmd.OutOrStdout(), termStyle, cfg.Output.Width).Render(snap); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if runErr != nil {
		return runErr
	}

	if err := p.RenderReport(snap, outJSON, outMD); err != nil {
		return err
	}
	if outJSON != "" {
		fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
	}
	if outMD != "" {
		fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", outMD)
	}
	return nil
}

// newPipeline loads the configuration and builds the pipeline
func newPipeline() (*pipeline.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return pipeline.NewPipeline(cfg, logger)
}
