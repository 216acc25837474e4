package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/originpoint/internal/model"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Digitize a photographed record",
	Long: `Scan sends a document image (a local file or an http(s) URL) to the
backend and prints a transcription with names, dates and locations.
EXIF capture date, camera and GPS position are passed along when present.

Example:
  originpoint scan ./deed-1851.jpg
  originpoint scan https://archive.example.org/scans/deed.png --md deed.md`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	addOutputFlags(scanCmd)
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
	defer cancel()

	doc, err := p.LoadDocument(ctx, args[0])
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Loaded %s (%s, %d bytes)\n", doc.Name, doc.DetectedMIMEType(), len(doc.Data))
	}

	c := p.NewController(model.ModuleScan)
	fmt.Fprintf(os.Stderr, "⚙️  Digitizing %s via %s...\n", doc.Name, p.Backend().Name())
	err = c.SubmitDocument(ctx, doc)
	return finish(cmd, p, c.Snapshot(), err)
}
