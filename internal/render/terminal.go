// Package render turns controller snapshots into terminal output, JSON
// and Markdown reports.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ppiankov/originpoint/internal/controller"
	"github.com/ppiankov/originpoint/internal/model"
)

// categoryColors gives each record category its accent color
var categoryColors = map[model.Category]lipgloss.Color{
	model.CategoryCensus:    lipgloss.Color("#E0A458"),
	model.CategoryTax:       lipgloss.Color("#7FB069"),
	model.CategoryNewspaper: lipgloss.Color("#8AB0D0"),
	model.CategoryMap:       lipgloss.Color("#C17FD0"),
	model.CategoryLegal:     lipgloss.Color("#D07F7F"),
	model.CategoryWeb:       lipgloss.Color("#9A9A9A"),
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E0A458"))
	summaryStyle = lipgloss.NewStyle().Italic(true)
	noticeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D07F7F"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9A9A9A"))
	cardStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

var titleCaser = cases.Title(language.English)

// Terminal renders snapshots for a terminal
type Terminal struct {
	out   io.Writer
	style string // glamour style: auto, dark, light, notty
	width int
}

// NewTerminal creates a terminal renderer writing to out
func NewTerminal(out io.Writer, style string, width int) *Terminal {
	if width <= 0 {
		width = 100
	}
	if style == "" {
		style = "auto"
	}
	return &Terminal{out: out, style: style, width: width}
}

// Render writes the current snapshot
func (t *Terminal) Render(s controller.Snapshot) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render(ModuleTitle(s.Module)))
	if s.Query != "" {
		b.WriteString(mutedStyle.Render("  " + s.Query))
	}
	b.WriteString("\n\n")

	if s.Notice != "" {
		b.WriteString(noticeStyle.Render("✗ " + s.Notice))
		b.WriteString("\n")
		_, err := io.WriteString(t.out, b.String())
		return err
	}

	if s.Summary != "" {
		b.WriteString(summaryStyle.Render(s.Summary))
		b.WriteString("\n\n")
	}

	switch s.Kind {
	case controller.KindText:
		if err := t.writeResult(&b, s.Result); err != nil {
			return err
		}
	case controller.KindConflicts:
		t.writeConflicts(&b, s.Conflicts)
	case controller.KindEmpty:
		b.WriteString("✓ No discrepancies found between the records.\n")
	case controller.KindVisualization:
		t.writeVisualization(&b, s.Visualization)
	}

	if s.Challenge != nil {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Challenging: "))
		b.WriteString(s.Challenge.TargetDescription)
		b.WriteString("\n")
	}

	_, err := io.WriteString(t.out, b.String())
	return err
}

func (t *Terminal) writeResult(b *strings.Builder, r *model.AnalysisResult) error {
	if r == nil {
		return nil
	}

	prose, err := t.markdown(r.Text)
	if err != nil {
		return fmt.Errorf("render prose: %w", err)
	}
	b.WriteString(prose)

	var badges []string
	if r.IsDeepReasoning {
		badges = append(badges, "deep reasoning")
	}
	if r.VerificationScore != nil {
		badges = append(badges, fmt.Sprintf("verification %d/100", *r.VerificationScore))
	}
	if r.IntegrityTag != "" {
		badges = append(badges, r.IntegrityTag)
	}
	if len(badges) > 0 {
		b.WriteString(mutedStyle.Render(strings.Join(badges, " · ")))
		b.WriteString("\n")
	}

	if len(r.Sources) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Sources"))
		b.WriteString("\n")
		for _, src := range r.Sources {
			b.WriteString(SourceCard(src, t.width))
			b.WriteString("\n")
		}
	}
	return nil
}

func (t *Terminal) writeConflicts(b *strings.Builder, conflicts []model.Conflict) {
	for _, c := range conflicts {
		body := fmt.Sprintf("%s  %s\n%s\n\nA: %s\nB: %s\n\n%s",
			mutedStyle.Render(c.ID),
			titleStyle.Render(strings.ToUpper(string(c.RecordClass))),
			c.Description,
			c.EvidenceA,
			c.EvidenceB,
			mutedStyle.Render("Likely cause: "+c.Reason))
		b.WriteString(cardStyle.Width(t.width - 2).Render(body))
		b.WriteString("\n")
	}
}

func (t *Terminal) writeVisualization(b *strings.Builder, v *model.VisualizationData) {
	if v == nil {
		return
	}

	b.WriteString(titleStyle.Render("Timeline"))
	b.WriteString("\n")
	if len(v.Timeline) == 0 {
		b.WriteString(mutedStyle.Render("  no dated events"))
		b.WriteString("\n")
	}
	for _, e := range v.Timeline {
		fmt.Fprintf(b, "  %-6s %s %s %s\n",
			e.Year,
			mutedStyle.Render("["+string(e.EventType)+"]"),
			e.Event,
			mutedStyle.Render("("+e.Actor+")"))
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Lineage"))
	b.WriteString("\n")
	if len(v.LineageNodes) == 0 {
		b.WriteString(mutedStyle.Render("  no linked people"))
		b.WriteString("\n")
	}
	for _, n := range v.LineageNodes {
		fmt.Fprintf(b, "  %s, %s → %s\n", n.Name, n.Role, n.PropertyLink)
	}
}

func (t *Terminal) markdown(text string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(t.width)}
	if t.style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(t.style))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

// SourceCard renders one source with its category accent
func SourceCard(src model.GroundingSource, width int) string {
	color, ok := categoryColors[src.Category]
	if !ok {
		color = categoryColors[model.CategoryWeb]
	}
	label := lipgloss.NewStyle().Bold(true).Foreground(color).Render(strings.ToUpper(string(src.Category)))
	body := label + "  " + src.Title + "\n" + mutedStyle.Render(src.URI)
	return cardStyle.BorderForeground(color).Width(width - 2).Render(body)
}

// ModuleTitle returns the display title of a module
func ModuleTitle(m model.Module) string {
	return titleCaser.String(m.Label())
}
