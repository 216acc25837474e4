package render

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/ppiankov/originpoint/internal/controller"
	"github.com/ppiankov/originpoint/internal/model"
)

// MarkdownWriter writes snapshot reports in Markdown
type MarkdownWriter struct {
	output        io.Writer
	includeFooter bool
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer
func NewMarkdownWriter(output io.Writer, includeFooter bool) *MarkdownWriter {
	return &MarkdownWriter{output: output, includeFooter: includeFooter}
}

// Write outputs the report for one snapshot
func (w *MarkdownWriter) Write(s controller.Snapshot) error {
	md := markdown.NewMarkdown(w.output)

	md.H1(ModuleTitle(s.Module))
	md.PlainText("")
	if s.Query != "" {
		md.PlainTextf("**Query:** %s", s.Query)
		md.PlainText("")
	}

	if s.Notice != "" {
		md.Warningf("%s", s.Notice)
		md.PlainText("")
	}
	if s.Summary != "" {
		md.Note(s.Summary)
		md.PlainText("")
	}

	switch s.Kind {
	case controller.KindText:
		w.writeResult(md, s.Result)
	case controller.KindConflicts:
		w.writeConflicts(md, s.Conflicts)
	case controller.KindEmpty:
		md.Tip("No discrepancies found between the records.")
		md.PlainText("")
	case controller.KindVisualization:
		w.writeVisualization(md, s.Visualization)
	}

	if w.includeFooter {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*Report generated by [OriginPoint](https://github.com/ppiankov/originpoint). Answers are model output grounded on the listed sources, not verified records.*")
	}

	return md.Build()
}

func (w *MarkdownWriter) writeResult(md *markdown.Markdown, r *model.AnalysisResult) {
	if r == nil {
		return
	}

	md.PlainText(r.Text)
	md.PlainText("")

	rows := [][]string{{"Deep reasoning", yesNo(r.IsDeepReasoning)}}
	if r.VerificationScore != nil {
		rows = append(rows, []string{"Verification score", strconv.Itoa(*r.VerificationScore) + "/100"})
	}
	if r.IntegrityTag != "" {
		rows = append(rows, []string{"Integrity tag", "`" + r.IntegrityTag + "`"})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	if len(r.Sources) == 0 {
		return
	}

	md.H2("Sources")
	md.PlainText("")

	checks := make(map[string]model.SourceCheck, len(r.Checks))
	for _, c := range r.Checks {
		checks[c.URI] = c
	}

	header := []string{"Category", "Title", "URI"}
	if len(checks) > 0 {
		header = append(header, "Status")
	}
	sourceRows := make([][]string, len(r.Sources))
	for i, src := range r.Sources {
		row := []string{string(src.Category), escapeCell(src.Title), src.URI}
		if len(checks) > 0 {
			row = append(row, checkStatus(checks[src.URI]))
		}
		sourceRows[i] = row
	}
	md.Table(markdown.TableSet{Header: header, Rows: sourceRows})
	md.PlainText("")

	w.writeCategoryChart(md, r.Sources)
}

// writeCategoryChart writes a mermaid pie chart of source categories
func (w *MarkdownWriter) writeCategoryChart(md *markdown.Markdown, sources []model.GroundingSource) {
	counts := make(map[model.Category]int)
	for _, src := range sources {
		counts[src.Category]++
	}
	if len(counts) < 2 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Source categories"),
		piechart.WithShowData(true),
	)
	for _, c := range model.Categories() {
		if n := counts[c]; n > 0 {
			chart.LabelAndIntValue(string(c), uint64(n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeConflicts(md *markdown.Markdown, conflicts []model.Conflict) {
	md.H2("Discrepancies")
	md.PlainText("")

	rows := make([][]string, len(conflicts))
	for i, c := range conflicts {
		rows[i] = []string{c.ID, string(c.RecordClass), escapeCell(c.Description)}
	}
	md.Table(markdown.TableSet{Header: []string{"ID", "Class", "Description"}, Rows: rows})
	md.PlainText("")

	for _, c := range conflicts {
		md.Details(c.ID+": "+c.Description, "Evidence A: "+c.EvidenceA+"\n\nEvidence B: "+c.EvidenceB+"\n\nLikely cause: "+c.Reason)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeVisualization(md *markdown.Markdown, v *model.VisualizationData) {
	if v == nil {
		return
	}

	md.H2("Timeline")
	md.PlainText("")
	if len(v.Timeline) == 0 {
		md.PlainText("No dated events.")
	} else {
		rows := make([][]string, len(v.Timeline))
		for i, e := range v.Timeline {
			rows[i] = []string{e.Year, string(e.EventType), escapeCell(e.Event), escapeCell(e.Actor)}
		}
		md.Table(markdown.TableSet{Header: []string{"Year", "Type", "Event", "Actor"}, Rows: rows})
	}
	md.PlainText("")

	md.H2("Lineage")
	md.PlainText("")
	if len(v.LineageNodes) == 0 {
		md.PlainText("No linked people.")
	} else {
		rows := make([][]string, len(v.LineageNodes))
		for i, n := range v.LineageNodes {
			rows[i] = []string{escapeCell(n.Name), escapeCell(n.Role), escapeCell(n.PropertyLink)}
		}
		md.Table(markdown.TableSet{Header: []string{"Name", "Role", "Property"}, Rows: rows})
	}
	md.PlainText("")
}

func checkStatus(c model.SourceCheck) string {
	switch {
	case c.URI == "":
		return "-"
	case c.BlockedRobots:
		return "blocked by robots.txt"
	case c.IsDead:
		return "dead"
	case c.IsAccessible:
		return "ok " + strconv.Itoa(c.StatusCode)
	case c.Error != "":
		return "error"
	default:
		return strconv.Itoa(c.StatusCode)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// escapeCell keeps pipes and newlines from breaking table rows
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
