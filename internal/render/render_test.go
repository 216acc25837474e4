package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/originpoint/internal/controller"
	"github.com/ppiankov/originpoint/internal/model"
)

func textSnapshot() controller.Snapshot {
	score := 75
	return controller.Snapshot{
		State:   controller.StateResultReady,
		Kind:    controller.KindText,
		Module:  model.ModuleAudit,
		Query:   "The deed was filed in 1851",
		Summary: "Factual verification complete. Sources audited against live registries.",
		Result: &model.AnalysisResult{
			Text:              "The **1851** deed is recorded in the county register.",
			VerificationScore: &score,
			Sources: []model.GroundingSource{
				{Title: "County Deed Register | Book 4", URI: "https://deeds.example.gov/b4", Category: model.CategoryLegal},
				{Title: "1850 Census", URI: "https://census.example.gov/1850", Category: model.CategoryCensus},
			},
			Checks: []model.SourceCheck{
				{URI: "https://deeds.example.gov/b4", IsAccessible: true, StatusCode: 200},
				{URI: "https://census.example.gov/1850", IsDead: true, StatusCode: 404},
			},
		},
	}
}

func conflictSnapshot() controller.Snapshot {
	return controller.Snapshot{
		State:   controller.StateResultReady,
		Kind:    controller.KindConflicts,
		Module:  model.ModuleConflicts,
		Query:   "Smith homestead",
		Summary: "Detected 1 significant archival discrepancies.",
		Conflicts: []model.Conflict{
			{ID: "c1", RecordClass: model.RecordClassLand, Description: "Deed date mismatch", EvidenceA: "Deed 1851", EvidenceB: "Tax roll 1853", Reason: "Transcription"},
		},
	}
}

func TestModuleTitle(t *testing.T) {
	require.Equal(t, "Discrepancy Engine", ModuleTitle(model.ModuleConflicts))
	require.Equal(t, "Record Inquiry", ModuleTitle(model.ModuleSearch))
}

func TestTerminal_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTerminal(&buf, "notty", 80).Render(textSnapshot()))

	out := buf.String()
	require.Contains(t, out, "Grounding Audit")
	require.Contains(t, out, "Factual verification complete.")
	require.Contains(t, out, "1851")
	require.Contains(t, out, "verification 75/100")
	require.Contains(t, out, "https://census.example.gov/1850")
	require.Contains(t, out, "LEGAL")
}

func TestTerminal_Notice(t *testing.T) {
	var buf bytes.Buffer
	s := controller.Snapshot{State: controller.StateIdle, Module: model.ModuleSearch, Notice: "Request intercepted or failed. Verify link integrity."}
	require.NoError(t, NewTerminal(&buf, "notty", 80).Render(s))
	require.Contains(t, buf.String(), "✗ Request intercepted")
}

func TestTerminal_ConflictsAndChallenge(t *testing.T) {
	s := conflictSnapshot()
	s.State = controller.StateChallenging
	s.Challenge = &model.ChallengeSession{ConflictID: "c1", TargetDescription: "Deed date mismatch", Active: true}

	var buf bytes.Buffer
	require.NoError(t, NewTerminal(&buf, "notty", 80).Render(s))

	out := buf.String()
	require.Contains(t, out, "LAND")
	require.Contains(t, out, "Tax roll 1853")
	require.Contains(t, out, "Challenging:")
	require.Contains(t, out, "Deed date mismatch")
}

func TestTerminal_Visualization(t *testing.T) {
	s := controller.Snapshot{
		State:  controller.StateResultReady,
		Kind:   controller.KindVisualization,
		Module: model.ModuleVisualize,
		Visualization: &model.VisualizationData{
			Timeline:     []model.TimelineEvent{{Year: "1851", Event: "Deed filed", Actor: "J. Smith", EventType: model.EventOwnership}},
			LineageNodes: []model.LineageNode{},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewTerminal(&buf, "notty", 80).Render(s))
	require.Contains(t, buf.String(), "Deed filed")
	require.Contains(t, buf.String(), "no linked people")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, conflictSnapshot()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "result_ready", decoded["state"])
	require.Equal(t, "conflicts", decoded["kind"])
	require.Len(t, decoded["conflicts"], 1)
}

func TestMarkdownWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownWriter(&buf, true).Write(textSnapshot()))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "# Grounding Audit"))
	require.Contains(t, out, "## Sources")
	require.Contains(t, out, `County Deed Register \| Book 4`)
	require.Contains(t, out, "dead")
	require.Contains(t, out, "75/100")
	require.Contains(t, out, "mermaid")
	require.Contains(t, out, "Report generated by")
}

func TestMarkdownWriter_ConflictsNoFooter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownWriter(&buf, false).Write(conflictSnapshot()))

	out := buf.String()
	require.Contains(t, out, "## Discrepancies")
	require.Contains(t, out, "Deed date mismatch")
	require.NotContains(t, out, "Report generated by")
}

func TestMarkdownWriter_EmptyConflicts(t *testing.T) {
	s := controller.Snapshot{State: controller.StateResultReady, Kind: controller.KindEmpty, Module: model.ModuleConflicts, Conflicts: []model.Conflict{}}

	var buf bytes.Buffer
	require.NoError(t, NewMarkdownWriter(&buf, false).Write(s))
	require.Contains(t, buf.String(), "No discrepancies found")
}
