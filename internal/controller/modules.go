package controller

import (
	"context"
	"fmt"

	"github.com/ppiankov/originpoint/internal/model"
)

const (
	auditSummary     = "Factual verification complete. Sources audited against live registries."
	conflictSummary  = "Detected %d significant archival discrepancies."
	challengeSummary = "Evidence re-analyzed. Lineage connection corrected and locked."
)

// outcome is what one dispatch produced; exactly one slot is set
type outcome struct {
	kind          Kind
	result        *model.AnalysisResult
	conflicts     []model.Conflict
	visualization *model.VisualizationData
}

// moduleSpec is one row of the module table
type moduleSpec struct {
	run     func(ctx context.Context, c *Controller, query string) (outcome, error)
	summary func(ctx context.Context, c *Controller, out outcome) (string, error)
}

// moduleTable maps each query module to its operation and summary policy.
// Scan is dispatched through SubmitDocument and is not listed.
var moduleTable = map[model.Module]moduleSpec{
	model.ModuleSearch: {
		run: func(ctx context.Context, c *Controller, q string) (outcome, error) {
			return textOutcome(c.client.SearchRecords(ctx, q))
		},
		summary: summarizeText,
	},
	model.ModuleAnalyze: {
		run: func(ctx context.Context, c *Controller, q string) (outcome, error) {
			out, err := textOutcome(c.client.SearchRecords(ctx, q))
			if err == nil {
				out.result.IsDeepReasoning = true
			}
			return out, err
		},
	},
	model.ModuleMap: {
		run: func(ctx context.Context, c *Controller, q string) (outcome, error) {
			return textOutcome(c.client.MapProperty(ctx, q))
		},
		summary: summarizeText,
	},
	model.ModuleAudit: {
		run: func(ctx context.Context, c *Controller, q string) (outcome, error) {
			out, err := textOutcome(c.client.GroundingAudit(ctx, q))
			if err != nil || c.auditor == nil {
				return out, err
			}
			report := c.auditor.Audit(ctx, out.result.Sources, c.profile.Classifier)
			out.result.Sources = report.Sources
			out.result.Checks = report.Checks
			out.result.VerificationScore = report.Score
			return out, nil
		},
		summary: fixedSummary(auditSummary),
	},
	model.ModuleConflicts: {
		run: func(ctx context.Context, c *Controller, q string) (outcome, error) {
			conflicts, err := c.client.DetectConflicts(ctx, q)
			if err != nil {
				return outcome{}, err
			}
			if len(conflicts) == 0 {
				return outcome{kind: KindEmpty, conflicts: []model.Conflict{}}, nil
			}
			return outcome{kind: KindConflicts, conflicts: conflicts}, nil
		},
		summary: func(_ context.Context, _ *Controller, out outcome) (string, error) {
			if len(out.conflicts) == 0 {
				return "", nil
			}
			return fmt.Sprintf(conflictSummary, len(out.conflicts)), nil
		},
	},
	model.ModuleVisualize: {
		run: func(ctx context.Context, c *Controller, q string) (outcome, error) {
			data, err := c.client.GenerateVisualData(ctx, q)
			if err != nil {
				return outcome{}, err
			}
			return outcome{kind: KindVisualization, visualization: data}, nil
		},
	},
}

// scanSpec summarizes scanned documents like text queries
var scanSpec = moduleSpec{summary: summarizeText}

func textOutcome(result *model.AnalysisResult, err error) (outcome, error) {
	if err != nil {
		return outcome{}, err
	}
	return outcome{kind: KindText, result: result}, nil
}

func summarizeText(ctx context.Context, c *Controller, out outcome) (string, error) {
	if out.result == nil {
		return "", nil
	}
	return c.client.FastSummarize(ctx, out.result.Text)
}

func fixedSummary(s string) func(context.Context, *Controller, outcome) (string, error) {
	return func(context.Context, *Controller, outcome) (string, error) {
		return s, nil
	}
}
