package grounding

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/originpoint/internal/classify"
	"github.com/ppiankov/originpoint/internal/llm"
	"github.com/ppiankov/originpoint/internal/model"
)

// wireConflict is the JSON shape of one conflict; recordType is the
// older name some models still emit
type wireConflict struct {
	ID          string `json:"id"`
	RecordClass string `json:"recordClass"`
	RecordType  string `json:"recordType"`
	Description string `json:"description"`
	Summary     string `json:"summary"`
	EvidenceA   string `json:"evidenceA"`
	EvidenceB   string `json:"evidenceB"`
	Reason      string `json:"reason"`
}

type wireVisualization struct {
	Timeline []struct {
		Year      string `json:"year"`
		Event     string `json:"event"`
		Actor     string `json:"actor"`
		EventType string `json:"eventType"`
		Type      string `json:"type"`
	} `json:"timeline"`
	LineageNodes []wireLineageNode `json:"lineageNodes"`
	FamilyTree   []wireLineageNode `json:"familyTree"`
}

type wireLineageNode struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	PropertyLink string `json:"propertyLink"`
}

// parseConflicts decodes a conflict batch, all or nothing
func parseConflicts(payload string) ([]model.Conflict, error) {
	var wire []wireConflict
	if err := json.Unmarshal([]byte(stripFences(payload)), &wire); err != nil {
		return nil, fmt.Errorf("decode conflicts: %w", err)
	}

	conflicts := make([]model.Conflict, 0, len(wire))
	seen := make(map[string]bool, len(wire))
	for i, w := range wire {
		id := strings.TrimSpace(w.ID)
		if id == "" {
			return nil, fmt.Errorf("conflict %d: empty id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("conflict %d: duplicate id %q", i, id)
		}
		seen[id] = true

		class := model.RecordClass(strings.ToLower(strings.TrimSpace(firstNonEmpty(w.RecordClass, w.RecordType))))
		if class != model.RecordClassAncestry && class != model.RecordClassLand {
			return nil, fmt.Errorf("conflict %q: record class %q is not ancestry or land", id, class)
		}

		for field, value := range map[string]string{
			"description": w.Description,
			"evidenceA":   w.EvidenceA,
			"evidenceB":   w.EvidenceB,
			"reason":      w.Reason,
		} {
			if strings.TrimSpace(value) == "" {
				return nil, fmt.Errorf("conflict %q: empty %s", id, field)
			}
		}

		conflicts = append(conflicts, model.Conflict{
			ID:          id,
			RecordClass: class,
			Description: w.Description,
			Summary:     w.Summary,
			EvidenceA:   w.EvidenceA,
			EvidenceB:   w.EvidenceB,
			Reason:      w.Reason,
		})
	}
	return conflicts, nil
}

// parseVisualization decodes the timeline object; unknown event types become other
func parseVisualization(payload string) (*model.VisualizationData, error) {
	var wire wireVisualization
	if err := json.Unmarshal([]byte(stripFences(payload)), &wire); err != nil {
		return nil, fmt.Errorf("decode visualization: %w", err)
	}

	out := model.EmptyVisualization()
	for _, ev := range wire.Timeline {
		out.Timeline = append(out.Timeline, model.TimelineEvent{
			Year:      ev.Year,
			Event:     ev.Event,
			Actor:     ev.Actor,
			EventType: model.ParseEventType(strings.ToLower(firstNonEmpty(ev.EventType, ev.Type))),
		})
	}
	nodes := wire.LineageNodes
	if len(nodes) == 0 {
		nodes = wire.FamilyTree
	}
	for _, n := range nodes {
		out.LineageNodes = append(out.LineageNodes, model.LineageNode{
			Name:         n.Name,
			Role:         n.Role,
			PropertyLink: n.PropertyLink,
		})
	}
	return out, nil
}

// normalizeSources drops citations without a uri and repeated uris,
// keeping backend order, and derives each category
func normalizeSources(citations []llm.Citation, classifier *classify.Classifier) []model.GroundingSource {
	sources := make([]model.GroundingSource, 0, len(citations))
	seen := make(map[string]bool, len(citations))
	for _, c := range citations {
		uri := strings.TrimSpace(c.URI)
		if uri == "" || seen[uri] {
			continue
		}
		seen[uri] = true

		category, matched := classifier.Match(c.Title, uri)
		if !matched {
			category = model.CategoryWeb
			if c.Origin == llm.OriginMaps {
				category = model.CategoryMap
			}
		}
		sources = append(sources, model.GroundingSource{
			Title:    c.Title,
			URI:      uri,
			Category: category,
		})
	}
	return sources
}

// stripFences removes a markdown code fence some backends wrap JSON in
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
