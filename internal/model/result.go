package model

// AnalysisResult is the prose answer of a grounded query or a challenge
type AnalysisResult struct {
	Text              string            `json:"text"`
	Sources           []GroundingSource `json:"sources"`
	IsDeepReasoning   bool              `json:"is_deep_reasoning"`
	VerificationScore *int              `json:"verification_score,omitempty"` // 0-100, only set when sources were checked
	IntegrityTag      string            `json:"integrity_tag,omitempty"`      // Opaque display tag, carries no cryptographic meaning
	Checks            []SourceCheck     `json:"checks,omitempty"`             // Per-source validation detail
}

// Clone returns a deep copy of the result
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Sources = append([]GroundingSource(nil), r.Sources...)
	out.Checks = append([]SourceCheck(nil), r.Checks...)
	if r.VerificationScore != nil {
		score := *r.VerificationScore
		out.VerificationScore = &score
	}
	return &out
}

// RecordClass tells which record family a conflict belongs to
type RecordClass string

const (
	RecordClassAncestry RecordClass = "ancestry"
	RecordClassLand     RecordClass = "land"
)

// Conflict is a factual discrepancy between two pieces of evidence
type Conflict struct {
	ID          string      `json:"id"`
	RecordClass RecordClass `json:"record_class"`
	Description string      `json:"description"`
	Summary     string      `json:"summary,omitempty"`
	EvidenceA   string      `json:"evidence_a"`
	EvidenceB   string      `json:"evidence_b"`
	Reason      string      `json:"reason"`
}

// EventType classifies a timeline event
type EventType string

const (
	EventOwnership EventType = "ownership"
	EventBirth     EventType = "birth"
	EventDeath     EventType = "death"
	EventLegal     EventType = "legal"
	EventOther     EventType = "other" // Anything the backend labeled outside the four above
)

// ParseEventType normalizes a backend label, unknown labels become EventOther
func ParseEventType(s string) EventType {
	switch EventType(s) {
	case EventOwnership, EventBirth, EventDeath, EventLegal:
		return EventType(s)
	default:
		return EventOther
	}
}

// TimelineEvent is one entry of an ownership chronology
type TimelineEvent struct {
	Year      string    `json:"year"`
	Event     string    `json:"event"`
	Actor     string    `json:"actor"`
	EventType EventType `json:"event_type"`
}

// LineageNode links a person to a property
type LineageNode struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	PropertyLink string `json:"property_link"`
}

// VisualizationData holds the timeline and lineage map for one query
type VisualizationData struct {
	Timeline     []TimelineEvent `json:"timeline"`
	LineageNodes []LineageNode   `json:"lineage_nodes"`
}

// EmptyVisualization returns a valid visualization with no entries
func EmptyVisualization() *VisualizationData {
	return &VisualizationData{
		Timeline:     []TimelineEvent{},
		LineageNodes: []LineageNode{},
	}
}

// Clone returns a deep copy of the visualization
func (v *VisualizationData) Clone() *VisualizationData {
	if v == nil {
		return nil
	}
	return &VisualizationData{
		Timeline:     append([]TimelineEvent{}, v.Timeline...),
		LineageNodes: append([]LineageNode{}, v.LineageNodes...),
	}
}

// ChallengeSession exists only while counter-evidence is being composed
type ChallengeSession struct {
	ConflictID        string `json:"conflict_id"`
	TargetDescription string `json:"target_description"`
	EvidenceText      string `json:"evidence_text,omitempty"`
	Active            bool   `json:"active"`
}
