package controller

import (
	"errors"

	"github.com/ppiankov/originpoint/internal/model"
)

// State is the controller's position in the interaction flow
type State string

const (
	StateIdle        State = "idle"
	StateLoading     State = "loading"
	StateResultReady State = "result_ready"
	StateChallenging State = "challenging"
)

// Kind tells which result slot is current in StateResultReady
type Kind string

const (
	KindNone          Kind = ""
	KindText          Kind = "text"
	KindConflicts     Kind = "conflicts"
	KindVisualization Kind = "visualization"
	KindEmpty         Kind = "empty" // A conflict query that found nothing
)

var (
	// ErrBusy rejects a request while another is in flight
	ErrBusy = errors.New("a request is already in progress")

	// ErrNoConflict is returned when a conflict id is not in the current batch
	ErrNoConflict = errors.New("no such conflict in the current batch")

	// ErrState is returned for transitions the current state does not allow
	ErrState = errors.New("operation not allowed in the current state")
)

// Snapshot is a copy of the controller state for renderers
type Snapshot struct {
	State         State                    `json:"state"`
	Kind          Kind                     `json:"kind,omitempty"`
	Module        model.Module             `json:"module"`
	Query         string                   `json:"query,omitempty"`
	Result        *model.AnalysisResult    `json:"result,omitempty"`
	Conflicts     []model.Conflict         `json:"conflicts,omitempty"`
	Visualization *model.VisualizationData `json:"visualization,omitempty"`
	Summary       string                   `json:"summary,omitempty"`
	Challenge     *model.ChallengeSession  `json:"challenge,omitempty"`
	Notice        string                   `json:"notice,omitempty"`
}

// Loading reports whether a request is in flight
func (s Snapshot) Loading() bool {
	return s.State == StateLoading
}
