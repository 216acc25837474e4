// Package controller drives one interactive OriginPoint session: the
// active module, a single in-flight request, the current result and the
// challenge flow.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ppiankov/originpoint/internal/classify"
	"github.com/ppiankov/originpoint/internal/grounding"
	"github.com/ppiankov/originpoint/internal/history"
	"github.com/ppiankov/originpoint/internal/model"
	"github.com/ppiankov/originpoint/internal/validate"
)

// Client is the grounded-query surface the controller dispatches to
type Client interface {
	SearchRecords(ctx context.Context, query string) (*model.AnalysisResult, error)
	MapProperty(ctx context.Context, location string) (*model.AnalysisResult, error)
	GroundingAudit(ctx context.Context, claim string) (*model.AnalysisResult, error)
	DetectConflicts(ctx context.Context, query string) ([]model.Conflict, error)
	GenerateVisualData(ctx context.Context, query string) (*model.VisualizationData, error)
	SubmitChallenge(ctx context.Context, target, evidence string) (string, error)
	FastSummarize(ctx context.Context, text string) (string, error)
	ScanDocument(ctx context.Context, doc model.Document) (*model.AnalysisResult, error)
}

// Auditor checks the sources of an audit result
type Auditor interface {
	Audit(ctx context.Context, sources []model.GroundingSource, classifier *classify.Classifier) validate.Report
}

// Recorder stores completed interactions
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
}

// challengeModule labels challenge interactions in history
const challengeModule model.Module = "challenge"

// Options configures a Controller
type Options struct {
	Profile  *grounding.Profile
	Module   model.Module // Initial module, search when empty
	Auditor  Auditor
	Recorder Recorder
	Logger   *zap.Logger
}

// Controller is safe for concurrent use. At most one request is in
// flight; a second submission is rejected with ErrBusy, not queued.
type Controller struct {
	client   Client
	profile  grounding.Profile
	auditor  Auditor
	recorder Recorder
	logger   *zap.Logger

	inFlight atomic.Bool

	mu            sync.Mutex
	generation    uint64 // bumped whenever the result slots are cleared
	state         State
	kind          Kind
	module        model.Module
	query         string
	result        *model.AnalysisResult
	conflicts     []model.Conflict
	visualization *model.VisualizationData
	summary       string
	challenge     *model.ChallengeSession
	notice        string
}

// New creates a controller in the idle state
func New(client Client, opts Options) *Controller {
	c := &Controller{
		client:   client,
		auditor:  opts.Auditor,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		state:    StateIdle,
		module:   opts.Module,
	}
	if opts.Profile != nil {
		c.profile = *opts.Profile
	} else {
		c.profile = grounding.Archival()
	}
	if c.module == "" {
		c.module = model.ModuleSearch
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// SelectModule switches the active module and clears every result slot
func (c *Controller) SelectModule(m model.Module) error {
	m, err := model.ParseModule(string(m))
	if err != nil {
		return &grounding.ValidationError{Field: "module", Reason: err.Error()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateLoading {
		return ErrBusy
	}
	c.clearLocked()
	c.notice = ""
	c.module = m
	c.state = StateIdle
	return nil
}

// Submit dispatches a query to the active module
func (c *Controller) Submit(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return &grounding.ValidationError{Field: "query"}
	}

	c.mu.Lock()
	module := c.module
	c.mu.Unlock()

	spec, ok := moduleTable[module]
	if !ok {
		return &grounding.ValidationError{Field: "query", Reason: "the " + string(module) + " module takes a document, not a query"}
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.inFlight.Store(false)

	gen := c.beginLoading(module, query)
	out, err := spec.run(ctx, c, query)
	return c.complete(ctx, gen, module, query, spec, out, err)
}

// SubmitDocument dispatches a document image to the scan module
func (c *Controller) SubmitDocument(ctx context.Context, doc model.Document) error {
	c.mu.Lock()
	module := c.module
	c.mu.Unlock()
	if module != model.ModuleScan {
		return ErrState
	}
	if len(doc.Data) == 0 {
		return &grounding.ValidationError{Field: "document"}
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.inFlight.Store(false)

	label := doc.Name
	if label == "" {
		label = "document"
	}
	gen := c.beginLoading(module, label)
	out, err := textOutcome(c.client.ScanDocument(ctx, doc))
	return c.complete(ctx, gen, module, label, scanSpec, out, err)
}

// SelectConflict opens a challenge against one conflict of the current batch
func (c *Controller) SelectConflict(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateResultReady || c.kind != KindConflicts {
		return ErrState
	}
	for _, conflict := range c.conflicts {
		if conflict.ID == id {
			c.challenge = &model.ChallengeSession{
				ConflictID:        conflict.ID,
				TargetDescription: c.profile.ChallengeTarget(conflict),
				Active:            true,
			}
			c.state = StateChallenging
			return nil
		}
	}
	return ErrNoConflict
}

// DraftChallenge stores counter-evidence being composed for the open challenge
func (c *Controller) DraftChallenge(evidence string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateChallenging || c.challenge == nil {
		return ErrState
	}
	c.challenge.EvidenceText = evidence
	return nil
}

// SubmitChallenge re-analyzes the selected conflict against the evidence.
// On success the conflict batch is replaced by a single deep-reasoning result.
func (c *Controller) SubmitChallenge(ctx context.Context, evidence string) error {
	evidence = strings.TrimSpace(evidence)
	if evidence == "" {
		return &grounding.ValidationError{Field: "evidence"}
	}

	c.mu.Lock()
	if c.state != StateChallenging || c.challenge == nil {
		c.mu.Unlock()
		return ErrState
	}
	c.challenge.EvidenceText = evidence
	target := c.challenge.TargetDescription
	c.mu.Unlock()

	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.inFlight.Store(false)

	gen := c.beginLoading(model.ModuleConflicts, evidence)

	text, err := c.client.SubmitChallenge(ctx, target, evidence)
	var out outcome
	if err == nil {
		result := &model.AnalysisResult{
			Text:            text,
			Sources:         []model.GroundingSource{},
			IsDeepReasoning: true,
		}
		if c.profile.IntegrityTag != nil {
			result.IntegrityTag = c.profile.IntegrityTag()
		}
		out = outcome{kind: KindText, result: result}
	}
	return c.complete(ctx, gen, challengeModule, evidence, moduleSpec{summary: fixedSummary(challengeSummary)}, out, err)
}

// CancelChallenge discards the challenge session; the conflict batch stays current
func (c *Controller) CancelChallenge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateChallenging {
		return ErrState
	}
	c.challenge = nil
	c.state = StateResultReady
	return nil
}

// Snapshot returns a deep copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:         c.state,
		Kind:          c.kind,
		Module:        c.module,
		Query:         c.query,
		Result:        c.result.Clone(),
		Visualization: c.visualization.Clone(),
		Summary:       c.summary,
		Notice:        c.notice,
	}
	if c.conflicts != nil {
		s.Conflicts = append([]model.Conflict{}, c.conflicts...)
	}
	if c.challenge != nil {
		ch := *c.challenge
		s.Challenge = &ch
	}
	return s
}

// beginLoading clears every slot and enters StateLoading, returning the new generation
func (c *Controller) beginLoading(module model.Module, query string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLocked()
	c.notice = ""
	c.module = module
	c.query = query
	c.state = StateLoading
	return c.generation
}

// complete commits a dispatch outcome, then runs the summary policy
// sequentially and records the interaction
func (c *Controller) complete(ctx context.Context, gen uint64, module model.Module, query string, spec moduleSpec, out outcome, err error) error {
	if err != nil {
		c.fail(err)
		return err
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return nil
	}
	c.kind = out.kind
	c.result = out.result
	c.conflicts = out.conflicts
	c.visualization = out.visualization
	c.state = StateResultReady
	c.mu.Unlock()

	if spec.summary != nil {
		summary, err := spec.summary(ctx, c, out)
		if err != nil {
			c.logger.Warn("summary failed, keeping result without it",
				zap.String("module", string(module)),
				zap.Error(err))
		} else {
			c.mu.Lock()
			if c.generation == gen {
				c.summary = summary
			}
			c.mu.Unlock()
		}
	}

	c.record(ctx, gen, module, query)
	return nil
}

// fail returns to idle with a single notice; nothing partial is kept
func (c *Controller) fail(err error) {
	c.logger.Warn("request failed", zap.Error(err))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	c.state = StateIdle
	c.notice = NoticeFor(err)
}

func (c *Controller) clearLocked() {
	c.generation++
	c.kind = KindNone
	c.query = ""
	c.result = nil
	c.conflicts = nil
	c.visualization = nil
	c.summary = ""
	c.challenge = nil
}

func (c *Controller) record(ctx context.Context, gen uint64, module model.Module, query string) {
	if c.recorder == nil {
		return
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	payload, err := json.Marshal(snap)
	if err != nil {
		c.logger.Warn("history payload encode failed", zap.Error(err))
		return
	}

	entry, err := c.recorder.Record(ctx, history.Entry{
		Module:  string(module),
		Query:   query,
		Kind:    string(snap.Kind),
		Summary: snap.Summary,
		Payload: payload,
	})
	if err != nil {
		c.logger.Warn("history record failed", zap.Error(err))
		return
	}
	c.logger.Debug("interaction recorded", zap.String("id", entry.ID))
}

// NoticeFor converts an error into the single user-visible notice
func NoticeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, grounding.ErrValidation):
		return err.Error()
	case errors.Is(err, grounding.ErrSchemaParse):
		return "The records service returned data in an unexpected shape. Please try again."
	case errors.Is(err, grounding.ErrUpstream):
		return "Request intercepted or failed. Verify link integrity."
	default:
		return "Request failed: " + err.Error()
	}
}
