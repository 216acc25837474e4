package grounding

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/originpoint/internal/classify"
	"github.com/ppiankov/originpoint/internal/model"
)

const (
	RevisionClassic  = "classic"
	RevisionArchival = "archival"
)

// DefaultRevision is used when the configuration names none.
// Override at build time with -ldflags "-X github.com/ppiankov/originpoint/internal/grounding.DefaultRevision=classic".
var DefaultRevision = RevisionArchival

// Profile bundles everything that differed between the two app revisions
type Profile struct {
	Name       string
	Prompts    Prompts
	Classifier *classify.Classifier

	// ChallengeTarget builds the text a challenge is argued against
	ChallengeTarget func(c model.Conflict) string

	// IntegrityTag returns the opaque display tag for challenge results, nil for none
	IntegrityTag func() string
}

// Classic returns the first revision: web/map typing only, the conflict
// description as challenge target, no result metadata.
func Classic() Profile {
	return Profile{
		Name:       RevisionClassic,
		Prompts:    classicPrompts,
		Classifier: classify.New(nil),
		ChallengeTarget: func(c model.Conflict) string {
			return c.Description
		},
	}
}

// Archival returns the second revision: keyword taxonomy, a challenge
// target that carries both pieces of evidence, and an integrity tag.
func Archival() Profile {
	return Profile{
		Name:       RevisionArchival,
		Prompts:    archivalPrompts,
		Classifier: classify.NewArchival(),
		ChallengeTarget: func(c model.Conflict) string {
			return fmt.Sprintf("%s (evidence A: %s; evidence B: %s)", c.Description, c.EvidenceA, c.EvidenceB)
		},
		IntegrityTag: func() string {
			id := uuid.New()
			return "OP-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:12])
		},
	}
}

// ProfileFor resolves a revision name; empty selects DefaultRevision
func ProfileFor(revision string) (Profile, error) {
	name := strings.ToLower(strings.TrimSpace(revision))
	if name == "" {
		name = DefaultRevision
	}
	switch name {
	case RevisionClassic:
		return Classic(), nil
	case RevisionArchival:
		return Archival(), nil
	default:
		return Profile{}, fmt.Errorf("unknown revision: %q (supported: classic, archival)", revision)
	}
}
