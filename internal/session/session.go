// Package session drives the conversational refinement workflow: an ordered
// list of artifact stages (vision, roadmap, story), each walked through
// routing, interview, review, and persistence. All state is volatile until
// the user explicitly confirms persistence.
package session

import (
	"sync"
	"time"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
)

// Phase is the orchestrator's position within the active stage.
type Phase string

const (
	// PhaseRouting selects the active stage and initializes its draft.
	PhaseRouting Phase = "routing"

	// PhaseInterview accumulates state turn by turn until complete.
	PhaseInterview Phase = "interview"

	// PhaseReview presents a candidate and awaits confirmation or a
	// correction.
	PhaseReview Phase = "review"

	// PhasePersistence commits the confirmed artifact.
	PhasePersistence Phase = "persistence"

	// PhaseDone means every stage has been persisted.
	PhaseDone Phase = "done"
)

// Utterance is one raw user input. The history is append-only and never
// truncated or rewritten.
type Utterance struct {
	// Stage is the artifact stage active when the utterance arrived.
	Stage artifact.Type `json:"stage"`

	// Text is the raw input, stored verbatim.
	Text string `json:"text"`

	// At is the receive time in UTC.
	At time.Time `json:"at"`
}

// Session holds the volatile state of one conversational thread.
//
// The mutex serializes turns: at most one merge/validate cycle is in flight
// per session, while distinct sessions proceed fully concurrently.
type Session struct {
	mu sync.Mutex

	// ID is the session identifier.
	ID string

	// Stages is the ordered list of artifact stages to walk.
	Stages []artifact.Type

	// stageIdx indexes the active stage.
	stageIdx int

	// Phase is the position within the active stage.
	Phase Phase

	// History is the append-only raw input record across all stages.
	History []Utterance

	// Drafts holds the in-progress artifact per stage.
	Drafts map[artifact.Type]*artifact.Artifact

	// Candidate is the artifact awaiting confirmation in review.
	Candidate *artifact.Artifact

	// NeedsReview marks the candidate as a best-effort result that did
	// not pass every quality gate.
	NeedsReview bool

	// Accepted holds the persisted artifact per completed stage.
	Accepted map[artifact.Type]*artifact.Artifact

	// StoredIDs maps each persisted stage to its durable artifact ID.
	StoredIDs map[artifact.Type]string

	// CreatedAt and UpdatedAt track session lifetime in UTC.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultStages is the standard vision → roadmap → story progression.
func DefaultStages() []artifact.Type {
	return []artifact.Type{artifact.TypeVision, artifact.TypeRoadmap, artifact.TypeStory}
}

// newSession creates a session at the first stage's routing phase.
func newSession(id string, stages []artifact.Type) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Stages:    stages,
		Phase:     PhaseRouting,
		History:   []Utterance{},
		Drafts:    make(map[artifact.Type]*artifact.Artifact, len(stages)),
		Accepted:  make(map[artifact.Type]*artifact.Artifact, len(stages)),
		StoredIDs: make(map[artifact.Type]string, len(stages)),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Stage returns the active artifact stage.
func (s *Session) Stage() artifact.Type {
	if s.stageIdx >= len(s.Stages) {
		return ""
	}
	return s.Stages[s.stageIdx]
}

// Done reports whether every stage has been persisted.
func (s *Session) Done() bool {
	return s.Phase == PhaseDone
}

// stageHistory returns the raw texts of the active stage's utterances,
// oldest first.
func (s *Session) stageHistory() []string {
	stage := s.Stage()
	var texts []string
	for _, u := range s.History {
		if u.Stage == stage {
			texts = append(texts, u.Text)
		}
	}
	return texts
}

// advance moves to the next stage's routing, or to done.
func (s *Session) advance() {
	s.stageIdx++
	s.Candidate = nil
	s.NeedsReview = false
	if s.stageIdx >= len(s.Stages) {
		s.Phase = PhaseDone
		return
	}
	s.Phase = PhaseRouting
}
