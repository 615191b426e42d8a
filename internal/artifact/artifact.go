// Package artifact defines the structured records produced by the refinement
// pipeline: a vision, a roadmap, a user story. An artifact accumulates field
// values across conversational turns and carries the open questions for the
// fields still missing.
package artifact

import (
	"sort"
	"strings"
	"time"
)

// Type identifies an artifact kind.
type Type string

const (
	// TypeVision is the top-level product vision.
	TypeVision Type = "vision"

	// TypeRoadmap is the phased delivery roadmap derived from a vision.
	TypeRoadmap Type = "roadmap"

	// TypeStory is a backlog user story derived from a roadmap.
	TypeStory Type = "story"
)

// FieldValue holds the value of a single artifact field. Set distinguishes an
// empty value from an absent one: a field with Set=false has never been
// confirmed and still produces an open question.
type FieldValue struct {
	Value     string    `json:"value"`
	Set       bool      `json:"set"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Artifact is a named, versioned structured record.
//
// Invariant: once a field carries a set value, only an explicit user-driven
// correction or retraction may change it. Merges with unrelated input must
// never revert a set field to absent.
type Artifact struct {
	Type           Type                  `json:"artifact_type"`
	Fields         map[string]FieldValue `json:"fields"`
	OpenQuestions  []string              `json:"open_questions"`
	IsComplete     bool                  `json:"is_complete"`
	QualityScore   float64               `json:"quality_score"`
	IterationCount int                   `json:"iteration_count"`
}

// New returns an empty artifact of the given type with no fields set.
func New(t Type) *Artifact {
	return &Artifact{
		Type:          t,
		Fields:        make(map[string]FieldValue),
		OpenQuestions: []string{},
	}
}

// Field returns the value of a field and whether it has been set.
func (a *Artifact) Field(name string) (string, bool) {
	fv, ok := a.Fields[name]
	if !ok || !fv.Set {
		return "", false
	}
	return fv.Value, true
}

// SetField confirms a field value.
func (a *Artifact) SetField(name, value string) {
	if a.Fields == nil {
		a.Fields = make(map[string]FieldValue)
	}
	a.Fields[name] = FieldValue{Value: value, Set: true, UpdatedAt: time.Now().UTC()}
}

// ClearField retracts a previously confirmed field. Clearing an absent field
// is a no-op.
func (a *Artifact) ClearField(name string) {
	if _, ok := a.Fields[name]; !ok {
		return
	}
	a.Fields[name] = FieldValue{}
}

// SetCount returns the number of fields with confirmed values.
func (a *Artifact) SetCount() int {
	n := 0
	for _, fv := range a.Fields {
		if fv.Set {
			n++
		}
	}
	return n
}

// Clone returns a deep copy. Used for candidate snapshots in convergence
// records so later mutations never rewrite history.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	cp := &Artifact{
		Type:           a.Type,
		Fields:         make(map[string]FieldValue, len(a.Fields)),
		OpenQuestions:  append([]string{}, a.OpenQuestions...),
		IsComplete:     a.IsComplete,
		QualityScore:   a.QualityScore,
		IterationCount: a.IterationCount,
	}
	for k, v := range a.Fields {
		cp.Fields[k] = v
	}
	return cp
}

// Text renders the set fields as prose for guardrail matching and prompt
// context. Fields are emitted in the given order; fields not listed follow in
// sorted order so the rendering is deterministic regardless of map iteration.
func (a *Artifact) Text(order []string) string {
	var b strings.Builder
	seen := make(map[string]bool, len(order))
	emit := func(name string) {
		if v, ok := a.Field(name); ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(v)
		}
	}
	for _, name := range order {
		seen[name] = true
		emit(name)
	}
	rest := make([]string, 0, len(a.Fields))
	for name := range a.Fields {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		emit(name)
	}
	return b.String()
}
