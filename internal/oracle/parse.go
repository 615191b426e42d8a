package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
	"github.com/fyrsmithlabs/draftd/internal/merge"
	"github.com/fyrsmithlabs/draftd/internal/schema"
)

// candidatePayload is the JSON shape a generator is asked to produce for a
// full candidate artifact.
type candidatePayload struct {
	Fields map[string]string `json:"fields"`
}

// updatePayload is the JSON shape for extraction calls.
type updatePayload struct {
	Updates []merge.FieldUpdate `json:"updates"`
}

// ParseCandidate parses a generator payload into an artifact of the given
// schema. The payload must be a JSON object with a "fields" map; a
// surrounding markdown code fence is tolerated. Fields unknown to the schema
// fail with ErrSchema so drift is caught, not silently stored.
func ParseCandidate(def *schema.Definition, payload string) (*artifact.Artifact, error) {
	var p candidatePayload
	if err := json.Unmarshal([]byte(stripFence(payload)), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Fields == nil {
		return nil, fmt.Errorf("%w: missing fields object", ErrMalformed)
	}

	a := artifact.New(def.Type)
	for name, value := range p.Fields {
		if _, ok := def.Field(name); !ok {
			return nil, fmt.Errorf("%w: unknown field %q", ErrSchema, name)
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		a.SetField(name, value)
	}
	return a, nil
}

// ParseUpdates parses an extraction payload into field updates. Unknown
// fields are kept; the merge engine drops them with a warning so one bad
// update never discards the rest of the proposal.
func ParseUpdates(payload string) ([]merge.FieldUpdate, error) {
	var p updatePayload
	if err := json.Unmarshal([]byte(stripFence(payload)), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return p.Updates, nil
}

// stripFence removes a surrounding markdown code fence, with or without a
// language tag.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
