package merge

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
	"github.com/fyrsmithlabs/draftd/internal/schema"
)

// wordSource is a trivial proposal source for tests: input lines of the form
// "field=value" become set updates, "field=-" becomes a retraction.
type wordSource struct{}

func (wordSource) Propose(_ context.Context, _ *schema.Definition, _ *artifact.Artifact, rawText string) ([]FieldUpdate, error) {
	var updates []FieldUpdate
	for _, line := range strings.Split(rawText, "\n") {
		field, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		if value == "-" {
			updates = append(updates, FieldUpdate{Field: field, Retract: true})
			continue
		}
		updates = append(updates, FieldUpdate{Field: field, Value: value})
	}
	return updates, nil
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(schema.Default(), nil)
}

func TestApplyCarriesForwardUntouchedFields(t *testing.T) {
	e := newEngine(t)
	prior := artifact.New(artifact.TypeVision)
	prior.SetField("problem", "paper notes get lost")

	merged, err := e.Apply(prior, []FieldUpdate{{Field: "product_name", Value: "Fieldbook"}})
	require.NoError(t, err)

	v, ok := merged.Field("problem")
	require.True(t, ok, "untouched field must carry forward")
	assert.Equal(t, "paper notes get lost", v)

	v, ok = merged.Field("product_name")
	require.True(t, ok)
	assert.Equal(t, "Fieldbook", v)
}

func TestApplyNeverMutatesPrior(t *testing.T) {
	e := newEngine(t)
	prior := artifact.New(artifact.TypeVision)
	prior.SetField("problem", "original")

	_, err := e.Apply(prior, []FieldUpdate{{Field: "problem", Value: "replaced"}})
	require.NoError(t, err)

	v, _ := prior.Field("problem")
	assert.Equal(t, "original", v)
}

func TestApplyEmptyValueDoesNotBlankField(t *testing.T) {
	e := newEngine(t)
	prior := artifact.New(artifact.TypeVision)
	prior.SetField("platform", "mobile-only")

	merged, err := e.Apply(prior, []FieldUpdate{{Field: "platform", Value: ""}})
	require.NoError(t, err)

	v, ok := merged.Field("platform")
	require.True(t, ok, "empty value without retract must not clear the field")
	assert.Equal(t, "mobile-only", v)
}

func TestApplyExplicitRetraction(t *testing.T) {
	e := newEngine(t)
	prior := artifact.New(artifact.TypeVision)
	prior.SetField("platform", "mobile-only")

	merged, err := e.Apply(prior, []FieldUpdate{{Field: "platform", Retract: true}})
	require.NoError(t, err)

	_, ok := merged.Field("platform")
	assert.False(t, ok, "explicit retraction clears the field")
}

func TestApplyDropsUnknownFields(t *testing.T) {
	e := newEngine(t)
	prior := artifact.New(artifact.TypeVision)
	prior.SetField("problem", "p")

	merged, err := e.Apply(prior, []FieldUpdate{{Field: "invented", Value: "x"}})
	require.NoError(t, err)
	_, exists := merged.Fields["invented"]
	assert.False(t, exists)
	assert.NoError(t, schema.Default().Validate(merged))
}

// Merge monotonicity: every field populated before a sequence of
// unrelated-field updates remains populated and unchanged after them.
func TestMergeMonotonicity(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	a := artifact.New(artifact.TypeVision)
	a.SetField("problem", "paper notes get lost")
	a.SetField("target_users", "field technicians")
	before := a.Clone()

	turns := []string{
		"product_name=Fieldbook",
		"platform=mobile-only offline-first",
		"value_proposition=notes that survive the field",
		"differentiators=works without signal",
		"success_metrics=weekly active techs",
	}
	cur := a
	var err error
	for _, turn := range turns {
		cur, err = e.Merge(ctx, wordSource{}, cur, turn)
		require.NoError(t, err)
	}

	for _, name := range []string{"problem", "target_users"} {
		want, _ := before.Field(name)
		got, ok := cur.Field(name)
		require.True(t, ok, "field %s lost during unrelated merges", name)
		assert.Equal(t, want, got)
	}
	assert.True(t, cur.IsComplete)
	assert.Empty(t, cur.OpenQuestions)
}

// Idempotent re-merge: merging the same raw input twice produces the same
// artifact as merging it once, with no duplicate open questions.
func TestMergeIdempotence(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	a := artifact.New(artifact.TypeVision)
	once, err := e.Merge(ctx, wordSource{}, a, "problem=paper notes get lost")
	require.NoError(t, err)
	twice, err := e.Merge(ctx, wordSource{}, once, "problem=paper notes get lost")
	require.NoError(t, err)

	opts := []cmp.Option{
		// Timestamps differ between applications; the information must not.
		cmp.Comparer(func(x, y artifact.FieldValue) bool {
			return x.Value == y.Value && x.Set == y.Set
		}),
	}
	if diff := cmp.Diff(once, twice, opts...); diff != "" {
		t.Fatalf("re-merge changed the artifact (-once +twice):\n%s", diff)
	}
	assert.Equal(t, once.OpenQuestions, twice.OpenQuestions)
}

// Three successive turns each add one missing field; a fourth corrects an
// already-filled field and leaves the rest bit-for-bit unchanged.
func TestInterviewScenario(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	a := artifact.New(artifact.TypeVision)
	a.SetField("product_name", "Fieldbook")
	a.SetField("problem", "paper notes get lost")
	a.SetField("target_users", "field technicians")
	a.SetField("value_proposition", "notes that survive the field")

	var err error
	for _, turn := range []string{
		"platform=mobile-only offline-first",
		"differentiators=works without signal",
		"success_metrics=weekly active techs",
	} {
		a, err = e.Merge(ctx, wordSource{}, a, turn)
		require.NoError(t, err)
	}
	assert.True(t, a.IsComplete)
	assert.Empty(t, a.OpenQuestions)

	before := a.Clone()
	a, err = e.Merge(ctx, wordSource{}, a, "product_name=Fieldbook Pro")
	require.NoError(t, err)

	v, _ := a.Field("product_name")
	assert.Equal(t, "Fieldbook Pro", v)
	for _, name := range []string{"problem", "target_users", "value_proposition", "platform", "differentiators", "success_metrics"} {
		got := a.Fields[name]
		assert.Equal(t, before.Fields[name], got, "field %s changed by unrelated correction", name)
	}
}
