package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldRoundTrip(t *testing.T) {
	a := New(TypeVision)

	_, ok := a.Field("problem")
	assert.False(t, ok, "unset field should report absent")

	a.SetField("problem", "field techs lose paper notes")
	v, ok := a.Field("problem")
	require.True(t, ok)
	assert.Equal(t, "field techs lose paper notes", v)
	assert.Equal(t, 1, a.SetCount())
}

func TestClearField(t *testing.T) {
	a := New(TypeVision)
	a.SetField("platform", "mobile-only")

	a.ClearField("platform")
	_, ok := a.Field("platform")
	assert.False(t, ok, "cleared field should report absent")

	// Clearing a field that was never set must not create it.
	a.ClearField("nonexistent")
	_, exists := a.Fields["nonexistent"]
	assert.False(t, exists)
}

func TestCloneIsDeep(t *testing.T) {
	a := New(TypeStory)
	a.SetField("title", "offline sync")
	a.OpenQuestions = []string{"who is the persona?"}

	cp := a.Clone()
	cp.SetField("title", "changed")
	cp.OpenQuestions[0] = "changed"

	v, _ := a.Field("title")
	assert.Equal(t, "offline sync", v)
	assert.Equal(t, "who is the persona?", a.OpenQuestions[0])
}

func TestTextDeterministicOrder(t *testing.T) {
	a := New(TypeVision)
	a.SetField("problem", "p")
	a.SetField("platform", "mobile-only")
	a.SetField("extra", "x")

	got := a.Text([]string{"platform", "problem"})
	want := "platform: mobile-only\nproblem: p\nextra: x"
	assert.Equal(t, want, got)

	// Repeated rendering is identical.
	assert.Equal(t, got, a.Text([]string{"platform", "problem"}))
}

func TestTextSkipsUnsetFields(t *testing.T) {
	a := New(TypeVision)
	a.SetField("problem", "p")
	a.ClearField("problem")
	assert.Equal(t, "", a.Text([]string{"problem"}))
}
