package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledIsNoop(t *testing.T) {
	tel, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tel)

	// No-op providers still hand out usable tracers and meters.
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_EnabledRequiresServiceName(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true})
	assert.Error(t, err)
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("collector:4318"))
}

func TestEngineMetrics_NilSafe(t *testing.T) {
	var m *EngineMetrics
	m.RecordTurn(context.Background(), "interview")
	m.RecordConvergence(context.Background(), "accepted", 2)
}

func TestEngineMetrics_Record(t *testing.T) {
	tel, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	m, err := NewEngineMetrics(tel.Meter("test"))
	require.NoError(t, err)

	m.RecordTurn(context.Background(), "review")
	m.RecordConvergence(context.Background(), "budget_exhausted", 3)
}
