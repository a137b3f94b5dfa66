package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector()

	assert.Zero(t, c.Snapshot().Steps)

	c.ObserveStep(0.42, 8, "all", 5*time.Millisecond)
	c.ObserveStep(0.17, 4, "all", 3*time.Millisecond)
	c.BatchSkipped()

	snapshot := c.Snapshot()
	assert.EqualValues(t, 2, snapshot.Steps)
	assert.EqualValues(t, 1, snapshot.Skipped)
	assert.Equal(t, 0.17, snapshot.LastLoss)
	assert.Equal(t, 4, snapshot.LastTriplets)
	assert.False(t, snapshot.UpdatedAt.IsZero())
}

func TestCollectorRegistry(t *testing.T) {
	c := NewCollector()
	c.ObserveStep(0.5, 8, "hard", time.Millisecond)

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"siren_training_steps_total",
		"siren_batch_loss",
		"siren_triplets_total",
		"siren_step_duration_seconds",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}
