package trainer

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/siren/pkg/loss"
	"github.com/TFMV/siren/pkg/pairwise"
	"github.com/TFMV/siren/pkg/sampling"
)

// stubEmbedder returns canned embeddings regardless of input.
type stubEmbedder struct {
	out [][]float64
	err error
}

func (s *stubEmbedder) Embed(x []Segment) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

// clusteredBatch returns a batch of four segments from two speakers along
// with a stub embedder placing each speaker's segments on one axis.
func clusteredBatch() (Batch, *stubEmbedder) {
	batch := Batch{
		X: make([]Segment, 4),
		Y: []string{"A", "A", "B", "B"},
	}
	for i := range batch.X {
		batch.X[i] = Segment{{0}}
	}
	embedder := &stubEmbedder{out: [][]float64{
		{1, 0}, {1, 0}, {0, 1}, {0, 1},
	}}
	return batch, embedder
}

func TestNewValidatesEagerly(t *testing.T) {
	embedder := &stubEmbedder{}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown metric", func(c *Config) { c.Metric = "manhattan" }},
		{"unknown clamp", func(c *Config) { c.Clamp = "relu" }},
		{"unknown sampling", func(c *Config) { c.Sampling = "semi-hard" }},
		{"negative margin", func(c *Config) { c.Margin = -0.1 }},
		{"per-label too small", func(c *Config) { c.PerLabel = 1 }},
		{"negative per-fold", func(c *Config) { c.PerFold = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(embedder, cfg)
			require.Error(t, err)
		})
	}

	_, err := New(nil, DefaultConfig())
	require.Error(t, err)

	tr, err := New(embedder, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, sampling.All, tr.Strategy())
}

func TestBatchLossPerfectlySeparated(t *testing.T) {
	batch, embedder := clusteredBatch()

	cfg := DefaultConfig()
	cfg.Metric = pairwise.Euclidean
	tr, err := New(embedder, cfg)
	require.NoError(t, err)

	result, err := tr.BatchLoss(batch)
	require.NoError(t, err)

	// every positive pair is identical (d=0), every negative pair is sqrt(2)
	// away: delta + margin = -sqrt(2) + 0.4 < 0, so the hinge is exactly zero
	assert.Equal(t, 8, result.Triplets)
	assert.Len(t, result.Deltas, 8)
	assert.Zero(t, result.Loss)
	for _, delta := range result.Deltas {
		assert.InDelta(t, -math.Sqrt2, delta, 1e-9)
	}
}

func TestBatchLossViolatedMargin(t *testing.T) {
	batch, _ := clusteredBatch()
	// speaker A's segments point in opposite directions: positives are far,
	// negatives close
	embedder := &stubEmbedder{out: [][]float64{
		{1, 0}, {-1, 0}, {1, 0.1}, {-1, 0.1},
	}}

	cfg := DefaultConfig()
	cfg.Sampling = sampling.Hard
	tr, err := New(embedder, cfg)
	require.NoError(t, err)

	result, err := tr.BatchLoss(batch)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Triplets)
	assert.Greater(t, result.Loss, 0.0)
}

func TestBatchLossClampAndMarginWiring(t *testing.T) {
	batch, embedder := clusteredBatch()

	cfg := DefaultConfig()
	cfg.Metric = pairwise.Euclidean
	cfg.Clamp = loss.Sigmoid
	tr, err := New(embedder, cfg)
	require.NoError(t, err)

	result, err := tr.BatchLoss(batch)
	require.NoError(t, err)

	// sigmoid(10 * (-sqrt(2) + 0.2*2)) for every triplet
	want := 1 / (1 + math.Exp(-10*(-math.Sqrt2+0.4)))
	assert.InDelta(t, want, result.Loss, 1e-9)
}

func TestBatchLossNoTriplets(t *testing.T) {
	batch, embedder := clusteredBatch()
	batch.Y = []string{"A", "A", "A", "A"}

	tr, err := New(embedder, DefaultConfig())
	require.NoError(t, err)

	_, err = tr.BatchLoss(batch)
	assert.ErrorIs(t, err, ErrNoTriplets)
}

func TestBatchLossShapeErrors(t *testing.T) {
	batch, embedder := clusteredBatch()
	tr, err := New(embedder, DefaultConfig())
	require.NoError(t, err)

	short := batch
	short.Y = batch.Y[:3]
	_, err = tr.BatchLoss(short)
	assert.ErrorIs(t, err, ErrBatchShape)

	embedder.out = embedder.out[:2]
	_, err = tr.BatchLoss(batch)
	assert.ErrorIs(t, err, ErrBatchShape)
}

func TestBatchLossEmbedderError(t *testing.T) {
	batch, embedder := clusteredBatch()
	embedder.err = errors.New("device lost")

	tr, err := New(embedder, DefaultConfig())
	require.NoError(t, err)

	_, err = tr.BatchLoss(batch)
	assert.ErrorContains(t, err, "device lost")
}

func TestBatchLossDimensionMismatchPropagates(t *testing.T) {
	batch, embedder := clusteredBatch()
	embedder.out = [][]float64{{1, 0}, {1}, {0, 1}, {0, 1}}

	tr, err := New(embedder, DefaultConfig())
	require.NoError(t, err)

	_, err = tr.BatchLoss(batch)
	assert.ErrorIs(t, err, pairwise.ErrDimensionMismatch)
}

func TestCheckComposition(t *testing.T) {
	assert.NoError(t, CheckComposition([]string{"A", "A", "B", "B"}))

	assert.ErrorIs(t, CheckComposition([]string{"A", "A", "A"}), ErrDegenerateBatch)
	assert.ErrorIs(t, CheckComposition([]string{"A", "A", "B"}), ErrDegenerateBatch)
	assert.ErrorIs(t, CheckComposition(nil), ErrDegenerateBatch)
}
