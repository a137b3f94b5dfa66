// Package trainer glues an external embedding network to triplet mining and
// loss computation, one batch at a time.
package trainer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TFMV/siren/pkg/loss"
	"github.com/TFMV/siren/pkg/metrics"
	"github.com/TFMV/siren/pkg/pairwise"
	"github.com/TFMV/siren/pkg/sampling"
)

var (
	// ErrNoTriplets is returned when a batch yields zero triplets under the
	// configured strategy. Callers should constrain batch composition upstream
	// rather than recover from this.
	ErrNoTriplets = errors.New("batch produced no triplets")
	// ErrBatchShape is returned when segments, labels and embeddings disagree
	// on count.
	ErrBatchShape = errors.New("batch shape mismatch")
	// ErrDegenerateBatch is returned by CheckComposition when a batch cannot
	// produce both positive and negative pairs.
	ErrDegenerateBatch = errors.New("degenerate batch composition")
)

// Config is the immutable configuration surface of a Trainer. Defaults follow
// DefaultConfig; invalid metric, clamp or sampling names fail at New.
type Config struct {
	// Metric used for pairwise distances.
	Metric pairwise.Metric
	// Margin is a multiplicative factor; the effective margin is
	// Margin * Metric.MaxDistance().
	Margin float64
	// Clamp transforms per-triplet deltas into losses.
	Clamp loss.Clamp
	// Sampling selects the triplet mining strategy.
	Sampling sampling.Strategy
	// PerLabel is the number of segments per speaker the batch source is
	// expected to provide.
	PerLabel int
	// PerFold is the number of speakers per batch; zero means the whole
	// speaker set.
	PerFold int
	// Logger for step-level diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
	// Collector receives per-step instrumentation when set.
	Collector *metrics.Collector
}

// DefaultConfig returns the default trainer configuration.
func DefaultConfig() Config {
	return Config{
		Metric:   pairwise.Cosine,
		Margin:   0.2,
		Clamp:    loss.Positive,
		Sampling: sampling.All,
		PerLabel: 3,
	}
}

// Trainer computes the triplet loss of labelled batches. It owns no state
// across steps beyond its configuration; every per-batch intermediate is
// freshly allocated and discarded.
type Trainer struct {
	embedder  Embedder
	metric    pairwise.Metric
	margin    float64 // effective margin, already scaled by the metric's max distance
	clamp     loss.Clamp
	strategy  sampling.Strategy
	perLabel  int
	logger    *zap.Logger
	collector *metrics.Collector
}

// New builds a Trainer, validating the whole configuration eagerly: a Trainer
// that constructs never fails on configuration at step time.
func New(embedder Embedder, cfg Config) (*Trainer, error) {
	if embedder == nil {
		return nil, errors.New("embedder must not be nil")
	}
	metric, err := pairwise.ParseMetric(string(cfg.Metric))
	if err != nil {
		return nil, err
	}
	clamp, err := loss.ParseClamp(string(cfg.Clamp))
	if err != nil {
		return nil, err
	}
	strategy, err := sampling.ParseStrategy(string(cfg.Sampling))
	if err != nil {
		return nil, err
	}
	if cfg.Margin < 0 {
		return nil, fmt.Errorf("margin factor must be non-negative, got %g", cfg.Margin)
	}
	if cfg.PerLabel < 2 {
		return nil, fmt.Errorf("per-label must be at least 2 for positive pairs to exist, got %d", cfg.PerLabel)
	}
	if cfg.PerFold < 0 {
		return nil, fmt.Errorf("per-fold must be non-negative, got %d", cfg.PerFold)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Trainer{
		embedder:  embedder,
		metric:    metric,
		margin:    cfg.Margin * metric.MaxDistance(),
		clamp:     clamp,
		strategy:  strategy,
		perLabel:  cfg.PerLabel,
		logger:    logger,
		collector: cfg.Collector,
	}, nil
}

// Strategy returns the configured sampling strategy.
func (t *Trainer) Strategy() sampling.Strategy { return t.strategy }

// StepResult carries the outcome of one training step.
type StepResult struct {
	// Loss is the arithmetic mean of the per-triplet losses.
	Loss float64
	// Deltas are the raw per-triplet margin violations, before clamping.
	Deltas []float64
	// Triplets is the number of triplets mined from the batch.
	Triplets int
}

// BatchLoss is the sole externally-invoked entry point: it obtains embeddings
// from the configured network, mines triplets under the configured strategy
// and reduces their clamped losses to one scalar for the external optimizer.
func (t *Trainer) BatchLoss(batch Batch) (StepResult, error) {
	if len(batch.X) != len(batch.Y) {
		return StepResult{}, fmt.Errorf("%w: %d segments, %d labels", ErrBatchShape, len(batch.X), len(batch.Y))
	}

	embeddings, err := t.embedder.Embed(batch.X)
	if err != nil {
		return StepResult{}, fmt.Errorf("embed: %w", err)
	}
	if len(embeddings) != len(batch.Y) {
		return StepResult{}, fmt.Errorf("%w: %d embeddings, %d labels", ErrBatchShape, len(embeddings), len(batch.Y))
	}

	distances, err := pairwise.Pdist(embeddings, t.metric)
	if err != nil {
		return StepResult{}, err
	}

	triplets, err := t.strategy.Sample(batch.Y, distances.Squareform())
	if err != nil {
		return StepResult{}, err
	}
	if triplets.Len() == 0 {
		return StepResult{}, ErrNoTriplets
	}

	losses, deltas, err := loss.PerTriplet(distances, triplets, t.clamp, t.margin)
	if err != nil {
		return StepResult{}, err
	}

	return StepResult{
		Loss:     loss.Mean(losses),
		Deltas:   deltas,
		Triplets: triplets.Len(),
	}, nil
}

// underfilledLabels returns the labels of a batch carrying fewer segments
// than the configured per-label count, sorted by first occurrence.
func (t *Trainer) underfilledLabels(labels []string) []string {
	counts := make(map[string]int, len(labels))
	order := make([]string, 0, len(labels))
	for _, y := range labels {
		if counts[y] == 0 {
			order = append(order, y)
		}
		counts[y]++
	}
	var short []string
	for _, y := range order {
		if counts[y] < t.perLabel {
			short = append(short, y)
		}
	}
	return short
}

// CheckComposition verifies that a label sequence can produce triplets: at
// least two distinct labels, each with at least two examples. Batches failing
// this check would mine zero triplets under every strategy.
func CheckComposition(labels []string) error {
	counts := make(map[string]int, len(labels))
	for _, y := range labels {
		counts[y]++
	}
	if len(counts) < 2 {
		return fmt.Errorf("%w: need at least two distinct labels, got %d", ErrDegenerateBatch, len(counts))
	}
	for y, c := range counts {
		if c < 2 {
			return fmt.Errorf("%w: label %q has a single example", ErrDegenerateBatch, y)
		}
	}
	return nil
}
