// Package loss turns mined triplets and condensed pairwise distances into a
// trainable scalar.
package loss

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/TFMV/siren/pkg/pairwise"
	"github.com/TFMV/siren/pkg/sampling"
)

// ErrUnknownClamp is returned when an unrecognized clamp name is supplied.
var ErrUnknownClamp = errors.New("unknown clamp function")

// Clamp identifies the transform from the raw margin-violation signal (delta)
// to a per-triplet loss.
type Clamp string

const (
	// Positive is the hinge transform max(0, delta + margin).
	Positive Clamp = "positive"
	// Sigmoid is sigmoid(10 * (delta + margin)), bounded in (0, 1).
	Sigmoid Clamp = "sigmoid"
	// SoftMargin is log(1 + exp(delta)), smooth and margin-free.
	SoftMargin Clamp = "softmargin"
)

// sigmoidSharpness scales the margin violation before the sigmoid clamp.
// Fixed hyperparameter, not part of the configuration surface.
const sigmoidSharpness = 10

// ParseClamp validates a clamp name.
func ParseClamp(s string) (Clamp, error) {
	switch c := Clamp(s); c {
	case Positive, Sigmoid, SoftMargin:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownClamp, s)
	}
}

func (c Clamp) apply(delta, margin float64) float64 {
	switch c {
	case Positive:
		return math.Max(0, delta+margin)
	case Sigmoid:
		return 1 / (1 + math.Exp(-sigmoidSharpness*(delta+margin)))
	case SoftMargin:
		return math.Log1p(math.Exp(delta))
	default:
		return math.NaN()
	}
}

// PerTriplet computes the clamped loss and the raw delta for every triplet.
// delta = d(anchor, positive) - d(anchor, negative); the lower, the better.
// margin is the effective margin, i.e. the configured factor already scaled
// by the metric's maximum distance; SoftMargin ignores it.
func PerTriplet(distances pairwise.Condensed, t sampling.Triplets, clamp Clamp, margin float64) (losses, deltas []float64, err error) {
	if _, err := ParseClamp(string(clamp)); err != nil {
		return nil, nil, err
	}

	n := distances.N()
	pos, err := pairwise.CondensedIndices(n, t.Anchors, t.Positives)
	if err != nil {
		return nil, nil, fmt.Errorf("anchor-positive offsets: %w", err)
	}
	neg, err := pairwise.CondensedIndices(n, t.Anchors, t.Negatives)
	if err != nil {
		return nil, nil, fmt.Errorf("anchor-negative offsets: %w", err)
	}

	losses = make([]float64, t.Len())
	deltas = make([]float64, t.Len())
	for k := range deltas {
		deltas[k] = distances[pos[k]] - distances[neg[k]]
		losses[k] = clamp.apply(deltas[k], margin)
	}
	return losses, deltas, nil
}

// Mean reduces per-triplet losses to the batch loss. The caller must guard
// against an empty triplet set; the mean of nothing is undefined.
func Mean(losses []float64) float64 {
	return stat.Mean(losses, nil)
}
