// Package pairwise computes condensed pairwise distance matrices over
// embedding batches and maps between the square and condensed referentials.
package pairwise

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrUnknownMetric is returned when an unrecognized metric name is supplied.
	ErrUnknownMetric = errors.New("unknown distance metric")
	// ErrDimensionMismatch is returned when embeddings in a batch disagree on dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrBatchTooSmall is returned when fewer than two embeddings are supplied.
	ErrBatchTooSmall = errors.New("batch must contain at least two embeddings")
	// ErrSelfPair is returned when a condensed offset is requested for a pair (i, i).
	ErrSelfPair = errors.New("self-pair has no condensed offset")
)

// Metric identifies a pairwise distance function.
type Metric string

const (
	// Euclidean is the L2 distance between embeddings.
	Euclidean Metric = "euclidean"
	// Cosine is one minus the cosine similarity, in [0, 2].
	Cosine Metric = "cosine"
	// Angular is the arc length between embedding directions, in [0, pi].
	Angular Metric = "angular"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case Euclidean, Cosine, Angular:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

// MaxDistance returns the largest distance the metric can produce over
// unit-normalized embeddings. The constant is part of the metric's identity:
// margins are expressed as a fraction of it, never configured separately.
func (m Metric) MaxDistance() float64 {
	if m == Angular {
		return math.Pi
	}
	return 2
}

// distanceFunc returns the distance function for the metric, or nil when the
// metric is unknown.
func (m Metric) distanceFunc() func(a, b []float64) float64 {
	switch m {
	case Euclidean:
		return euclideanDistance
	case Cosine:
		return cosineDistance
	case Angular:
		return angularDistance
	default:
		return nil
	}
}

func euclideanDistance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// cosineSimilarity clamps the result to [-1, 1] to absorb floating point
// error; Acos is undefined outside that interval.
func cosineSimilarity(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (na * nb)
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim
}

func cosineDistance(a, b []float64) float64 {
	return 1 - cosineSimilarity(a, b)
}

func angularDistance(a, b []float64) float64 {
	return math.Acos(cosineSimilarity(a, b))
}
