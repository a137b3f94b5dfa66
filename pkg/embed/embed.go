// Package embed provides a deterministic baseline embedder: temporal mean
// pooling over a segment's frames followed by a fixed linear projection onto
// the unit sphere. It stands in for a trained network in smoke runs and tests.
package embed

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/TFMV/siren/pkg/trainer"
)

var (
	// ErrEmptySegment is returned when a segment contains no frames.
	ErrEmptySegment = errors.New("segment contains no frames")
	// ErrFrameDimension is returned when a frame does not match the
	// embedder's feature dimension.
	ErrFrameDimension = errors.New("frame feature dimension mismatch")
)

// Linear pools each segment over time and projects the pooled features with a
// fixed matrix, normalizing the result to unit length so that the euclidean
// and cosine metrics see distances in their documented ranges.
type Linear struct {
	projection *mat.Dense
	featDim    int
	outDim     int
}

// NewLinear creates an embedder mapping featDim acoustic features to outDim
// embedding dimensions. The projection weights are deterministic so repeated
// runs embed identically.
func NewLinear(featDim, outDim int) (*Linear, error) {
	if featDim <= 0 || outDim <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d x %d", featDim, outDim)
	}
	weights := make([]float64, featDim*outDim)
	for i := range weights {
		weights[i] = math.Sin(float64(i + 1))
	}
	return &Linear{
		projection: mat.NewDense(featDim, outDim, weights),
		featDim:    featDim,
		outDim:     outDim,
	}, nil
}

// Dim returns the output embedding dimension.
func (l *Linear) Dim() int { return l.outDim }

// Embed implements trainer.Embedder.
func (l *Linear) Embed(x []trainer.Segment) ([][]float64, error) {
	embeddings := make([][]float64, len(x))
	for i, segment := range x {
		pooled, err := l.pool(segment)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}

		var projected mat.VecDense
		projected.MulVec(l.projection.T(), mat.NewVecDense(l.featDim, pooled))

		out := make([]float64, l.outDim)
		for j := range out {
			out[j] = projected.AtVec(j)
		}
		if norm := floats.Norm(out, 2); norm > 0 {
			floats.Scale(1/norm, out)
		}
		embeddings[i] = out
	}
	return embeddings, nil
}

// pool averages a segment's frames over time.
func (l *Linear) pool(segment trainer.Segment) ([]float64, error) {
	if len(segment) == 0 {
		return nil, ErrEmptySegment
	}
	pooled := make([]float64, l.featDim)
	for _, frame := range segment {
		if len(frame) != l.featDim {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrFrameDimension, len(frame), l.featDim)
		}
		floats.Add(pooled, frame)
	}
	floats.Scale(1/float64(len(segment)), pooled)
	return pooled, nil
}
