package trainer

import "context"

// Segment is one variable-length window of acoustic features, frames by
// feature dimension.
type Segment [][]float64

// Batch couples input segments with their speaker labels, aligned by index.
type Batch struct {
	X []Segment `json:"x"`
	Y []string  `json:"y"`
}

// Embedder maps a batch of segments to fixed-size embeddings, one per
// segment, aligned with the batch labels. The embedding network itself lives
// outside this package.
type Embedder interface {
	Embed(x []Segment) ([][]float64, error)
}

// BatchSource yields training batches. Implementations may prefetch in the
// background; the trainer only pulls and never starts, joins or cancels the
// producer. Next returns io.EOF once the source is exhausted.
type BatchSource interface {
	Next(ctx context.Context) (Batch, error)
}
