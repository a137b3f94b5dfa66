package pairwise

import "fmt"

// Pdist computes the condensed pairwise distance matrix for a batch of
// embeddings under the given metric. All embeddings must share one dimension
// and the batch must contain at least two of them.
func Pdist(embeddings [][]float64, metric Metric) (Condensed, error) {
	n := len(embeddings)
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrBatchTooSmall, n)
	}

	distance := metric.distanceFunc()
	if distance == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}

	dim := len(embeddings[0])
	for i, v := range embeddings {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, want %d",
				ErrDimensionMismatch, i, len(v), dim)
		}
	}

	out := make(Condensed, 0, n*(n-1)/2)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, distance(embeddings[i], embeddings[j]))
		}
	}
	return out, nil
}
