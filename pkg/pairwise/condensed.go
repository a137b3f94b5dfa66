package pairwise

import (
	"fmt"
	"math"
)

// Condensed stores the strict upper triangle of a symmetric zero-diagonal
// distance matrix in row-major order: (0,1), (0,2), ..., (0,n-1), (1,2), ...,
// (n-2,n-1). For n embeddings it holds exactly n*(n-1)/2 entries; the diagonal
// and the symmetric duplicates are never materialized.
type Condensed []float64

// N recovers the number of embeddings from the condensed length.
func (c Condensed) N() int {
	return int(0.5 * (1 + math.Sqrt(1+8*float64(len(c)))))
}

// Squareform expands the condensed vector into a freshly allocated n x n
// symmetric matrix with a zero diagonal.
func (c Condensed) Squareform() [][]float64 {
	n := c.N()
	square := make([][]float64, n)
	for i := range square {
		square[i] = make([]float64, n)
	}
	k := 0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			square[i][j] = c[k]
			square[j][i] = c[k]
			k++
		}
	}
	return square
}

// CondensedIndex maps square coordinates (i, j) to the condensed offset using
// the closed-form formula n*i - i*(i+1)/2 + j - i - 1 for i < j. Arguments in
// the other order are swapped first since the matrix is symmetric. A self-pair
// has no offset and fails with ErrSelfPair.
func CondensedIndex(n, i, j int) (int, error) {
	if i == j {
		return 0, fmt.Errorf("%w: index %d", ErrSelfPair, i)
	}
	if j < i {
		i, j = j, i
	}
	return n*i - i*(i+1)/2 + j - i - 1, nil
}

// CondensedIndices maps parallel row and column index lists to the parallel
// list of condensed offsets, one per (row, col) pair.
func CondensedIndices(n int, rows, cols []int) ([]int, error) {
	if len(rows) != len(cols) {
		return nil, fmt.Errorf("row and column lists must have equal length: %d != %d", len(rows), len(cols))
	}
	offsets := make([]int, len(rows))
	for k := range rows {
		offset, err := CondensedIndex(n, rows[k], cols[k])
		if err != nil {
			return nil, err
		}
		offsets[k] = offset
	}
	return offsets, nil
}

// PairFromCondensed inverts CondensedIndex, returning the canonical (i, j)
// pair with i < j for a condensed offset k. The offset must satisfy
// 0 <= k < n*(n-1)/2.
func PairFromCondensed(n, k int) (int, int) {
	i := 0
	rowLen := n - 1
	for k >= rowLen {
		k -= rowLen
		i++
		rowLen--
	}
	return i, i + 1 + k
}
