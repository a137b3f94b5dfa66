// Package sampling mines anchor/positive/negative triplets from a labelled
// batch of embeddings and its square pairwise distance matrix.
package sampling

import (
	"errors"
	"fmt"
)

// ErrUnknownStrategy is returned when an unrecognized strategy name is supplied.
var ErrUnknownStrategy = errors.New("unknown sampling strategy")

// Strategy identifies a triplet mining policy.
type Strategy string

const (
	// All emits every valid (anchor, positive, negative) combination.
	All Strategy = "all"
	// Hard emits one triplet per anchor, pairing the hardest positive
	// (same label, maximum distance) with the hardest negative
	// (different label, minimum distance).
	Hard Strategy = "hard"
	// Negative emits one triplet per (anchor, positive) pair, reusing the
	// anchor's hardest negative for all of them.
	Negative Strategy = "negative"
	// Easy emits only triplets that are already correctly ordered, i.e.
	// d(anchor, positive) <= d(anchor, negative).
	Easy Strategy = "easy"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case All, Hard, Negative, Easy:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Triplets holds parallel anchor/positive/negative index lists into a batch.
// The set is transient: built, consumed by the loss transform and discarded
// every training step.
type Triplets struct {
	Anchors   []int
	Positives []int
	Negatives []int
}

// Len returns the number of triplets.
func (t Triplets) Len() int { return len(t.Anchors) }

func (t *Triplets) append(anchor, positive, negative int) {
	t.Anchors = append(t.Anchors, anchor)
	t.Positives = append(t.Positives, positive)
	t.Negatives = append(t.Negatives, negative)
}

// Sample mines triplets from the batch labels and the square distance matrix.
// Anchors with no same-label partner or no different-label example contribute
// zero triplets. Ties in Hard and Negative resolve to the lowest index so runs
// are reproducible.
func (s Strategy) Sample(labels []string, square [][]float64) (Triplets, error) {
	switch s {
	case All:
		return sampleAll(labels), nil
	case Hard:
		return sampleHard(labels, square), nil
	case Negative:
		return sampleNegative(labels, square), nil
	case Easy:
		return sampleEasy(labels, square), nil
	default:
		return Triplets{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// sampleAll enumerates every valid combination; distances play no role.
func sampleAll(labels []string) Triplets {
	var t Triplets
	for anchor, yAnchor := range labels {
		for positive, yPositive := range labels {
			if positive == anchor || yPositive != yAnchor {
				continue
			}
			for negative, yNegative := range labels {
				if yNegative == yAnchor {
					continue
				}
				t.append(anchor, positive, negative)
			}
		}
	}
	return t
}

func sampleHard(labels []string, square [][]float64) Triplets {
	var t Triplets
	for anchor, yAnchor := range labels {
		d := square[anchor]
		positive, negative := -1, -1
		for i, y := range labels {
			if i == anchor {
				continue
			}
			if y == yAnchor {
				if positive < 0 || d[i] > d[positive] {
					positive = i
				}
			} else if negative < 0 || d[i] < d[negative] {
				negative = i
			}
		}
		if positive < 0 || negative < 0 {
			continue
		}
		t.append(anchor, positive, negative)
	}
	return t
}

func sampleNegative(labels []string, square [][]float64) Triplets {
	var t Triplets
	for anchor, yAnchor := range labels {
		d := square[anchor]
		negative := -1
		for i, y := range labels {
			if y != yAnchor && (negative < 0 || d[i] < d[negative]) {
				negative = i
			}
		}
		if negative < 0 {
			continue
		}
		for positive, y := range labels {
			if positive == anchor || y != yAnchor {
				continue
			}
			t.append(anchor, positive, negative)
		}
	}
	return t
}

// sampleEasy admits equality: a negative exactly as far as the positive still
// counts as correctly ordered.
func sampleEasy(labels []string, square [][]float64) Triplets {
	var t Triplets
	for anchor, yAnchor := range labels {
		for positive, yPositive := range labels {
			if positive == anchor || yPositive != yAnchor {
				continue
			}
			d := square[anchor][positive]
			for negative, yNegative := range labels {
				if yNegative == yAnchor || square[anchor][negative] < d {
					continue
				}
				t.append(anchor, positive, negative)
			}
		}
	}
	return t
}
