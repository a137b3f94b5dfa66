package source

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/TFMV/siren/pkg/trainer"
)

// Synthetic generates labelled batches with a fixed per-speaker offset plus
// noise, so same-speaker segments embed close together. Deterministic for a
// given seed; it never exhausts.
type Synthetic struct {
	rng      *rand.Rand
	speakers int
	perLabel int
	frames   int
	featDim  int
}

// NewSynthetic creates a generator producing speakers*perLabel segments per
// batch, each with frames rows of featDim features.
func NewSynthetic(speakers, perLabel, frames, featDim int, seed int64) (*Synthetic, error) {
	if speakers < 2 || perLabel < 2 {
		return nil, fmt.Errorf("need at least 2 speakers with 2 segments each, got %d x %d", speakers, perLabel)
	}
	if frames <= 0 || featDim <= 0 {
		return nil, fmt.Errorf("frames and feature dimension must be positive, got %d x %d", frames, featDim)
	}
	return &Synthetic{
		rng:      rand.New(rand.NewSource(seed)),
		speakers: speakers,
		perLabel: perLabel,
		frames:   frames,
		featDim:  featDim,
	}, nil
}

// Next implements trainer.BatchSource.
func (s *Synthetic) Next(ctx context.Context) (trainer.Batch, error) {
	select {
	case <-ctx.Done():
		return trainer.Batch{}, ctx.Err()
	default:
	}

	n := s.speakers * s.perLabel
	batch := trainer.Batch{
		X: make([]trainer.Segment, 0, n),
		Y: make([]string, 0, n),
	}
	for spk := 0; spk < s.speakers; spk++ {
		label := fmt.Sprintf("spk%02d", spk)
		for seg := 0; seg < s.perLabel; seg++ {
			segment := make(trainer.Segment, s.frames)
			for f := range segment {
				frame := make([]float64, s.featDim)
				for d := range frame {
					// speaker-specific offset plus unit noise
					frame[d] = float64(spk+1)*float64(d%7+1) + s.rng.NormFloat64()
				}
				segment[f] = frame
			}
			batch.X = append(batch.X, segment)
			batch.Y = append(batch.Y, label)
		}
	}
	return batch, nil
}
