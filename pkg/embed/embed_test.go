package embed

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/TFMV/siren/pkg/trainer"
)

func segmentOf(frames ...[]float64) trainer.Segment {
	return trainer.Segment(frames)
}

func TestNewLinearValidates(t *testing.T) {
	if _, err := NewLinear(0, 8); err == nil {
		t.Error("expected error for zero feature dimension")
	}
	if _, err := NewLinear(8, -1); err == nil {
		t.Error("expected error for negative output dimension")
	}
}

func TestEmbedShapeAndNorm(t *testing.T) {
	l, err := NewLinear(3, 4)
	if err != nil {
		t.Fatal(err)
	}

	x := []trainer.Segment{
		segmentOf([]float64{1, 2, 3}, []float64{4, 5, 6}),
		segmentOf([]float64{0.5, 0.1, 0.9}),
	}
	embeddings, err := l.Embed(x)
	if err != nil {
		t.Fatal(err)
	}

	if len(embeddings) != len(x) {
		t.Fatalf("got %d embeddings for %d segments", len(embeddings), len(x))
	}
	for i, e := range embeddings {
		if len(e) != l.Dim() {
			t.Errorf("embedding %d has dimension %d, want %d", i, len(e), l.Dim())
		}
		if norm := floats.Norm(e, 2); math.Abs(norm-1) > 1e-9 {
			t.Errorf("embedding %d has norm %v, want 1", i, norm)
		}
	}
}

func TestEmbedDeterministic(t *testing.T) {
	a, err := NewLinear(5, 8)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewLinear(5, 8)
	if err != nil {
		t.Fatal(err)
	}

	x := []trainer.Segment{segmentOf([]float64{1, 2, 3, 4, 5})}
	ea, err := a.Embed(x)
	if err != nil {
		t.Fatal(err)
	}
	eb, err := b.Embed(x)
	if err != nil {
		t.Fatal(err)
	}
	for d := range ea[0] {
		if ea[0][d] != eb[0][d] {
			t.Fatalf("embedders disagree at dimension %d: %v != %v", d, ea[0][d], eb[0][d])
		}
	}
}

func TestEmbedPoolsOverTime(t *testing.T) {
	l, err := NewLinear(2, 3)
	if err != nil {
		t.Fatal(err)
	}

	// a repeated frame pools to itself, so both segments must embed equally
	single := []trainer.Segment{segmentOf([]float64{1, 2})}
	repeated := []trainer.Segment{segmentOf([]float64{1, 2}, []float64{1, 2}, []float64{1, 2})}

	es, err := l.Embed(single)
	if err != nil {
		t.Fatal(err)
	}
	er, err := l.Embed(repeated)
	if err != nil {
		t.Fatal(err)
	}
	for d := range es[0] {
		if math.Abs(es[0][d]-er[0][d]) > 1e-12 {
			t.Fatalf("pooling is not a temporal mean at dimension %d", d)
		}
	}
}

func TestEmbedErrors(t *testing.T) {
	l, err := NewLinear(2, 3)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := l.Embed([]trainer.Segment{{}}); !errors.Is(err, ErrEmptySegment) {
		t.Errorf("got %v, want ErrEmptySegment", err)
	}
	if _, err := l.Embed([]trainer.Segment{segmentOf([]float64{1, 2, 3})}); !errors.Is(err, ErrFrameDimension) {
		t.Errorf("got %v, want ErrFrameDimension", err)
	}
}
