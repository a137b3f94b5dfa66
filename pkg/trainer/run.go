package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// StepFunc receives each step's result. It is the hook through which an
// external optimizer consumes the loss; returning an error stops the run.
type StepFunc func(step int, result StepResult) error

// Run pulls batches from the source until the context ends, the source is
// exhausted or maxSteps steps have completed (maxSteps <= 0 means unbounded).
// Degenerate batches are skipped with a warning rather than aborting the run;
// a batch that legitimately mines zero triplets (possible under the easy
// strategy) is skipped the same way.
func (t *Trainer) Run(ctx context.Context, source BatchSource, maxSteps int, fn StepFunc) error {
	if source == nil {
		return errors.New("batch source must not be nil")
	}

	for step := 0; maxSteps <= 0 || step < maxSteps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("next batch: %w", err)
		}

		if err := CheckComposition(batch.Y); err != nil {
			t.logger.Warn("skipping degenerate batch", zap.Int("step", step), zap.Error(err))
			if t.collector != nil {
				t.collector.BatchSkipped()
			}
			continue
		}
		if short := t.underfilledLabels(batch.Y); len(short) > 0 {
			t.logger.Debug("batch under the configured per-label count",
				zap.Int("step", step),
				zap.Int("per_label", t.perLabel),
				zap.Strings("labels", short))
		}

		start := time.Now()
		result, err := t.BatchLoss(batch)
		if errors.Is(err, ErrNoTriplets) {
			t.logger.Warn("batch mined zero triplets", zap.Int("step", step),
				zap.String("strategy", string(t.strategy)))
			if t.collector != nil {
				t.collector.BatchSkipped()
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}

		if t.collector != nil {
			t.collector.ObserveStep(result.Loss, result.Triplets, string(t.strategy), time.Since(start))
		}
		t.logger.Debug("training step",
			zap.Int("step", step),
			zap.Float64("loss", result.Loss),
			zap.Int("triplets", result.Triplets))

		if fn != nil {
			if err := fn(step, result); err != nil {
				return err
			}
		}
	}
	return nil
}
