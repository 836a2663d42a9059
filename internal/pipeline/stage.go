package pipeline

import (
	"context"
	"time"
)

// StageFunc performs the work of one stage. It must return promptly when ctx
// is cancelled.
type StageFunc func(ctx context.Context, job Job) error

// Stage is a named step with the progress value reported once it finishes.
type Stage struct {
	Name     string
	Label    string
	Progress int
	Work     StageFunc
}

// Delay is a stage that only waits, standing in for real work.
func Delay(d time.Duration) StageFunc {
	return func(ctx context.Context, _ Job) error {
		if d <= 0 {
			return ctx.Err()
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
}

func DefaultStages(delay time.Duration) []Stage {
	work := Delay(delay)
	return []Stage{
		{Name: "validate", Label: "Validating video file", Progress: 20, Work: work},
		{Name: "extract-metadata", Label: "Extracting metadata", Progress: 40, Work: work},
		{Name: "analyze-content", Label: "Analyzing content", Progress: 60, Work: work},
		{Name: "sensitivity-analysis", Label: "Running sensitivity analysis", Progress: 80, Work: work},
	}
}
