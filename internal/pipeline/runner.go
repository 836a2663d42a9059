package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"videovault/internal/analyzer"
	"videovault/internal/pkg/logger"
)

var ErrRunnerClosed = errors.New("pipeline runner is shut down")

// Result is delivered once on the channel returned by Submit.
type Result struct {
	RecordID string
	Analysis analyzer.Result
	Err      error
}

type Executor interface {
	Run(ctx context.Context, job Job) (analyzer.Result, error)
}

// Runner executes jobs in background goroutines, each with an optional
// timeout, and cancels and drains them on Shutdown.
type Runner struct {
	exec    Executor
	timeout time.Duration
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewRunner(exec Executor, timeout time.Duration, log *zap.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		exec:    exec,
		timeout: timeout,
		log:     logger.Component(log, "pipeline_runner"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit schedules job and returns immediately. The channel receives exactly
// one Result and is then closed.
func (r *Runner) Submit(job Job) (<-chan Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRunnerClosed
	}

	out := make(chan Result, 1)
	r.wg.Go(func() {
		defer close(out)

		ctx := r.ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		res := Result{RecordID: job.RecordID}
		var pc panics.Catcher
		pc.Try(func() { res.Analysis, res.Err = r.exec.Run(ctx, job) })
		if rec := pc.Recovered(); rec != nil {
			r.log.Error("executor panic", zap.String("record_id", job.RecordID), zap.Any("panic", rec.Value))
			res.Err = fmt.Errorf("%w: %v", ErrPanic, rec.Value)
		}
		out <- res
	})
	return out, nil
}

// Shutdown stops accepting jobs, cancels the ones in flight and waits for
// them until ctx expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline drain: %w", ctx.Err())
	}
}
