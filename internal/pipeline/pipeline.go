// Package pipeline runs uploaded records through the processing stages,
// persisting progress and publishing it to the owner as it goes. Every run
// ends in exactly one terminal event, completed or failed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"videovault/internal/analyzer"
	"videovault/internal/broadcast"
	"videovault/internal/metrics"
	"videovault/internal/pkg/logger"
)

var (
	ErrInvalidStages = errors.New("stages must have strictly increasing progress below 100")
	ErrPanic         = errors.New("processing panicked")
)

const failPersistTimeout = 5 * time.Second

type Job struct {
	RecordID string
	OwnerID  int64
	FilePath string
}

type Store interface {
	UpdateProgress(ctx context.Context, recordID string, progress int) error
	Complete(ctx context.Context, recordID string, res analyzer.Result, processedAt time.Time) error
	MarkFailed(ctx context.Context, recordID string) error
}

type Publisher interface {
	Publish(ownerID int64, ev broadcast.Event)
}

type Analyzer interface {
	Analyze(ctx context.Context, path string) (analyzer.Result, error)
}

type Pipeline struct {
	stages   []Stage
	store    Store
	pub      Publisher
	analyzer Analyzer
	log      *zap.Logger
	now      func() time.Time
}

func New(stages []Stage, store Store, pub Publisher, an Analyzer, log *zap.Logger) (*Pipeline, error) {
	last := 0
	for _, s := range stages {
		if s.Progress <= last || s.Progress >= 100 || s.Work == nil {
			return nil, fmt.Errorf("%w: stage %q", ErrInvalidStages, s.Name)
		}
		last = s.Progress
	}
	return &Pipeline{
		stages:   stages,
		store:    store,
		pub:      pub,
		analyzer: an,
		log:      logger.Component(log, "pipeline"),
		now:      time.Now,
	}, nil
}

// run tracks whether the terminal event went out so a late failure cannot
// emit a second one.
type run struct {
	job      Job
	terminal bool
}

// Run processes job synchronously. On failure the record is marked failed on
// a best-effort basis and a failed event is published; the error is returned.
func (p *Pipeline) Run(ctx context.Context, job Job) (analyzer.Result, error) {
	metrics.PipelineRunsInFlight.Inc()
	defer metrics.PipelineRunsInFlight.Dec()

	r := &run{job: job}
	var (
		res analyzer.Result
		err error
		pc  panics.Catcher
	)
	pc.Try(func() { res, err = p.execute(ctx, r) })
	if rec := pc.Recovered(); rec != nil {
		p.log.Error("pipeline panic", zap.String("record_id", job.RecordID), zap.Any("panic", rec.Value))
		err = fmt.Errorf("%w: %v", ErrPanic, rec.Value)
	}

	if err != nil {
		p.fail(ctx, r, err)
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		return analyzer.Result{}, err
	}
	metrics.PipelineRunsTotal.WithLabelValues("completed").Inc()
	return res, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run) (analyzer.Result, error) {
	job := r.job
	for _, stage := range p.stages {
		start := time.Now()
		if err := stage.Work(ctx, job); err != nil {
			return analyzer.Result{}, fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		metrics.PipelineStageDuration.WithLabelValues(stage.Name).Observe(time.Since(start).Seconds())

		if err := p.store.UpdateProgress(ctx, job.RecordID, stage.Progress); err != nil {
			return analyzer.Result{}, fmt.Errorf("persist progress: %w", err)
		}
		p.pub.Publish(job.OwnerID, broadcast.ProgressEvent(job.RecordID, stage.Progress, stage.Label))
	}

	start := time.Now()
	res, err := p.analyzer.Analyze(ctx, job.FilePath)
	if err != nil {
		return analyzer.Result{}, fmt.Errorf("analyze: %w", err)
	}
	metrics.PipelineStageDuration.WithLabelValues("analyzer").Observe(time.Since(start).Seconds())

	if err := p.store.Complete(ctx, job.RecordID, res, p.now()); err != nil {
		return analyzer.Result{}, fmt.Errorf("persist result: %w", err)
	}
	r.terminal = true
	p.pub.Publish(job.OwnerID, broadcast.CompletedEvent(job.RecordID, string(res.Verdict)))

	p.log.Info("record processed",
		zap.String("record_id", job.RecordID),
		zap.Int("score", res.Score),
		zap.String("verdict", string(res.Verdict)),
		zap.Bool("deep_inspection", res.DeepInspection),
	)
	return res, nil
}

func (p *Pipeline) fail(ctx context.Context, r *run, cause error) {
	if r.terminal {
		p.log.Error("failure after terminal event", zap.String("record_id", r.job.RecordID), zap.Error(cause))
		return
	}
	r.terminal = true

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failPersistTimeout)
	defer cancel()
	if err := p.store.MarkFailed(persistCtx, r.job.RecordID); err != nil {
		p.log.Error("mark record failed", zap.String("record_id", r.job.RecordID), zap.Error(err))
	}

	p.log.Warn("record processing failed", zap.String("record_id", r.job.RecordID), zap.Error(cause))
	p.pub.Publish(r.job.OwnerID, broadcast.FailedEvent(r.job.RecordID, failureReason(cause)))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "processing timed out"
	case errors.Is(err, context.Canceled):
		return "processing cancelled"
	case errors.Is(err, analyzer.ErrUnreadable):
		return "media file unreadable"
	case errors.Is(err, ErrPanic):
		return "internal processing error"
	default:
		return err.Error()
	}
}
