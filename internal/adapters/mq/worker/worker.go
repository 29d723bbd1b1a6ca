// Package worker drains the audit queue and runs each corpus through the
// validator.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/racetier/internal/domain/integrity"
	"github.com/okian/racetier/internal/domain/model"
	"github.com/okian/racetier/internal/domain/rating"
	"github.com/okian/racetier/pkg/logger"
	"github.com/okian/racetier/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Job is what workers read off the queue.
type Job = model.AuditJob

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Auditor validates a corpus.
type Auditor interface {
	Validate(ctx context.Context, records []rating.RaceRating) (integrity.Report, error)
}

// Runs records the lifecycle of audit runs.
type Runs interface {
	Update(ctx context.Context, id string, fn func(*model.AuditRun)) (model.AuditRun, error)
}

// Index receives the classifications of every completed audit.
type Index interface {
	Replace(ctx context.Context, cs []rating.Classification) error
}

// Worker processes audit jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	auditor Auditor
	runs    Runs
	index   Index
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
	now    func() time.Time
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, auditor Auditor, runs Runs, index Index, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		auditor:  auditor,
		runs:     runs,
		index:    index,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "audit job failed",
					logger.String("run_id", job.RunID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown signals the worker and waits for its loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process validates one job and publishes its outcome. A validation error
// fails the run; store errors are returned to the loop for logging.
func (w *InMemoryWorker) process(ctx context.Context, job Job) error { //nolint:gocritic // hugeParam: jobs are passed by value for channel semantics
	start := w.now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if _, err := w.runs.Update(ctx, job.RunID, func(r *model.AuditRun) { r.Start(start) }); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "run_store")
		return fmt.Errorf("start run %s: %w", job.RunID, err)
	}

	report, verr := w.auditor.Validate(ctx, job.Records)
	elapsed := float64(time.Since(start).Milliseconds())

	run, err := w.runs.Update(ctx, job.RunID, func(r *model.AuditRun) { r.Finish(w.now(), report, verr) })
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "run_store")
		return fmt.Errorf("finish run %s: %w", job.RunID, err)
	}

	if verr != nil {
		metrics.RecordAuditRun("error", elapsed)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "validate")
		return fmt.Errorf("validate run %s: %w", job.RunID, verr)
	}

	RecordReport(report)
	if report.Passed() {
		metrics.RecordAuditRun("passed", elapsed)
	} else {
		metrics.RecordAuditRun("failed", elapsed)
	}

	if err := w.index.Replace(ctx, report.Classifications); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "index")
		return fmt.Errorf("index run %s: %w", job.RunID, err)
	}

	w.logger.Info(ctx, "audit run finished",
		logger.String("run_id", run.ID),
		logger.Int("records", report.Records),
		logger.Int("violations", len(report.Violations)),
		logger.Bool("passed", report.Passed()),
	)
	return nil
}

// RecordReport publishes the per-record and per-violation counters of a
// report.
func RecordReport(report integrity.Report) { //nolint:gocritic // hugeParam
	metrics.RecordRecordsValidated(report.Records)
	for _, v := range report.Violations {
		metrics.RecordViolation(string(v.Kind), string(v.Severity))
	}
	for _, c := range report.Classifications {
		metrics.RecordClassification(c.PublishedTier.String(), c.State.String())
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	stopOnce sync.Once
	logger   logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one means
// one worker per CPU.
func NewPool(workerCount int, q Queue, auditor Auditor, runs Runs, index Index, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("worker-pool")

	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, auditor, runs, index,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Shutdown closes the queue so no new jobs arrive, lets the workers drain
// what is already queued and waits for them to exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()

		for i, w := range p.workers {
			select {
			case <-w.done:
			case <-shutdownCtx.Done():
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				err = fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
			}
		}
		metrics.UpdateWorkerActiveCount(0)
	})
	return err
}
