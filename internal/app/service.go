// Package service wires the rating engine, the audit queue and the ranked
// index into the operations served over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/racetier/internal/adapters/mq/queue"
	"github.com/okian/racetier/internal/adapters/mq/worker"
	"github.com/okian/racetier/internal/adapters/repository"
	"github.com/okian/racetier/internal/domain/dedupe"
	"github.com/okian/racetier/internal/domain/integrity"
	"github.com/okian/racetier/internal/domain/model"
	"github.com/okian/racetier/internal/domain/rating"
	"github.com/okian/racetier/internal/domain/types"
	"github.com/okian/racetier/pkg/logger"
	"github.com/okian/racetier/pkg/metrics"
)

const (
	defaultQueueSize       = 1024
	defaultDedupeSize      = 50000
	defaultMaxRatingsLimit = 500
)

// Service implements the API dependencies for the rating service.
type Service struct {
	mu sync.RWMutex

	policy    rating.Policy
	validator *integrity.Validator
	ratings   repository.Store
	runs      repository.RunStore
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	pool      *worker.Pool

	workerCount      int
	queueSize        int
	dedupeSize       int
	auditConcurrency int
	maxRatingsLimit  int

	started bool
	logger  logger.Logger
	now     func() time.Time
	newID   func() string
}

// New constructs a Service. Components are created on Start.
func New(opts ...Option) *Service {
	s := &Service{
		policy:           rating.DefaultPolicy(),
		workerCount:      runtime.NumCPU(),
		queueSize:        defaultQueueSize,
		dedupeSize:       defaultDedupeSize,
		auditConcurrency: runtime.NumCPU(),
		maxRatingsLimit:  defaultMaxRatingsLimit,
		logger:           logger.Nop(),
		now:              time.Now,
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the service components and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.policy.Validate(); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	s.logger.Info(ctx, "starting rating service...")

	s.validator = integrity.New(s.policy,
		integrity.WithConcurrency(s.auditConcurrency),
		integrity.WithLogger(s.logger.Named("integrity")),
	)
	s.ratings = repository.NewTreapIndex()
	s.runs = repository.NewMemoryRunStore()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.validator, s.runs, s.ratings,
		worker.WithPoolLogger(s.logger))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("auditConcurrency", s.auditConcurrency),
	)
	return nil
}

// Stop closes the queue and waits for queued audits to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping rating service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "rating service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Policy returns the rating policy in force.
func (s *Service) Policy() rating.Policy {
	return s.policy
}

// Classify evaluates one record and reports its violations. Records that
// cannot be scored return their violations together with the evaluation
// error.
func (s *Service) Classify(ctx context.Context, r rating.RaceRating) (model.Classified, error) { //nolint:gocritic // hugeParam
	if err := s.ready(); err != nil {
		return model.Classified{}, err
	}
	out := model.Classified{Violations: s.validator.Check(r)}
	if out.Violations == nil {
		out.Violations = []integrity.Violation{}
	}
	cls, err := s.policy.Evaluate(r)
	if err != nil {
		return out, fmt.Errorf("classify %s: %w", r.RaceID, err)
	}
	metrics.RecordClassification(cls.PublishedTier.String(), cls.State.String())
	s.logger.Debug(ctx, "record classified",
		logger.String("race_id", cls.RaceID),
		logger.String("tier", cls.PublishedTier.String()),
		logger.String("state", cls.StateName),
	)
	out.Classification = &cls
	return out, nil
}

// Audit validates records synchronously, records the run and publishes the
// classifications to the ranked index.
func (s *Service) Audit(ctx context.Context, records []rating.RaceRating) (model.AuditRun, error) {
	if err := s.ready(); err != nil {
		return model.AuditRun{}, err
	}
	if len(records) == 0 {
		return model.AuditRun{}, ErrNoRecords
	}

	job := model.AuditJob{RunID: s.newID(), Records: records, SubmittedAt: s.now()}
	run := model.NewAuditRun(job)
	run.Start(job.SubmittedAt)

	report, err := s.validator.Validate(ctx, records)
	elapsed := float64(s.now().Sub(job.SubmittedAt).Milliseconds())
	if err != nil {
		metrics.RecordAuditRun("error", elapsed)
		return model.AuditRun{}, fmt.Errorf("audit: %w", err)
	}
	run.Finish(s.now(), report, nil)

	worker.RecordReport(report)
	if report.Passed() {
		metrics.RecordAuditRun("passed", elapsed)
	} else {
		metrics.RecordAuditRun("failed", elapsed)
	}

	if err := s.runs.Create(ctx, run); err != nil {
		return model.AuditRun{}, fmt.Errorf("audit: %w", err)
	}
	if err := s.ratings.Replace(ctx, report.Classifications); err != nil {
		return model.AuditRun{}, fmt.Errorf("audit: %w", err)
	}
	s.logger.Info(ctx, "audit finished",
		logger.String("run_id", run.ID),
		logger.Int("records", report.Records),
		logger.Int("violations", len(report.Violations)),
		logger.Bool("passed", report.Passed()),
	)
	return run, nil
}

// SubmitAudit queues records for asynchronous validation. A non-empty
// idempotency key already seen returns the run it first created with
// Duplicate set. When the queue is full the error wraps queue.ErrFull and
// the key is released so the client can retry it.
func (s *Service) SubmitAudit(ctx context.Context, key string, records []rating.RaceRating) (model.Submission, error) {
	const op = "service.submit_audit"
	if err := s.ready(); err != nil {
		return model.Submission{}, err
	}
	if len(records) == 0 {
		return model.Submission{}, ErrNoRecords
	}

	id := s.newID()
	if key != "" {
		if bound, seen := s.deduper.Claim(ctx, key, id); seen {
			metrics.RecordAuditDuplicate()
			s.logger.Debug(ctx, "duplicate audit submission",
				logger.String("idempotency_key", key),
				logger.String("run_id", bound),
			)
			return model.Submission{RunID: bound, Duplicate: true}, nil
		}
	}

	job := model.AuditJob{RunID: id, IdempotencyKey: key, Records: records, SubmittedAt: s.now()}
	if err := s.runs.Create(ctx, model.NewAuditRun(job)); err != nil {
		s.release(ctx, key)
		return model.Submission{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.runs.Delete(ctx, id)
		s.release(ctx, key)
		if errors.Is(err, queue.ErrFull) {
			s.logger.Warn(ctx, "audit queue full", logger.Int("capacity", s.queue.Cap()))
		}
		return model.Submission{}, fmt.Errorf("%s: %w", op, err)
	}
	return model.Submission{RunID: id}, nil
}

func (s *Service) release(ctx context.Context, key string) {
	if key != "" {
		s.deduper.Release(ctx, key)
	}
}

// AuditRun returns the state of one audit run.
func (s *Service) AuditRun(ctx context.Context, id string) (model.AuditRun, error) {
	if err := s.ready(); err != nil {
		return model.AuditRun{}, err
	}
	return s.runs.Get(ctx, id)
}

// MaxRatingsLimit is the largest page TopN serves.
func (s *Service) MaxRatingsLimit() int {
	return s.maxRatingsLimit
}

// TopN returns the n best ranked races, capped at MaxRatingsLimit.
func (s *Service) TopN(ctx context.Context, n int) ([]types.RatingEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if n > s.maxRatingsLimit {
		n = s.maxRatingsLimit
	}
	entries, err := s.ratings.TopN(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]types.RatingEntry, len(entries))
	for i, e := range entries {
		out[i] = toRatingEntry(e)
	}
	return out, nil
}

// Rank returns the ranked entry of one race.
func (s *Service) Rank(ctx context.Context, raceID string) (types.RatingEntry, error) {
	if err := s.ready(); err != nil {
		return types.RatingEntry{}, err
	}
	e, err := s.ratings.Rank(ctx, raceID)
	if err != nil {
		return types.RatingEntry{}, err
	}
	return toRatingEntry(e), nil
}

func toRatingEntry(e repository.Entry) types.RatingEntry {
	return types.RatingEntry{
		Rank:          e.Rank,
		RaceID:        e.RaceID,
		OverallScore:  e.OverallScore,
		ComputedScore: e.ComputedScore,
		Tier:          int(e.Tier),
		TierLabel:     e.Tier.Label(),
		BaseTier:      int(e.BaseTier),
		OverrideState: e.State.String(),
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	if s.ready() != nil {
		return types.Stats{TierCounts: map[string]int{}}
	}

	counts := s.ratings.TierCounts(ctx)
	tiers := make(map[string]int, len(counts))
	for t, n := range counts {
		tiers[t.String()] = n
	}
	stats := types.Stats{
		RatedRaces:    s.ratings.Count(ctx),
		TierCounts:    tiers,
		AuditRuns:     s.runs.Count(ctx),
		QueueDepth:    s.queue.Len(ctx),
		QueueCapacity: s.queue.Cap(),
		DedupeSize:    s.deduper.Size(),
	}
	if latest, err := s.runs.Latest(ctx); err == nil {
		stats.LastAuditRunID = latest.ID
	}

	metrics.UpdateQueueSize(stats.QueueDepth)
	metrics.UpdateRatedRaces(stats.RatedRaces)
	metrics.UpdateWorkerCount(s.workerCount)
	return stats
}
