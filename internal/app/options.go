package service

import (
	"github.com/okian/racetier/internal/domain/rating"
	"github.com/okian/racetier/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of audit workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the audit queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithAuditConcurrency bounds the records validated in parallel per audit.
func WithAuditConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.auditConcurrency = n
		}
	}
}

// WithMaxRatingsLimit caps the page size of ranked listings.
func WithMaxRatingsLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRatingsLimit = n
		}
	}
}

// WithPolicy sets the rating policy.
func WithPolicy(p rating.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
