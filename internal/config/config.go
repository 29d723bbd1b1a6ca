// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Provide New() to build a Config with defaults; Load layers file and env on top.
//   - Loading functions accept context.Context as the first parameter.
//   - Errors are wrapped with ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"

	"github.com/okian/racetier/internal/domain/rating"
)

// Config contains process configuration for the rating service and CLI.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory audit job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of audit workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many idempotency keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxRatingsLimit caps GET /ratings?limit.
	MaxRatingsLimit int `koanf:"max_ratings_limit"`

	// AuditConcurrency bounds how many records one audit checks at once.
	AuditConcurrency int `koanf:"audit_concurrency"`

	// Rating policy.
	Tier1Min         int            `koanf:"tier1_min"`
	Tier2Min         int            `koanf:"tier2_min"`
	Tier3Min         int            `koanf:"tier3_min"`
	SilentTolerance  int            `koanf:"silent_tolerance"`
	SevereDeviation  int            `koanf:"severe_deviation"`
	NoteMatchWindow  int            `koanf:"note_match_window"`
	BonusPrestigeMin int            `koanf:"bonus_prestige_min"`
	BonusTierMax     int            `koanf:"bonus_tier_max"`
	ReviewScoreFloor int            `koanf:"review_score_floor"`
	P5Tier1Floor     int            `koanf:"p5_tier1_floor"`
	DimensionWeights map[string]int `koanf:"dimension_weights"`
}

// New creates a Config with defaults. Policy defaults mirror
// rating.DefaultPolicy.
func New() *Config {
	p := rating.DefaultPolicy()
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		QueueSize:        1_024,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       50_000,
		MaxRatingsLimit:  500,
		AuditConcurrency: runtime.NumCPU(),
		Tier1Min:         p.Tier1Min,
		Tier2Min:         p.Tier2Min,
		Tier3Min:         p.Tier3Min,
		SilentTolerance:  p.SilentTolerance,
		SevereDeviation:  p.SevereDeviation,
		NoteMatchWindow:  p.NoteMatchWindow,
		BonusPrestigeMin: p.BonusPrestigeMin,
		BonusTierMax:     p.BonusTierMax,
		ReviewScoreFloor: p.ReviewScoreFloor,
		P5Tier1Floor:     p.P5Tier1Floor,
	}
}

// Policy builds the validated rating policy described by c. Weights not
// listed in DimensionWeights stay at 1.
func (c *Config) Policy() (rating.Policy, error) {
	weights := make(map[rating.Dimension]int, len(c.DimensionWeights))
	for name, w := range c.DimensionWeights {
		if !rating.IsDimension(name) {
			return rating.Policy{}, fmt.Errorf("%w: unknown dimension %q in dimension_weights", ErrInvalidConfig, name)
		}
		weights[rating.Dimension(name)] = w
	}
	p, err := rating.NewPolicy(
		rating.WithWeights(weights),
		rating.WithTierThresholds(c.Tier1Min, c.Tier2Min, c.Tier3Min),
		rating.WithScoreTolerance(c.SilentTolerance, c.SevereDeviation, c.NoteMatchWindow),
		rating.WithBonusGate(c.BonusPrestigeMin, c.BonusTierMax),
		rating.WithReviewScoreFloor(c.ReviewScoreFloor),
		rating.WithP5Tier1Floor(c.P5Tier1Floor),
	)
	if err != nil {
		return rating.Policy{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return p, nil
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.MaxRatingsLimit <= 0:
		return fmt.Errorf("%w: max_ratings_limit must be positive, got %d", ErrInvalidConfig, c.MaxRatingsLimit)
	case c.AuditConcurrency <= 0:
		return fmt.Errorf("%w: audit_concurrency must be positive, got %d", ErrInvalidConfig, c.AuditConcurrency)
	}
	_, err := c.Policy()
	return err
}
