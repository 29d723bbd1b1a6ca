package rating

import "fmt"

// Default policy values.
const (
	defaultDimensionMin     = 1
	defaultDimensionMax     = 5
	defaultBonusMax         = 5
	defaultTier1Min         = 80
	defaultTier2Min         = 60
	defaultTier3Min         = 45
	defaultSilentTolerance  = 2
	defaultSevereDeviation  = 5
	defaultNoteMatchWindow  = 1
	defaultBonusPrestigeMin = 3
	defaultBonusTierMax     = 2
	defaultReviewScoreFloor = 70
	defaultP5Tier1Floor     = 75
	defaultWeight           = 1

	// MaxOverallScore is the top of the published score scale.
	MaxOverallScore = 100
)

// Policy carries every threshold and table the engine consults. It is a
// plain value: pass a different one to evaluate an alternative policy.
type Policy struct {
	// Weights multiplies each dimension before summing.
	Weights map[Dimension]int

	// DimensionMin and DimensionMax bound every dimension score.
	DimensionMin int
	DimensionMax int

	// BonusMax bounds the cultural impact bonus; its minimum is zero.
	BonusMax int

	// Tier1Min, Tier2Min and Tier3Min are inclusive lower bounds.
	Tier1Min int
	Tier2Min int
	Tier3Min int

	// SilentTolerance is the largest score deviation that is not reported.
	SilentTolerance int
	// SevereDeviation is the deviation above which an undocumented
	// mismatch fails a run.
	SevereDeviation int
	// NoteMatchWindow is how far a score note delta may sit from the actual
	// deviation and still document it.
	NoteMatchWindow int

	// BonusPrestigeMin and BonusTierMax gate a non-zero bonus: the record
	// needs prestige >= BonusPrestigeMin or tier <= BonusTierMax.
	BonusPrestigeMin int
	BonusTierMax     int

	// ReviewScoreFloor is the score at which a high-prestige tier 3 race is
	// flagged for editorial review.
	ReviewScoreFloor int

	// P5Tier1Floor is the lowest score at which normalization promotes a
	// prestige 5 race into tier 1. Below it the race is placed in tier 2.
	P5Tier1Floor int
}

// Option adjusts a Policy under construction.
type Option func(*Policy)

// WithWeights replaces the dimension weight table. Dimensions left out of
// weights keep their current weight.
func WithWeights(weights map[Dimension]int) Option {
	return func(p *Policy) {
		for d, w := range weights {
			p.Weights[d] = w
		}
	}
}

// WithTierThresholds sets the inclusive lower bounds of tiers 1 to 3.
func WithTierThresholds(tier1, tier2, tier3 int) Option {
	return func(p *Policy) {
		p.Tier1Min = tier1
		p.Tier2Min = tier2
		p.Tier3Min = tier3
	}
}

// WithScoreTolerance sets the deviation bands used when comparing a
// persisted overall score with the recomputed one.
func WithScoreTolerance(silent, severe, noteWindow int) Option {
	return func(p *Policy) {
		p.SilentTolerance = silent
		p.SevereDeviation = severe
		p.NoteMatchWindow = noteWindow
	}
}

// WithBonusGate sets the prestige and tier gate for a non-zero bonus.
func WithBonusGate(minPrestige, maxTier int) Option {
	return func(p *Policy) {
		p.BonusPrestigeMin = minPrestige
		p.BonusTierMax = maxTier
	}
}

// WithReviewScoreFloor sets the score used by the prestige alignment review.
func WithReviewScoreFloor(floor int) Option {
	return func(p *Policy) {
		p.ReviewScoreFloor = floor
	}
}

// WithP5Tier1Floor sets the score a prestige 5 race needs before
// normalization promotes it into tier 1.
func WithP5Tier1Floor(floor int) Option {
	return func(p *Policy) {
		p.P5Tier1Floor = floor
	}
}

// DefaultPolicy returns the published rating policy.
func DefaultPolicy() Policy {
	weights := make(map[Dimension]int, DimensionCount)
	for _, d := range Dimensions() {
		weights[d] = defaultWeight
	}
	return Policy{
		Weights:          weights,
		DimensionMin:     defaultDimensionMin,
		DimensionMax:     defaultDimensionMax,
		BonusMax:         defaultBonusMax,
		Tier1Min:         defaultTier1Min,
		Tier2Min:         defaultTier2Min,
		Tier3Min:         defaultTier3Min,
		SilentTolerance:  defaultSilentTolerance,
		SevereDeviation:  defaultSevereDeviation,
		NoteMatchWindow:  defaultNoteMatchWindow,
		BonusPrestigeMin: defaultBonusPrestigeMin,
		BonusTierMax:     defaultBonusTierMax,
		ReviewScoreFloor: defaultReviewScoreFloor,
		P5Tier1Floor:     defaultP5Tier1Floor,
	}
}

// NewPolicy builds a policy from the defaults and opts, and validates it.
func NewPolicy(opts ...Option) (Policy, error) {
	p := DefaultPolicy()
	for _, opt := range opts {
		opt(&p)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate reports the first inconsistency in p.
func (p Policy) Validate() error {
	for _, d := range Dimensions() {
		w, ok := p.Weights[d]
		if !ok {
			return fmt.Errorf("%w: no weight for %s", ErrInvalidPolicy, d)
		}
		if w <= 0 {
			return fmt.Errorf("%w: weight for %s must be positive, got %d", ErrInvalidPolicy, d, w)
		}
	}
	for d := range p.Weights {
		if !IsDimension(string(d)) {
			return fmt.Errorf("%w: weight for unknown dimension %q", ErrInvalidPolicy, d)
		}
	}
	switch {
	case p.DimensionMin < 0 || p.DimensionMax <= p.DimensionMin:
		return fmt.Errorf("%w: dimension range [%d,%d]", ErrInvalidPolicy, p.DimensionMin, p.DimensionMax)
	case p.BonusMax < 0:
		return fmt.Errorf("%w: bonus max %d", ErrInvalidPolicy, p.BonusMax)
	case !(MaxOverallScore >= p.Tier1Min && p.Tier1Min > p.Tier2Min && p.Tier2Min > p.Tier3Min && p.Tier3Min > 0):
		return fmt.Errorf("%w: tier thresholds %d/%d/%d must strictly descend within (0,%d]",
			ErrInvalidPolicy, p.Tier1Min, p.Tier2Min, p.Tier3Min, MaxOverallScore)
	case p.SilentTolerance < 0 || p.SevereDeviation < p.SilentTolerance:
		return fmt.Errorf("%w: score tolerance %d/%d", ErrInvalidPolicy, p.SilentTolerance, p.SevereDeviation)
	case p.NoteMatchWindow < 0:
		return fmt.Errorf("%w: note match window %d", ErrInvalidPolicy, p.NoteMatchWindow)
	case p.BonusTierMax < int(Tier1) || p.BonusTierMax > int(Tier4):
		return fmt.Errorf("%w: bonus tier gate %d", ErrInvalidPolicy, p.BonusTierMax)
	case p.P5Tier1Floor < p.Tier2Min || p.P5Tier1Floor > p.Tier1Min:
		return fmt.Errorf("%w: prestige 5 tier 1 floor %d must lie within [%d,%d]",
			ErrInvalidPolicy, p.P5Tier1Floor, p.Tier2Min, p.Tier1Min)
	}
	return nil
}

// maxWeightedSum is the denominator of the overall score.
func (p Policy) maxWeightedSum() int {
	total := 0
	for _, d := range Dimensions() {
		total += p.weight(d) * p.DimensionMax
	}
	return total
}

func (p Policy) weight(d Dimension) int {
	if w, ok := p.Weights[d]; ok {
		return w
	}
	return defaultWeight
}
