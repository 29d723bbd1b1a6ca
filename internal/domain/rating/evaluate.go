package rating

import "fmt"

// Classification is the per-record output of the engine: what a record's
// published score and tier should be.
type Classification struct {
	RaceID string `json:"race_id" yaml:"race_id"`
	// ComputedScore is the score aggregated from the dimensions.
	ComputedScore int `json:"computed_score" yaml:"computed_score"`
	// OverallScore is the score tiers derive from: the persisted score when
	// it is within tolerance or documented by the score note, otherwise the
	// computed one.
	OverallScore int  `json:"overall_score" yaml:"overall_score"`
	BaseTier     Tier `json:"base_tier" yaml:"base_tier"`
	// EffectiveTier is the tier the override policy grants.
	EffectiveTier Tier `json:"effective_tier" yaml:"effective_tier"`
	// PublishedTier is the persisted tier when the policy accepts it, the
	// base tier for a demotion, and EffectiveTier otherwise.
	PublishedTier Tier          `json:"published_tier" yaml:"published_tier"`
	State         OverrideState `json:"-" yaml:"-"`
	StateName     string        `json:"override_state" yaml:"override_state"`
	Exceeded      bool          `json:"override_exceeded" yaml:"override_exceeded"`
	Cause         string        `json:"override_cause,omitempty" yaml:"override_cause,omitempty"`
}

// Evaluate recomputes a record's score, base tier and granted tier. It
// fails when the record cannot be scored: a dimension is missing, or a
// dimension or the bonus is out of range.
func (p Policy) Evaluate(r RaceRating) (Classification, error) {
	if err := p.CheckRanges(r); err != nil {
		return Classification{}, err
	}
	computed, err := p.Aggregate(r.Scores, r.Bonus())
	if err != nil {
		return Classification{}, err
	}
	overall := p.PublishedScore(r, computed)
	base, err := p.Classify(overall)
	if err != nil {
		return Classification{}, err
	}
	dec := p.ApplyOverride(OverrideRequest{
		BaseTier:     base,
		OverallScore: overall,
		Prestige:     r.Prestige(),
		Reason:       r.Override.Reason,
		Requested:    r.Tier,
	})
	return Classification{
		RaceID:        r.RaceID,
		ComputedScore: computed,
		OverallScore:  overall,
		BaseTier:      base,
		EffectiveTier: dec.EffectiveTier,
		PublishedTier: publishedTier(dec),
		State:         dec.State,
		StateName:     dec.State.String(),
		Exceeded:      dec.Exceeded,
		Cause:         dec.Cause,
	}, nil
}

func publishedTier(dec OverrideDecision) Tier {
	switch {
	case !dec.Requested.Valid(), dec.Exceeded:
		return dec.EffectiveTier
	case dec.Requested > dec.BaseTier:
		return dec.BaseTier
	default:
		return dec.Requested
	}
}

// CheckRanges reports the first dimension, in canonical order, or bonus
// outside its range. Missing dimensions are left to Aggregate.
func (p Policy) CheckRanges(r RaceRating) error {
	for _, d := range Dimensions() {
		if v, ok := r.Scores[d]; ok && (v < p.DimensionMin || v > p.DimensionMax) {
			return fmt.Errorf("%w: %s=%d, want %d..%d", ErrScoreOutOfRange, d, v, p.DimensionMin, p.DimensionMax)
		}
	}
	if b := r.Bonus(); b < 0 || b > p.BonusMax {
		return fmt.Errorf("%w: %s=%d, want 0..%d", ErrScoreOutOfRange, KeyCulturalImpact, b, p.BonusMax)
	}
	return nil
}

// PublishedScore picks between the persisted and the computed score: a
// persisted score inside [0,100] survives when its deviation is within the
// silent tolerance or documented by the score note.
func (p Policy) PublishedScore(r RaceRating, computed int) int {
	if r.OverallScore < 0 || r.OverallScore > MaxOverallScore {
		return computed
	}
	dev := r.OverallScore - computed
	if abs(dev) <= p.SilentTolerance || r.ScoreNote.Documents(dev, p.NoteMatchWindow) {
		return r.OverallScore
	}
	return computed
}
