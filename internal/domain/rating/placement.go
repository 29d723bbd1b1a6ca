package rating

import (
	"errors"
	"fmt"
)

// Placement is what normalization publishes for a record.
type Placement struct {
	RaceID       string
	OverallScore int
	BaseTier     Tier
	Tier         Tier
	// Reason is the tier_override_reason to keep or write. Empty removes it.
	Reason string
}

// Place recalculates where a record belongs, promoting it as far as its
// override state allows:
//
//	PrestigeFive       one tier; into tier 1 only at P5Tier1Floor or above
//	PrestigeFour       one tier, never into tier 1
//	EditorialOverride  keeps a documented one-tier promotion
//	NoOverride         base tier
//
// A promotion keeps the record's reason or gets a generated one. Records
// with out-of-range scores, or whose persisted tier exceeds the override
// cap, are never placed and fail with ErrNeedsReview. A prestige 4
// promotion that only lacks its reason is placed and documented.
func (p Policy) Place(r RaceRating) (Placement, error) {
	c, err := p.Evaluate(r)
	if err != nil {
		if errors.Is(err, ErrScoreOutOfRange) {
			return Placement{}, fmt.Errorf("%w: %w", ErrNeedsReview, err)
		}
		return Placement{}, err
	}
	if c.Exceeded && (c.State != PrestigeFour || c.Cause != CauseUndocumented) {
		return Placement{}, fmt.Errorf("%w: %s promotion %s->%s exceeds the override cap (%s)",
			ErrNeedsReview, c.StateName, c.BaseTier, r.Tier, c.Cause)
	}

	pl := Placement{
		RaceID:       r.RaceID,
		OverallScore: c.OverallScore,
		BaseTier:     c.BaseTier,
		Tier:         c.BaseTier,
	}
	var generated string
	switch c.State {
	case PrestigeFive:
		pl.Tier = promote(c.BaseTier)
		if pl.Tier == Tier1 && c.BaseTier != Tier1 && c.OverallScore < p.P5Tier1Floor {
			pl.Tier = c.BaseTier
		}
		if pl.Tier == Tier1 {
			generated = fmt.Sprintf("Prestige 5 + score >= %d, promoted to Tier 1", p.P5Tier1Floor)
		} else {
			generated = fmt.Sprintf("Prestige 5, promoted to Tier %d", int(pl.Tier))
		}
	case PrestigeFour:
		if c.BaseTier > Tier2 {
			pl.Tier = promote(c.BaseTier)
		}
		generated = "Prestige 4, promoted 1 tier (not into Tier 1)"
	case EditorialOverride:
		if r.Tier == c.EffectiveTier {
			pl.Tier = c.EffectiveTier
		}
	}
	if pl.Tier < c.BaseTier {
		pl.Reason = r.Override.Reason
		if pl.Reason == "" {
			pl.Reason = generated
		}
	}
	return pl, nil
}
