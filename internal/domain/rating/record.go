package rating

import (
	"regexp"
	"strconv"
	"strings"
)

// Keys of the persisted tier and its aliases, highest precedence first.
const (
	KeyDisplayTier   = "display_tier"
	KeyTier          = "tier"
	KeyEditorialTier = "editorial_tier"
	KeyBusinessTier  = "business_tier"
)

// TierKeys lists the tier keys in precedence order.
func TierKeys() []string {
	return []string{KeyDisplayTier, KeyTier, KeyEditorialTier, KeyBusinessTier}
}

// RaceRating is the rating sub-record of one race profile.
type RaceRating struct {
	RaceID string
	Scores Scores
	// CulturalImpact is nil when the record carries no bonus.
	CulturalImpact *int
	// OverallScore is the persisted published score.
	OverallScore int
	// Tier is the persisted tier after alias resolution; TierSource names the
	// key it came from.
	Tier       Tier
	TierSource string
	ScoreNote  ScoreAdjustment
	Override   Override
}

// RecordOption sets an optional field on a RaceRating under construction.
type RecordOption func(*RaceRating)

// WithCulturalImpact sets the bonus.
func WithCulturalImpact(bonus int) RecordOption {
	return func(r *RaceRating) {
		r.CulturalImpact = &bonus
	}
}

// WithScoreNote sets the score note.
func WithScoreNote(note string) RecordOption {
	return func(r *RaceRating) {
		r.ScoreNote = NewScoreAdjustment(note)
	}
}

// WithOverrideReason sets the tier override reason.
func WithOverrideReason(reason string) RecordOption {
	return func(r *RaceRating) {
		r.Override.Reason = reason
	}
}

// WithTierSource records which key the persisted tier was read from.
func WithTierSource(key string) RecordOption {
	return func(r *RaceRating) {
		r.TierSource = key
	}
}

// NewRaceRating builds a record and resolves its override once.
func NewRaceRating(raceID string, scores Scores, overall int, tier Tier, opts ...RecordOption) RaceRating {
	r := RaceRating{
		RaceID:       raceID,
		Scores:       scores.Clone(),
		OverallScore: overall,
		Tier:         tier,
		TierSource:   KeyTier,
	}
	for _, opt := range opts {
		opt(&r)
	}
	r.Override = NewOverride(r.Prestige(), r.Override.Reason)
	return r
}

// Prestige returns the prestige dimension, zero when absent.
func (r RaceRating) Prestige() int {
	return r.Scores[Prestige]
}

// Bonus returns the cultural impact bonus, zero when absent.
func (r RaceRating) Bonus() int {
	if r.CulturalImpact == nil {
		return 0
	}
	return *r.CulturalImpact
}

// ScoreAdjustment is a score note with its signed adjustments extracted.
type ScoreAdjustment struct {
	Note   string
	Deltas []int
}

// signedToken matches "+9", "-4" or "−4" that is not glued to a word.
var signedToken = regexp.MustCompile(`(?:^|[^0-9A-Za-z])([+\-\x{2212}])\s?(\d{1,3})\b`)

// NewScoreAdjustment extracts every signed integer from note. An unsigned
// number is prose, not an adjustment.
func NewScoreAdjustment(note string) ScoreAdjustment {
	adj := ScoreAdjustment{Note: strings.TrimSpace(note)}
	for _, m := range signedToken.FindAllStringSubmatch(adj.Note, -1) {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if m[1] != "+" {
			n = -n
		}
		adj.Deltas = append(adj.Deltas, n)
	}
	return adj
}

// Documents reports whether one of the note's deltas is within window of
// the observed deviation.
func (a ScoreAdjustment) Documents(deviation, window int) bool {
	for _, d := range a.Deltas {
		if abs(d-deviation) <= window {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
