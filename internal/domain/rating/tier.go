package rating

import (
	"fmt"
	"strconv"
)

// Tier is the coarse 1..4 classification bucket; 1 is the top.
type Tier int

// Tier values. The zero Tier means "not set".
const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
	Tier4 Tier = 4
)

// Valid reports whether t is one of the four tiers.
func (t Tier) Valid() bool {
	return t >= Tier1 && t <= Tier4
}

// Label returns the published label, e.g. "TIER 2".
func (t Tier) Label() string {
	return "TIER " + strconv.Itoa(int(t))
}

func (t Tier) String() string {
	if !t.Valid() {
		return "T?" + strconv.Itoa(int(t))
	}
	return "T" + strconv.Itoa(int(t))
}

// Classify maps an overall score to its base tier. Lower bounds are
// inclusive: a score equal to Tier1Min is tier 1.
func (p Policy) Classify(score int) (Tier, error) {
	if score < 0 || score > MaxOverallScore {
		return 0, fmt.Errorf("%w: overall score %d not in [0,%d]", ErrScoreOutOfRange, score, MaxOverallScore)
	}
	switch {
	case score >= p.Tier1Min:
		return Tier1, nil
	case score >= p.Tier2Min:
		return Tier2, nil
	case score >= p.Tier3Min:
		return Tier3, nil
	default:
		return Tier4, nil
	}
}
