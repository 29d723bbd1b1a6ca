package rating

import "strings"

// OverrideState is the row of the override decision table a record falls in.
type OverrideState int

// Override states, mutually exclusive and resolved from prestige first.
const (
	NoOverride OverrideState = iota
	PrestigeFive
	PrestigeFour
	EditorialOverride
)

func (s OverrideState) String() string {
	switch s {
	case PrestigeFive:
		return "prestige_five"
	case PrestigeFour:
		return "prestige_four"
	case EditorialOverride:
		return "editorial"
	default:
		return "none"
	}
}

// Prestige scores that open an override.
const (
	prestigeFive = 5
	prestigeFour = 4
)

// Causes reported when a requested promotion exceeds the policy cap.
const (
	CauseMultiStep    = "multi_step"
	CauseTier1Floor   = "tier1_floor"
	CauseUndocumented = "undocumented"
)

// Override is the structured justification for publishing a tier above the
// score-derived one. It is resolved once when a record is built.
type Override struct {
	State  OverrideState
	Reason string
}

// NewOverride resolves the override state from the prestige dimension and
// the free-text override reason.
func NewOverride(prestige int, reason string) Override {
	reason = strings.TrimSpace(reason)
	switch {
	case prestige == prestigeFive:
		return Override{State: PrestigeFive, Reason: reason}
	case prestige == prestigeFour:
		return Override{State: PrestigeFour, Reason: reason}
	case reason != "":
		return Override{State: EditorialOverride, Reason: reason}
	default:
		return Override{State: NoOverride}
	}
}

// OverrideRequest describes a record to the override policy. Requested is
// the tier the record publishes; leave it zero to only ask which tier the
// policy grants.
type OverrideRequest struct {
	BaseTier     Tier
	OverallScore int
	Prestige     int
	Reason       string
	Requested    Tier
}

// OverrideDecision is the outcome of ApplyOverride.
type OverrideDecision struct {
	State     OverrideState
	BaseTier  Tier
	Requested Tier
	// EffectiveTier is the tier the policy grants: the base tier, or one
	// step toward tier 1 when an override state allows it.
	EffectiveTier Tier
	OverallScore  int
	// Promotion is how many steps toward tier 1 the request asked for.
	Promotion int
	// Exceeded is set when Requested is better than EffectiveTier.
	Exceeded bool
	Cause    string
}

// Accepts reports whether the policy allows publishing t: any tier from
// the granted one down to the base tier.
func (d OverrideDecision) Accepts(t Tier) bool {
	return t >= d.EffectiveTier && t <= d.BaseTier
}

// ApplyOverride evaluates the override decision table:
//
//	PrestigeFive       promote one tier, reason optional
//	PrestigeFour       promote one tier with a reason, never into tier 1
//	EditorialOverride  promote one tier (reason present)
//	NoOverride         no promotion
//
// When Requested is set it is checked against the grant: a request better
// than EffectiveTier sets Exceeded and Cause. A request for the base tier or
// worse is never a promotion. It never fails.
func (p Policy) ApplyOverride(req OverrideRequest) OverrideDecision {
	ov := NewOverride(req.Prestige, req.Reason)
	dec := OverrideDecision{
		State:         ov.State,
		BaseTier:      req.BaseTier,
		Requested:     req.Requested,
		EffectiveTier: req.BaseTier,
		OverallScore:  req.OverallScore,
	}
	if !req.BaseTier.Valid() {
		return dec
	}
	dec.EffectiveTier = grant(ov, req.BaseTier)
	if !req.Requested.Valid() {
		return dec
	}
	promotion := int(req.BaseTier - req.Requested)
	if promotion <= 0 {
		return dec
	}
	dec.Promotion = promotion
	if req.Requested >= dec.EffectiveTier {
		return dec
	}

	dec.Exceeded = true
	switch {
	case ov.State == NoOverride:
		dec.Cause = CauseUndocumented
	case promotion > 1:
		dec.Cause = CauseMultiStep
	case ov.State == PrestigeFour && req.Requested == Tier1:
		dec.Cause = CauseTier1Floor
	default:
		// A prestige 4 promotion missing its reason.
		dec.Cause = CauseUndocumented
	}
	return dec
}

func grant(ov Override, base Tier) Tier {
	switch ov.State {
	case PrestigeFive, EditorialOverride:
		return promote(base)
	case PrestigeFour:
		if ov.Reason == "" || base <= Tier2 {
			return base
		}
		return promote(base)
	default:
		return base
	}
}

// promote moves t one step toward tier 1.
func promote(t Tier) Tier {
	if t > Tier1 {
		return t - 1
	}
	return t
}
