package integrity

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/racetier/internal/domain/rating"
	"github.com/okian/racetier/pkg/logger"
)

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithConcurrency bounds how many records are checked at once.
func WithConcurrency(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

// WithLogger sets the logger used for run summaries.
func WithLogger(l logger.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// Validator recomputes scores and tiers for every record and collects each
// disagreement with the persisted values. It holds no state between runs.
type Validator struct {
	policy      rating.Policy
	concurrency int
	logger      logger.Logger
}

// New creates a Validator for policy.
func New(policy rating.Policy, opts ...Option) *Validator {
	v := &Validator{
		policy:      policy,
		concurrency: runtime.NumCPU(),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Policy returns the policy the validator checks against.
func (v *Validator) Policy() rating.Policy {
	return v.policy
}

// Validate checks every record and returns the complete report. It never
// stops at the first violation; it only fails when ctx is cancelled.
func (v *Validator) Validate(ctx context.Context, records []rating.RaceRating) (Report, error) {
	start := time.Now()
	found := make([][]Violation, len(records))
	classified := make([]*rating.Classification, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found[i], classified[i] = v.check(records[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("validate corpus: %w", err)
	}

	report := Report{Records: len(records)}
	for i := range records {
		report.Violations = append(report.Violations, found[i]...)
		if classified[i] != nil {
			report.Classifications = append(report.Classifications, *classified[i])
		}
	}
	sortViolations(report.Violations)

	counts := report.Counts()
	v.logger.Debug(ctx, "corpus validated",
		logger.Int("records", report.Records),
		logger.Int("violations", len(report.Violations)),
		logger.Int("severe", counts[SeveritySevere]),
		logger.Bool("passed", report.Passed()),
		logger.Int("elapsed_ms", int(time.Since(start).Milliseconds())),
	)
	return report, nil
}

// Check returns the violations of a single record, in report order.
func (v *Validator) Check(r rating.RaceRating) []Violation {
	vs, _ := v.check(r)
	sortViolations(vs)
	return vs
}

func (v *Validator) check(r rating.RaceRating) ([]Violation, *rating.Classification) {
	p := v.policy
	c := recordCheck{policy: p, r: r}

	if missing := r.Scores.Missing(); len(missing) > 0 {
		c.missingDimensions(missing)
		return c.found, nil
	}

	scoresValid := c.dimensionRanges()
	overallValid := c.overallRange()
	tierValid := c.tierRange()

	if scoresValid && overallValid {
		c.scoreDeviation()
	}
	if overallValid && tierValid {
		c.tierPolicy()
	}
	c.bonusGate(tierValid)
	if tierValid {
		c.prestigeAlignment()
	}

	if !scoresValid {
		return c.found, nil
	}
	cls, err := p.Evaluate(r)
	if err != nil {
		return c.found, nil
	}
	return c.found, &cls
}

// recordCheck accumulates the violations of one record.
type recordCheck struct {
	policy rating.Policy
	r      rating.RaceRating
	found  []Violation
}

func (c *recordCheck) add(v Violation) {
	v.RaceID = c.r.RaceID
	c.found = append(c.found, v)
}

func (c *recordCheck) missingDimensions(missing []rating.Dimension) {
	names := make([]string, len(missing))
	for i, d := range missing {
		names[i] = string(d)
	}
	c.add(Violation{
		Kind:     KindMissingDimension,
		Severity: SeverityWarning,
		Field:    strings.Join(names, ","),
		Observed: strconv.Itoa(rating.DimensionCount-len(missing)) + " dimensions",
		Expected: strconv.Itoa(rating.DimensionCount) + " dimensions",
		Hint:     "score the missing dimensions; the record is not classified until all are present",
	})
}

// dimensionRanges reports every dimension and the bonus outside their
// range and returns whether all of them are in range.
func (c *recordCheck) dimensionRanges() bool {
	p := c.policy
	ok := true
	for _, d := range rating.Dimensions() {
		s := c.r.Scores[d]
		if s >= p.DimensionMin && s <= p.DimensionMax {
			continue
		}
		ok = false
		c.add(Violation{
			Kind:     KindScoreOutOfRange,
			Severity: SeveritySevere,
			Field:    string(d),
			Observed: strconv.Itoa(s),
			Expected: rangeText(p.DimensionMin, p.DimensionMax),
			Hint:     "dimension scores must be whole numbers from " + rangeText(p.DimensionMin, p.DimensionMax),
		})
	}
	if c.r.CulturalImpact != nil {
		b := *c.r.CulturalImpact
		if b < 0 || b > p.BonusMax {
			ok = false
			c.add(Violation{
				Kind:     KindScoreOutOfRange,
				Severity: SeveritySevere,
				Field:    rating.KeyCulturalImpact,
				Observed: strconv.Itoa(b),
				Expected: rangeText(0, p.BonusMax),
				Hint:     "cultural_impact must be from " + rangeText(0, p.BonusMax) + " when present",
			})
		}
	}
	return ok
}

func (c *recordCheck) overallRange() bool {
	s := c.r.OverallScore
	if s >= 0 && s <= rating.MaxOverallScore {
		return true
	}
	c.add(Violation{
		Kind:     KindScoreOutOfRange,
		Severity: SeveritySevere,
		Field:    rating.KeyOverallScore,
		Observed: strconv.Itoa(s),
		Expected: rangeText(0, rating.MaxOverallScore),
		Hint:     "overall_score is a published 0-100 rating",
	})
	return false
}

func (c *recordCheck) tierRange() bool {
	if c.r.Tier.Valid() {
		return true
	}
	observed := strconv.Itoa(int(c.r.Tier))
	field := c.r.TierSource
	if c.r.Tier == 0 && field == "" {
		observed = "missing"
	}
	if field == "" {
		field = rating.KeyTier
	}
	c.add(Violation{
		Kind:     KindScoreOutOfRange,
		Severity: SeveritySevere,
		Field:    field,
		Observed: observed,
		Expected: rangeText(int(rating.Tier1), int(rating.Tier4)),
		Hint:     "set tier (or display_tier) to 1-4",
	})
	return false
}

// scoreDeviation compares the persisted score with the recomputed one.
func (c *recordCheck) scoreDeviation() {
	p := c.policy
	computed, err := p.Aggregate(c.r.Scores, c.r.Bonus())
	if err != nil {
		return
	}
	dev := c.r.OverallScore - computed
	if abs(dev) <= p.SilentTolerance {
		return
	}
	v := Violation{
		Kind:     KindScoreMismatch,
		Field:    rating.KeyOverallScore,
		Observed: strconv.Itoa(c.r.OverallScore),
		Expected: strconv.Itoa(computed),
	}
	switch {
	case c.r.ScoreNote.Documents(dev, p.NoteMatchWindow):
		v.Severity = SeverityInfo
		v.Hint = fmt.Sprintf("documented deviation %+d (score_note: %q)", dev, c.r.ScoreNote.Note)
	case abs(dev) > p.SevereDeviation:
		v.Severity = SeveritySevere
		v.Hint = fmt.Sprintf("deviation %+d; correct overall_score to %d or add score_note with 'overall %+d' explaining the editorial adjustment", dev, computed, dev)
	default:
		v.Severity = SeverityWarning
		v.Hint = fmt.Sprintf("deviation %+d; correct overall_score to %d or document it in score_note", dev, computed)
	}
	c.add(v)
}

// tierPolicy checks the persisted tier against the override policy applied
// to the tier derived from the persisted score. Any tier from the granted
// one down to the base tier is accepted.
func (c *recordCheck) tierPolicy() {
	p := c.policy
	base, err := p.Classify(c.r.OverallScore)
	if err != nil {
		return
	}
	dec := p.ApplyOverride(rating.OverrideRequest{
		BaseTier:     base,
		OverallScore: c.r.OverallScore,
		Prestige:     c.r.Prestige(),
		Reason:       c.r.Override.Reason,
		Requested:    c.r.Tier,
	})
	v := Violation{
		Field:    c.tierField(),
		Observed: c.r.Tier.String(),
		Expected: dec.EffectiveTier.String(),
		State:    dec.State.String(),
		Cause:    dec.Cause,
	}
	switch {
	case dec.Exceeded && dec.Cause == rating.CauseUndocumented:
		v.Kind = KindTierMismatch
		v.Severity = SeveritySevere
		v.Hint = undocumentedHint(dec, c.r.OverallScore)
	case dec.Exceeded:
		v.Kind = KindOverrideAbuse
		v.Severity = SeveritySevere
		v.Hint = overrideHint(dec)
	case c.r.Tier > base:
		v.Kind = KindTierMismatch
		v.Severity = SeverityWarning
		v.Expected = base.String()
		v.Hint = fmt.Sprintf("tier %d is below the score-derived tier %d; publish tier %d or raise the score",
			int(c.r.Tier), int(base), int(base))
	default:
		return
	}
	c.add(v)
}

func undocumentedHint(dec rating.OverrideDecision, score int) string {
	if dec.State == rating.PrestigeFour {
		return fmt.Sprintf("prestige 4 promotion %s->%s without tier_override_reason; add the reason or set tier to %d",
			dec.BaseTier, dec.Requested, int(dec.BaseTier))
	}
	return fmt.Sprintf("promotion %s->%s at score %d without prestige >= 4 or tier_override_reason; set tier to %d or document the override",
		dec.BaseTier, dec.Requested, score, int(dec.EffectiveTier))
}

func (c *recordCheck) tierField() string {
	if c.r.TierSource != "" {
		return c.r.TierSource
	}
	return rating.KeyTier
}

func overrideHint(dec rating.OverrideDecision) string {
	switch dec.Cause {
	case rating.CauseTier1Floor:
		return "prestige 4 may not promote into tier 1; requires human review"
	default:
		return fmt.Sprintf("%d-tier promotion exceeds the one-tier cap for %s overrides; requires human review", dec.Promotion, dec.State)
	}
}

// bonusGate enforces that a bonus only appears on notable races.
func (c *recordCheck) bonusGate(tierValid bool) {
	p := c.policy
	bonus := c.r.Bonus()
	if bonus <= 0 || c.r.Prestige() >= p.BonusPrestigeMin {
		return
	}
	if tierValid && int(c.r.Tier) <= p.BonusTierMax {
		return
	}
	c.add(Violation{
		Kind:     KindCulturalImpactGate,
		Severity: SeveritySevere,
		Field:    rating.KeyCulturalImpact,
		Observed: fmt.Sprintf("cultural_impact=%d prestige=%d tier=%d", bonus, c.r.Prestige(), int(c.r.Tier)),
		Expected: fmt.Sprintf("prestige >= %d or tier <= %d", p.BonusPrestigeMin, p.BonusTierMax),
		Hint:     "remove cultural_impact or justify it with prestige",
	})
}

// prestigeAlignment raises editorial review flags that never fail a run.
func (c *recordCheck) prestigeAlignment() {
	p := c.policy
	prestige, tier, score := c.r.Prestige(), c.r.Tier, c.r.OverallScore
	flag := func(observed, expected, hint string) {
		c.add(Violation{
			Kind:     KindPrestigeAlignment,
			Severity: SeverityAdvisory,
			Field:    string(rating.Prestige),
			Observed: observed,
			Expected: expected,
			Hint:     hint,
		})
	}
	switch {
	case prestige == 5 && tier == rating.Tier3:
		flag("prestige=5 tier=3", "tier 1 or 2",
			"prestige 5 marks a world-class event; review the tier or the prestige score")
	case prestige >= 4 && tier == rating.Tier3 && score >= p.ReviewScoreFloor:
		flag(fmt.Sprintf("prestige=%d tier=3 score=%d", prestige, score), "tier 2",
			"high prestige race stuck in tier 3; promote with tier_override_reason or lower prestige")
	case prestige <= 2 && tier == rating.Tier1 && c.r.Override.Reason == "":
		flag(fmt.Sprintf("prestige=%d tier=1", prestige), "prestige >= 4 or tier_override_reason",
			"tier 1 with low prestige; review the prestige score")
	}
}

func rangeText(lo, hi int) string {
	return strconv.Itoa(lo) + ".." + strconv.Itoa(hi)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
