// Package integrity audits a corpus of race ratings against the rating
// policy and reports every disagreement it finds.
package integrity

import (
	"sort"

	"github.com/okian/racetier/internal/domain/rating"
)

// Kind classifies a violation.
type Kind string

// Violation kinds, in report order.
const (
	KindMissingDimension   Kind = "missing_dimension"
	KindScoreOutOfRange    Kind = "score_out_of_range"
	KindScoreMismatch      Kind = "score_mismatch"
	KindTierMismatch       Kind = "tier_mismatch"
	KindOverrideAbuse      Kind = "override_abuse"
	KindCulturalImpactGate Kind = "cultural_impact_gate"
	KindPrestigeAlignment  Kind = "prestige_alignment"
)

// Kinds returns every kind in report order.
func Kinds() []Kind {
	return []Kind{
		KindMissingDimension, KindScoreOutOfRange, KindScoreMismatch,
		KindTierMismatch, KindOverrideAbuse, KindCulturalImpactGate,
		KindPrestigeAlignment,
	}
}

func (k Kind) order() int {
	for i, kind := range Kinds() {
		if kind == k {
			return i
		}
	}
	return len(Kinds())
}

// Severity decides whether a violation fails a run.
type Severity string

// Severities. Only SeveritySevere fails a run.
const (
	SeveritySevere   Severity = "severe"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityAdvisory Severity = "advisory"
)

// Severities returns every severity, most serious first.
func Severities() []Severity {
	return []Severity{SeveritySevere, SeverityWarning, SeverityInfo, SeverityAdvisory}
}

// Violation is one disagreement between a stored value and what the policy
// derives.
type Violation struct {
	Kind     Kind     `json:"kind" yaml:"kind"`
	Severity Severity `json:"severity" yaml:"severity"`
	RaceID   string   `json:"race_id" yaml:"race_id"`
	Field    string   `json:"field" yaml:"field"`
	Observed string   `json:"observed" yaml:"observed"`
	Expected string   `json:"expected" yaml:"expected"`
	Hint     string   `json:"hint" yaml:"hint"`
	// State is the override state matched, set on tier violations.
	State string `json:"override_state,omitempty" yaml:"override_state,omitempty"`
	// Cause is why a promotion exceeds the override cap.
	Cause string `json:"override_cause,omitempty" yaml:"override_cause,omitempty"`
}

// Group is every violation of one kind.
type Group struct {
	Kind       Kind        `json:"kind" yaml:"kind"`
	Violations []Violation `json:"violations" yaml:"violations"`
}

// Report is the outcome of validating a corpus.
type Report struct {
	Records         int                     `json:"records" yaml:"records"`
	Violations      []Violation             `json:"violations" yaml:"violations"`
	Classifications []rating.Classification `json:"classifications,omitempty" yaml:"-"`
}

// HasSevere reports whether any violation fails the run.
func (r Report) HasSevere() bool {
	for _, v := range r.Violations {
		if v.Severity == SeveritySevere {
			return true
		}
	}
	return false
}

// Passed is the negation of HasSevere.
func (r Report) Passed() bool {
	return !r.HasSevere()
}

// Groups returns violations grouped by kind, in report order. Kinds without
// violations are omitted.
func (r Report) Groups() []Group {
	byKind := make(map[Kind][]Violation)
	for _, v := range r.Violations {
		byKind[v.Kind] = append(byKind[v.Kind], v)
	}
	groups := make([]Group, 0, len(byKind))
	for _, k := range Kinds() {
		if vs := byKind[k]; len(vs) > 0 {
			groups = append(groups, Group{Kind: k, Violations: vs})
		}
	}
	return groups
}

// Counts returns the number of violations per severity.
func (r Report) Counts() map[Severity]int {
	counts := make(map[Severity]int, len(Severities()))
	for _, v := range r.Violations {
		counts[v.Severity]++
	}
	return counts
}

// ForRace returns the violations of one race, in report order.
func (r Report) ForRace(raceID string) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.RaceID == raceID {
			out = append(out, v)
		}
	}
	return out
}

// sortViolations orders by kind, race and field. The sort is stable so
// equal keys keep their record order.
func sortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Kind != b.Kind {
			return a.Kind.order() < b.Kind.order()
		}
		if a.RaceID != b.RaceID {
			return a.RaceID < b.RaceID
		}
		return a.Field < b.Field
	})
}
