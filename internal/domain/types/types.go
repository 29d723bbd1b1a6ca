// Package types contains common types used across the application
package types

// RatingEntry is one race in the ranked ratings listing.
type RatingEntry struct {
	Rank          int    `json:"rank"`
	RaceID        string `json:"race_id"`
	OverallScore  int    `json:"overall_score"`
	ComputedScore int    `json:"computed_score"`
	Tier          int    `json:"tier"`
	TierLabel     string `json:"tier_label"`
	BaseTier      int    `json:"base_tier"`
	OverrideState string `json:"override_state"`
}

// Stats summarises the state of the rating service.
type Stats struct {
	RatedRaces     int            `json:"rated_races"`
	TierCounts     map[string]int `json:"tier_counts"`
	AuditRuns      int            `json:"audit_runs"`
	QueueDepth     int            `json:"queue_depth"`
	QueueCapacity  int            `json:"queue_capacity"`
	DedupeSize     int64          `json:"dedupe_size"`
	LastAuditRunID string         `json:"last_audit_run_id,omitempty"`
}
