package catalog

import "time"

// UnknownKey buckets records whose owner or contract chain is missing.
const UnknownKey = "unknown"

// AggregationReport holds cross-record statistics for one extracted batch.
// It is built once and not mutated afterwards.
type AggregationReport struct {
	Total            int            `json:"total_collections"`
	WithSocialHandle int            `json:"collections_with_twitter"`
	CountsByOwner    map[string]int `json:"collections_by_owner"`
	CountsByChain    map[string]int `json:"contract_counts"`
	CountsByCategory map[string]int `json:"categories"`
	ComputedAt       time.Time      `json:"timestamp"`
}
