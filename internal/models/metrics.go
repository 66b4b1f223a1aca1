package models

import "time"

// SystemMetrics is a lightweight aggregate snapshot for the admin
// dashboard, complementing the Prometheus scrape endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	AllocationsAssigned      uint64    `json:"allocations_assigned"`
	AllocationsRejected      uint64    `json:"allocations_rejected"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
