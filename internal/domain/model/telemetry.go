package model

import (
	"math"
	"time"
)

// Snapshot is the latest canonical metric map for one equipment instance.
// The mapping from raw sensor field names to canonical keys happens upstream;
// the engine only ever sees canonical keys. A snapshot is immutable once
// handed to a control cycle, and any key may be absent.
type Snapshot struct {
	LocationID  string
	EquipmentID string
	Metrics     map[string]float64
	CollectedAt time.Time
}

// Metric returns the named metric and whether it is present and finite.
func (s Snapshot) Metric(key string) (float64, bool) {
	if s.Metrics == nil {
		return 0, false
	}
	v, ok := s.Metrics[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Resolve walks an ordered list of candidate canonical keys and returns the
// first present value, or fallback if none resolve. This replaces the ad hoc
// chained-fallback lookups the upstream dashboards use.
func (s Snapshot) Resolve(keys []string, fallback float64) float64 {
	for _, key := range keys {
		if v, ok := s.Metric(key); ok {
			return v
		}
	}
	return fallback
}

// Age reports how stale the snapshot is relative to now.
func (s Snapshot) Age(now time.Time) time.Duration {
	if s.CollectedAt.IsZero() {
		return 0
	}
	return now.Sub(s.CollectedAt)
}
