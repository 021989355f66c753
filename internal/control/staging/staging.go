// Package staging decides how many discrete units of a multi-unit group run,
// which unit leads, and enforces the timers that protect compressors and
// burners from short cycling.
package staging

import (
	"math"
	"time"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// BalanceQuality classifies how evenly cumulative runtime is spread across
// the group's units.
type BalanceQuality string

const (
	BalanceExcellent BalanceQuality = "excellent"
	BalanceGood      BalanceQuality = "good"
	BalanceFair      BalanceQuality = "fair"
	BalancePoor      BalanceQuality = "poor"
)

// Config tunes one equipment group.
type Config struct {
	TotalStages    int
	StageUpDelay   time.Duration
	StageDownDelay time.Duration
	MinimumRuntime time.Duration
}

// DefaultConfig matches the geothermal plant the engine was first deployed
// against: four stages, conservative debounce.
func DefaultConfig(totalStages int) Config {
	if totalStages <= 0 {
		totalStages = 1
	}
	return Config{
		TotalStages:    totalStages,
		StageUpDelay:   2 * time.Minute,
		StageDownDelay: 3 * time.Minute,
		MinimumRuntime: 3 * time.Minute,
	}
}

// Decision is the coordinator's output for one cycle.
type Decision struct {
	ActiveStages   int
	RequiredStages int
	LeadIndex      int
	StageChanged   bool
	UnitActive     []bool
	Balance        BalanceQuality
}

// Evaluate runs one coordination cycle. loadFraction is the group's demand in
// [0, 1]; safetyOverride lets an interlock stop units before MinimumRuntime
// has elapsed; leadPinned holds the current lead in place when an operator
// has pinned it, suppressing least-runtime rotation on group start. The
// returned state must be persisted by the caller.
func Evaluate(loadFraction float64, cfg Config, state model.StagingState, now time.Time, safetyOverride, leadPinned bool) (Decision, model.StagingState) {
	if cfg.TotalStages <= 0 {
		cfg.TotalStages = 1
	}
	next := state.Clone()
	ensureCapacity(&next, cfg.TotalStages)

	accrueRuntime(&next, cfg.TotalStages, now)

	required := requiredStages(loadFraction, cfg.TotalStages)
	changed := false

	switch {
	case next.ActiveStages < required:
		// Stage up one unit at a time, debounced.
		if next.LastChangeAt.IsZero() || now.Sub(next.LastChangeAt) >= cfg.StageUpDelay {
			if next.ActiveStages == 0 && !leadPinned {
				next.LeadIndex = leastRuntimeUnit(next.RuntimeSeconds)
			}
			unit := unitAt(next, next.ActiveStages, cfg.TotalStages)
			next.StartedAt[unit] = now
			next.ActiveStages++
			next.LastChangeAt = now
			changed = true
		}
	case next.ActiveStages > required:
		// Stage down one unit at a time, last-on-first-off.
		if now.Sub(next.LastChangeAt) >= cfg.StageDownDelay {
			unit := unitAt(next, next.ActiveStages-1, cfg.TotalStages)
			ranLongEnough := now.Sub(next.StartedAt[unit]) >= cfg.MinimumRuntime
			if ranLongEnough || safetyOverride {
				next.ActiveStages--
				next.LastChangeAt = now
				changed = true
			}
		}
	}

	next.UpdatedAt = now

	active := make([]bool, cfg.TotalStages)
	for i := 0; i < next.ActiveStages; i++ {
		active[unitAt(next, i, cfg.TotalStages)] = true
	}

	return Decision{
		ActiveStages:   next.ActiveStages,
		RequiredStages: required,
		LeadIndex:      next.LeadIndex,
		StageChanged:   changed,
		UnitActive:     active,
		Balance:        Classify(next.RuntimeSeconds),
	}, next
}

// Classify grades runtime balance by the maximum deviation from an even
// split of the group's total runtime.
func Classify(runtimes []float64) BalanceQuality {
	if len(runtimes) == 0 {
		return BalanceExcellent
	}
	var total float64
	for _, r := range runtimes {
		total += r
	}
	if total <= 0 {
		return BalanceExcellent
	}
	ideal := total / float64(len(runtimes))
	var maxDev float64
	for _, r := range runtimes {
		if dev := math.Abs(r-ideal) / ideal; dev > maxDev {
			maxDev = dev
		}
	}
	switch {
	case maxDev <= 0.10:
		return BalanceExcellent
	case maxDev <= 0.25:
		return BalanceGood
	case maxDev <= 0.50:
		return BalanceFair
	default:
		return BalancePoor
	}
}

func requiredStages(loadFraction float64, total int) int {
	if loadFraction < 0 {
		loadFraction = 0
	}
	if loadFraction > 1 {
		loadFraction = 1
	}
	return int(math.Ceil(loadFraction * float64(total)))
}

// unitAt maps a stage slot to a physical unit index, rotating from the lead.
func unitAt(s model.StagingState, slot, total int) int {
	return (s.LeadIndex + slot) % total
}

func leastRuntimeUnit(runtimes []float64) int {
	best := 0
	for i, r := range runtimes {
		if r < runtimes[best] {
			best = i
		}
	}
	return best
}

func ensureCapacity(s *model.StagingState, total int) {
	for len(s.RuntimeSeconds) < total {
		s.RuntimeSeconds = append(s.RuntimeSeconds, 0)
	}
	for len(s.StartedAt) < total {
		s.StartedAt = append(s.StartedAt, time.Time{})
	}
	if s.LeadIndex < 0 || s.LeadIndex >= total {
		s.LeadIndex = 0
	}
	if s.ActiveStages > total {
		s.ActiveStages = total
	}
}

func accrueRuntime(s *model.StagingState, total int, now time.Time) {
	if s.UpdatedAt.IsZero() {
		return
	}
	elapsed := now.Sub(s.UpdatedAt).Seconds()
	if elapsed <= 0 {
		return
	}
	for i := 0; i < s.ActiveStages; i++ {
		s.RuntimeSeconds[unitAt(*s, i, total)] += elapsed
	}
}
