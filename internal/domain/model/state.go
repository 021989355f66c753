package model

import "time"

// ControllerRole distinguishes the PID loops a single equipment instance may
// run. The error sign convention is role-dependent: cooling loops treat
// input above setpoint as positive error.
type ControllerRole string

const (
	RoleHeating   ControllerRole = "heating"
	RoleCooling   ControllerRole = "cooling"
	RolePressure  ControllerRole = "pressure"
	RoleSupplyAir ControllerRole = "supply-air"
)

func (r ControllerRole) String() string {
	return string(r)
}

// ControllerState is the persisted PID state for one (equipment, role) pair.
// It is owned exclusively by that equipment's processing cycle; no two ticks
// for the same equipment are ever in flight at once.
type ControllerState struct {
	EquipmentID   string
	Role          ControllerRole
	Integral      float64
	PreviousError float64
	LastOutput    float64
	LastSetpoint  float64
	UpdatedAt     time.Time
}

// StagingState tracks a multi-unit group across cycles: which stages run,
// per-unit cumulative runtime, the last stage change, and the rotation
// pointer used for lead selection.
type StagingState struct {
	GroupID        string
	ActiveStages   int
	LeadIndex      int
	RuntimeSeconds []float64
	StartedAt      []time.Time
	LastChangeAt   time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy so a strategy can mutate staging state without
// aliasing the persisted record.
func (s StagingState) Clone() StagingState {
	out := s
	out.RuntimeSeconds = append([]float64(nil), s.RuntimeSeconds...)
	out.StartedAt = append([]time.Time(nil), s.StartedAt...)
	return out
}
