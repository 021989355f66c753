package strategy

import (
	"github.com/AutomataControls/nexus-engine/internal/control/pid"
	"github.com/AutomataControls/nexus-engine/internal/control/staging"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// Default thresholds. Locations override these through their profile; the
// engine never fails on a missing value.
const (
	DefaultSetpoint        = 72.0
	DefaultDeadband        = 1.0
	DefaultFreezeThreshold = 40.0
	DefaultHighLimit       = 120.0
)

// OARCalibration is one location's outdoor-air-reset line: at MinOAT the
// setpoint is MaxSetpoint, at MaxOAT it is MinSetpoint, linear in between
// and clamped outside.
type OARCalibration struct {
	MinOAT      float64
	MaxOAT      float64
	MinSetpoint float64
	MaxSetpoint float64
}

// Setpoint interpolates the reset setpoint for an outdoor temperature.
func (c OARCalibration) Setpoint(outdoorTemp float64) float64 {
	if c.MaxOAT == c.MinOAT {
		return c.MaxSetpoint
	}
	if outdoorTemp <= c.MinOAT {
		return c.MaxSetpoint
	}
	if outdoorTemp >= c.MaxOAT {
		return c.MinSetpoint
	}
	ratio := (outdoorTemp - c.MinOAT) / (c.MaxOAT - c.MinOAT)
	return c.MaxSetpoint + ratio*(c.MinSetpoint-c.MaxSetpoint)
}

// Config is the location-specific tuning for one equipment instance. It is
// what lets a single generic strategy replace the per-location copies the
// previous system carried.
type Config struct {
	Deadband        float64
	DefaultSetpoint float64
	FixedSetpoint   *float64
	OAR             *OARCalibration

	// Ordered canonical-key fallback chains per logical sensor.
	SpaceTempKeys   []string
	SupplyTempKeys  []string
	OutdoorTempKeys []string
	WaterTempKeys   []string
	PressureKeys    []string

	// Outdoor damper opens when DamperLowBound < OAT <= DamperHighBound.
	DamperLowBound  float64
	DamperHighBound float64

	FreezeThreshold float64
	HighLimit       float64

	TargetPressure float64

	PID     map[model.ControllerRole]pid.Params
	Staging staging.Config
}

// DefaultConfig is the tuning used when a location profile has no entry for
// an equipment instance.
func DefaultConfig() Config {
	return Config{
		Deadband:        DefaultDeadband,
		DefaultSetpoint: DefaultSetpoint,
		SpaceTempKeys:   []string{"Space", "SpaceTemp", "Zone_Temp", "temperature"},
		SupplyTempKeys:  []string{"Supply", "Supply_Air_Temp", "SupplyTemp", "Supply_Temp", "MixedAir"},
		OutdoorTempKeys: []string{"Outdoor_Air", "Outdoor_Air_Temp", "OutdoorTemp", "OAT"},
		WaterTempKeys:   []string{"Water_Temp", "waterTemp", "Supply_Temp", "LoopTemp", "Loop_Temp"},
		PressureKeys:    []string{"pressure", "Pressure", "DifferentialPressure"},
		DamperLowBound:  40,
		DamperHighBound: 75,
		FreezeThreshold: DefaultFreezeThreshold,
		HighLimit:       DefaultHighLimit,
		TargetPressure:  20,
		Staging:         staging.DefaultConfig(1),
	}
}

// Params returns the PID tuning for a role, falling back to the package
// default.
func (c Config) Params(role model.ControllerRole) pid.Params {
	if p, ok := c.PID[role]; ok {
		return p
	}
	return pid.DefaultParams()
}

func (c Config) deadband() float64 {
	if c.Deadband > 0 {
		return c.Deadband
	}
	return DefaultDeadband
}

func (c Config) freezeThreshold() float64 {
	if c.FreezeThreshold > 0 {
		return c.FreezeThreshold
	}
	return DefaultFreezeThreshold
}

func (c Config) highLimit() float64 {
	if c.HighLimit > 0 {
		return c.HighLimit
	}
	return DefaultHighLimit
}
