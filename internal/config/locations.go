package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AutomataControls/nexus-engine/internal/control/pid"
	"github.com/AutomataControls/nexus-engine/internal/control/staging"
	"github.com/AutomataControls/nexus-engine/internal/control/strategy"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// LocationProfile is one site's equipment registry and tuning, loaded from
// the locations YAML file. It replaces the hard-coded per-location tables the
// previous system carried in every plugin.
type LocationProfile struct {
	ID        string             `yaml:"id"`
	Name      string             `yaml:"name"`
	Equipment []EquipmentProfile `yaml:"equipment"`
}

// EquipmentProfile registers one unit and its overrides. Every field except
// id and type is optional; unset fields fall back to the archetype defaults.
type EquipmentProfile struct {
	ID          string  `yaml:"id"`
	Type        string  `yaml:"type"`
	Name        string  `yaml:"name"`
	IntervalSec int     `yaml:"intervalSec"`
	Deadband    float64 `yaml:"deadband"`

	Setpoint *float64    `yaml:"setpoint"`
	OAR      *OARProfile `yaml:"oar"`

	SpaceTempKeys   []string `yaml:"spaceTempKeys"`
	SupplyTempKeys  []string `yaml:"supplyTempKeys"`
	OutdoorTempKeys []string `yaml:"outdoorTempKeys"`
	WaterTempKeys   []string `yaml:"waterTempKeys"`
	PressureKeys    []string `yaml:"pressureKeys"`

	DamperLowBound  *float64 `yaml:"damperLowBound"`
	DamperHighBound *float64 `yaml:"damperHighBound"`
	FreezeThreshold *float64 `yaml:"freezeThreshold"`
	HighLimit       *float64 `yaml:"highLimit"`
	TargetPressure  *float64 `yaml:"targetPressure"`

	PID     map[string]PIDProfile `yaml:"pid"`
	Staging *StagingProfile       `yaml:"staging"`
}

type OARProfile struct {
	MinOAT      float64 `yaml:"minOAT"`
	MaxOAT      float64 `yaml:"maxOAT"`
	MinSetpoint float64 `yaml:"minSetpoint"`
	MaxSetpoint float64 `yaml:"maxSetpoint"`
}

type PIDProfile struct {
	Kp            float64  `yaml:"kp"`
	Ki            float64  `yaml:"ki"`
	Kd            float64  `yaml:"kd"`
	OutputMin     float64  `yaml:"outputMin"`
	OutputMax     *float64 `yaml:"outputMax"`
	ReverseActing bool     `yaml:"reverseActing"`
	MaxIntegral   *float64 `yaml:"maxIntegral"`
	Enabled       *bool    `yaml:"enabled"`
}

type StagingProfile struct {
	TotalStages       int `yaml:"totalStages"`
	StageUpDelaySec   int `yaml:"stageUpDelaySec"`
	StageDownDelaySec int `yaml:"stageDownDelaySec"`
	MinimumRuntimeSec int `yaml:"minimumRuntimeSec"`
}

type locationsFile struct {
	Locations []LocationProfile `yaml:"locations"`
}

var validTypes = map[string]model.EquipmentType{
	"fancoil":     model.EquipmentFanCoil,
	"air-handler": model.EquipmentAirHandler,
	"doas":        model.EquipmentDOAS,
	"boiler":      model.EquipmentBoiler,
	"chiller":     model.EquipmentChiller,
	"pump":        model.EquipmentPump,
	"geothermal":  model.EquipmentGeothermal,
}

// LoadLocations reads and validates the locations profile file.
func LoadLocations(path string) ([]LocationProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations profile: %w", err)
	}

	var file locationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse locations profile: %w", err)
	}

	seenLoc := map[string]bool{}
	for _, loc := range file.Locations {
		if loc.ID == "" {
			return nil, fmt.Errorf("location with empty id")
		}
		if seenLoc[loc.ID] {
			return nil, fmt.Errorf("duplicate location id %q", loc.ID)
		}
		seenLoc[loc.ID] = true

		seenEq := map[string]bool{}
		for _, eq := range loc.Equipment {
			if eq.ID == "" {
				return nil, fmt.Errorf("location %s: equipment with empty id", loc.ID)
			}
			if seenEq[eq.ID] {
				return nil, fmt.Errorf("location %s: duplicate equipment id %q", loc.ID, eq.ID)
			}
			seenEq[eq.ID] = true
			if _, ok := validTypes[eq.Type]; !ok {
				return nil, fmt.Errorf("location %s: equipment %s has unknown type %q", loc.ID, eq.ID, eq.Type)
			}
		}
	}
	return file.Locations, nil
}

// EquipmentType returns the parsed archetype. Callers must have validated
// the profile through LoadLocations first.
func (p EquipmentProfile) EquipmentType() model.EquipmentType {
	return validTypes[p.Type]
}

// Model builds the domain equipment record.
func (p EquipmentProfile) Model(locationID string) model.Equipment {
	return model.Equipment{
		ID:         p.ID,
		LocationID: locationID,
		Type:       p.EquipmentType(),
		Name:       p.Name,
	}
}

// StrategyConfig folds the profile's overrides onto the archetype defaults.
func (p EquipmentProfile) StrategyConfig() strategy.Config {
	cfg := strategy.DefaultConfig()

	if p.Deadband > 0 {
		cfg.Deadband = p.Deadband
	}
	cfg.FixedSetpoint = p.Setpoint
	if p.OAR != nil {
		cfg.OAR = &strategy.OARCalibration{
			MinOAT:      p.OAR.MinOAT,
			MaxOAT:      p.OAR.MaxOAT,
			MinSetpoint: p.OAR.MinSetpoint,
			MaxSetpoint: p.OAR.MaxSetpoint,
		}
	}

	if len(p.SpaceTempKeys) > 0 {
		cfg.SpaceTempKeys = p.SpaceTempKeys
	}
	if len(p.SupplyTempKeys) > 0 {
		cfg.SupplyTempKeys = p.SupplyTempKeys
	}
	if len(p.OutdoorTempKeys) > 0 {
		cfg.OutdoorTempKeys = p.OutdoorTempKeys
	}
	if len(p.WaterTempKeys) > 0 {
		cfg.WaterTempKeys = p.WaterTempKeys
	}
	if len(p.PressureKeys) > 0 {
		cfg.PressureKeys = p.PressureKeys
	}

	if p.DamperLowBound != nil {
		cfg.DamperLowBound = *p.DamperLowBound
	}
	if p.DamperHighBound != nil {
		cfg.DamperHighBound = *p.DamperHighBound
	}
	if p.FreezeThreshold != nil {
		cfg.FreezeThreshold = *p.FreezeThreshold
	}
	if p.HighLimit != nil {
		cfg.HighLimit = *p.HighLimit
	}
	if p.TargetPressure != nil {
		cfg.TargetPressure = *p.TargetPressure
	}

	if len(p.PID) > 0 {
		cfg.PID = make(map[model.ControllerRole]pid.Params, len(p.PID))
		for role, prof := range p.PID {
			cfg.PID[model.ControllerRole(role)] = prof.Params()
		}
	}

	if p.Staging != nil && p.Staging.TotalStages > 0 {
		sc := staging.DefaultConfig(p.Staging.TotalStages)
		if p.Staging.StageUpDelaySec > 0 {
			sc.StageUpDelay = time.Duration(p.Staging.StageUpDelaySec) * time.Second
		}
		if p.Staging.StageDownDelaySec > 0 {
			sc.StageDownDelay = time.Duration(p.Staging.StageDownDelaySec) * time.Second
		}
		if p.Staging.MinimumRuntimeSec > 0 {
			sc.MinimumRuntime = time.Duration(p.Staging.MinimumRuntimeSec) * time.Second
		}
		cfg.Staging = sc
	}

	return cfg
}

// Params builds PID parameters from a profile, falling back to package
// defaults for unset fields.
func (p PIDProfile) Params() pid.Params {
	params := pid.DefaultParams()
	if p.Kp != 0 {
		params.Kp = p.Kp
	}
	if p.Ki != 0 {
		params.Ki = p.Ki
	}
	if p.Kd != 0 {
		params.Kd = p.Kd
	}
	params.OutputMin = p.OutputMin
	if p.OutputMax != nil {
		params.OutputMax = *p.OutputMax
	}
	params.ReverseActing = p.ReverseActing
	if p.MaxIntegral != nil {
		params.MaxIntegral = *p.MaxIntegral
	}
	if p.Enabled != nil {
		params.Enabled = *p.Enabled
	}
	return params
}

// Interval returns the unit's processing interval given the engine defaults.
// Staged plants run slower than terminal units unless overridden.
func (p EquipmentProfile) Interval(fast, staged time.Duration) time.Duration {
	if p.IntervalSec > 0 {
		return time.Duration(p.IntervalSec) * time.Second
	}
	switch p.EquipmentType() {
	case model.EquipmentBoiler, model.EquipmentChiller, model.EquipmentPump, model.EquipmentGeothermal:
		return staged
	default:
		return fast
	}
}
