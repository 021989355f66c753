// Package strategy holds the per-archetype control logic. Each strategy is a
// pure function of (telemetry, user command, persisted state) onto (actuator
// commands, next state); the processor owns scheduling and persistence.
package strategy

import (
	"fmt"
	"time"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// Input is everything a strategy may consult for one cycle.
type Input struct {
	Equipment   model.Equipment
	Telemetry   model.Snapshot
	Command     *model.UserCommand
	Controllers map[model.ControllerRole]model.ControllerState
	Staging     *model.StagingState
	Config      Config
	Interval    time.Duration
	Now         time.Time
}

// Controller returns the persisted state for a role, zero-valued when the
// loop has never run.
func (in Input) Controller(role model.ControllerRole) model.ControllerState {
	if s, ok := in.Controllers[role]; ok {
		return s
	}
	return model.ControllerState{EquipmentID: in.Equipment.ID, Role: role}
}

// Strategy computes one control cycle for an equipment archetype.
type Strategy interface {
	Type() model.EquipmentType
	Compute(in Input) (model.Result, error)
}

// ForType returns the strategy for an archetype.
func ForType(t model.EquipmentType) (Strategy, error) {
	switch t {
	case model.EquipmentFanCoil:
		return FanCoil{}, nil
	case model.EquipmentAirHandler:
		return AirHandler{}, nil
	case model.EquipmentDOAS:
		return AirHandler{DedicatedOutdoorAir: true}, nil
	case model.EquipmentBoiler:
		return Boiler{}, nil
	case model.EquipmentChiller:
		return Chiller{}, nil
	case model.EquipmentPump:
		return Pump{}, nil
	case model.EquipmentGeothermal:
		return Geothermal{}, nil
	default:
		return nil, fmt.Errorf("no strategy for equipment type %q", t)
	}
}

// Run executes a strategy behind a panic boundary. Any fault inside the
// strategy degrades to the safe-off command set; one bad cycle must never
// take down the processor.
func Run(s Strategy, in Input) (result model.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = SafeOff(in.Now)
			err = fmt.Errorf("strategy %s panicked: %v", s.Type(), r)
		}
	}()
	result, err = s.Compute(in)
	if err != nil {
		return SafeOff(in.Now), err
	}
	return result, nil
}

// SafeOff is the fixed fail-safe command set: unit disabled, valves closed,
// fan off.
func SafeOff(now time.Time) model.Result {
	cmds := model.CommandSet{}
	cmds.SetBool(model.FieldUnitEnable, false)
	cmds.SetBool(model.FieldFanEnabled, false)
	cmds.SetString(model.FieldFanSpeed, string(model.FanSpeedOff))
	cmds.SetNumber(model.FieldHeatingValve, 0, 0, 100)
	cmds.SetNumber(model.FieldCoolingValve, 0, 0, 100)
	cmds.SetString(model.FieldControlState, model.ControlStateOff.String())
	return model.Result{
		Commands:   cmds,
		State:      model.ControlStateOff,
		ComputedAt: now,
	}
}
