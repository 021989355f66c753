package strategy

import (
	"github.com/AutomataControls/nexus-engine/internal/control/pid"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// AirHandler controls supply-air temperature for AHUs and, with
// DedicatedOutdoorAir set, DOAS units. The fan runs whenever the unit is
// enabled; heating and cooling valves trim the discharge against the
// effective supply setpoint.
type AirHandler struct {
	DedicatedOutdoorAir bool
}

func (a AirHandler) Type() model.EquipmentType {
	if a.DedicatedOutdoorAir {
		return model.EquipmentDOAS
	}
	return model.EquipmentAirHandler
}

func (a AirHandler) Compute(in Input) (model.Result, error) {
	cfg := in.Config

	if in.Command != nil && !in.Command.Enabled {
		return SafeOff(in.Now), nil
	}

	if trip := CheckInterlocks(cfg, in.Telemetry, in.Now); trip != nil {
		trip.Controller = carryControllers(in)
		return *trip, nil
	}

	supply := in.Telemetry.Resolve(cfg.SupplyTempKeys, DefaultSetpoint)
	setpoint := EffectiveSetpoint(in.Command, cfg, in.Telemetry)
	deadband := cfg.deadband()

	heatState := in.Controller(model.RoleHeating)
	coolState := in.Controller(model.RoleCooling)

	cmds := model.CommandSet{}
	cmds.SetBool(model.FieldUnitEnable, true)
	cmds.SetBool(model.FieldFanEnabled, true)
	cmds.SetString(model.FieldFanSpeed, string(model.FanSpeedHigh))
	cmds.SetNumber(model.FieldTemperatureSetpoint, setpoint, 0, 100)

	damper := DamperPosition(cfg, in.Telemetry)
	if a.DedicatedOutdoorAir {
		// A DOAS exists to condition outdoor air; the damper stays open
		// whenever the unit runs.
		damper = 100
	}
	cmds.SetNumber(model.FieldOutdoorDamper, damper, 0, 100)

	var state model.ControlState
	switch {
	case supply < setpoint-deadband:
		state = model.ControlStateHeating
		var out float64
		out, heatState = pid.Compute(supply, setpoint, cfg.Params(model.RoleHeating), in.Interval, model.RoleHeating, heatState)
		cmds.SetNumber(model.FieldHeatingValve, out, 0, 100)
		cmds.SetNumber(model.FieldCoolingValve, 0, 0, 100)
	case supply > setpoint+deadband:
		state = model.ControlStateCooling
		var out float64
		out, coolState = pid.Compute(supply, setpoint, cfg.Params(model.RoleCooling), in.Interval, model.RoleCooling, coolState)
		cmds.SetNumber(model.FieldCoolingValve, out, 0, 100)
		cmds.SetNumber(model.FieldHeatingValve, 0, 0, 100)
	default:
		state = model.ControlStateDeadband
		cmds.SetNumber(model.FieldHeatingValve, 0, 0, 100)
		cmds.SetNumber(model.FieldCoolingValve, 0, 0, 100)
	}
	cmds.SetString(model.FieldControlState, state.String())

	heatState.EquipmentID = in.Equipment.ID
	coolState.EquipmentID = in.Equipment.ID

	return model.Result{
		Commands:   cmds,
		State:      state,
		Controller: []model.ControllerState{heatState, coolState},
		ComputedAt: in.Now,
	}, nil
}
