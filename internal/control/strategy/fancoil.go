package strategy

import (
	"github.com/AutomataControls/nexus-engine/internal/control/pid"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// FanCoil controls a four-pipe fan coil unit: space temperature against the
// effective setpoint with independent heating and cooling valve loops and a
// categorical fan speed.
type FanCoil struct{}

func (FanCoil) Type() model.EquipmentType { return model.EquipmentFanCoil }

func (f FanCoil) Compute(in Input) (model.Result, error) {
	cfg := in.Config

	if in.Command != nil && !in.Command.Enabled {
		return SafeOff(in.Now), nil
	}

	if trip := CheckInterlocks(cfg, in.Telemetry, in.Now); trip != nil {
		trip.Controller = carryControllers(in)
		return *trip, nil
	}

	space := in.Telemetry.Resolve(cfg.SpaceTempKeys, DefaultSetpoint)
	setpoint := EffectiveSetpoint(in.Command, cfg, in.Telemetry)
	deadband := cfg.deadband()

	heatState := in.Controller(model.RoleHeating)
	coolState := in.Controller(model.RoleCooling)

	cmds := model.CommandSet{}
	cmds.SetBool(model.FieldUnitEnable, true)
	cmds.SetBool(model.FieldFanEnabled, true)
	cmds.SetNumber(model.FieldTemperatureSetpoint, setpoint, 0, 100)
	cmds.SetNumber(model.FieldOutdoorDamper, DamperPosition(cfg, in.Telemetry), 0, 100)

	var state model.ControlState
	switch {
	case space < setpoint-deadband:
		state = model.ControlStateHeating
		var out float64
		out, heatState = pid.Compute(space, setpoint, cfg.Params(model.RoleHeating), in.Interval, model.RoleHeating, heatState)
		cmds.SetNumber(model.FieldHeatingValve, out, 0, 100)
		cmds.SetNumber(model.FieldCoolingValve, 0, 0, 100)
		cmds.SetString(model.FieldFanSpeed, string(model.FanSpeedHigh))
	case space > setpoint+deadband:
		state = model.ControlStateCooling
		var out float64
		out, coolState = pid.Compute(space, setpoint, cfg.Params(model.RoleCooling), in.Interval, model.RoleCooling, coolState)
		cmds.SetNumber(model.FieldCoolingValve, out, 0, 100)
		cmds.SetNumber(model.FieldHeatingValve, 0, 0, 100)
		cmds.SetString(model.FieldFanSpeed, string(model.FanSpeedMedium))
	default:
		// Inside the deadband: hold with both valves closed, fan at low.
		state = model.ControlStateDeadband
		cmds.SetNumber(model.FieldHeatingValve, 0, 0, 100)
		cmds.SetNumber(model.FieldCoolingValve, 0, 0, 100)
		cmds.SetString(model.FieldFanSpeed, string(model.FanSpeedLow))
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

// carryControllers passes persisted controller state through unchanged for
// cycles that bypass PID (safety trips).
func carryControllers(in Input) []model.ControllerState {
	out := make([]model.ControllerState, 0, len(in.Controllers))
	for _, s := range in.Controllers {
		out = append(out, s)
	}
	return out
}
