package strategy

import (
	"github.com/AutomataControls/nexus-engine/internal/control/pid"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// Pump holds loop differential pressure with a variable-speed drive. Pump
// pairs (hot-water, condenser-water) run lead/lag through the staging
// coordinator; the IsLead user command pins the lead when operators need a
// specific pump running.
type Pump struct{}

func (Pump) Type() model.EquipmentType { return model.EquipmentPump }

func (p Pump) Compute(in Input) (model.Result, error) {
	cfg := in.Config

	if in.Command != nil && !in.Command.Enabled {
		return SafeOff(in.Now), nil
	}

	target := cfg.TargetPressure
	if in.Command != nil && in.Command.Setpoint != nil {
		target = *in.Command.Setpoint
	}
	pressure := in.Telemetry.Resolve(cfg.PressureKeys, target)

	pressState := in.Controller(model.RolePressure)

	// Pressure below target demands more speed, same sign convention as
	// heating.
	speed, pressState := pid.Compute(pressure, target, cfg.Params(model.RolePressure), in.Interval, model.RolePressure, pressState)

	// Pressure loops reuse the heating sign convention, so a running pump
	// reports HEATING and an idle one OFF.
	state := model.ControlStateOff
	if speed > 0 {
		state = model.ControlStateHeating
	}

	cmds := model.CommandSet{}
	cmds.SetBool(model.FieldUnitEnable, true)
	cmds.SetBool(model.FieldPumpEnabled, speed > 0)
	cmds.SetNumber(model.FieldPumpSpeed, speed, 0, 100)
	cmds.SetString(model.FieldControlState, state.String())

	pressState.EquipmentID = in.Equipment.ID

	result := model.Result{
		Commands:   cmds,
		State:      state,
		Controller: []model.ControllerState{pressState},
		ComputedAt: in.Now,
	}

	if cfg.Staging.TotalStages > 1 {
		applyStaging(&result, in, speed/100)
	}
	return result, nil
}
