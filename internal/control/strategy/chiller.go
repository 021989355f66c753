package strategy

import (
	"github.com/AutomataControls/nexus-engine/internal/control/pid"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// defaultChilledWaterSetpoint matches the plant design temperature the
// original sites run at.
const defaultChilledWaterSetpoint = 44.0

// Chiller holds chilled-water supply temperature. Multi-compressor chillers
// stage through the coordinator, load-weighted by the cooling loop's output.
type Chiller struct{}

func (Chiller) Type() model.EquipmentType { return model.EquipmentChiller }

func (c Chiller) Compute(in Input) (model.Result, error) {
	cfg := in.Config

	if in.Command != nil && !in.Command.Enabled {
		return SafeOff(in.Now), nil
	}

	water := in.Telemetry.Resolve(cfg.WaterTempKeys, defaultChilledWaterSetpoint)
	setpoint := resolveWaterSetpoint(in, defaultChilledWaterSetpoint)
	deadband := cfg.deadband()

	coolState := in.Controller(model.RoleCooling)

	cmds := model.CommandSet{}
	cmds.SetBool(model.FieldUnitEnable, true)
	cmds.SetNumber(model.FieldTemperatureSetpoint, setpoint, 0, 100)

	var state model.ControlState
	var output float64
	switch {
	case water > setpoint+deadband:
		state = model.ControlStateCooling
		output, coolState = pid.Compute(water, setpoint, cfg.Params(model.RoleCooling), in.Interval, model.RoleCooling, coolState)
	case water < setpoint-deadband:
		state = model.ControlStateOff
		output = 0
	default:
		state = model.ControlStateDeadband
		output = 0
	}

	cmds.SetBool(model.FieldChillerEnabled, output > 0)
	cmds.SetBool(model.FieldPumpEnabled, state == model.ControlStateCooling)
	cmds.SetString(model.FieldControlState, state.String())

	coolState.EquipmentID = in.Equipment.ID

	result := model.Result{
		Commands:   cmds,
		State:      state,
		Controller: []model.ControllerState{coolState},
		ComputedAt: in.Now,
	}

	if cfg.Staging.TotalStages > 1 {
		applyStaging(&result, in, output/100)
	}
	return result, nil
}
