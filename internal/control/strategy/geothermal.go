package strategy

import (
	"math"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

const (
	// defaultLoopSetpoint is the ground-loop target temperature.
	defaultLoopSetpoint = 45.0
	// fullLoadError is the loop temperature error that demands every stage.
	fullLoadError = 6.0
)

// Geothermal runs a staged ground-source plant. Load is the magnitude of the
// loop temperature error; the staging coordinator owns stage counts, lead
// rotation, and runtime timers.
type Geothermal struct{}

func (Geothermal) Type() model.EquipmentType { return model.EquipmentGeothermal }

func (g Geothermal) Compute(in Input) (model.Result, error) {
	cfg := in.Config

	if in.Command != nil && !in.Command.Enabled {
		return SafeOff(in.Now), nil
	}

	loop := in.Telemetry.Resolve(cfg.WaterTempKeys, defaultLoopSetpoint)
	setpoint := resolveWaterSetpoint(in, defaultLoopSetpoint)
	deadband := cfg.deadband()
	errMag := math.Abs(loop - setpoint)

	var state model.ControlState
	switch {
	case loop > setpoint+deadband:
		state = model.ControlStateCooling
	case loop < setpoint-deadband:
		state = model.ControlStateHeating
	default:
		state = model.ControlStateDeadband
	}

	loadFraction := errMag / fullLoadError
	if state == model.ControlStateDeadband {
		loadFraction = 0
	}

	cmds := model.CommandSet{}
	cmds.SetBool(model.FieldUnitEnable, true)
	cmds.SetNumber(model.FieldTemperatureSetpoint, setpoint, 0, 100)
	cmds.SetString(model.FieldControlState, state.String())

	result := model.Result{
		Commands:   cmds,
		State:      state,
		ComputedAt: in.Now,
	}
	applyStaging(&result, in, loadFraction)
	return result, nil
}
