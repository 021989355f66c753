package strategy

import (
	"strconv"

	"github.com/AutomataControls/nexus-engine/internal/control/pid"
	"github.com/AutomataControls/nexus-engine/internal/control/staging"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// defaultBoilerSetpoint is the hot-water target when neither the operator
// nor the location profile supplies one.
const defaultBoilerSetpoint = 140.0

// Boiler modulates firing rate against hot-water supply temperature. Groups
// with more than one boiler delegate enable decisions to the staging
// coordinator so lead/lag rotation and anti-short-cycle timers apply.
type Boiler struct{}

func (Boiler) Type() model.EquipmentType { return model.EquipmentBoiler }

func (b Boiler) Compute(in Input) (model.Result, error) {
	cfg := in.Config

	if in.Command != nil && !in.Command.Enabled {
		return SafeOff(in.Now), nil
	}

	water := in.Telemetry.Resolve(cfg.WaterTempKeys, defaultBoilerSetpoint)
	setpoint := resolveWaterSetpoint(in, defaultBoilerSetpoint)
	deadband := cfg.deadband()

	heatState := in.Controller(model.RoleHeating)

	cmds := model.CommandSet{}
	cmds.SetBool(model.FieldUnitEnable, true)
	cmds.SetNumber(model.FieldTemperatureSetpoint, setpoint, 0, 220)

	var state model.ControlState
	var firingRate float64
	switch {
	case water < setpoint-deadband:
		state = model.ControlStateHeating
		firingRate, heatState = pid.Compute(water, setpoint, cfg.Params(model.RoleHeating), in.Interval, model.RoleHeating, heatState)
	case water > setpoint+deadband:
		state = model.ControlStateOff
		firingRate = 0
	default:
		state = model.ControlStateDeadband
		firingRate = 0
	}

	cmds.SetNumber(model.FieldFiringRate, firingRate, 0, 100)
	cmds.SetBool(model.FieldFiring, firingRate > 0)
	cmds.SetBool(model.FieldPumpEnabled, state == model.ControlStateHeating)
	cmds.SetString(model.FieldControlState, state.String())

	heatState.EquipmentID = in.Equipment.ID

	result := model.Result{
		Commands:   cmds,
		State:      state,
		Controller: []model.ControllerState{heatState},
		ComputedAt: in.Now,
	}

	if cfg.Staging.TotalStages > 1 {
		applyStaging(&result, in, firingRate/100)
	}
	return result, nil
}

// resolveWaterSetpoint resolves a water-loop setpoint with an archetype
// default in place of the space-temperature default.
func resolveWaterSetpoint(in Input, fallback float64) float64 {
	cfg := in.Config
	if in.Command != nil && in.Command.Setpoint != nil {
		return *in.Command.Setpoint
	}
	if cfg.FixedSetpoint != nil {
		return *cfg.FixedSetpoint
	}
	if cfg.OAR != nil {
		if oat, ok := firstMetric(in.Telemetry, cfg.OutdoorTempKeys); ok {
			return cfg.OAR.Setpoint(oat)
		}
	}
	return fallback
}

// applyStaging folds a staging decision into a strategy result: active stage
// count, per-stage enables, and the lead unit index. An operator isLead
// command pins the current lead in place.
func applyStaging(result *model.Result, in Input, loadFraction float64) {
	state := model.StagingState{GroupID: in.Equipment.ID}
	if in.Staging != nil {
		state = *in.Staging
	}
	safetyOverride := result.State == model.ControlStateSafetyTrip
	leadPinned := in.Command != nil && in.Command.IsLead != nil && *in.Command.IsLead
	decision, next := staging.Evaluate(loadFraction, in.Config.Staging, state, in.Now, safetyOverride, leadPinned)
	next.GroupID = in.Equipment.ID

	result.Commands.SetNumber(model.FieldActiveStages, float64(decision.ActiveStages), 0, float64(in.Config.Staging.TotalStages))
	result.Commands.SetNumber(model.FieldLeadUnit, float64(decision.LeadIndex+1), 1, float64(in.Config.Staging.TotalStages))
	for i, on := range decision.UnitActive {
		result.Commands.SetBool(stageField(i+1), on)
	}
	result.Staging = &next
}

func stageField(n int) string {
	return "stage" + strconv.Itoa(n) + "Enabled"
}
