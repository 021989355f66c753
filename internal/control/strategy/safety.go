package strategy

import (
	"time"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// CheckInterlocks evaluates the freeze and high-limit trips against the
// supply/mixed-air reading. A trip bypasses PID entirely and is returned as a
// first-class SAFETY_TRIP result, never as an error. Returns nil when no
// interlock fires or no supply reading resolves.
func CheckInterlocks(cfg Config, telemetry model.Snapshot, now time.Time) *model.Result {
	supply, ok := firstMetric(telemetry, cfg.SupplyTempKeys)
	if !ok {
		return nil
	}

	if supply < cfg.freezeThreshold() {
		cmds := model.CommandSet{}
		cmds.SetBool(model.FieldUnitEnable, true)
		// The fan keeps moving air across the coil during a freeze event.
		cmds.SetBool(model.FieldFanEnabled, true)
		cmds.SetString(model.FieldFanSpeed, string(model.FanSpeedLow))
		cmds.SetNumber(model.FieldHeatingValve, 100, 0, 100)
		cmds.SetNumber(model.FieldCoolingValve, 0, 0, 100)
		cmds.SetNumber(model.FieldOutdoorDamper, 0, 0, 100)
		cmds.SetString(model.FieldControlState, model.ControlStateSafetyTrip.String())
		return &model.Result{
			Commands:   cmds,
			State:      model.ControlStateSafetyTrip,
			ComputedAt: now,
		}
	}

	if supply > cfg.highLimit() {
		cmds := model.CommandSet{}
		cmds.SetBool(model.FieldUnitEnable, true)
		cmds.SetBool(model.FieldFanEnabled, true)
		cmds.SetString(model.FieldFanSpeed, string(model.FanSpeedHigh))
		cmds.SetNumber(model.FieldHeatingValve, 0, 0, 100)
		cmds.SetNumber(model.FieldCoolingValve, 100, 0, 100)
		cmds.SetString(model.FieldControlState, model.ControlStateSafetyTrip.String())
		return &model.Result{
			Commands:   cmds,
			State:      model.ControlStateSafetyTrip,
			ComputedAt: now,
		}
	}

	return nil
}
