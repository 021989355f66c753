package model

import "time"

// Actuator field names shared by the strategies, the processor allow-lists,
// and the publisher. Firmware reads these keys verbatim from the sink.
const (
	FieldUnitEnable          = "unitEnable"
	FieldFanEnabled          = "fanEnabled"
	FieldFanSpeed            = "fanSpeed"
	FieldHeatingValve        = "heatingValvePosition"
	FieldCoolingValve        = "coolingValvePosition"
	FieldOutdoorDamper       = "outdoorDamperPosition"
	FieldTemperatureSetpoint = "temperatureSetpoint"
	FieldPumpEnabled         = "pumpEnabled"
	FieldPumpSpeed           = "pumpSpeed"
	FieldFiring              = "firing"
	FieldFiringRate          = "firingRate"
	FieldChillerEnabled      = "chillerEnabled"
	FieldActiveStages        = "activeStages"
	FieldLeadUnit            = "leadUnit"
	FieldControlState        = "controlState"
)

// CommandSet is the actuator command map produced once per cycle. Values are
// float64, bool, or string; numeric fields are clamped before they enter the
// set. Immutable once handed to the publisher.
type CommandSet map[string]any

// SetNumber clamps v into [min, max] and stores it.
func (c CommandSet) SetNumber(field string, v, min, max float64) {
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	c[field] = v
}

// SetBool stores a boolean actuator flag.
func (c CommandSet) SetBool(field string, v bool) {
	c[field] = v
}

// SetString stores a categorical field such as a fan speed.
func (c CommandSet) SetString(field string, v string) {
	c[field] = v
}

// Number returns a numeric field, or 0 and false if absent or non-numeric.
func (c CommandSet) Number(field string) (float64, bool) {
	v, ok := c[field].(float64)
	return v, ok
}

// Bool returns a boolean field, or false and false if absent.
func (c CommandSet) Bool(field string) (bool, bool) {
	v, ok := c[field].(bool)
	return v, ok
}

// Filter returns a copy containing only the allowed fields.
func (c CommandSet) Filter(allowed []string) CommandSet {
	out := make(CommandSet, len(allowed))
	for _, field := range allowed {
		if v, ok := c[field]; ok {
			out[field] = v
		}
	}
	return out
}

// Result is a strategy's output for one cycle: the actuator commands, the
// selected control state, and the controller/staging state to persist for the
// next cycle.
type Result struct {
	Commands   CommandSet
	State      ControlState
	Controller []ControllerState
	Staging    *StagingState
	ComputedAt time.Time
}
