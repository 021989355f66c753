package processor

import (
	"strconv"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// Per-archetype actionable fields. Anything a strategy emits outside its
// archetype's list is diagnostic only and never reaches the sink; firmware
// must not see fields it has no actuator for.
var actionableFields = map[model.EquipmentType][]string{
	model.EquipmentFanCoil: {
		model.FieldUnitEnable, model.FieldFanEnabled, model.FieldFanSpeed,
		model.FieldHeatingValve, model.FieldCoolingValve, model.FieldOutdoorDamper,
		model.FieldTemperatureSetpoint, model.FieldControlState,
	},
	model.EquipmentAirHandler: {
		model.FieldUnitEnable, model.FieldFanEnabled, model.FieldFanSpeed,
		model.FieldHeatingValve, model.FieldCoolingValve, model.FieldOutdoorDamper,
		model.FieldTemperatureSetpoint, model.FieldControlState,
	},
	model.EquipmentDOAS: {
		model.FieldUnitEnable, model.FieldFanEnabled, model.FieldFanSpeed,
		model.FieldHeatingValve, model.FieldCoolingValve, model.FieldOutdoorDamper,
		model.FieldTemperatureSetpoint, model.FieldControlState,
	},
	model.EquipmentBoiler: {
		model.FieldUnitEnable, model.FieldFiring, model.FieldFiringRate,
		model.FieldPumpEnabled, model.FieldTemperatureSetpoint, model.FieldControlState,
		model.FieldActiveStages, model.FieldLeadUnit,
	},
	model.EquipmentChiller: {
		model.FieldUnitEnable, model.FieldChillerEnabled, model.FieldPumpEnabled,
		model.FieldTemperatureSetpoint, model.FieldControlState,
		model.FieldActiveStages, model.FieldLeadUnit,
	},
	model.EquipmentPump: {
		model.FieldUnitEnable, model.FieldPumpEnabled, model.FieldPumpSpeed,
		model.FieldControlState, model.FieldActiveStages, model.FieldLeadUnit,
	},
	model.EquipmentGeothermal: {
		model.FieldUnitEnable, model.FieldTemperatureSetpoint, model.FieldControlState,
		model.FieldActiveStages, model.FieldLeadUnit,
	},
}

// allowedFor returns the archetype allow-list plus per-stage enables for a
// group of totalStages units.
func allowedFor(eqType model.EquipmentType, totalStages int) []string {
	base := actionableFields[eqType]
	if totalStages <= 1 {
		return base
	}
	out := make([]string, 0, len(base)+totalStages)
	out = append(out, base...)
	for i := 1; i <= totalStages; i++ {
		out = append(out, "stage"+strconv.Itoa(i)+"Enabled")
	}
	return out
}
