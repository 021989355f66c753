package model

// EquipmentType identifies a control archetype. Each archetype has its own
// strategy, actionable field allow-list, and processing interval.
type EquipmentType string

const (
	EquipmentFanCoil    EquipmentType = "fancoil"
	EquipmentAirHandler EquipmentType = "air-handler"
	EquipmentDOAS       EquipmentType = "doas"
	EquipmentBoiler     EquipmentType = "boiler"
	EquipmentChiller    EquipmentType = "chiller"
	EquipmentPump       EquipmentType = "pump"
	EquipmentGeothermal EquipmentType = "geothermal"
)

func (t EquipmentType) String() string {
	return string(t)
}

// Equipment is one physical unit registered at a location.
type Equipment struct {
	ID         string
	LocationID string
	Type       EquipmentType
	Name       string
}

// ControlState is the mode a strategy selected for the current cycle.
type ControlState string

const (
	ControlStateOff        ControlState = "OFF"
	ControlStateHeating    ControlState = "HEATING"
	ControlStateCooling    ControlState = "COOLING"
	ControlStateDeadband   ControlState = "DEADBAND"
	ControlStateSafetyTrip ControlState = "SAFETY_TRIP"
)

func (s ControlState) String() string {
	return string(s)
}

// FanSpeed categories published to fan coil firmware.
type FanSpeed string

const (
	FanSpeedOff    FanSpeed = "off"
	FanSpeedLow    FanSpeed = "low"
	FanSpeedMedium FanSpeed = "medium"
	FanSpeedHigh   FanSpeed = "high"
)
