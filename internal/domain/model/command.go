package model

import (
	"time"

	"github.com/google/uuid"
)

// UserCommand is an operator's desired state for one equipment instance.
// When a user setpoint is present it always wins over any auto-calculated
// (outdoor-air-reset) value.
type UserCommand struct {
	ID          uuid.UUID
	LocationID  string
	EquipmentID string
	Enabled     bool
	Setpoint    *float64
	IsLead      *bool
	ModifiedBy  string
	ModifiedAt  time.Time
}
