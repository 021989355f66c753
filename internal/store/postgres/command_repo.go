package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// DefaultCommandLookback bounds how far back Latest searches. A command
// older than the window no longer pins the unit; auto control (outdoor-air
// reset, archetype defaults) takes over.
const DefaultCommandLookback = 15 * time.Minute

type CommandRepo struct {
	db       *DB
	lookback time.Duration
}

func NewCommandRepo(db *DB, lookback time.Duration) *CommandRepo {
	if lookback <= 0 {
		lookback = DefaultCommandLookback
	}
	return &CommandRepo{db: db, lookback: lookback}
}

// Latest returns the most recent operator command for a unit inside the
// lookback window, or nil when none applies.
func (r *CommandRepo) Latest(ctx context.Context, locationID, equipmentID string) (*model.UserCommand, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var c model.UserCommand
	err := r.db.QueryRowContext(ctx, `
		SELECT id, location_id, equipment_id, enabled, setpoint, is_lead, modified_by, modified_at
		FROM user_commands
		WHERE location_id = $1 AND equipment_id = $2 AND modified_at > $3
		ORDER BY modified_at DESC
		LIMIT 1
	`, locationID, equipmentID, r.cutoff(time.Now())).Scan(
		&c.ID, &c.LocationID, &c.EquipmentID, &c.Enabled,
		&c.Setpoint, &c.IsLead, &c.ModifiedBy, &c.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest command: %w", err)
	}
	return &c, nil
}

// cutoff is the oldest modified_at Latest will honor.
func (r *CommandRepo) cutoff(now time.Time) time.Time {
	return now.Add(-r.lookback)
}

func (r *CommandRepo) Record(ctx context.Context, cmd *model.UserCommand) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_commands (id, location_id, equipment_id, enabled, setpoint, is_lead, modified_by, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			setpoint = EXCLUDED.setpoint,
			is_lead = EXCLUDED.is_lead,
			modified_by = EXCLUDED.modified_by,
			modified_at = EXCLUDED.modified_at
	`, cmd.ID, cmd.LocationID, cmd.EquipmentID, cmd.Enabled, cmd.Setpoint, cmd.IsLead, cmd.ModifiedBy, cmd.ModifiedAt)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}
