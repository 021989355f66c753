package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

type ControllerStateRepo struct {
	db *DB
}

func NewControllerStateRepo(db *DB) *ControllerStateRepo {
	return &ControllerStateRepo{db: db}
}

func (r *ControllerStateRepo) Get(ctx context.Context, equipmentID string, role model.ControllerRole) (*model.ControllerState, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var st model.ControllerState
	err := r.db.QueryRowContext(ctx, `
		SELECT equipment_id, role, integral, previous_error, last_output, last_setpoint, updated_at
		FROM controller_states
		WHERE equipment_id = $1 AND role = $2
	`, equipmentID, role).Scan(
		&st.EquipmentID, &st.Role, &st.Integral, &st.PreviousError,
		&st.LastOutput, &st.LastSetpoint, &st.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get controller state: %w", err)
	}
	return &st, nil
}

func (r *ControllerStateRepo) GetAll(ctx context.Context, equipmentID string) (map[model.ControllerRole]model.ControllerState, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT equipment_id, role, integral, previous_error, last_output, last_setpoint, updated_at
		FROM controller_states
		WHERE equipment_id = $1
	`, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("get controller states: %w", err)
	}
	defer rows.Close()

	out := make(map[model.ControllerRole]model.ControllerState)
	for rows.Next() {
		var st model.ControllerState
		if err := rows.Scan(
			&st.EquipmentID, &st.Role, &st.Integral, &st.PreviousError,
			&st.LastOutput, &st.LastSetpoint, &st.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan controller state: %w", err)
		}
		out[st.Role] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate controller states: %w", err)
	}
	return out, nil
}

func (r *ControllerStateRepo) Upsert(ctx context.Context, st *model.ControllerState) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO controller_states (equipment_id, role, integral, previous_error, last_output, last_setpoint, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (equipment_id, role) DO UPDATE SET
			integral = EXCLUDED.integral,
			previous_error = EXCLUDED.previous_error,
			last_output = EXCLUDED.last_output,
			last_setpoint = EXCLUDED.last_setpoint,
			updated_at = EXCLUDED.updated_at
	`, st.EquipmentID, st.Role, st.Integral, st.PreviousError, st.LastOutput, st.LastSetpoint, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert controller state: %w", err)
	}
	return nil
}
