package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
	"github.com/lib/pq"
)

type StagingStateRepo struct {
	db *DB
}

func NewStagingStateRepo(db *DB) *StagingStateRepo {
	return &StagingStateRepo{db: db}
}

func (r *StagingStateRepo) Get(ctx context.Context, groupID string) (*model.StagingState, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var st model.StagingState
	var runtimes pq.Float64Array
	var started []time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT group_id, active_stages, lead_index, runtime_seconds, started_at, last_change_at, updated_at
		FROM staging_states
		WHERE group_id = $1
	`, groupID).Scan(
		&st.GroupID, &st.ActiveStages, &st.LeadIndex,
		&runtimes, pq.Array(&started), &st.LastChangeAt, &st.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get staging state: %w", err)
	}
	st.RuntimeSeconds = runtimes
	st.StartedAt = started
	return &st, nil
}

func (r *StagingStateRepo) Upsert(ctx context.Context, st *model.StagingState) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO staging_states (group_id, active_stages, lead_index, runtime_seconds, started_at, last_change_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (group_id) DO UPDATE SET
			active_stages = EXCLUDED.active_stages,
			lead_index = EXCLUDED.lead_index,
			runtime_seconds = EXCLUDED.runtime_seconds,
			started_at = EXCLUDED.started_at,
			last_change_at = EXCLUDED.last_change_at,
			updated_at = EXCLUDED.updated_at
	`, st.GroupID, st.ActiveStages, st.LeadIndex,
		pq.Array(st.RuntimeSeconds), pq.Array(st.StartedAt), st.LastChangeAt, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert staging state: %w", err)
	}
	return nil
}
