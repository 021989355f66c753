package store

import (
	"context"
	"time"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

// TelemetrySource reads the latest sensor snapshot for equipment. The
// collector populates it out-of-band; the engine only reads.
type TelemetrySource interface {
	Latest(ctx context.Context, locationID, equipmentID string) (*model.Snapshot, error)
	LatestForLocation(ctx context.Context, locationID string) (map[string]model.Snapshot, error)
}

// CommandRepository provides access to operator commands. Latest honors only
// commands inside the implementation's lookback window.
type CommandRepository interface {
	Latest(ctx context.Context, locationID, equipmentID string) (*model.UserCommand, error)
	Record(ctx context.Context, cmd *model.UserCommand) error
}

// ControllerStateRepository persists PID loop state between cycles.
type ControllerStateRepository interface {
	Get(ctx context.Context, equipmentID string, role model.ControllerRole) (*model.ControllerState, error)
	GetAll(ctx context.Context, equipmentID string) (map[model.ControllerRole]model.ControllerState, error)
	Upsert(ctx context.Context, st *model.ControllerState) error
}

// StagingStateRepository persists group staging state between cycles.
type StagingStateRepository interface {
	Get(ctx context.Context, groupID string) (*model.StagingState, error)
	Upsert(ctx context.Context, st *model.StagingState) error
}

// ResultSink receives computed actuator commands for downstream delivery.
type ResultSink interface {
	WriteResult(ctx context.Context, eq model.Equipment, res model.Result) error
}

// MetricPoint is one aggregated or derived measurement bound for the
// time-series store.
type MetricPoint struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Timestamp   time.Time
}

// MetricSink receives derived analytics points (efficiency, balance,
// threshold evaluations).
type MetricSink interface {
	WritePoints(ctx context.Context, points []MetricPoint) error
}
