package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

type recordingSink struct {
	writes int
	err    error
}

func (s *recordingSink) WriteResult(_ context.Context, _ model.Equipment, _ model.Result) error {
	if s.err != nil {
		return s.err
	}
	s.writes++
	return nil
}

func testResult() model.Result {
	cmds := model.CommandSet{}
	cmds.SetBool(model.FieldUnitEnable, true)
	return model.Result{Commands: cmds, State: model.ControlStateDeadband, ComputedAt: time.Now()}
}

func TestPublish(t *testing.T) {
	sink := &recordingSink{}
	pub := New(sink, slog.New(slog.NewTextHandler(io.Discard, nil)))

	eq := model.Equipment{ID: "fancoil-1", LocationID: "warren", Type: model.EquipmentFanCoil}
	require.NoError(t, pub.Publish(context.Background(), eq, testResult()))
	assert.Equal(t, 1, sink.writes)
}

func TestPublishWrapsSinkError(t *testing.T) {
	sinkErr := errors.New("write refused")
	pub := New(&recordingSink{err: sinkErr}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	eq := model.Equipment{ID: "fancoil-1", LocationID: "warren", Type: model.EquipmentFanCoil}
	err := pub.Publish(context.Background(), eq, testResult())
	require.Error(t, err)
	assert.ErrorIs(t, err, sinkErr)
	assert.Contains(t, err.Error(), "warren/fancoil-1")
}
