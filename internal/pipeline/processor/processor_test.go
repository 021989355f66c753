package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AutomataControls/nexus-engine/internal/alert"
	"github.com/AutomataControls/nexus-engine/internal/cache"
	"github.com/AutomataControls/nexus-engine/internal/control/strategy"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
	"github.com/AutomataControls/nexus-engine/internal/pipeline/publisher"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTelemetry struct {
	snaps  map[string]*model.Snapshot
	errFor map[string]error
}

func (f *fakeTelemetry) Latest(_ context.Context, _, equipmentID string) (*model.Snapshot, error) {
	if err, ok := f.errFor[equipmentID]; ok {
		return nil, err
	}
	return f.snaps[equipmentID], nil
}

func (f *fakeTelemetry) LatestForLocation(_ context.Context, _ string) (map[string]model.Snapshot, error) {
	out := map[string]model.Snapshot{}
	for id, s := range f.snaps {
		if s != nil {
			out[id] = *s
		}
	}
	return out, nil
}

type fakeCommands struct {
	cmd   *model.UserCommand
	err   error
	calls int
}

func (f *fakeCommands) Latest(_ context.Context, _, _ string) (*model.UserCommand, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.cmd, nil
}

func (f *fakeCommands) Record(_ context.Context, _ *model.UserCommand) error { return nil }

type ctrlKey struct {
	id   string
	role model.ControllerRole
}

type fakeCtrlRepo struct {
	states  map[ctrlKey]model.ControllerState
	upserts []model.ControllerState
}

func newFakeCtrlRepo() *fakeCtrlRepo {
	return &fakeCtrlRepo{states: map[ctrlKey]model.ControllerState{}}
}

func (f *fakeCtrlRepo) Get(_ context.Context, id string, role model.ControllerRole) (*model.ControllerState, error) {
	if st, ok := f.states[ctrlKey{id, role}]; ok {
		return &st, nil
	}
	return nil, nil
}

func (f *fakeCtrlRepo) GetAll(_ context.Context, id string) (map[model.ControllerRole]model.ControllerState, error) {
	out := map[model.ControllerRole]model.ControllerState{}
	for k, st := range f.states {
		if k.id == id {
			out[k.role] = st
		}
	}
	return out, nil
}

func (f *fakeCtrlRepo) Upsert(_ context.Context, st *model.ControllerState) error {
	f.states[ctrlKey{st.EquipmentID, st.Role}] = *st
	f.upserts = append(f.upserts, *st)
	return nil
}

type fakeStageRepo struct {
	states  map[string]model.StagingState
	upserts int
}

func newFakeStageRepo() *fakeStageRepo {
	return &fakeStageRepo{states: map[string]model.StagingState{}}
}

func (f *fakeStageRepo) Get(_ context.Context, groupID string) (*model.StagingState, error) {
	if st, ok := f.states[groupID]; ok {
		return &st, nil
	}
	return nil, nil
}

func (f *fakeStageRepo) Upsert(_ context.Context, st *model.StagingState) error {
	f.states[st.GroupID] = *st
	f.upserts++
	return nil
}

type published struct {
	eq  model.Equipment
	res model.Result
}

type fakeSink struct {
	writes []published
	err    error
}

func (f *fakeSink) WriteResult(_ context.Context, eq model.Equipment, res model.Result) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, published{eq, res})
	return nil
}

type fakeAlerter struct {
	alerts []alert.Alert
}

func (f *fakeAlerter) Send(_ context.Context, a alert.Alert) error {
	f.alerts = append(f.alerts, a)
	return nil
}

type harness struct {
	proc      *Processor
	telemetry *fakeTelemetry
	commands  *fakeCommands
	ctrl      *fakeCtrlRepo
	stage     *fakeStageRepo
	sink      *fakeSink
	alerter   *fakeAlerter
}

func newHarness(t *testing.T, eqType model.EquipmentType, units []Unit) *harness {
	t.Helper()
	h := &harness{
		telemetry: &fakeTelemetry{snaps: map[string]*model.Snapshot{}, errFor: map[string]error{}},
		commands:  &fakeCommands{},
		ctrl:      newFakeCtrlRepo(),
		stage:     newFakeStageRepo(),
		sink:      &fakeSink{},
		alerter:   &fakeAlerter{},
	}
	h.proc = New(
		Config{
			LocationID:      "warren",
			EquipmentType:   eqType,
			Units:           units,
			Interval:        30 * time.Second,
			TickTimeout:     5 * time.Second,
			TelemetryMaxAge: 5 * time.Minute,
		},
		h.telemetry, h.commands, h.ctrl, h.stage,
		publisher.New(h.sink, testLogger()),
		cache.NewCommandCache(16, time.Minute),
		h.alerter,
		testLogger(),
	)
	return h
}

func fanCoilUnit(id string) Unit {
	return Unit{
		Equipment: model.Equipment{ID: id, LocationID: "warren", Type: model.EquipmentFanCoil},
		Config:    strategy.DefaultConfig(),
	}
}

func freshSnapshot(id string, metrics map[string]float64) *model.Snapshot {
	return &model.Snapshot{
		LocationID:  "warren",
		EquipmentID: id,
		Metrics:     metrics,
		CollectedAt: time.Now(),
	}
}

func TestTick_PublishesAndPersists(t *testing.T) {
	h := newHarness(t, model.EquipmentFanCoil, []Unit{fanCoilUnit("fancoil-1")})
	h.telemetry.snaps["fancoil-1"] = freshSnapshot("fancoil-1", map[string]float64{"Space": 68})

	require.NoError(t, h.proc.tick(context.Background()))

	require.Len(t, h.sink.writes, 1)
	got := h.sink.writes[0]
	assert.Equal(t, "fancoil-1", got.eq.ID)
	assert.Equal(t, model.ControlStateHeating, got.res.State)
	heat, ok := got.res.Commands.Number(model.FieldHeatingValve)
	require.True(t, ok)
	assert.Greater(t, heat, 0.0)

	// Both loop states persisted with a fresh timestamp.
	require.Len(t, h.ctrl.upserts, 2)
	for _, st := range h.ctrl.upserts {
		assert.Equal(t, "fancoil-1", st.EquipmentID)
		assert.False(t, st.UpdatedAt.IsZero())
	}
}

func TestTick_IsolatesUnitFailures(t *testing.T) {
	h := newHarness(t, model.EquipmentFanCoil, []Unit{fanCoilUnit("fancoil-1"), fanCoilUnit("fancoil-2")})
	h.telemetry.errFor["fancoil-1"] = errors.New("redis gone")
	h.telemetry.snaps["fancoil-2"] = freshSnapshot("fancoil-2", map[string]float64{"Space": 72})

	err := h.proc.tick(context.Background())
	require.Error(t, err, "the failing unit's error surfaces")

	// The healthy unit still published.
	require.Len(t, h.sink.writes, 1)
	assert.Equal(t, "fancoil-2", h.sink.writes[0].eq.ID)
}

func TestProcessUnit_CommandStoreDownFallsBackToCache(t *testing.T) {
	h := newHarness(t, model.EquipmentFanCoil, []Unit{fanCoilUnit("fancoil-1")})
	h.telemetry.snaps["fancoil-1"] = freshSnapshot("fancoil-1", map[string]float64{"Space": 80})

	sp := 68.0
	h.commands.cmd = &model.UserCommand{ID: uuid.New(), Enabled: true, Setpoint: &sp}
	require.NoError(t, h.proc.tick(context.Background()))

	// Store goes down; the cached setpoint keeps applying.
	h.commands.err = errors.New("pg down")
	require.NoError(t, h.proc.tick(context.Background()))

	require.Len(t, h.sink.writes, 2)
	got, ok := h.sink.writes[1].res.Commands.Number(model.FieldTemperatureSetpoint)
	require.True(t, ok)
	assert.Equal(t, 68.0, got)
}

func TestProcessUnit_MissingTelemetryRaisesStaleAlert(t *testing.T) {
	h := newHarness(t, model.EquipmentFanCoil, []Unit{fanCoilUnit("fancoil-1")})

	require.NoError(t, h.proc.tick(context.Background()))

	// Cycle still ran on defaults.
	require.Len(t, h.sink.writes, 1)
	assert.Equal(t, model.ControlStateDeadband, h.sink.writes[0].res.State)

	require.NotEmpty(t, h.alerter.alerts)
	assert.Equal(t, alert.AlertTypeStaleTelemetry, h.alerter.alerts[0].Type)
	assert.Equal(t, alert.SeverityWarning, h.alerter.alerts[0].Severity)
}

func TestProcessUnit_FreezeTripRaisesCriticalAlert(t *testing.T) {
	h := newHarness(t, model.EquipmentFanCoil, []Unit{fanCoilUnit("fancoil-1")})
	h.telemetry.snaps["fancoil-1"] = freshSnapshot("fancoil-1", map[string]float64{"Space": 75, "Supply": 38})

	require.NoError(t, h.proc.tick(context.Background()))

	require.NotEmpty(t, h.alerter.alerts)
	got := h.alerter.alerts[0]
	assert.Equal(t, alert.AlertTypeFreezeTrip, got.Type)
	assert.Equal(t, alert.SeverityCritical, got.Severity)
	assert.Equal(t, "fancoil-1", got.EquipmentID)
}

func TestProcessUnit_StagedPlantPersistsStagingState(t *testing.T) {
	unit := Unit{
		Equipment: model.Equipment{ID: "boiler-1", LocationID: "warren", Type: model.EquipmentBoiler},
		Config:    strategy.DefaultConfig(),
	}
	unit.Config.Staging.TotalStages = 2
	unit.Config.Staging.StageUpDelay = 0

	h := newHarness(t, model.EquipmentBoiler, []Unit{unit})
	h.telemetry.snaps["boiler-1"] = freshSnapshot("boiler-1", map[string]float64{"Water_Temp": 120})

	require.NoError(t, h.proc.tick(context.Background()))

	assert.Equal(t, 1, h.stage.upserts)
	st, ok := h.stage.states["boiler-1"]
	require.True(t, ok)
	assert.Equal(t, 1, st.ActiveStages)

	// Stage fields survive the allow-list for a two-stage group.
	cmds := h.sink.writes[0].res.Commands
	_, hasStage1 := cmds["stage1Enabled"]
	assert.True(t, hasStage1)
	_, hasStages := cmds.Number(model.FieldActiveStages)
	assert.True(t, hasStages)
}

func TestProcessUnit_SinkFailureDoesNotBlockPersistence(t *testing.T) {
	h := newHarness(t, model.EquipmentFanCoil, []Unit{fanCoilUnit("fancoil-1")})
	h.telemetry.snaps["fancoil-1"] = freshSnapshot("fancoil-1", map[string]float64{"Space": 68})
	h.sink.err = errors.New("influx down")

	require.NoError(t, h.proc.tick(context.Background()))

	// Controller state still advanced despite the failed publish.
	assert.Len(t, h.ctrl.upserts, 2)
}

func TestAllowedFor_StageFields(t *testing.T) {
	fields := allowedFor(model.EquipmentBoiler, 3)
	assert.Contains(t, fields, "stage1Enabled")
	assert.Contains(t, fields, "stage3Enabled")
	assert.NotContains(t, fields, "stage4Enabled")

	single := allowedFor(model.EquipmentBoiler, 1)
	assert.NotContains(t, single, "stage1Enabled")
}

func TestAllowedFor_FanCoilExcludesPlantFields(t *testing.T) {
	fields := allowedFor(model.EquipmentFanCoil, 1)
	assert.Contains(t, fields, model.FieldHeatingValve)
	assert.NotContains(t, fields, model.FieldFiringRate)
	assert.NotContains(t, fields, model.FieldActiveStages)
}
