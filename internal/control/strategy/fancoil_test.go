package strategy

import (
	"testing"
	"time"

	"github.com/AutomataControls/nexus-engine/internal/control/pid"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fanCoilInput(metrics map[string]float64) Input {
	return Input{
		Equipment: model.Equipment{ID: "fancoil-1", LocationID: "warren", Type: model.EquipmentFanCoil},
		Telemetry: model.Snapshot{
			LocationID:  "warren",
			EquipmentID: "fancoil-1",
			Metrics:     metrics,
			CollectedAt: time.Now(),
		},
		Controllers: map[model.ControllerRole]model.ControllerState{},
		Config:      DefaultConfig(),
		Interval:    30 * time.Second,
		Now:         time.Now(),
	}
}

func TestFanCoil_DeadbandZeroesValves(t *testing.T) {
	for _, space := range []float64{71.0, 71.5, 72.0, 72.5, 73.0} {
		in := fanCoilInput(map[string]float64{"Space": space})
		res, err := FanCoil{}.Compute(in)
		require.NoError(t, err)

		assert.Equal(t, model.ControlStateDeadband, res.State, "space=%v", space)
		heat, _ := res.Commands.Number(model.FieldHeatingValve)
		cool, _ := res.Commands.Number(model.FieldCoolingValve)
		assert.Equal(t, 0.0, heat)
		assert.Equal(t, 0.0, cool)
		assert.Equal(t, string(model.FanSpeedLow), res.Commands[model.FieldFanSpeed])
	}
}

func TestFanCoil_HeatingBelowDeadband(t *testing.T) {
	in := fanCoilInput(map[string]float64{"Space": 68})
	res, err := FanCoil{}.Compute(in)
	require.NoError(t, err)

	assert.Equal(t, model.ControlStateHeating, res.State)
	heat, _ := res.Commands.Number(model.FieldHeatingValve)
	cool, _ := res.Commands.Number(model.FieldCoolingValve)
	assert.Greater(t, heat, 0.0)
	assert.Equal(t, 0.0, cool)
	assert.Equal(t, string(model.FanSpeedHigh), res.Commands[model.FieldFanSpeed])
	require.Len(t, res.Controller, 2)
}

func TestFanCoil_CoolingDisabledPIDFallsBackToProportional(t *testing.T) {
	in := fanCoilInput(map[string]float64{"Space": 75})
	in.Config.PID = map[model.ControllerRole]pid.Params{
		model.RoleCooling: {Enabled: false},
	}

	res, err := FanCoil{}.Compute(in)
	require.NoError(t, err)

	assert.Equal(t, model.ControlStateCooling, res.State)
	cool, _ := res.Commands.Number(model.FieldCoolingValve)
	assert.Equal(t, 30.0, cool, "clamp((75-72)*10, 0, 100)")
}

func TestFanCoil_UserSetpointOverridesOAR(t *testing.T) {
	in := fanCoilInput(map[string]float64{"Space": 70, "Outdoor_Air": 20})
	in.Config.OAR = &OARCalibration{MinOAT: 32, MaxOAT: 73, MinSetpoint: 72, MaxSetpoint: 75}
	sp := 68.0
	in.Command = &model.UserCommand{Enabled: true, Setpoint: &sp}

	res, err := FanCoil{}.Compute(in)
	require.NoError(t, err)

	got, _ := res.Commands.Number(model.FieldTemperatureSetpoint)
	assert.Equal(t, 68.0, got)
}

func TestFanCoil_FreezeTripForcesHeatAndFan(t *testing.T) {
	in := fanCoilInput(map[string]float64{"Space": 75, "Supply": 38})

	res, err := FanCoil{}.Compute(in)
	require.NoError(t, err)

	assert.Equal(t, model.ControlStateSafetyTrip, res.State)
	heat, _ := res.Commands.Number(model.FieldHeatingValve)
	cool, _ := res.Commands.Number(model.FieldCoolingValve)
	fan, _ := res.Commands.Bool(model.FieldFanEnabled)
	assert.Equal(t, 100.0, heat)
	assert.Equal(t, 0.0, cool)
	assert.True(t, fan, "fan must keep running during a freeze event")
}

func TestFanCoil_HighLimitTripForcesCooling(t *testing.T) {
	in := fanCoilInput(map[string]float64{"Space": 70, "Supply": 135})

	res, err := FanCoil{}.Compute(in)
	require.NoError(t, err)

	assert.Equal(t, model.ControlStateSafetyTrip, res.State)
	heat, _ := res.Commands.Number(model.FieldHeatingValve)
	cool, _ := res.Commands.Number(model.FieldCoolingValve)
	assert.Equal(t, 0.0, heat)
	assert.Equal(t, 100.0, cool)
}

func TestFanCoil_OperatorDisableShutsUnitOff(t *testing.T) {
	in := fanCoilInput(map[string]float64{"Space": 80})
	in.Command = &model.UserCommand{Enabled: false}

	res, err := FanCoil{}.Compute(in)
	require.NoError(t, err)

	assert.Equal(t, model.ControlStateOff, res.State)
	enabled, _ := res.Commands.Bool(model.FieldUnitEnable)
	assert.False(t, enabled)
}

func TestFanCoil_MissingTelemetryUsesDefaults(t *testing.T) {
	in := fanCoilInput(nil)
	res, err := FanCoil{}.Compute(in)
	require.NoError(t, err)
	// Default space reading equals the default setpoint, so the unit idles
	// in deadband rather than erroring.
	assert.Equal(t, model.ControlStateDeadband, res.State)
}

func TestFanCoil_DamperBand(t *testing.T) {
	cases := []struct {
		oat    float64
		damper float64
	}{
		{35, 0},   // below low bound
		{40, 0},   // at low bound stays closed
		{41, 100}, // inside band
		{75, 100}, // at high bound stays open
		{80, 0},   // above high bound
	}
	for _, tc := range cases {
		in := fanCoilInput(map[string]float64{"Space": 72, "Outdoor_Air": tc.oat})
		res, err := FanCoil{}.Compute(in)
		require.NoError(t, err)
		got, _ := res.Commands.Number(model.FieldOutdoorDamper)
		assert.Equal(t, tc.damper, got, "oat=%v", tc.oat)
	}
}

type panicStrategy struct{}

func (panicStrategy) Type() model.EquipmentType { return model.EquipmentFanCoil }
func (panicStrategy) Compute(Input) (model.Result, error) {
	panic("exploded mid-cycle")
}

func TestRun_PanicDegradesToSafeOff(t *testing.T) {
	res, err := Run(panicStrategy{}, fanCoilInput(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	assert.Equal(t, model.ControlStateOff, res.State)
	enabled, _ := res.Commands.Bool(model.FieldUnitEnable)
	fan, _ := res.Commands.Bool(model.FieldFanEnabled)
	heat, _ := res.Commands.Number(model.FieldHeatingValve)
	assert.False(t, enabled)
	assert.False(t, fan)
	assert.Equal(t, 0.0, heat)
}
