package strategy

import (
	"testing"
	"time"

	"github.com/AutomataControls/nexus-engine/internal/control/staging"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plantInput(eqType model.EquipmentType, metrics map[string]float64) Input {
	return Input{
		Equipment: model.Equipment{ID: string(eqType) + "-1", LocationID: "hopebridge", Type: eqType},
		Telemetry: model.Snapshot{
			LocationID:  "hopebridge",
			EquipmentID: string(eqType) + "-1",
			Metrics:     metrics,
			CollectedAt: time.Now(),
		},
		Controllers: map[model.ControllerRole]model.ControllerState{},
		Config:      DefaultConfig(),
		Interval:    2 * time.Minute,
		Now:         time.Now(),
	}
}

func TestBoiler_FiresWhenWaterBelowTarget(t *testing.T) {
	in := plantInput(model.EquipmentBoiler, map[string]float64{"Water_Temp": 120})

	res, err := Boiler{}.Compute(in)
	require.NoError(t, err)

	assert.Equal(t, model.ControlStateHeating, res.State)
	firing, _ := res.Commands.Bool(model.FieldFiring)
	pump, _ := res.Commands.Bool(model.FieldPumpEnabled)
	rate, _ := res.Commands.Number(model.FieldFiringRate)
	assert.True(t, firing)
	assert.True(t, pump)
	assert.Greater(t, rate, 0.0)
	sp, _ := res.Commands.Number(model.FieldTemperatureSetpoint)
	assert.Equal(t, 140.0, sp)
}

func TestBoiler_StopsFiringAboveTarget(t *testing.T) {
	in := plantInput(model.EquipmentBoiler, map[string]float64{"Water_Temp": 150})

	res, err := Boiler{}.Compute(in)
	require.NoError(t, err)

	firing, _ := res.Commands.Bool(model.FieldFiring)
	assert.False(t, firing)
}

func TestBoiler_OARDerivedTarget(t *testing.T) {
	in := plantInput(model.EquipmentBoiler, map[string]float64{"Water_Temp": 120, "Outdoor_Air": 0})
	in.Config.OAR = &OARCalibration{MinOAT: 20, MaxOAT: 60, MinSetpoint: 120, MaxSetpoint: 160}

	res, err := Boiler{}.Compute(in)
	require.NoError(t, err)

	sp, _ := res.Commands.Number(model.FieldTemperatureSetpoint)
	assert.Equal(t, 160.0, sp, "cold outdoor air clamps to the hottest reset point")
}

func TestChiller_CoolsWhenWaterAboveTarget(t *testing.T) {
	in := plantInput(model.EquipmentChiller, map[string]float64{"Chilled_Water_Temp": 48})
	in.Config.WaterTempKeys = []string{"Chilled_Water_Temp"}

	res, err := Chiller{}.Compute(in)
	require.NoError(t, err)

	assert.Equal(t, model.ControlStateCooling, res.State)
	enabled, _ := res.Commands.Bool(model.FieldChillerEnabled)
	assert.True(t, enabled)
}

func TestChiller_IdleAtTarget(t *testing.T) {
	in := plantInput(model.EquipmentChiller, map[string]float64{"Water_Temp": 44})

	res, err := Chiller{}.Compute(in)
	require.NoError(t, err)

	assert.Equal(t, model.ControlStateDeadband, res.State)
	enabled, _ := res.Commands.Bool(model.FieldChillerEnabled)
	assert.False(t, enabled)
}

func TestPump_SpeedRisesWithPressureShortfall(t *testing.T) {
	in := plantInput(model.EquipmentPump, map[string]float64{"pressure": 12})

	res, err := Pump{}.Compute(in)
	require.NoError(t, err)

	speed, _ := res.Commands.Number(model.FieldPumpSpeed)
	enabled, _ := res.Commands.Bool(model.FieldPumpEnabled)
	assert.Greater(t, speed, 0.0)
	assert.True(t, enabled)
}

func TestPump_LeadLagGroupPublishesStageFields(t *testing.T) {
	in := plantInput(model.EquipmentPump, map[string]float64{"pressure": 5})
	in.Config.Staging = staging.Config{
		TotalStages:    2,
		StageUpDelay:   0,
		StageDownDelay: 0,
		MinimumRuntime: 0,
	}

	res, err := Pump{}.Compute(in)
	require.NoError(t, err)

	require.NotNil(t, res.Staging)
	active, _ := res.Commands.Number(model.FieldActiveStages)
	assert.GreaterOrEqual(t, active, 1.0)
	_, hasStage1 := res.Commands["stage1Enabled"]
	_, hasStage2 := res.Commands["stage2Enabled"]
	assert.True(t, hasStage1)
	assert.True(t, hasStage2)
}

func TestPump_IsLeadCommandPinsLead(t *testing.T) {
	in := plantInput(model.EquipmentPump, map[string]float64{"pressure": 5})
	in.Config.Staging = staging.Config{
		TotalStages:    2,
		StageUpDelay:   0,
		StageDownDelay: 0,
		MinimumRuntime: 0,
	}
	// Pump 2 leads even though pump 1 has barely run.
	in.Staging = &model.StagingState{
		GroupID:        in.Equipment.ID,
		LeadIndex:      1,
		RuntimeSeconds: []float64{10, 900},
		StartedAt:      make([]time.Time, 2),
	}
	isLead := true
	in.Command = &model.UserCommand{Enabled: true, IsLead: &isLead}

	res, err := Pump{}.Compute(in)
	require.NoError(t, err)

	lead, _ := res.Commands.Number(model.FieldLeadUnit)
	assert.Equal(t, 2.0, lead, "operator-pinned lead must hold against runtime rotation")

	// Dropping the pin lets the least-run pump take the lead.
	in.Command = &model.UserCommand{Enabled: true}
	res, err = Pump{}.Compute(in)
	require.NoError(t, err)
	lead, _ = res.Commands.Number(model.FieldLeadUnit)
	assert.Equal(t, 1.0, lead)
}

func TestGeothermal_StagesWithErrorMagnitude(t *testing.T) {
	in := plantInput(model.EquipmentGeothermal, map[string]float64{"LoopTemp": 51.5})
	in.Config.Staging = staging.Config{TotalStages: 4}

	res, err := Geothermal{}.Compute(in)
	require.NoError(t, err)

	// 6.5 degrees above the 45 degree target is beyond full-load error,
	// but only one stage starts per cycle.
	assert.Equal(t, model.ControlStateCooling, res.State)
	active, _ := res.Commands.Number(model.FieldActiveStages)
	assert.Equal(t, 1.0, active)
	require.NotNil(t, res.Staging)
	assert.Equal(t, 1, res.Staging.ActiveStages)
}

func TestGeothermal_DeadbandHoldsStagesAtZeroLoad(t *testing.T) {
	in := plantInput(model.EquipmentGeothermal, map[string]float64{"LoopTemp": 45.2})
	in.Config.Staging = staging.Config{TotalStages: 4, StageDownDelay: 5 * time.Minute}
	in.Staging = &model.StagingState{
		GroupID:        "geothermal-1",
		ActiveStages:   2,
		RuntimeSeconds: []float64{100, 100, 0, 0},
		StartedAt:      []time.Time{in.Now.Add(-time.Hour), in.Now.Add(-time.Hour), {}, {}},
		LastChangeAt:   in.Now.Add(-time.Minute),
		UpdatedAt:      in.Now.Add(-2 * time.Minute),
	}

	res, err := Geothermal{}.Compute(in)
	require.NoError(t, err)

	// Zero load wants zero stages, but the stage-down delay holds both on.
	assert.Equal(t, model.ControlStateDeadband, res.State)
	active, _ := res.Commands.Number(model.FieldActiveStages)
	assert.Equal(t, 2.0, active)
}

func TestForType_CoversAllArchetypes(t *testing.T) {
	for _, et := range []model.EquipmentType{
		model.EquipmentFanCoil, model.EquipmentAirHandler, model.EquipmentDOAS,
		model.EquipmentBoiler, model.EquipmentChiller, model.EquipmentPump,
		model.EquipmentGeothermal,
	} {
		s, err := ForType(et)
		require.NoError(t, err, "type %s", et)
		assert.Equal(t, et, s.Type())
	}

	_, err := ForType("steambundle")
	assert.Error(t, err)
}

func TestAirHandler_DOASKeepsDamperOpen(t *testing.T) {
	in := plantInput(model.EquipmentDOAS, map[string]float64{"Supply_Air_Temp": 65, "Outdoor_Air": 90})
	fixed := 65.0
	in.Config.FixedSetpoint = &fixed

	res, err := AirHandler{DedicatedOutdoorAir: true}.Compute(in)
	require.NoError(t, err)

	damper, _ := res.Commands.Number(model.FieldOutdoorDamper)
	assert.Equal(t, 100.0, damper, "DOAS damper stays open regardless of the band")
	assert.Equal(t, model.ControlStateDeadband, res.State)
}

func TestAirHandler_SupplyTracking(t *testing.T) {
	in := plantInput(model.EquipmentAirHandler, map[string]float64{"Supply_Air_Temp": 58})
	fixed := 65.0
	in.Config.FixedSetpoint = &fixed
	// A 58 degree supply is above the freeze threshold but below setpoint.
	res, err := AirHandler{}.Compute(in)
	require.NoError(t, err)

	assert.Equal(t, model.ControlStateHeating, res.State)
	heat, _ := res.Commands.Number(model.FieldHeatingValve)
	assert.Greater(t, heat, 0.0)
}
