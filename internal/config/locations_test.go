package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

const sampleProfile = `
locations:
  - id: warren
    name: Warren Facility
    equipment:
      - id: fancoil-1
        type: fancoil
        name: Zone 1 Fan Coil
        deadband: 1.5
        oar:
          minOAT: 32
          maxOAT: 73
          minSetpoint: 72
          maxSetpoint: 75
        pid:
          cooling:
            kp: 3.0
            ki: 0.05
      - id: boiler-1
        type: boiler
        setpoint: 145
        staging:
          totalStages: 2
          stageUpDelaySec: 180
  - id: hopebridge
    name: Hopebridge Clinic
    equipment:
      - id: geo-1
        type: geothermal
        intervalSec: 90
        staging:
          totalStages: 4
`

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadLocations_ParsesProfiles(t *testing.T) {
	locs, err := LoadLocations(writeProfile(t, sampleProfile))
	require.NoError(t, err)
	require.Len(t, locs, 2)

	warren := locs[0]
	assert.Equal(t, "warren", warren.ID)
	require.Len(t, warren.Equipment, 2)

	fc := warren.Equipment[0]
	assert.Equal(t, model.EquipmentFanCoil, fc.EquipmentType())

	cfg := fc.StrategyConfig()
	assert.Equal(t, 1.5, cfg.Deadband)
	require.NotNil(t, cfg.OAR)
	assert.Equal(t, 75.0, cfg.OAR.MaxSetpoint)
	assert.Equal(t, 3.0, cfg.PID[model.RoleCooling].Kp)
	assert.Equal(t, 0.05, cfg.PID[model.RoleCooling].Ki)

	boiler := warren.Equipment[1]
	bcfg := boiler.StrategyConfig()
	require.NotNil(t, bcfg.FixedSetpoint)
	assert.Equal(t, 145.0, *bcfg.FixedSetpoint)
	assert.Equal(t, 2, bcfg.Staging.TotalStages)
	assert.Equal(t, 3*time.Minute, bcfg.Staging.StageUpDelay)
}

func TestLoadLocations_UnknownTypeRejected(t *testing.T) {
	_, err := LoadLocations(writeProfile(t, `
locations:
  - id: x
    equipment:
      - id: a
        type: steambundle
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestLoadLocations_DuplicateEquipmentRejected(t *testing.T) {
	_, err := LoadLocations(writeProfile(t, `
locations:
  - id: x
    equipment:
      - id: a
        type: pump
      - id: a
        type: pump
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate equipment id")
}

func TestEquipmentProfile_Interval(t *testing.T) {
	fast := 30 * time.Second
	staged := 2 * time.Minute

	fc := EquipmentProfile{Type: "fancoil"}
	assert.Equal(t, fast, fc.Interval(fast, staged))

	boiler := EquipmentProfile{Type: "boiler"}
	assert.Equal(t, staged, boiler.Interval(fast, staged))

	custom := EquipmentProfile{Type: "geothermal", IntervalSec: 90}
	assert.Equal(t, 90*time.Second, custom.Interval(fast, staged))
}

func TestEquipmentProfile_Model(t *testing.T) {
	p := EquipmentProfile{ID: "ahu-1", Type: "air-handler", Name: "Rooftop AHU"}
	eq := p.Model("warren")
	assert.Equal(t, "ahu-1", eq.ID)
	assert.Equal(t, "warren", eq.LocationID)
	assert.Equal(t, model.EquipmentAirHandler, eq.Type)
	assert.Equal(t, "Rooftop AHU", eq.Name)
}
