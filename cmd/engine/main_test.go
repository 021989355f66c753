package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AutomataControls/nexus-engine/internal/alert"
	"github.com/AutomataControls/nexus-engine/internal/config"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

func TestBuildGroups(t *testing.T) {
	locations := []config.LocationProfile{
		{
			ID: "warren",
			Equipment: []config.EquipmentProfile{
				{ID: "fancoil-1", Type: "fancoil"},
				{ID: "fancoil-2", Type: "fancoil"},
				{ID: "boiler-1", Type: "boiler"},
			},
		},
		{
			ID: "hopebridge",
			Equipment: []config.EquipmentProfile{
				{ID: "fancoil-1", Type: "fancoil"},
			},
		},
	}

	groups := buildGroups(locations, 30*time.Second, 120*time.Second)
	require.Len(t, groups, 3)

	assert.Equal(t, "warren", groups[0].locationID)
	assert.Equal(t, model.EquipmentFanCoil, groups[0].eqType)
	assert.Len(t, groups[0].units, 2)
	assert.Equal(t, 30*time.Second, groups[0].interval)

	assert.Equal(t, model.EquipmentBoiler, groups[1].eqType)
	assert.Equal(t, 120*time.Second, groups[1].interval)

	assert.Equal(t, "hopebridge", groups[2].locationID)
	assert.Len(t, groups[2].units, 1)
}

func TestBuildGroupsTakesFastestInterval(t *testing.T) {
	locations := []config.LocationProfile{
		{
			ID: "warren",
			Equipment: []config.EquipmentProfile{
				{ID: "geo-1", Type: "geothermal", IntervalSec: 60},
				{ID: "geo-2", Type: "geothermal", IntervalSec: 240},
			},
		},
	}

	groups := buildGroups(locations, 30*time.Second, 120*time.Second)
	require.Len(t, groups, 1)
	assert.Equal(t, 60*time.Second, groups[0].interval)
}

func TestBuildAlerter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	noop := buildAlerter(config.AlertConfig{}, logger)
	assert.IsType(t, &alert.NoopAlerter{}, noop)

	multi := buildAlerter(config.AlertConfig{SlackWebhookURL: "https://hooks.slack.invalid/x", CooldownMin: 5}, logger)
	assert.IsType(t, &alert.MultiAlerter{}, multi)
}
