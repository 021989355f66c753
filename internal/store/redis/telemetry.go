// Package redis reads the latest telemetry snapshots the collector publishes.
// Each equipment instance has one hash at telemetry:<location>:<equipment>
// holding canonical metric keys plus a collected_at timestamp; a per-location
// set at telemetry:<location>:units lists the populated equipment IDs.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

const collectedAtField = "collected_at"

type TelemetrySource struct {
	client *redis.Client
}

func NewTelemetrySource(url string) (*TelemetrySource, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &TelemetrySource{client: client}, nil
}

func (s *TelemetrySource) Close() error {
	return s.client.Close()
}

func telemetryKey(locationID, equipmentID string) string {
	return "telemetry:" + locationID + ":" + equipmentID
}

func unitsKey(locationID string) string {
	return "telemetry:" + locationID + ":units"
}

// Latest returns the newest snapshot for one unit, or nil when the collector
// has never written one.
func (s *TelemetrySource) Latest(ctx context.Context, locationID, equipmentID string) (*model.Snapshot, error) {
	raw, err := s.client.HGetAll(ctx, telemetryKey(locationID, equipmentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read telemetry %s/%s: %w", locationID, equipmentID, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	snap := parseSnapshot(locationID, equipmentID, raw)
	return &snap, nil
}

// LatestForLocation returns snapshots for every unit the collector has
// populated at a location, keyed by equipment ID.
func (s *TelemetrySource) LatestForLocation(ctx context.Context, locationID string) (map[string]model.Snapshot, error) {
	ids, err := s.client.SMembers(ctx, unitsKey(locationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list units %s: %w", locationID, err)
	}

	out := make(map[string]model.Snapshot, len(ids))
	for _, id := range ids {
		snap, err := s.Latest(ctx, locationID, id)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			out[id] = *snap
		}
	}
	return out, nil
}

// parseSnapshot converts hash fields to metrics. Non-numeric fields other
// than collected_at are dropped; collectors occasionally publish string
// status fields alongside readings.
func parseSnapshot(locationID, equipmentID string, raw map[string]string) model.Snapshot {
	snap := model.Snapshot{
		LocationID:  locationID,
		EquipmentID: equipmentID,
		Metrics:     make(map[string]float64, len(raw)),
	}
	for k, v := range raw {
		if k == collectedAtField {
			if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
				snap.CollectedAt = time.UnixMilli(ts)
			}
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			snap.Metrics[k] = f
		}
	}
	return snap
}
