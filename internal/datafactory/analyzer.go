// Package datafactory is the read-side analytics layer. It periodically
// derives per-equipment KPIs from the latest telemetry, writes them to the
// time-series store, and raises threshold alerts. It never touches actuator
// commands; a broken analytics run has no effect on control.
package datafactory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/AutomataControls/nexus-engine/internal/alert"
	"github.com/AutomataControls/nexus-engine/internal/control/staging"
	"github.com/AutomataControls/nexus-engine/internal/control/strategy"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
	"github.com/AutomataControls/nexus-engine/internal/metrics"
	"github.com/AutomataControls/nexus-engine/internal/store"
	"github.com/AutomataControls/nexus-engine/internal/tracing"
)

// Unit is one equipment instance under analysis with its resolved tuning.
type Unit struct {
	Equipment model.Equipment
	Config    strategy.Config
}

// Analyzer aggregates KPIs for one location.
type Analyzer struct {
	locationID string
	units      []Unit
	interval   time.Duration

	telemetry store.TelemetrySource
	stageRepo store.StagingStateRepository
	sink      store.MetricSink
	alerter   alert.Alerter
	logger    *slog.Logger
}

func New(
	locationID string,
	units []Unit,
	interval time.Duration,
	telemetry store.TelemetrySource,
	stageRepo store.StagingStateRepository,
	sink store.MetricSink,
	alerter alert.Alerter,
	logger *slog.Logger,
) *Analyzer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Analyzer{
		locationID: locationID,
		units:      units,
		interval:   interval,
		telemetry:  telemetry,
		stageRepo:  stageRepo,
		sink:       sink,
		alerter:    alerter,
		logger: logger.With(
			"component", "datafactory",
			"location", locationID,
		),
	}
}

// Run aggregates until ctx is cancelled. Run errors are absorbed; analytics
// must never interfere with control.
func (a *Analyzer) Run(ctx context.Context) error {
	a.logger.Info("analyzer started", "units", len(a.units), "interval", a.interval)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	runOnce := func() {
		metrics.AnalyticsRunsTotal.WithLabelValues(a.locationID).Inc()
		if err := a.run(ctx); err != nil {
			metrics.AnalyticsRunErrors.WithLabelValues(a.locationID).Inc()
			a.logger.Error("analytics run failed", "error", err)
		}
	}

	runOnce()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("analyzer stopping")
			return ctx.Err()
		case <-ticker.C:
			runOnce()
		}
	}
}

func (a *Analyzer) run(ctx context.Context) error {
	ctx, span := tracing.Tracer("datafactory").Start(ctx, "datafactory.run",
		otelTrace.WithAttributes(attribute.String("location", a.locationID)),
	)
	defer span.End()

	snaps, err := a.telemetry.LatestForLocation(ctx, a.locationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("telemetry for %s: %w", a.locationID, err)
	}

	now := time.Now()
	var points []store.MetricPoint
	for _, unit := range a.units {
		snap, ok := snaps[unit.Equipment.ID]
		if !ok {
			continue
		}
		points = append(points, a.analyzeUnit(ctx, unit, snap, now)...)

		if unit.Config.Staging.TotalStages > 1 {
			pt, err := a.analyzeStaging(ctx, unit, now)
			if err != nil {
				a.logger.Warn("staging analysis skipped", "equipment_id", unit.Equipment.ID, "error", err)
				continue
			}
			if pt != nil {
				points = append(points, *pt)
			}
		}
	}

	if len(points) == 0 {
		return nil
	}
	if err := a.sink.WritePoints(ctx, points); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("write analytics for %s: %w", a.locationID, err)
	}
	span.SetAttributes(attribute.Int("point_count", len(points)))
	return nil
}

// analyzeUnit derives one equipment's KPI point plus its maintenance
// assessment, raising any threshold breaches along the way.
func (a *Analyzer) analyzeUnit(ctx context.Context, unit Unit, snap model.Snapshot, now time.Time) []store.MetricPoint {
	eq := unit.Equipment

	powerKW := EstimatePower(eq.Type, snap)

	fields := map[string]any{
		"power_kw":         powerKW,
		"power_efficiency": PowerEfficiency(eq.Type, powerKW),
	}

	temp, haveTemp := controlledTemperature(unit, snap)
	efficiency := 0.0
	haveEff := false
	if haveTemp {
		fields["temperature"] = temp
		if span, rated := approachSpans[eq.Type]; rated {
			target := strategy.TargetSetpoint(eq.Type, unit.Config, snap)
			efficiency = ApproachEfficiency(target, temp, span)
			haveEff = true
			fields["efficiency"] = efficiency
			fields["target_setpoint"] = target
		}
	}

	for _, b := range evaluate(eq.Type, temp, haveTemp, efficiency) {
		if b.axis == "efficiency" && !haveEff {
			continue
		}
		a.raiseBreach(ctx, eq, b)
	}

	health := AssessHealth(eq.Type, temp, haveTemp, efficiency, haveEff)
	if health.FailureProbability >= 35 {
		a.raiseMaintenanceDue(ctx, eq, health)
	}

	kpi := store.MetricPoint{
		Measurement: "EquipmentAnalytics",
		Tags: map[string]string{
			"location_id":    eq.LocationID,
			"equipment_id":   eq.ID,
			"equipment_type": string(eq.Type),
			"source":         "nexus-engine",
		},
		Fields:    fields,
		Timestamp: now,
	}
	maintenance := store.MetricPoint{
		Measurement: "MaintenanceAnalytics",
		Tags: map[string]string{
			"location_id":    eq.LocationID,
			"equipment_id":   eq.ID,
			"equipment_type": string(eq.Type),
			"health_status":  health.Status,
			"priority":       health.Priority,
			"source":         "nexus-engine",
		},
		Fields: map[string]any{
			"health_score":         health.Score,
			"temperature_health":   health.TemperatureHealth,
			"efficiency_health":    health.EfficiencyHealth,
			"failure_probability":  health.FailureProbability,
			"time_to_failure_days": health.TimeToFailureDays,
			"recommendation":       health.Recommendation,
		},
		Timestamp: now,
	}
	return []store.MetricPoint{kpi, maintenance}
}

// raiseMaintenanceDue pages a unit whose failure outlook has reached high or
// critical priority.
func (a *Analyzer) raiseMaintenanceDue(ctx context.Context, eq model.Equipment, h HealthReport) {
	severity := alert.SeverityWarning
	if h.Priority == "critical" {
		severity = alert.SeverityCritical
	}
	a.raiseAlert(ctx, alert.Alert{
		Type:        alert.AlertTypeMaintenanceDue,
		Severity:    severity,
		LocationID:  eq.LocationID,
		EquipmentID: eq.ID,
		Title:       "Maintenance required",
		Message:     h.Recommendation,
		Fields: map[string]string{
			"health_score":        strconv.FormatFloat(h.Score, 'f', 1, 64),
			"failure_probability": strconv.FormatFloat(h.FailureProbability, 'f', 0, 64),
		},
	})
}

// analyzeStaging grades a group's runtime balance and flags poor rotation.
func (a *Analyzer) analyzeStaging(ctx context.Context, unit Unit, now time.Time) (*store.MetricPoint, error) {
	eq := unit.Equipment
	state, err := a.stageRepo.Get(ctx, eq.ID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	balance := staging.Classify(state.RuntimeSeconds)
	if balance == staging.BalancePoor {
		a.raiseAlert(ctx, alert.Alert{
			Type:        alert.AlertTypeThresholdBreach,
			Severity:    alert.SeverityWarning,
			LocationID:  eq.LocationID,
			EquipmentID: eq.ID,
			Title:       "Runtime balance poor",
			Message:     "Lead-lag rotation is not spreading runtime evenly across the group",
			Fields:      map[string]string{"active_stages": strconv.Itoa(state.ActiveStages)},
		})
	}

	var total float64
	for _, r := range state.RuntimeSeconds {
		total += r
	}
	return &store.MetricPoint{
		Measurement: "StagingAnalytics",
		Tags: map[string]string{
			"location_id":    eq.LocationID,
			"equipment_id":   eq.ID,
			"equipment_type": string(eq.Type),
			"source":         "nexus-engine",
		},
		Fields: map[string]any{
			"active_stages":         state.ActiveStages,
			"lead_unit":             state.LeadIndex + 1,
			"balance":               string(balance),
			"total_runtime_seconds": total,
		},
		Timestamp: now,
	}, nil
}

func (a *Analyzer) raiseBreach(ctx context.Context, eq model.Equipment, b breach) {
	al := alert.Alert{
		Type:        alert.AlertTypeThresholdBreach,
		Severity:    alert.SeverityWarning,
		LocationID:  eq.LocationID,
		EquipmentID: eq.ID,
		Fields: map[string]string{
			"value": strconv.FormatFloat(b.value, 'f', 1, 64),
			"limit": strconv.FormatFloat(b.limit, 'f', 1, 64),
		},
	}
	switch {
	case b.axis == "temperature" && b.severity == "critical":
		al.Severity = alert.SeverityCritical
		al.Title = "Critical temperature"
		al.Message = "Controlled temperature is at or above the critical limit"
	case b.axis == "temperature":
		al.Title = "High temperature"
		al.Message = "Controlled temperature is at or above the high limit"
	default:
		al.Title = "Low efficiency"
		al.Message = "Unit efficiency has fallen below its rating"
	}
	a.raiseAlert(ctx, al)
}

func (a *Analyzer) raiseAlert(ctx context.Context, al alert.Alert) {
	if err := a.alerter.Send(ctx, al); err != nil {
		a.logger.Warn("alert delivery failed", "equipment_id", al.EquipmentID, "error", err)
	}
}

// approachSpans: degrees of approach error at which a unit's efficiency
// rating reaches zero. Pumps are pressure-controlled and unrated.
var approachSpans = map[model.EquipmentType]float64{
	model.EquipmentFanCoil:    20,
	model.EquipmentAirHandler: 20,
	model.EquipmentDOAS:       20,
	model.EquipmentBoiler:     40,
	model.EquipmentChiller:    40,
	model.EquipmentGeothermal: 40,
}

// ApproachEfficiency rates how closely a controlled temperature approaches
// its target: 100 on target, falling linearly to 0 at span degrees away.
func ApproachEfficiency(target, actual, span float64) float64 {
	if span <= 0 {
		return 0
	}
	dev := actual - target
	if dev < 0 {
		dev = -dev
	}
	return round(clamp(100*(1-dev/span), 0, 100), 1)
}

// controlledTemperature picks the reading each archetype is judged on.
func controlledTemperature(unit Unit, snap model.Snapshot) (float64, bool) {
	cfg := unit.Config
	var keys []string
	switch unit.Equipment.Type {
	case model.EquipmentBoiler, model.EquipmentChiller, model.EquipmentGeothermal, model.EquipmentPump:
		keys = cfg.WaterTempKeys
	case model.EquipmentAirHandler, model.EquipmentDOAS:
		keys = cfg.SupplyTempKeys
	default:
		keys = cfg.SpaceTempKeys
	}
	for _, key := range keys {
		if v, ok := snap.Metric(key); ok {
			return v, true
		}
	}
	return 0, false
}
