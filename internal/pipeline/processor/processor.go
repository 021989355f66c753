// Package processor runs the control loops. One Processor owns every unit of
// one equipment type at one location and ticks them on a fixed interval.
// Ticks run synchronously inside the loop, so no two cycles for the same
// unit are ever in flight at once.
package processor

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
	"github.com/AutomataControls/nexus-engine/internal/cache"
	"github.com/AutomataControls/nexus-engine/internal/control/strategy"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
	"github.com/AutomataControls/nexus-engine/internal/metrics"
	"github.com/AutomataControls/nexus-engine/internal/pipeline/publisher"
	"github.com/AutomataControls/nexus-engine/internal/store"
	"github.com/AutomataControls/nexus-engine/internal/tracing"
)

// Unit is one equipment instance under this processor with its resolved
// tuning.
type Unit struct {
	Equipment model.Equipment
	Config    strategy.Config
}

// Processor drives all units of one (location, equipment type) pair.
type Processor struct {
	locationID string
	eqType     model.EquipmentType
	units      []Unit

	interval        time.Duration
	tickTimeout     time.Duration
	telemetryMaxAge time.Duration

	telemetry store.TelemetrySource
	commands  store.CommandRepository
	ctrlRepo  store.ControllerStateRepository
	stageRepo store.StagingStateRepository
	publisher *publisher.Publisher
	cmdCache  *cache.CommandCache
	alerter   alert.Alerter
	logger    *slog.Logger
}

type Config struct {
	LocationID      string
	EquipmentType   model.EquipmentType
	Units           []Unit
	Interval        time.Duration
	TickTimeout     time.Duration
	TelemetryMaxAge time.Duration
}

func New(
	cfg Config,
	telemetry store.TelemetrySource,
	commands store.CommandRepository,
	ctrlRepo store.ControllerStateRepository,
	stageRepo store.StagingStateRepository,
	pub *publisher.Publisher,
	cmdCache *cache.CommandCache,
	alerter alert.Alerter,
	logger *slog.Logger,
) *Processor {
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = 25 * time.Second
	}
	if cfg.TelemetryMaxAge <= 0 {
		cfg.TelemetryMaxAge = 5 * time.Minute
	}
	return &Processor{
		locationID:      cfg.LocationID,
		eqType:          cfg.EquipmentType,
		units:           cfg.Units,
		interval:        cfg.Interval,
		tickTimeout:     cfg.TickTimeout,
		telemetryMaxAge: cfg.TelemetryMaxAge,
		telemetry:       telemetry,
		commands:        commands,
		ctrlRepo:        ctrlRepo,
		stageRepo:       stageRepo,
		publisher:       pub,
		cmdCache:        cmdCache,
		alerter:         alerter,
		logger: logger.With(
			"component", "processor",
			"location", cfg.LocationID,
			"equipment_type", string(cfg.EquipmentType),
		),
	}
}

// Run ticks until ctx is cancelled. Tick errors are absorbed: a failing
// boiler loop must never take down the fan coils next to it.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("processor started", "units", len(p.units), "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	runTick := func() {
		metrics.ProcessorTicksTotal.WithLabelValues(p.locationID, string(p.eqType)).Inc()
		start := time.Now()
		if err := p.tick(ctx); err != nil {
			metrics.ProcessorTickErrors.WithLabelValues(p.locationID, string(p.eqType)).Inc()
			p.logger.Error("tick failed", "error", err)
		}
		metrics.ProcessorTickLatency.WithLabelValues(p.locationID, string(p.eqType)).Observe(time.Since(start).Seconds())
	}

	// First tick immediately so a restart repositions actuators without
	// waiting a full interval.
	runTick()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("processor stopping")
			return ctx.Err()
		case <-ticker.C:
			runTick()
		}
	}
}

func (p *Processor) tick(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.tickTimeout)
	defer cancel()

	ctx, span := tracing.Tracer("processor").Start(ctx, "processor.tick",
		otelTrace.WithAttributes(
			attribute.String("location", p.locationID),
			attribute.String("equipment_type", string(p.eqType)),
		),
	)
	defer span.End()

	now := time.Now()
	var firstErr error
	for _, unit := range p.units {
		if err := p.processUnit(ctx, unit, now); err != nil {
			span.RecordError(err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		span.SetStatus(codes.Error, firstErr.Error())
	}
	return firstErr
}

func (p *Processor) processUnit(ctx context.Context, unit Unit, now time.Time) error {
	eq := unit.Equipment

	snap, err := p.telemetry.Latest(ctx, eq.LocationID, eq.ID)
	if err != nil {
		return fmt.Errorf("telemetry %s: %w", eq.ID, err)
	}
	telemetry := model.Snapshot{LocationID: eq.LocationID, EquipmentID: eq.ID}
	if snap != nil {
		telemetry = *snap
	}
	if snap == nil || telemetry.Age(now) > p.telemetryMaxAge {
		// Stale readings still drive the cycle; the resolver falls back
		// to defaults per sensor, and the strategy fails toward deadband.
		metrics.ProcessorStaleTelemetry.WithLabelValues(p.locationID, string(p.eqType)).Inc()
		p.raiseStaleTelemetry(ctx, eq, telemetry, now)
	}

	cmd := p.latestCommand(ctx, eq)

	controllers, err := p.ctrlRepo.GetAll(ctx, eq.ID)
	if err != nil {
		return fmt.Errorf("controller state %s: %w", eq.ID, err)
	}

	var staging *model.StagingState
	if unit.Config.Staging.TotalStages > 1 {
		staging, err = p.stageRepo.Get(ctx, eq.ID)
		if err != nil {
			return fmt.Errorf("staging state %s: %w", eq.ID, err)
		}
	}

	strat, err := strategy.ForType(eq.Type)
	if err != nil {
		return fmt.Errorf("strategy %s: %w", eq.ID, err)
	}

	in := strategy.Input{
		Equipment:   eq,
		Telemetry:   telemetry,
		Command:     cmd,
		Controllers: controllers,
		Staging:     staging,
		Config:      unit.Config,
		Interval:    p.interval,
		Now:         now,
	}

	res, err := strategy.Run(strat, in)
	if err != nil {
		// The fail-safe result still gets published so actuators land in a
		// known state.
		p.logger.Error("strategy degraded to safe-off", "equipment_id", eq.ID, "error", err)
	}

	if res.State == model.ControlStateSafetyTrip {
		p.raiseSafetyTrip(ctx, eq, res, telemetry)
	}
	if res.Staging != nil {
		prior := 0
		if staging != nil {
			prior = staging.ActiveStages
		}
		if res.Staging.ActiveStages != prior {
			metrics.StagingChangesTotal.WithLabelValues(p.locationID, string(p.eqType)).Inc()
		}
	}

	res.Commands = res.Commands.Filter(allowedFor(eq.Type, unit.Config.Staging.TotalStages))

	if pubErr := p.publisher.Publish(ctx, eq, res); pubErr != nil {
		// Logged and counted inside the publisher; next tick is the retry.
		_ = pubErr
	}

	for i := range res.Controller {
		st := res.Controller[i]
		st.UpdatedAt = now
		if err := p.ctrlRepo.Upsert(ctx, &st); err != nil {
			return fmt.Errorf("persist controller state %s/%s: %w", eq.ID, st.Role, err)
		}
	}
	if res.Staging != nil {
		if err := p.stageRepo.Upsert(ctx, res.Staging); err != nil {
			return fmt.Errorf("persist staging state %s: %w", eq.ID, err)
		}
	}
	return nil
}

// latestCommand reads the operator command, falling back to the cache when
// the command store is unreachable.
func (p *Processor) latestCommand(ctx context.Context, eq model.Equipment) *model.UserCommand {
	cmd, err := p.commands.Latest(ctx, eq.LocationID, eq.ID)
	if err != nil {
		if cached, ok := p.cmdCache.Get(eq.LocationID, eq.ID); ok {
			p.logger.Warn("command store unavailable, using cached command",
				"equipment_id", eq.ID, "error", err)
			return cached
		}
		p.logger.Warn("command store unavailable, no cached command",
			"equipment_id", eq.ID, "error", err)
		return nil
	}
	p.cmdCache.Put(eq.LocationID, eq.ID, cmd)
	return cmd
}

func (p *Processor) raiseSafetyTrip(ctx context.Context, eq model.Equipment, res model.Result, telemetry model.Snapshot) {
	interlock := "high_limit"
	alertType := alert.AlertTypeHighLimitTrip
	title := "High temperature limit active"
	if heat, _ := res.Commands.Number(model.FieldHeatingValve); heat >= 100 {
		interlock = "freeze"
		alertType = alert.AlertTypeFreezeTrip
		title = "Freeze protection active"
	}
	metrics.SafetyTripsTotal.WithLabelValues(p.locationID, string(p.eqType), interlock).Inc()

	fields := map[string]string{}
	for key, v := range telemetry.Metrics {
		fields[key] = strconv.FormatFloat(v, 'f', 1, 64)
	}
	if err := p.alerter.Send(ctx, alert.Alert{
		Type:        alertType,
		Severity:    alert.SeverityCritical,
		LocationID:  eq.LocationID,
		EquipmentID: eq.ID,
		Title:       title,
		Message:     "Safety interlock bypassed normal control this cycle",
		Fields:      fields,
	}); err != nil {
		p.logger.Warn("safety trip alert failed", "equipment_id", eq.ID, "error", err)
	}
}

func (p *Processor) raiseStaleTelemetry(ctx context.Context, eq model.Equipment, telemetry model.Snapshot, now time.Time) {
	age := "never reported"
	if !telemetry.CollectedAt.IsZero() {
		age = telemetry.Age(now).Truncate(time.Second).String()
	}
	if err := p.alerter.Send(ctx, alert.Alert{
		Type:        alert.AlertTypeStaleTelemetry,
		Severity:    alert.SeverityWarning,
		LocationID:  eq.LocationID,
		EquipmentID: eq.ID,
		Title:       "Telemetry stale",
		Message:     "Control is running on sensor defaults",
		Fields:      map[string]string{"age": age},
	}); err != nil {
		p.logger.Warn("stale telemetry alert failed", "equipment_id", eq.ID, "error", err)
	}
}
