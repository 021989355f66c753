// Package publisher delivers computed actuator commands to the time-series
// sink. Delivery is best-effort per cycle: a failed write is logged and
// counted, and the next tick publishes a fresh result anyway.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
	"github.com/AutomataControls/nexus-engine/internal/metrics"
	"github.com/AutomataControls/nexus-engine/internal/store"
	"github.com/AutomataControls/nexus-engine/internal/tracing"
)

type Publisher struct {
	sink   store.ResultSink
	logger *slog.Logger
}

func New(sink store.ResultSink, logger *slog.Logger) *Publisher {
	return &Publisher{
		sink:   sink,
		logger: logger.With("component", "publisher"),
	}
}

// Publish writes one equipment's commands to the sink.
func (p *Publisher) Publish(ctx context.Context, eq model.Equipment, res model.Result) error {
	ctx, span := tracing.Tracer("publisher").Start(ctx, "publisher.write",
		otelTrace.WithAttributes(
			attribute.String("location", eq.LocationID),
			attribute.String("equipment_id", eq.ID),
			attribute.String("equipment_type", string(eq.Type)),
		),
	)
	defer span.End()

	start := time.Now()
	err := p.sink.WriteResult(ctx, eq, res)
	metrics.PublishLatency.WithLabelValues(eq.LocationID, string(eq.Type)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.PublishErrors.WithLabelValues(eq.LocationID, string(eq.Type)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("sink write failed",
			"location", eq.LocationID,
			"equipment_id", eq.ID,
			"error", err,
		)
		return fmt.Errorf("publish %s/%s: %w", eq.LocationID, eq.ID, err)
	}

	metrics.PublishesTotal.WithLabelValues(eq.LocationID, string(eq.Type)).Inc()
	span.SetAttributes(attribute.Int("command_count", len(res.Commands)))
	return nil
}
