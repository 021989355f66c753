package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters and histograms, partitioned by location + equipment_type.

var (
	// Processor
	ProcessorTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "processor",
		Name:      "ticks_total",
		Help:      "Total processor ticks",
	}, []string{"location", "equipment_type"})

	ProcessorTickErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "processor",
		Name:      "tick_errors_total",
		Help:      "Total processor tick errors",
	}, []string{"location", "equipment_type"})

	ProcessorTickLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nexus",
		Subsystem: "processor",
		Name:      "tick_duration_seconds",
		Help:      "Processor tick duration (fetch, compute, publish, persist)",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"location", "equipment_type"})

	ProcessorStaleTelemetry = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "processor",
		Name:      "stale_telemetry_total",
		Help:      "Ticks that ran against telemetry older than the staleness bound",
	}, []string{"location", "equipment_type"})

	// Control
	SafetyTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "control",
		Name:      "safety_trips_total",
		Help:      "Safety interlock activations",
	}, []string{"location", "equipment_type", "interlock"})

	StagingChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "control",
		Name:      "staging_changes_total",
		Help:      "Stage-up and stage-down transitions",
	}, []string{"location", "equipment_type"})

	// Publisher
	PublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "publisher",
		Name:      "writes_total",
		Help:      "Total command records written to the sink",
	}, []string{"location", "equipment_type"})

	PublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "publisher",
		Name:      "write_errors_total",
		Help:      "Total failed sink writes",
	}, []string{"location", "equipment_type"})

	PublishLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nexus",
		Subsystem: "publisher",
		Name:      "write_duration_seconds",
		Help:      "Sink write duration",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"location", "equipment_type"})

	// Datafactory
	AnalyticsRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "datafactory",
		Name:      "runs_total",
		Help:      "Total analytics aggregation runs",
	}, []string{"location"})

	AnalyticsRunErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "datafactory",
		Name:      "run_errors_total",
		Help:      "Total failed analytics aggregation runs",
	}, []string{"location"})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "alerts",
		Name:      "sent_total",
		Help:      "Alerts delivered, by type and severity",
	}, []string{"type", "severity"})

	AlertsSuppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "alerts",
		Name:      "suppressed_total",
		Help:      "Alerts suppressed by the cooldown window",
	}, []string{"type"})

	AlertSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "alerts",
		Name:      "send_errors_total",
		Help:      "Alert delivery failures, by channel",
	}, []string{"channel"})

	// Command cache
	CommandCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "cache",
		Name:      "command_hits_total",
		Help:      "Command cache hits",
	})

	CommandCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "cache",
		Name:      "command_misses_total",
		Help:      "Command cache misses",
	})

	// Sink breaker
	SinkBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nexus",
		Subsystem: "sink",
		Name:      "breaker_state",
		Help:      "Sink circuit breaker state (0 closed, 1 open, 2 half-open)",
	})
)
