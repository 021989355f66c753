// Package influx writes actuator commands and analytics records to an
// InfluxDB 3 instance over the HTTP line-protocol endpoint. One line is
// written per actionable command, tagged with provenance so the command
// writer downstream can attribute every value.
package influx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/AutomataControls/nexus-engine/internal/alert"
	"github.com/AutomataControls/nexus-engine/internal/circuitbreaker"
	"github.com/AutomataControls/nexus-engine/internal/domain/model"
	"github.com/AutomataControls/nexus-engine/internal/metrics"
	"github.com/AutomataControls/nexus-engine/internal/store"
)

// CommandMeasurement receives one record per actuator command.
const CommandMeasurement = "ProcessingEngineCommands"

// Source tags every record this engine writes.
const Source = "nexus-engine"

type Config struct {
	URL      string
	Database string
	Token    string
	Timeout  time.Duration

	// WritesPerSecond throttles the HTTP write path. Zero disables
	// throttling.
	WritesPerSecond float64
	WriteBurst      int

	Breaker circuitbreaker.Config

	// Alerter, when set, is notified each time the breaker trips open.
	Alerter alert.Alerter
}

type Client struct {
	baseURL  string
	database string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *circuitbreaker.Breaker
	alerter  alert.Alerter
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("influx url is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("influx database is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.WritesPerSecond > 0 {
		burst := cfg.WriteBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.WritesPerSecond), burst)
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		database: cfg.Database,
		token:    cfg.Token,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  limiter,
		alerter:  cfg.Alerter,
		logger:   logger.With("component", "influx"),
	}
	cfg.Breaker.OnStateChange = func(from, to circuitbreaker.State) {
		metrics.SinkBreakerState.Set(float64(to))
		c.logger.Warn("sink breaker state change", "from", from.String(), "to", to.String())
		if to == circuitbreaker.StateOpen {
			c.raiseSinkFailure(from)
		}
	}
	c.breaker = circuitbreaker.New(cfg.Breaker)
	return c, nil
}

// raiseSinkFailure reports an opened breaker. The state-change hook runs
// under the breaker lock, so delivery happens off the caller's goroutine.
func (c *Client) raiseSinkFailure(from circuitbreaker.State) {
	if c.alerter == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.alerter.Send(ctx, alert.Alert{
			Type:     alert.AlertTypeSinkFailure,
			Severity: alert.SeverityCritical,
			Title:    "Time-series sink unavailable",
			Message:  "Writes are being shed until the sink recovers",
			Fields: map[string]string{
				"database": c.database,
				"from":     from.String(),
			},
		}); err != nil {
			c.logger.Warn("sink failure alert failed", "error", err)
		}
	}()
}

// WriteResult writes one line per actionable command in the result.
func (c *Client) WriteResult(ctx context.Context, eq model.Equipment, res model.Result) error {
	ts := res.ComputedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	keys := make([]string, 0, len(res.Commands))
	for k := range res.Commands {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		tags := map[string]string{
			"equipment_id":   eq.ID,
			"location_id":    eq.LocationID,
			"equipment_type": string(eq.Type),
			"command_type":   k,
			"source":         Source,
			"status":         "active",
		}
		appendLine(&b, CommandMeasurement, tags, map[string]any{"value": res.Commands[k]}, ts)
	}
	if b.Len() == 0 {
		return nil
	}
	return c.write(ctx, b.String())
}

// WritePoints writes derived analytics records.
func (c *Client) WritePoints(ctx context.Context, points []store.MetricPoint) error {
	var b strings.Builder
	for _, p := range points {
		ts := p.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		appendLine(&b, p.Measurement, p.Tags, p.Fields, ts)
	}
	if b.Len() == 0 {
		return nil
	}
	return c.write(ctx, b.String())
}

func (c *Client) write(ctx context.Context, body string) error {
	if err := c.breaker.Allow(); err != nil {
		return fmt.Errorf("sink write: %w", err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("sink rate limit: %w", err)
		}
	}

	endpoint := c.baseURL + "/api/v3/write_lp?db=" + url.QueryEscape(c.database) + "&precision=millisecond"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(body))
	if err != nil {
		return fmt.Errorf("build write request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("sink write: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.breaker.RecordFailure()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sink write: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	c.breaker.RecordSuccess()
	return nil
}

// appendLine serializes one line-protocol record with sorted tag keys and a
// millisecond timestamp.
func appendLine(b *strings.Builder, measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if len(fields) == 0 {
		return
	}

	b.WriteString(escapeMeasurement(measurement))

	tagKeys := make([]string, 0, len(tags))
	for k := range tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		b.WriteByte(',')
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(escapeTag(tags[k]))
	}

	fieldKeys := make([]string, 0, len(fields))
	for k := range fields {
		fieldKeys = append(fieldKeys, k)
	}
	sort.Strings(fieldKeys)

	b.WriteByte(' ')
	for i, k := range fieldKeys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(formatFieldValue(fields[k]))
	}

	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(ts.UnixMilli(), 10))
	b.WriteByte('\n')
}

func formatFieldValue(v any) string {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 64)
	case int:
		return strconv.FormatFloat(float64(x), 'f', -1, 64)
	case int64:
		return strconv.FormatFloat(float64(x), 'f', -1, 64)
	case string:
		return `"` + strings.ReplaceAll(strings.ReplaceAll(x, `\`, `\\`), `"`, `\"`) + `"`
	default:
		return `"` + fmt.Sprint(x) + `"`
	}
}

func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, ",", `\,`)
	return strings.ReplaceAll(s, " ", `\ `)
}

func escapeTag(s string) string {
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "=", `\=`)
	return strings.ReplaceAll(s, " ", `\ `)
}
