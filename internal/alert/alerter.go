// Package alert delivers operational alerts raised by the control loops and
// the analytics layer. Delivery fans out to every configured channel;
// duplicate conditions are suppressed per (type, location, equipment) for a
// cooldown window so a tripped interlock does not page once per tick.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AutomataControls/nexus-engine/internal/metrics"
)

// AlertType categorizes the condition being reported.
type AlertType string

const (
	AlertTypeFreezeTrip      AlertType = "FREEZE_TRIP"
	AlertTypeHighLimitTrip   AlertType = "HIGH_LIMIT_TRIP"
	AlertTypeThresholdBreach AlertType = "THRESHOLD_BREACH"
	AlertTypeStaleTelemetry  AlertType = "STALE_TELEMETRY"
	AlertTypeSinkFailure     AlertType = "SINK_FAILURE"
	AlertTypeMaintenanceDue  AlertType = "MAINTENANCE_DUE"
)

// Severity is the operator-facing urgency.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

// Alert represents a single alert event.
type Alert struct {
	ID          uuid.UUID
	Type        AlertType
	Severity    Severity
	LocationID  string
	EquipmentID string
	Title       string
	Message     string
	Fields      map[string]string
}

// Alerter is the interface for sending alerts.
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// MultiAlerter fans out alerts to multiple channels with cooldown dedup.
type MultiAlerter struct {
	alerters []Alerter
	cooldown time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewMultiAlerter(cooldown time.Duration, logger *slog.Logger, alerters ...Alerter) *MultiAlerter {
	return &MultiAlerter{
		alerters: alerters,
		cooldown: cooldown,
		logger:   logger.With("component", "alerter"),
		lastSent: make(map[string]time.Time),
	}
}

// cooldownKey dedups per condition and unit, not per message, so a boiler
// flapping around its high-temp threshold sends once per window.
func cooldownKey(a Alert) string {
	return fmt.Sprintf("%s:%s:%s", a.Type, a.LocationID, a.EquipmentID)
}

// Send dispatches the alert to all channels, respecting cooldown. The first
// channel error is returned after every channel has been attempted.
func (m *MultiAlerter) Send(ctx context.Context, alert Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	key := cooldownKey(alert)

	m.mu.Lock()
	if last, ok := m.lastSent[key]; ok && time.Since(last) < m.cooldown {
		m.mu.Unlock()
		m.logger.Debug("alert suppressed by cooldown", "key", key)
		metrics.AlertsSuppressedTotal.WithLabelValues(string(alert.Type)).Inc()
		return nil
	}
	m.lastSent[key] = time.Now()
	m.mu.Unlock()

	var firstErr error
	for _, a := range m.alerters {
		if err := a.Send(ctx, alert); err != nil {
			m.logger.Warn("alert send failed",
				"channel", alerterName(a),
				"type", alert.Type,
				"error", err,
			)
			metrics.AlertSendErrors.WithLabelValues(alerterName(a)).Inc()
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr == nil {
		metrics.AlertsSentTotal.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()
	}
	return firstErr
}

func alerterName(a Alerter) string {
	switch a.(type) {
	case *SlackAlerter:
		return "slack"
	case *WebhookAlerter:
		return "webhook"
	default:
		return "unknown"
	}
}

// SlackAlerter sends alerts to a Slack webhook.
type SlackAlerter struct {
	webhookURL string
	client     *http.Client
}

func NewSlackAlerter(webhookURL string) *SlackAlerter {
	return &SlackAlerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SlackAlerter) Send(ctx context.Context, alert Alert) error {
	emoji := ":warning:"
	switch alert.Type {
	case AlertTypeFreezeTrip:
		emoji = ":snowflake:"
	case AlertTypeHighLimitTrip:
		emoji = ":fire:"
	case AlertTypeSinkFailure:
		emoji = ":rotating_light:"
	case AlertTypeMaintenanceDue:
		emoji = ":wrench:"
	}

	text := fmt.Sprintf("%s *[%s/%s]* %s · %s: %s\n%s",
		emoji, alert.Severity, alert.Type, alert.LocationID, alert.EquipmentID, alert.Title, alert.Message)

	if len(alert.Fields) > 0 {
		text += "\n"
		for k, v := range alert.Fields {
			text += fmt.Sprintf("- *%s*: %s\n", k, v)
		}
	}

	payload := map[string]string{"text": text}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

// WebhookAlerter sends alerts to a generic HTTP webhook.
type WebhookAlerter struct {
	url    string
	client *http.Client
}

func NewWebhookAlerter(url string) *WebhookAlerter {
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookAlerter) Send(ctx context.Context, alert Alert) error {
	payload := map[string]any{
		"id":           alert.ID.String(),
		"type":         string(alert.Type),
		"severity":     string(alert.Severity),
		"location_id":  alert.LocationID,
		"equipment_id": alert.EquipmentID,
		"title":        alert.Title,
		"message":      alert.Message,
		"fields":       alert.Fields,
		"time":         time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NoopAlerter does nothing. Used when no alert channels are configured.
type NoopAlerter struct{}

func (n *NoopAlerter) Send(_ context.Context, _ Alert) error { return nil }
