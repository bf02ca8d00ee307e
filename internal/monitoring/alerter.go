package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-battle/internal/config"
	"github.com/sells-group/product-battle/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertBuildFailureRate AlertType = "build_failure_rate"
	AlertStoreUnreachable AlertType = "store_unreachable"
	AlertCircuitOpen      AlertType = "circuit_open"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if !snap.StoreOK {
		alerts = append(alerts, Alert{
			Type:     AlertStoreUnreachable,
			Severity: "critical",
			Message:  "Analysis store is unreachable: " + snap.StoreError,
			Details: map[string]any{
				"latency_ms": snap.StoreLatencyMs,
			},
			Timestamp: now,
		})
	}

	minBuilds := int64(a.cfg.MinBuilds)
	if minBuilds <= 0 {
		minBuilds = 5
	}
	if snap.Cache.Builds >= minBuilds && snap.BuildFailureRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertBuildFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Analysis build failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d builds)",
				snap.BuildFailureRate*100, a.cfg.FailureRateThreshold*100,
				snap.Cache.Failures, snap.Cache.Builds,
			),
			Details: map[string]any{
				"failure_rate": snap.BuildFailureRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.Cache.Failures,
				"builds":       snap.Cache.Builds,
			},
			Timestamp: now,
		})
	}

	names := make([]string, 0, len(snap.Breakers))
	for name := range snap.Breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if snap.Breakers[name] != resilience.CircuitOpen.String() {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      AlertCircuitOpen,
			Severity:  "medium",
			Message:   fmt.Sprintf("Circuit for %s is open; requests to it are being skipped", name),
			Details:   map[string]any{"source": name},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
