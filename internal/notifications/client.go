// Package notifications pushes ntfy alerts when a refresh discovers newly
// appended incident rows.
package notifications

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"granel_dashboard/internal/config"
	"granel_dashboard/internal/records"
	"granel_dashboard/internal/retry"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	enabled    bool
	retryCfg   retry.Config
}

func NewClient(baseURL, topic string, enabled bool) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		topic:      topic,
		enabled:    enabled,
		retryCfg:   config.DefaultResilience.Notify,
	}
}

// NotifyNewIncidents sends one batched alert for the given incidents. The
// send happens in the background; a refresh never blocks on notification
// delivery.
func (c *Client) NotifyNewIncidents(ctx context.Context, incidents []records.Incident) {
	if !c.enabled || len(incidents) == 0 {
		return
	}

	message := formatMessage(incidents)
	log.Info().
		Int("incidents", len(incidents)).
		Msg("Sending new-incident notification")

	go func() {
		_, err := retry.WithRetry(ctx, c.retryCfg, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.send(ctx, message)
		})
		if err != nil {
			log.Warn().Err(err).Msg("Incident notification failed")
		}
	}()
}

func (c *Client) send(ctx context.Context, message string) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(message))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification rejected: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	log.Debug().Int("status_code", resp.StatusCode).Msg("Notification sent")
	return nil
}

func formatMessage(incidents []records.Incident) string {
	var sb strings.Builder

	if len(incidents) == 1 {
		sb.WriteString("1 nueva incidencia\n")
	} else {
		sb.WriteString(fmt.Sprintf("%d nuevas incidencias\n", len(incidents)))
	}

	maxToShow := 10
	for i, inc := range incidents {
		if i >= maxToShow {
			sb.WriteString(fmt.Sprintf("... y %d más\n", len(incidents)-maxToShow))
			break
		}
		line := inc.IncidentType
		if line == "" {
			line = "Incidencia"
		}
		if inc.OrderNumber != "" {
			line += " · pedido " + inc.OrderNumber
		}
		if inc.ClientName != "" {
			line += " (" + inc.ClientName + ")"
		}
		sb.WriteString("- " + line + "\n")
	}

	return strings.TrimSuffix(sb.String(), "\n")
}
