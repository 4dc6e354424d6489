// Package slack sends campaign launch notifications to Slack via incoming
// webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/breezecue/internal/campaign"
)

const (
	maxCopyLen  = 3000
	httpTimeout = 10 * time.Second
)

// Notifier sends launched campaigns to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Send posts a launched campaign to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, c *campaign.Campaign) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(c))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	n.logger.Info(ctx, "slack launch notification sent", "campaign_id", c.ID)
	return nil
}

func buildMessage(c *campaign.Campaign) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(c),
			{"type": "divider"},
			fieldsBlock(c),
			{"type": "divider"},
			copyBlock(c),
			{"type": "divider"},
			contextBlock(c),
		},
	}
}

func headerBlock(c *campaign.Campaign) map[string]any {
	event := c.AlertEvent
	if event == "" {
		event = "Weather alert"
	}
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s Campaign launched: %s", eventEmoji(event), event),
		},
	}
}

func fieldsBlock(c *campaign.Campaign) map[string]any {
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Status:* %s", c.Status)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Radius:* %d mi", c.Radius)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Alert:* %s", c.AlertID)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Headlines:* %d", len(c.Headlines))},
	}
	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func copyBlock(c *campaign.Campaign) map[string]any {
	text := strings.TrimSpace(c.Copy.Headline + "\n" + c.Copy.Body)
	text = truncate(text, maxCopyLen)
	if text == "" {
		text = "_No ad copy._"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Ad copy*\n\n%s", text),
		},
	}
}

func contextBlock(c *campaign.Campaign) map[string]any {
	ts := c.LaunchedAt
	if ts.IsZero() {
		ts = c.CreatedAt
	}
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("breezecue • campaign %s • %s", c.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

// eventEmoji follows NWS naming: warnings are the most severe, then watches.
func eventEmoji(event string) string {
	e := strings.ToLower(event)
	switch {
	case strings.Contains(e, "warning"), strings.Contains(e, "emergency"):
		return "\U0001f534" // red circle
	case strings.Contains(e, "watch"):
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-3]) + "..."
}
