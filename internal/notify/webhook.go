package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/scriptwatch/internal/history"
)

const defaultUsername = "scriptwatch"

// Webhook sends lifecycle events to a Discord-compatible webhook as formatted
// text messages. Delivery is best-effort: failures are reported to the
// caller (the dispatcher logs them) and never retried.
type Webhook struct {
	client   *http.Client
	url      string
	username string
}

// NewWebhook creates a webhook sink posting as username (a default applies
// when empty).
func NewWebhook(url, username string) *Webhook {
	if username == "" {
		username = defaultUsername
	}
	return &Webhook{
		client:   &http.Client{Timeout: 5 * time.Second},
		url:      url,
		username: username,
	}
}

func (w *Webhook) Name() string { return "webhook" }

// Send renders the event as a chat message and posts it.
func (w *Webhook) Send(ctx context.Context, e history.Event) error {
	return w.post(ctx, formatEvent(e))
}

// Critical posts a monitoring alert outside the event flow, used by the loop
// when an unexpected error forces a backoff.
func (w *Webhook) Critical(ctx context.Context, localIP, msg string) error {
	return w.post(ctx, "🚨 **Monitoring Error**\n"+msg+" in "+localIP)
}

type payload struct {
	Content  string `json:"content"`
	Username string `json:"username"`
}

func (w *Webhook) post(ctx context.Context, content string) error {
	body, err := json.Marshal(payload{Content: content, Username: w.username})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

func formatEvent(e history.Event) string {
	if e.Type == history.EventStart {
		var drives strings.Builder
		for _, d := range e.Resources.Drives {
			fmt.Fprintf(&drives, "%s %.1f%% ", d.Device, d.Percent)
		}
		return fmt.Sprintf(
			"🟢 **Script Started**\n"+
				"Path: `%s`\n"+
				"Time: `%s`\n"+
				"IP: `%s`\n"+
				"RAM: %.1f%%\n"+
				"CPU: %.1f%%\n"+
				"Drives: %s",
			e.ScriptPath,
			e.OccurredAt.Format("2006-01-02 15:04:05"),
			e.LocalIP,
			e.Resources.RAM.Percent,
			e.Resources.CPU.UsagePercent,
			drives.String(),
		)
	}
	return fmt.Sprintf(
		"🔴 **Script Stopped**\n"+
			"IP: %s\n"+
			"Path: `%s`\n"+
			"Duration: %s",
		e.LocalIP,
		e.ScriptPath,
		e.Duration.Truncate(time.Second),
	)
}
