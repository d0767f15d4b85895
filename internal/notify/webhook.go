package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/device-tools/adb-rescue/internal/recovery"
)

const defaultWebhookTemplate = `{"serial":"{{ .Serial }}","outcome":"{{ .Outcome }}","final_state":"{{ .FinalState }}","succeeded":{{ .Succeeded }},"duration_ms":{{ .DurationMS }},"generated_at":"{{ .GeneratedAt.Format "2006-01-02T15:04:05Z07:00" }}"}`

// WebhookPayload is the template context for webhook notifications.
type WebhookPayload struct {
	Serial      string
	Outcome     recovery.Outcome
	FinalState  string
	InstanceID  string
	Succeeded   bool
	DurationMS  int64
	GeneratedAt time.Time
}

// WebhookNotifier sends recovery reports to a generic webhook.
type WebhookNotifier struct {
	logger   zerolog.Logger
	template *template.Template
	poster   *httpPoster
}

// NewWebhookNotifier creates a webhook notifier with the provided
// template; an empty template uses the default JSON payload. Returns
// nil when no URL is configured.
func NewWebhookNotifier(logger zerolog.Logger, webhookURL, tmpl string) (*WebhookNotifier, error) {
	if webhookURL == "" {
		return nil, nil
	}
	if tmpl == "" {
		tmpl = defaultWebhookTemplate
	}

	parsed, err := template.New("webhook").Funcs(template.FuncMap{
		// json.Marshal HTML-escapes &, mangling instance IDs.
		"toJson": func(v any) (string, error) {
			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			enc.SetEscapeHTML(false)
			if err := enc.Encode(v); err != nil {
				return "", err
			}
			return strings.TrimSpace(buf.String()), nil
		},
	}).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse webhook template: %w", err)
	}

	return &WebhookNotifier{
		logger:   logger,
		template: parsed,
		poster:   newHTTPPoster(logger, "webhook", webhookURL, "application/json", defaultTiming),
	}, nil
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, report recovery.Report) error {
	if n == nil {
		return nil
	}

	if err := n.poster.waitForRateLimit(ctx, serialKey(report.Serial)); err != nil {
		return err
	}

	payload := WebhookPayload{
		Serial:      report.Serial,
		Outcome:     report.Outcome,
		FinalState:  string(report.FinalState),
		InstanceID:  report.InstanceID,
		Succeeded:   report.Outcome.Succeeded(),
		DurationMS:  report.Duration.Milliseconds(),
		GeneratedAt: time.Now().UTC(),
	}

	var buf bytes.Buffer
	if err := n.template.Execute(&buf, payload); err != nil {
		return fmt.Errorf("render webhook template: %w", err)
	}

	if err := n.poster.postWithRetry(ctx, buf.Bytes()); err != nil {
		return err
	}

	n.logger.Debug().
		Str("serial", report.Serial).
		Str("outcome", string(report.Outcome)).
		Msg("webhook notification sent")

	return nil
}

func serialKey(serial string) string {
	if serial == "" {
		return "default"
	}
	return serial
}
