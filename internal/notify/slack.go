package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/device-tools/adb-rescue/internal/recovery"
)

// SlackNotifier posts recovery reports to a Slack incoming webhook
// using Block Kit messages.
type SlackNotifier struct {
	logger     zerolog.Logger
	webhookURL string
	timing     timingConfig
	poster     *httpPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier)

// WithSlackTiming overrides timing parameters (primarily for testing).
func WithSlackTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) SlackOption {
	return func(s *SlackNotifier) {
		s.timing.rateInterval = rateInterval
		s.timing.rateBurst = rateBurst
		s.timing.backoffInitial = backoffInitial
		s.timing.backoffMax = backoffMax
		s.timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewSlackNotifier creates a Slack notifier, or a noop notifier when
// the webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; notifications disabled")
	}

	notifier := &SlackNotifier{
		logger:     logger,
		webhookURL: webhookURL,
		timing:     defaultTiming,
	}
	for _, opt := range opts {
		opt(notifier)
	}
	notifier.poster = newHTTPPoster(logger, "slack", webhookURL, "application/json", notifier.timing)

	return notifier
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, report recovery.Report) error {
	if err := n.poster.waitForRateLimit(ctx, serialKey(report.Serial)); err != nil {
		return err
	}

	payload, err := json.Marshal(buildSlackMessage(report))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := n.poster.postWithRetry(ctx, payload); err != nil {
		return err
	}

	n.logger.Debug().
		Str("serial", report.Serial).
		Str("outcome", string(report.Outcome)).
		Msg("slack notification sent")

	return nil
}

func buildSlackMessage(report recovery.Report) slack.WebhookMessage {
	icon := ":white_check_mark:"
	if !report.Outcome.Succeeded() {
		icon = ":rotating_light:"
	}
	summary := fmt.Sprintf("%s ADB device recovery: %s", icon, outcomeLabel(report.Outcome))

	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", "ADB device recovery", false, false))
	context := slack.NewContextBlock("",
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Serial: *%s*", serialKey(report.Serial)), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Duration: %s", report.Duration.Round(time.Millisecond)), false, false),
	)

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Outcome:*\n`%s`", report.Outcome), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Final state:*\n`%s`", stateLabel(report)), false, false),
	}
	if report.InstanceID != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*USB instance:*\n`%s`", report.InstanceID), false, false))
	}
	section := slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", summary, false, false), fields, nil)

	blockSet := slack.Blocks{BlockSet: []slack.Block{header, context, section}}
	return slack.WebhookMessage{
		Text:   summary,
		Blocks: &blockSet,
	}
}

func outcomeLabel(outcome recovery.Outcome) string {
	switch outcome {
	case recovery.OutcomeAlreadyHealthy:
		return "device already healthy"
	case recovery.OutcomeRecoveredBySoftReset:
		return "recovered by soft reset"
	case recovery.OutcomeRecoveredByHardReset:
		return "recovered by hard reset"
	case recovery.OutcomeDeviceNotFound:
		return "usb device not found"
	case recovery.OutcomeHardResetFailed:
		return "hard reset failed; device may be left disabled"
	case recovery.OutcomeTimedOut:
		return "device did not recover before timeout"
	default:
		return string(outcome)
	}
}

func stateLabel(report recovery.Report) string {
	if report.RawState != "" {
		return report.RawState
	}
	return string(report.FinalState)
}
