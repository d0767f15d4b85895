package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/device-tools/adb-rescue/internal/recovery"
)

// DryRunNotifier logs reports without sending notifications.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier returns a notifier that suppresses delivery and
// logs instead.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, report recovery.Report) error {
	n.logger.Info().
		Str("serial", report.Serial).
		Str("outcome", string(report.Outcome)).
		Str("final_state", string(report.FinalState)).
		Dur("duration", report.Duration).
		Msg("[DRY-RUN] Would notify")
	return nil
}
