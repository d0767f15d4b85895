package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/device-tools/adb-rescue/internal/recovery"
)

// NoopNotifier drops reports.
type NoopNotifier struct {
	logger zerolog.Logger
	reason string
}

// NewNoop returns a notifier that logs once and does nothing thereafter.
func NewNoop(logger zerolog.Logger, reason string) *NoopNotifier {
	if reason != "" {
		logger.Debug().Msg(reason)
	}
	return &NoopNotifier{logger: logger, reason: reason}
}

// Notify implements Notifier.
func (n *NoopNotifier) Notify(context.Context, recovery.Report) error {
	return nil
}
