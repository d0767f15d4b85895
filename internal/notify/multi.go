package notify

import (
	"context"

	"github.com/device-tools/adb-rescue/internal/recovery"
)

// MultiNotifier fans out reports to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that dispatches to all provided
// notifiers, skipping nil entries.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	filtered := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier == nil {
			continue
		}
		filtered = append(filtered, notifier)
	}
	return &MultiNotifier{notifiers: filtered}
}

// Notify implements Notifier. All notifiers are attempted; the first
// error is returned.
func (m *MultiNotifier) Notify(ctx context.Context, report recovery.Report) error {
	var firstErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Notify(ctx, report); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
