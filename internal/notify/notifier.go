package notify

import (
	"context"

	"github.com/device-tools/adb-rescue/internal/recovery"
)

// Notifier delivers recovery reports to external systems.
type Notifier interface {
	Notify(ctx context.Context, report recovery.Report) error
}
