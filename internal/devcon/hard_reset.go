package devcon

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// HardReset disables then re-enables the device at the bus level. The
// settle delay between the two commands lets the bus quiesce; too
// short a delay risks the enable racing the disable. A failed disable
// aborts without attempting enable — a device that was never disabled
// must not be "re-enabled" into an ambiguous state. A failed enable
// may leave the device disabled; that risk is surfaced to the caller
// rather than retried here.
func (c *Client) HardReset(ctx context.Context, instanceID string) error {
	if c.dryRun {
		c.logger.Info().Str("instance_id", instanceID).Msg("dry run: would disable device")
		c.logger.Info().Str("instance_id", instanceID).Msg("dry run: would enable device")
		return nil
	}

	if err := c.busCommand(ctx, "disable", instanceID); err != nil {
		return errors.Wrap(err, "disable device")
	}

	if !c.sleep(ctx, c.settle) {
		return ctx.Err()
	}

	if err := c.busCommand(ctx, "enable", instanceID); err != nil {
		return errors.Wrap(err, "enable device")
	}
	return nil
}

func (c *Client) busCommand(ctx context.Context, verb, instanceID string) error {
	result, err := c.runner.Run(ctx, c.timeout, c.path, verb, instanceID)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		stderr := strings.TrimSpace(result.Stderr)
		c.logger.Error().
			Str("verb", verb).
			Str("instance_id", instanceID).
			Int("exit_code", result.ExitCode).
			Str("stderr", stderr).
			Msg("devcon command failed")
		return errors.Errorf("devcon %s exited with code %d: %s", verb, result.ExitCode, stderr)
	}
	return nil
}
