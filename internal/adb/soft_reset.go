package adb

import (
	"context"
	"strings"
)

// softResetSequence is the fixed order of server lifecycle commands
// issued by SoftReset.
var softResetSequence = [][]string{
	{"kill-server"},
	{"start-server"},
	{"reconnect"},
}

// SoftReset restarts the adb server and requests a reconnect. All
// three commands are attempted unconditionally: a server restart may
// fix device state even when the reconnect that follows it fails.
// Success is judged only by a subsequent probe, never by these
// commands' exit codes.
func (c *Client) SoftReset(ctx context.Context) {
	for _, args := range softResetSequence {
		result, err := c.runner.Run(ctx, c.timeout, c.path, args...)
		if err != nil {
			c.logger.Warn().Err(err).Strs("args", args).Msg("adb command did not complete")
			continue
		}
		if result.ExitCode != 0 {
			c.logger.Warn().
				Strs("args", args).
				Int("exit_code", result.ExitCode).
				Str("stderr", strings.TrimSpace(result.Stderr)).
				Msg("adb command failed")
		}
	}
}
