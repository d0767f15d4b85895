package adb

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/device-tools/adb-rescue/internal/command"
)

const defaultCommandTimeout = 15 * time.Second

// Probe is the result of one health probe against the bridge.
type Probe struct {
	State    DeviceState
	Serial   string
	RawToken string
}

// Client drives the adb bridge tool for one target device.
type Client struct {
	path    string
	serial  string
	runner  command.Runner
	logger  zerolog.Logger
	timeout time.Duration
}

// Option customizes Client behavior.
type Option func(*Client)

// WithSerial restricts probing to the device with the given serial.
// When unset, the first listed device is the target.
func WithSerial(serial string) Option {
	return func(c *Client) {
		c.serial = serial
	}
}

// WithCommandTimeout bounds each adb invocation.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient constructs a Client invoking the adb binary at path.
func NewClient(logger zerolog.Logger, runner command.Runner, path string, opts ...Option) *Client {
	c := &Client{
		path:    path,
		runner:  runner,
		logger:  logger,
		timeout: defaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Probe lists attached devices and classifies the target's state.
// Probe never fails: a listing command that errors or exits non-zero
// classifies as StateUnknown, which the caller treats the same as any
// other unhealthy state.
func (c *Client) Probe(ctx context.Context) Probe {
	result, err := c.runner.Run(ctx, c.timeout, c.path, "devices")
	if err != nil {
		c.logger.Warn().Err(err).Msg("adb devices did not complete")
		return Probe{State: StateUnknown, Serial: c.serial}
	}
	if result.ExitCode != 0 {
		c.logger.Warn().
			Int("exit_code", result.ExitCode).
			Str("stderr", strings.TrimSpace(result.Stderr)).
			Msg("adb devices failed")
		return Probe{State: StateUnknown, Serial: c.serial}
	}

	serial, token, found := parseDevices(result.Stdout, c.serial)
	if !found {
		c.logger.Info().Str("serial", c.serial).Msg("no adb device found")
		return Probe{State: StateAbsent, Serial: c.serial}
	}

	probe := Probe{State: classifyToken(token), Serial: serial, RawToken: token}
	if probe.State.Healthy() {
		c.logger.Info().Str("serial", serial).Str("state", token).Msg("adb device is healthy")
	} else {
		c.logger.Warn().Str("serial", serial).Str("state", token).Msg("adb device unhealthy")
	}
	return probe
}

// parseDevices scans `adb devices` output for the target record.
// Records are whitespace-split (serial, state, ...) lines following a
// header line. When serial is set, only a matching record counts.
func parseDevices(output, serial string) (string, string, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "list of devices") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		// adb prints daemon status as "* daemon started successfully *".
		if fields[0] == "*" {
			continue
		}
		if serial != "" && fields[0] != serial {
			continue
		}
		return fields[0], fields[1], true
	}
	return "", "", false
}
