package devcon

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/device-tools/adb-rescue/internal/command"
)

const defaultCommandTimeout = 30 * time.Second

// ErrNotFound means no enumerated USB entry matched the profile.
var ErrNotFound = errors.New("no matching usb device")

// Candidate is one enumerated USB bus entry. Candidates are built
// fresh on every enumeration; the bus can change between recovery
// phases, so they are never cached.
type Candidate struct {
	InstanceID  string
	Name        string
	HardwareIDs []string
}

// Client drives the devcon bus-control tool.
type Client struct {
	path    string
	profile Profile
	runner  command.Runner
	logger  zerolog.Logger
	timeout time.Duration
	settle  time.Duration
	dryRun  bool
	sleep   func(context.Context, time.Duration) bool
}

// Option customizes Client behavior.
type Option func(*Client)

// WithCommandTimeout bounds each devcon invocation.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithSettleDelay overrides the pause between disable and enable.
func WithSettleDelay(settle time.Duration) Option {
	return func(c *Client) {
		c.settle = settle
	}
}

// WithDryRun makes hard resets log their intent without executing
// either bus command.
func WithDryRun(dryRun bool) Option {
	return func(c *Client) {
		c.dryRun = dryRun
	}
}

// WithSleep overrides how the settle delay is waited out (for tests).
func WithSleep(sleep func(context.Context, time.Duration) bool) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient constructs a Client invoking the devcon binary at path,
// matching devices against the given profile.
func NewClient(logger zerolog.Logger, runner command.Runner, path string, profile Profile, opts ...Option) *Client {
	c := &Client{
		path:    path,
		profile: profile,
		runner:  runner,
		logger:  logger,
		timeout: defaultCommandTimeout,
		settle:  2 * time.Second,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Locate finds the USB instance identifier of the target device.
// It requires no bridge-level identification: the device may be
// invisible to the bridge precisely because it needs a bus reset.
// Name matching is tried first; the vendor-ID allowlist is the
// fallback. Returns ErrNotFound when neither stage matches.
func (c *Client) Locate(ctx context.Context) (string, error) {
	findall, err := c.runner.Run(ctx, c.timeout, c.path, "findall", "=usb")
	if err != nil {
		c.logger.Warn().Err(err).Msg("devcon findall did not complete")
	} else if findall.ExitCode == 0 {
		for _, candidate := range parseFindAll(findall.Stdout) {
			if strings.Contains(strings.ToLower(candidate.Name), strings.ToLower(c.profile.DeviceName)) {
				c.logger.Info().Str("name", candidate.Name).Str("instance_id", candidate.InstanceID).Msg("matched device by name")
				return candidate.InstanceID, nil
			}
		}
	}

	hwids, err := c.runner.Run(ctx, c.timeout, c.path, "hwids", "=usb")
	if err != nil {
		c.logger.Error().Err(err).Msg("devcon hwids did not complete")
		return "", ErrNotFound
	}
	if hwids.ExitCode != 0 {
		c.logger.Error().
			Int("exit_code", hwids.ExitCode).
			Str("stderr", strings.TrimSpace(hwids.Stderr)).
			Msg("devcon hwids failed")
		return "", ErrNotFound
	}

	for _, candidate := range parseHardwareIDs(hwids.Stdout) {
		for _, hwid := range candidate.HardwareIDs {
			vid, ok := extractVendorID(hwid)
			if !ok {
				continue
			}
			if c.profile.AllowsVendor(vid) {
				c.logger.Info().Str("hwid", hwid).Str("instance_id", candidate.InstanceID).Msg("matched device by vendor id")
				return candidate.InstanceID, nil
			}
		}
	}

	return "", ErrNotFound
}

var (
	// devcon compatible-ID lines mix case (`USB\Vid_04e8&Pid_6860`);
	// matches are normalized to upper case below.
	hardwareIDPattern = regexp.MustCompile(`(?i)USB\\VID_[0-9A-F]{4}&PID_[0-9A-F]{4}`)
	vendorIDPattern   = regexp.MustCompile(`VID_([0-9A-F]{4})`)
)

// parseFindAll reads `devcon findall` output: one
// `<instanceId>: <displayName>` line per device.
func parseFindAll(output string) []Candidate {
	var candidates []Candidate
	for _, line := range strings.Split(output, "\n") {
		instanceID, name, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			InstanceID: strings.TrimSpace(instanceID),
			Name:       strings.TrimSpace(name),
		})
	}
	return candidates
}

// parseHardwareIDs reads `devcon hwids` output: blank-line-separated
// blocks, each starting with an unindented `<instanceId>: <name>`
// line followed by indented hardware-ID lines.
func parseHardwareIDs(output string) []Candidate {
	var candidates []Candidate
	var current *Candidate

	flush := func() {
		if current != nil {
			candidates = append(candidates, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if !strings.HasPrefix(line, " ") {
			if instanceID, name, ok := strings.Cut(line, ":"); ok {
				flush()
				current = &Candidate{
					InstanceID: strings.TrimSpace(instanceID),
					Name:       strings.TrimSpace(name),
				}
				continue
			}
		}
		if current == nil {
			continue
		}
		if match := hardwareIDPattern.FindString(line); match != "" {
			current.HardwareIDs = append(current.HardwareIDs, strings.ToUpper(match))
		}
	}
	flush()

	return candidates
}

// extractVendorID pulls the uppercase 4-hex-digit vendor code out of
// a normalized hardware-ID string.
func extractVendorID(hwid string) (string, bool) {
	match := vendorIDPattern.FindStringSubmatch(hwid)
	if match == nil {
		return "", false
	}
	return match[1], true
}

func sleepContext(ctx context.Context, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
