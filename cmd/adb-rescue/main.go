package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/device-tools/adb-rescue/internal/adb"
	"github.com/device-tools/adb-rescue/internal/command"
	"github.com/device-tools/adb-rescue/internal/config"
	"github.com/device-tools/adb-rescue/internal/devcon"
	"github.com/device-tools/adb-rescue/internal/logging"
	"github.com/device-tools/adb-rescue/internal/notify"
	"github.com/device-tools/adb-rescue/internal/privilege"
	"github.com/device-tools/adb-rescue/internal/recovery"
)

// Process exit codes, the contract with invoking shells/automation.
const (
	exitHealthy        = 0
	exitRecoveryFailed = 1
	exitToolUnresolved = 2
	exitNotElevated    = 3
)

// exitError carries a specific process exit code up to main.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

var (
	flagAdbPath         string
	flagDevconPath      string
	flagSerial          string
	flagTimeoutSeconds  int
	flagPollInterval    string
	flagDryRun          bool
	flagVerbose         bool
	flagProfilePath     string
	flagWebhookURL      string
	flagSlackWebhookURL string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adb-rescue",
		Short: "Restore ADB connectivity to a USB device by escalating resets",
		Long: `adb-rescue probes a USB-attached Android device through adb and, when it
is unresponsive, escalates through a soft reset (adb server restart and
reconnect) to a bus-level hard reset (devcon disable/enable) until the
device reports healthy or the per-phase time budget runs out.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRescue,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&flagAdbPath, "adb-path", "", "path to adb (or adb on PATH)")
	flags.StringVar(&flagDevconPath, "devcon-path", "", "path to devcon (or devcon on PATH)")
	flags.StringVar(&flagSerial, "serial", "", "adb device serial to target")
	flags.IntVar(&flagTimeoutSeconds, "timeout", 0, "seconds to wait for recovery per phase")
	flags.StringVar(&flagPollInterval, "poll-interval", "", "delay between health polls (e.g. 2s)")
	flags.BoolVar(&flagDryRun, "dry-run", false, "log bus-level actions without executing them")
	flags.BoolVar(&flagVerbose, "verbose", false, "enable verbose logging")
	flags.StringVar(&flagProfilePath, "profile", "", "YAML device profile overriding name/vendor matching")
	flags.StringVar(&flagWebhookURL, "webhook-url", "", "webhook endpoint for recovery reports")
	flags.StringVar(&flagSlackWebhookURL, "slack-webhook-url", "", "Slack incoming webhook for recovery reports")

	cmd.AddCommand(newWatchCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.msg != "" {
				fmt.Fprintln(os.Stderr, exitErr.msg)
			}
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRecoveryFailed)
	}
}

func runRescue(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	env, err := prepare(logger, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := env.engine.Run(ctx)

	if notifyErr := env.notifier.Notify(ctx, report); notifyErr != nil {
		logger.Error().Err(notifyErr).Msg("recovery notification failed")
	}

	if !report.Outcome.Succeeded() {
		return &exitError{code: exitRecoveryFailed}
	}
	return nil
}

// loadConfig merges environment configuration with explicit flags;
// flags win.
func loadConfig(cmd *cobra.Command) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}

	flags := cmd.Flags()
	if flags.Changed("adb-path") {
		cfg.AdbPath = flagAdbPath
	}
	if flags.Changed("devcon-path") {
		cfg.DevconPath = flagDevconPath
	}
	if flags.Changed("serial") {
		cfg.Serial = flagSerial
	}
	if flags.Changed("timeout") {
		if flagTimeoutSeconds <= 0 {
			return config.Config{}, zerolog.Nop(), errors.New("--timeout must be greater than zero")
		}
		cfg.PhaseTimeout = secondsToDuration(flagTimeoutSeconds)
	}
	if flags.Changed("poll-interval") {
		interval, parseErr := parseDurationFlag(flagPollInterval)
		if parseErr != nil {
			return config.Config{}, zerolog.Nop(), fmt.Errorf("--poll-interval: %w", parseErr)
		}
		cfg.PollInterval = interval
	}
	if flagDryRun {
		cfg.DryRun = true
	}
	if flags.Changed("profile") {
		cfg.ProfilePath = flagProfilePath
	}
	if flags.Changed("webhook-url") {
		cfg.WebhookURL = flagWebhookURL
	}
	if flags.Changed("slack-webhook-url") {
		cfg.SlackWebhookURL = flagSlackWebhookURL
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, zerolog.Nop(), err
	}

	level := cfg.LogLevel
	if flagVerbose {
		level = "debug"
	}
	return cfg, logging.NewWithLevel(level), nil
}

// environment bundles the wired collaborators for one invocation.
type environment struct {
	adbClient    *adb.Client
	devconClient *devcon.Client
	engine       *recovery.Engine
	notifier     notify.Notifier
}

// prepare checks the privilege gate, resolves both external tools,
// and wires the recovery engine. Both checks fail fast, before any
// mutating action is attempted.
func prepare(logger zerolog.Logger, cfg config.Config) (*environment, error) {
	if !privilege.Elevated() {
		return nil, &exitError{code: exitNotElevated, msg: "administrator privileges are required for bus-level device control"}
	}

	adbPath, err := command.Resolve(cfg.AdbPath)
	if err != nil {
		return nil, &exitError{code: exitToolUnresolved, msg: err.Error()}
	}
	devconPath, err := command.Resolve(cfg.DevconPath)
	if err != nil {
		return nil, &exitError{code: exitToolUnresolved, msg: err.Error()}
	}

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}

	runner := command.NewExecRunner(logger)

	var adbOpts []adb.Option
	if cfg.Serial != "" {
		adbOpts = append(adbOpts, adb.WithSerial(cfg.Serial))
	}
	adbClient := adb.NewClient(logger, runner, adbPath, adbOpts...)
	devconClient := devcon.NewClient(logger, runner, devconPath, profile,
		devcon.WithDryRun(cfg.DryRun))

	engine := recovery.New(logger, adbClient, adbClient, devconClient,
		recovery.WithPollInterval(cfg.PollInterval),
		recovery.WithPhaseTimeout(cfg.PhaseTimeout),
	)

	return &environment{
		adbClient:    adbClient,
		devconClient: devconClient,
		engine:       engine,
		notifier:     buildNotifier(logger, cfg),
	}, nil
}

// buildNotifier assembles the configured notifiers; dry-run wraps the
// whole set so targeting can be validated without external deliveries.
func buildNotifier(logger zerolog.Logger, cfg config.Config) notify.Notifier {
	var notifiers []notify.Notifier

	webhook, err := notify.NewWebhookNotifier(logger, cfg.WebhookURL, "")
	if err != nil {
		logger.Error().Err(err).Msg("webhook notifier disabled")
	} else if webhook != nil {
		notifiers = append(notifiers, webhook)
	}
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(logger, cfg.SlackWebhookURL))
	}

	if len(notifiers) == 0 {
		return notify.NewNoop(logger, "no notification endpoints configured")
	}

	combined := notify.NewMultiNotifier(notifiers...)
	if cfg.DryRun {
		return notify.NewDryRunNotifier(logger, combined)
	}
	return combined
}
