package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/device-tools/adb-rescue/internal/healthcheck"
	"github.com/device-tools/adb-rescue/internal/metrics"
	"github.com/device-tools/adb-rescue/internal/server"
	"github.com/device-tools/adb-rescue/internal/watch"
)

var (
	flagWatchInterval string
	flagHealthPort    int
	flagMetricsPort   int
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Probe the device on an interval and recover it when unhealthy",
		Long: `watch runs adb-rescue as a long-lived daemon: it probes the target device
on a fixed interval and triggers one full recovery cycle whenever the
device is unhealthy. Recovery attempts are rate limited so a flapping bus
is not disable/enable-cycled in a tight loop. Optional HTTP endpoints
expose liveness, readiness, and Prometheus metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runWatch,
	}

	flags := cmd.Flags()
	flags.StringVar(&flagWatchInterval, "interval", "", "delay between probes (e.g. 30s)")
	flags.IntVar(&flagHealthPort, "health-port", 0, "port for /healthz and /readyz (0 disables)")
	flags.IntVar(&flagMetricsPort, "metrics-port", 0, "port for /metrics (0 disables)")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("interval") {
		interval, parseErr := parseDurationFlag(flagWatchInterval)
		if parseErr != nil {
			return fmt.Errorf("--interval: %w", parseErr)
		}
		cfg.WatchInterval = interval
	}
	if flags.Changed("health-port") {
		cfg.HealthPort = flagHealthPort
	}
	if flags.Changed("metrics-port") {
		cfg.MetricsPort = flagMetricsPort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	env, err := prepare(logger, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()
	tracker := healthcheck.NewTracker()
	server.Start(ctx, logger, cfg.WatchInterval, tracker, collector, cfg.HealthPort, cfg.MetricsPort)

	loop := watch.New(logger, cfg.WatchInterval, env.adbClient, env.engine,
		watch.WithNotifier(env.notifier),
		watch.WithMetrics(collector),
		watch.WithTracker(tracker),
		// At most one recovery cycle per watch interval, however often
		// the device reports unhealthy in between.
		watch.WithRecoveryLimit(rate.NewLimiter(rate.Every(cfg.WatchInterval), 1)),
	)

	logger.Info().
		Dur("interval", cfg.WatchInterval).
		Str("serial", cfg.Serial).
		Bool("dry_run", cfg.DryRun).
		Msg("watch mode starting")

	return loop.Run(ctx)
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// parseDurationFlag reads a duration flag, accepting bare numbers as
// seconds for symmetry with --timeout.
func parseDurationFlag(value string) (time.Duration, error) {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		seconds, convErr := strconv.Atoi(value)
		if convErr != nil {
			return 0, err
		}
		parsed = secondsToDuration(seconds)
	}
	if parsed <= 0 {
		return 0, errors.New("must be greater than zero")
	}
	return parsed, nil
}
