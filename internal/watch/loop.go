package watch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/device-tools/adb-rescue/internal/adb"
	"github.com/device-tools/adb-rescue/internal/healthcheck"
	"github.com/device-tools/adb-rescue/internal/metrics"
	"github.com/device-tools/adb-rescue/internal/notify"
	"github.com/device-tools/adb-rescue/internal/recovery"
)

// Ticker is the minimal interface needed for driving the watch loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// Prober reports the bridge-level state of the target device.
type Prober interface {
	Probe(ctx context.Context) adb.Probe
}

// Recoverer runs one full escalating recovery cycle.
type Recoverer interface {
	Run(ctx context.Context) recovery.Report
}

// Loop probes the device on a fixed interval and triggers a recovery
// cycle when it is unhealthy. Recovery attempts are rate limited and
// spaced out with exponential backoff after consecutive failures, so
// a flapping bus is not disable/enable-cycled in a tight loop.
type Loop struct {
	logger        zerolog.Logger
	interval      time.Duration
	tickerFactory func(time.Duration) Ticker
	prober        Prober
	engine        Recoverer
	notifier      notify.Notifier
	collector     *metrics.Metrics
	tracker       *healthcheck.Tracker
	limiter       *rate.Limiter
	retryBackoff  *backoff.ExponentialBackOff
	holdUntil     time.Time
	clock         func() time.Time
}

// Option customizes loop behavior.
type Option func(*Loop)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(l *Loop) {
		l.tickerFactory = factory
	}
}

// WithNotifier delivers each recovery report after the cycle.
func WithNotifier(notifier notify.Notifier) Option {
	return func(l *Loop) {
		l.notifier = notifier
	}
}

// WithMetrics enables Prometheus collection.
func WithMetrics(collector *metrics.Metrics) Option {
	return func(l *Loop) {
		l.collector = collector
	}
}

// WithTracker enables health endpoint reporting.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(l *Loop) {
		l.tracker = tracker
	}
}

// WithRecoveryLimit bounds how often recovery may be attempted.
func WithRecoveryLimit(limiter *rate.Limiter) Option {
	return func(l *Loop) {
		l.limiter = limiter
	}
}

// WithClock overrides the clock source (for tests).
func WithClock(clock func() time.Time) Option {
	return func(l *Loop) {
		l.clock = clock
	}
}

// New constructs a Loop probing via prober and recovering via engine.
func New(logger zerolog.Logger, interval time.Duration, prober Prober, engine Recoverer, opts ...Option) *Loop {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = interval
	retry.MaxInterval = 10 * interval
	retry.MaxElapsedTime = 0 // never give up; the loop runs until canceled

	l := &Loop{
		logger:   logger,
		interval: interval,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
		prober:       prober,
		engine:       engine,
		notifier:     notify.NewNoop(logger, ""),
		limiter:      rate.NewLimiter(rate.Every(interval), 1),
		retryBackoff: retry,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.retryBackoff.Reset()
	return l
}

// Run starts the watch loop and blocks until the context is canceled.
func (l *Loop) Run(ctx context.Context) error {
	if l.interval <= 0 {
		return errors.New("watch interval must be greater than zero")
	}

	l.retryBackoff.Reset()
	l.RunOnce(ctx)

	ticker := l.tickerFactory(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("watch loop stopped")
			return nil
		case <-ticker.C():
			l.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single watch cycle: probe, and recover when the
// device is unhealthy.
func (l *Loop) RunOnce(ctx context.Context) {
	start := l.clock()

	probe := l.prober.Probe(ctx)
	l.collector.IncProbe(string(probe.State))

	state := probe.State
	if probe.State.Healthy() {
		l.collector.SetLastHealthy(l.clock())
		l.retryBackoff.Reset()
		l.holdUntil = time.Time{}
	} else {
		state = l.maybeRecover(ctx, probe)
	}

	l.tracker.RecordCycle(l.clock().Sub(start), string(state))
}

func (l *Loop) maybeRecover(ctx context.Context, probe adb.Probe) adb.DeviceState {
	now := l.clock()
	if now.Before(l.holdUntil) {
		l.logger.Debug().
			Time("hold_until", l.holdUntil).
			Str("state", string(probe.State)).
			Msg("backing off after failed recovery")
		return probe.State
	}
	if !l.limiter.Allow() {
		l.logger.Warn().Str("state", string(probe.State)).Msg("recovery rate limit hit; skipping cycle")
		return probe.State
	}

	report := l.engine.Run(ctx)
	l.collector.ObserveRecovery(string(report.Outcome), report.Duration)
	if hardResetAttempted(report) {
		l.collector.IncHardReset()
	}

	if err := l.notifier.Notify(ctx, report); err != nil {
		l.logger.Error().Err(err).Msg("recovery notification failed")
	}

	if report.Outcome.Succeeded() {
		l.collector.SetLastHealthy(l.clock())
		l.retryBackoff.Reset()
		l.holdUntil = time.Time{}
	} else {
		wait := l.retryBackoff.NextBackOff()
		l.holdUntil = l.clock().Add(wait)
		l.logger.Warn().
			Str("outcome", string(report.Outcome)).
			Dur("next_attempt_in", wait).
			Msg("recovery failed; deferring next attempt")
	}

	return report.FinalState
}

// hardResetAttempted reports whether the run got far enough to issue
// bus-level commands.
func hardResetAttempted(report recovery.Report) bool {
	switch report.Outcome {
	case recovery.OutcomeRecoveredByHardReset, recovery.OutcomeHardResetFailed, recovery.OutcomeTimedOut:
		return true
	}
	return false
}
