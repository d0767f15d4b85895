package recovery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/device-tools/adb-rescue/internal/adb"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPhaseTimeout = 30 * time.Second
)

// Prober reports the bridge-level state of the target device.
type Prober interface {
	Probe(ctx context.Context) adb.Probe
}

// SoftResetter restarts the bridge server and requests reconnect.
type SoftResetter interface {
	SoftReset(ctx context.Context)
}

// BusController locates and power-cycles the target at the bus level.
type BusController interface {
	Locate(ctx context.Context) (string, error)
	HardReset(ctx context.Context, instanceID string) error
}

// Report summarizes one completed recovery run.
type Report struct {
	Outcome    Outcome
	FinalState adb.DeviceState
	RawState   string
	Serial     string
	InstanceID string
	Duration   time.Duration
}

// Engine drives the escalation sequence: probe, soft reset and poll,
// locate and hard reset, soft reset and poll again. It holds no state
// across runs beyond its collaborators.
type Engine struct {
	logger       zerolog.Logger
	prober       Prober
	soft         SoftResetter
	bus          BusController
	pollInterval time.Duration
	phaseTimeout time.Duration
	clock        func() time.Time
	sleep        func(context.Context, time.Duration) bool
}

// Option customizes engine behavior.
type Option func(*Engine)

// WithPollInterval sets the delay between health polls.
func WithPollInterval(interval time.Duration) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.pollInterval = interval
		}
	}
}

// WithPhaseTimeout sets the time budget for each polling phase. The
// post-soft-reset and post-hard-reset phases each get the full budget.
func WithPhaseTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.phaseTimeout = timeout
		}
	}
}

// WithClock overrides the monotonic clock source (for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithSleep overrides how poll delays are waited out (for tests).
func WithSleep(sleep func(context.Context, time.Duration) bool) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// New constructs an Engine over the given collaborators.
func New(logger zerolog.Logger, prober Prober, soft SoftResetter, bus BusController, opts ...Option) *Engine {
	e := &Engine{
		logger:       logger,
		prober:       prober,
		soft:         soft,
		bus:          bus,
		pollInterval: defaultPollInterval,
		phaseTimeout: defaultPhaseTimeout,
		clock:        time.Now,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the machine once and returns a terminal report. It
// never returns an error: every lower-level failure is classified
// into an outcome.
func (e *Engine) Run(ctx context.Context) Report {
	start := e.clock()
	phase := PhaseInit
	afterHard := false

	var report Report
	var probe adb.Probe

	for phase != PhaseTerminal {
		var ev Event

		switch phase {
		case PhaseProbing:
			probe = e.prober.Probe(ctx)
			ev.Healthy = probe.State.Healthy()

		case PhaseSoftResetting:
			e.logger.Info().Bool("after_hard_reset", afterHard).Msg("soft resetting bridge server")
			e.soft.SoftReset(ctx)
			ev.AfterHard = afterHard

		case PhasePollingAfterSoft, PhasePollingAfterHard:
			probe, ev.Healthy = e.pollUntilHealthy(ctx)

		case PhaseLocating:
			instanceID, err := e.bus.Locate(ctx)
			if err != nil {
				e.logger.Error().Err(err).Msg("unable to locate usb device for hard reset")
			} else {
				report.InstanceID = instanceID
				ev.Located = true
			}

		case PhaseHardResetting:
			e.logger.Warn().Str("instance_id", report.InstanceID).Msg("hard resetting usb device")
			if err := e.bus.HardReset(ctx, report.InstanceID); err != nil {
				e.logger.Error().Err(err).Msg("hard reset failed; device may be left disabled")
			} else {
				ev.ResetOK = true
				afterHard = true
			}
		}

		next, outcome := Next(phase, ev)
		e.logger.Debug().Str("from", string(phase)).Str("to", string(next)).Msg("phase transition")
		phase = next
		if outcome != "" {
			report.Outcome = outcome
		}
	}

	report.FinalState = probe.State
	report.RawState = probe.RawToken
	report.Serial = probe.Serial
	report.Duration = e.clock().Sub(start)

	event := e.logger.Info()
	if !report.Outcome.Succeeded() {
		event = e.logger.Error()
	}
	event.
		Str("outcome", string(report.Outcome)).
		Str("final_state", string(report.FinalState)).
		Dur("duration", report.Duration).
		Msg("recovery finished")

	return report
}

// pollUntilHealthy probes on a fixed interval until the device is
// healthy or the phase deadline passes. The deadline is computed once
// from the clock at entry so cumulative sleep overhead cannot drift
// the budget.
func (e *Engine) pollUntilHealthy(ctx context.Context) (adb.Probe, bool) {
	deadline := e.clock().Add(e.phaseTimeout)

	var probe adb.Probe
	probe.State = adb.StateUnknown

	for e.clock().Before(deadline) {
		probe = e.prober.Probe(ctx)
		if probe.State.Healthy() {
			return probe, true
		}
		if !e.sleep(ctx, e.pollInterval) {
			return probe, false
		}
	}
	return probe, false
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
