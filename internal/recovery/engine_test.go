package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/device-tools/adb-rescue/internal/adb"
	"github.com/device-tools/adb-rescue/internal/command"
	"github.com/device-tools/adb-rescue/internal/devcon"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) bool {
	c.now = c.now.Add(d)
	return true
}

type scriptedProber struct {
	states []adb.DeviceState
	calls  int
}

func (p *scriptedProber) Probe(context.Context) adb.Probe {
	state := p.states[len(p.states)-1]
	if p.calls < len(p.states) {
		state = p.states[p.calls]
	}
	p.calls++
	return adb.Probe{State: state, Serial: "serial-1", RawToken: string(state)}
}

type stubSoftResetter struct {
	calls int
}

func (s *stubSoftResetter) SoftReset(context.Context) {
	s.calls++
}

type stubBus struct {
	instanceID  string
	locateErr   error
	resetErr    error
	locateCalls int
	resetCalls  int
	onReset     func()
}

func (b *stubBus) Locate(context.Context) (string, error) {
	b.locateCalls++
	if b.locateErr != nil {
		return "", b.locateErr
	}
	return b.instanceID, nil
}

func (b *stubBus) HardReset(context.Context, string) error {
	b.resetCalls++
	if b.resetErr != nil {
		return b.resetErr
	}
	if b.onReset != nil {
		b.onReset()
	}
	return nil
}

func newTestEngine(prober Prober, soft SoftResetter, bus BusController, timeout time.Duration) (*Engine, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	e := New(zerolog.Nop(), prober, soft, bus,
		WithPollInterval(2*time.Second),
		WithPhaseTimeout(timeout),
		WithClock(clock.Now),
		WithSleep(clock.Sleep),
	)
	return e, clock
}

func TestRun_AlreadyHealthy(t *testing.T) {
	prober := &scriptedProber{states: []adb.DeviceState{adb.StateHealthy}}
	soft := &stubSoftResetter{}
	bus := &stubBus{instanceID: "instance-1"}
	e, _ := newTestEngine(prober, soft, bus, 4*time.Second)

	report := e.Run(context.Background())

	if report.Outcome != OutcomeAlreadyHealthy {
		t.Fatalf("Outcome = %s, want %s", report.Outcome, OutcomeAlreadyHealthy)
	}
	if soft.calls != 0 || bus.resetCalls != 0 || bus.locateCalls != 0 {
		t.Errorf("healthy device triggered remediation: soft=%d locate=%d reset=%d",
			soft.calls, bus.locateCalls, bus.resetCalls)
	}
	if report.FinalState != adb.StateHealthy {
		t.Errorf("FinalState = %s, want %s", report.FinalState, adb.StateHealthy)
	}
}

func TestRun_RecoveredBySoftReset(t *testing.T) {
	// Unhealthy on the first two probes, healthy on the third: the
	// soft-reset poll recovers and the hard-reset path never runs.
	prober := &scriptedProber{states: []adb.DeviceState{
		adb.StateOffline, adb.StateOffline, adb.StateHealthy,
	}}
	soft := &stubSoftResetter{}
	bus := &stubBus{instanceID: "instance-1"}
	e, _ := newTestEngine(prober, soft, bus, 10*time.Second)

	report := e.Run(context.Background())

	if report.Outcome != OutcomeRecoveredBySoftReset {
		t.Fatalf("Outcome = %s, want %s", report.Outcome, OutcomeRecoveredBySoftReset)
	}
	if soft.calls != 1 {
		t.Errorf("soft reset calls = %d, want 1", soft.calls)
	}
	if bus.locateCalls != 0 || bus.resetCalls != 0 {
		t.Errorf("locate/hard-reset path entered: locate=%d reset=%d", bus.locateCalls, bus.resetCalls)
	}
}

func TestRun_DeviceNotFound(t *testing.T) {
	// Always unhealthy, 4s budget with 2s polls, no bus match: the
	// machine gives up before ever attempting a hard reset.
	prober := &scriptedProber{states: []adb.DeviceState{adb.StateUnauthorized}}
	soft := &stubSoftResetter{}
	bus := &stubBus{locateErr: devcon.ErrNotFound}
	e, _ := newTestEngine(prober, soft, bus, 4*time.Second)

	report := e.Run(context.Background())

	if report.Outcome != OutcomeDeviceNotFound {
		t.Fatalf("Outcome = %s, want %s", report.Outcome, OutcomeDeviceNotFound)
	}
	if bus.resetCalls != 0 {
		t.Errorf("hard reset calls = %d, want 0", bus.resetCalls)
	}
	if prober.calls != 3 {
		t.Errorf("probe calls = %d, want 3 (initial + two polls)", prober.calls)
	}
}

func TestRun_RecoveredByHardReset(t *testing.T) {
	// Unhealthy until the hard reset lands, then healthy.
	prober := &scriptedProber{states: []adb.DeviceState{adb.StateOffline}}
	soft := &stubSoftResetter{}
	bus := &stubBus{instanceID: "instance-1"}
	bus.onReset = func() {
		prober.states = []adb.DeviceState{adb.StateHealthy}
		prober.calls = 0
	}
	e, _ := newTestEngine(prober, soft, bus, 4*time.Second)

	report := e.Run(context.Background())

	if report.Outcome != OutcomeRecoveredByHardReset {
		t.Fatalf("Outcome = %s, want %s", report.Outcome, OutcomeRecoveredByHardReset)
	}
	if bus.resetCalls != 1 {
		t.Errorf("hard reset calls = %d, want 1", bus.resetCalls)
	}
	if soft.calls != 2 {
		t.Errorf("soft reset calls = %d, want 2 (before and after hard reset)", soft.calls)
	}
	if report.InstanceID != "instance-1" {
		t.Errorf("InstanceID = %q, want instance-1", report.InstanceID)
	}
}

func TestRun_HardResetFailed(t *testing.T) {
	prober := &scriptedProber{states: []adb.DeviceState{adb.StateOffline}}
	soft := &stubSoftResetter{}
	bus := &stubBus{instanceID: "instance-1", resetErr: context.DeadlineExceeded}
	e, _ := newTestEngine(prober, soft, bus, 4*time.Second)

	report := e.Run(context.Background())

	if report.Outcome != OutcomeHardResetFailed {
		t.Fatalf("Outcome = %s, want %s", report.Outcome, OutcomeHardResetFailed)
	}
	if soft.calls != 1 {
		t.Errorf("soft reset calls = %d, want 1 (no second soft reset after failed hard reset)", soft.calls)
	}
}

func TestRun_TimedOut(t *testing.T) {
	prober := &scriptedProber{states: []adb.DeviceState{adb.StateOffline}}
	soft := &stubSoftResetter{}
	bus := &stubBus{instanceID: "instance-1"}
	e, clock := newTestEngine(prober, soft, bus, 4*time.Second)
	start := clock.Now()

	report := e.Run(context.Background())

	if report.Outcome != OutcomeTimedOut {
		t.Fatalf("Outcome = %s, want %s", report.Outcome, OutcomeTimedOut)
	}
	if bus.resetCalls != 1 {
		t.Errorf("hard reset calls = %d, want 1", bus.resetCalls)
	}
	// Each polling phase gets the full budget independently.
	if elapsed := clock.Now().Sub(start); elapsed < 8*time.Second {
		t.Errorf("elapsed = %s, want at least two full 4s polling budgets", elapsed)
	}
	if report.Duration != clock.Now().Sub(start) {
		t.Errorf("Duration = %s, want %s", report.Duration, clock.Now().Sub(start))
	}
}

// scriptedTool routes stub command invocations for the end-to-end
// test below, standing in for both external tools.
type scriptedTool struct {
	disableCalls int
	enableCalls  int
	healthy      bool
	probeCalls   int
}

func TestRun_EndToEnd_HardResetWithRealClients(t *testing.T) {
	tool := &scriptedTool{}
	runner := commandRunnerFunc(func(_ context.Context, _ time.Duration, name string, args ...string) (stdout string, exitCode int) {
		switch name {
		case "adb":
			switch args[0] {
			case "devices":
				tool.probeCalls++
				if tool.healthy {
					return "List of devices attached\nserial-1\tdevice\n", 0
				}
				return "List of devices attached\nserial-1\toffline\n", 0
			default:
				return "", 0
			}
		case "devcon":
			switch args[0] {
			case "findall":
				return "USB\\VID_04E8&PID_6860\\1: Android Composite ADB Interface\n", 0
			case "disable":
				tool.disableCalls++
				return "", 0
			case "enable":
				tool.enableCalls++
				tool.healthy = true
				return "", 0
			}
		}
		return "", 1
	})

	logger := zerolog.Nop()
	clock := &fakeClock{now: time.Unix(2000, 0)}

	adbClient := adb.NewClient(logger, runner, "adb", adb.WithSerial("serial-1"))
	devconClient := devcon.NewClient(logger, runner, "devcon", devcon.DefaultProfile(),
		devcon.WithSleep(clock.Sleep))

	e := New(logger, adbClient, adbClient, devconClient,
		WithPollInterval(2*time.Second),
		WithPhaseTimeout(4*time.Second),
		WithClock(clock.Now),
		WithSleep(clock.Sleep),
	)

	report := e.Run(context.Background())

	if report.Outcome != OutcomeRecoveredByHardReset {
		t.Fatalf("Outcome = %s, want %s", report.Outcome, OutcomeRecoveredByHardReset)
	}
	if tool.disableCalls != 1 || tool.enableCalls != 1 {
		t.Errorf("disable=%d enable=%d, want exactly one each", tool.disableCalls, tool.enableCalls)
	}
	if report.Serial != "serial-1" {
		t.Errorf("Serial = %q, want serial-1", report.Serial)
	}
}

type commandRunnerFunc func(ctx context.Context, timeout time.Duration, name string, args ...string) (string, int)

func (f commandRunnerFunc) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (command.Result, error) {
	stdout, code := f(ctx, timeout, name, args...)
	return command.Result{Stdout: stdout, ExitCode: code}, nil
}
