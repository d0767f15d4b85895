package adb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/device-tools/adb-rescue/internal/command"
)

type stubCall struct {
	name string
	args []string
}

type stubRunner struct {
	calls   []stubCall
	results []command.Result
	errs    []error
}

func (s *stubRunner) Run(_ context.Context, _ time.Duration, name string, args ...string) (command.Result, error) {
	index := len(s.calls)
	s.calls = append(s.calls, stubCall{name: name, args: args})

	var err error
	if index < len(s.errs) {
		err = s.errs[index]
	}
	var result command.Result
	if index < len(s.results) {
		result = s.results[index]
	}
	return result, err
}

const healthyListing = "List of devices attached\nR5CT12ABCDE\tdevice\n"

func TestProbe_HealthyToken(t *testing.T) {
	runner := &stubRunner{results: []command.Result{{Stdout: healthyListing}}}
	c := NewClient(zerolog.Nop(), runner, "adb")

	probe := c.Probe(context.Background())
	if probe.State != StateHealthy {
		t.Fatalf("Probe().State = %v, want %v", probe.State, StateHealthy)
	}
	if probe.Serial != "R5CT12ABCDE" {
		t.Errorf("Probe().Serial = %q, want R5CT12ABCDE", probe.Serial)
	}
}

func TestProbe_UnhealthyTokens(t *testing.T) {
	tests := []struct {
		token string
		want  DeviceState
	}{
		{"unauthorized", StateUnauthorized},
		{"offline", StateOffline},
		{"sideload", StateUnknown},
		{"recovery", StateUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			runner := &stubRunner{results: []command.Result{
				{Stdout: "List of devices attached\nserial1\t" + tt.token + "\n"},
			}}
			c := NewClient(zerolog.Nop(), runner, "adb")

			probe := c.Probe(context.Background())
			if probe.State != tt.want {
				t.Errorf("Probe().State = %v, want %v", probe.State, tt.want)
			}
			if probe.State.Healthy() {
				t.Errorf("token %q must never classify as healthy", tt.token)
			}
			if probe.RawToken != tt.token {
				t.Errorf("Probe().RawToken = %q, want %q", probe.RawToken, tt.token)
			}
		})
	}
}

func TestProbe_SerialFilterSkipsOtherDevices(t *testing.T) {
	listing := "List of devices attached\nother-serial\tdevice\ntarget-serial\toffline\n"
	runner := &stubRunner{results: []command.Result{{Stdout: listing}}}
	c := NewClient(zerolog.Nop(), runner, "adb", WithSerial("target-serial"))

	probe := c.Probe(context.Background())
	if probe.State != StateOffline {
		t.Fatalf("Probe().State = %v, want %v", probe.State, StateOffline)
	}
}

func TestProbe_SerialFilterNoMatchIsAbsent(t *testing.T) {
	runner := &stubRunner{results: []command.Result{{Stdout: healthyListing}}}
	c := NewClient(zerolog.Nop(), runner, "adb", WithSerial("missing-serial"))

	probe := c.Probe(context.Background())
	if probe.State != StateAbsent {
		t.Fatalf("Probe().State = %v, want %v even with other healthy records", probe.State, StateAbsent)
	}
}

func TestProbe_EmptyListingIsAbsent(t *testing.T) {
	runner := &stubRunner{results: []command.Result{{Stdout: "List of devices attached\n\n"}}}
	c := NewClient(zerolog.Nop(), runner, "adb")

	if probe := c.Probe(context.Background()); probe.State != StateAbsent {
		t.Fatalf("Probe().State = %v, want %v", probe.State, StateAbsent)
	}
}

func TestProbe_CommandFailureIsUnknown(t *testing.T) {
	runner := &stubRunner{results: []command.Result{{ExitCode: 1, Stderr: "daemon not running"}}}
	c := NewClient(zerolog.Nop(), runner, "adb")

	if probe := c.Probe(context.Background()); probe.State != StateUnknown {
		t.Fatalf("Probe().State = %v, want %v", probe.State, StateUnknown)
	}
}

func TestProbe_RunnerErrorIsUnknown(t *testing.T) {
	runner := &stubRunner{errs: []error{errors.New("launch failed")}}
	c := NewClient(zerolog.Nop(), runner, "adb")

	if probe := c.Probe(context.Background()); probe.State != StateUnknown {
		t.Fatalf("Probe().State = %v, want %v", probe.State, StateUnknown)
	}
}

func TestProbe_DaemonRestartBannerIgnored(t *testing.T) {
	// Right after a soft reset, adb devices prints daemon status lines
	// before the listing; they must not be read as device records.
	listing := "* daemon not running; starting now at tcp:5037\n" +
		"* daemon started successfully\n" +
		"List of devices attached\nserial1\tdevice\n"
	runner := &stubRunner{results: []command.Result{{Stdout: listing}}}
	c := NewClient(zerolog.Nop(), runner, "adb")

	probe := c.Probe(context.Background())
	if probe.State != StateHealthy {
		t.Fatalf("Probe().State = %v, want %v", probe.State, StateHealthy)
	}
	if probe.Serial != "serial1" {
		t.Errorf("Probe().Serial = %q, want serial1", probe.Serial)
	}
}

func TestParseDevices_SkipsHeaderAndShortLines(t *testing.T) {
	output := "List of devices attached\n* daemon started successfully\nserial9\tdevice\n"
	serial, token, found := parseDevices(output, "")
	if !found {
		t.Fatal("parseDevices() found = false, want true")
	}
	if serial != "serial9" || token != "device" {
		t.Errorf("parseDevices() = (%q, %q), want (serial9, device)", serial, token)
	}
}

func TestSoftReset_IssuesAllThreeCommandsDespiteFailures(t *testing.T) {
	runner := &stubRunner{results: []command.Result{
		{ExitCode: 1, Stderr: "server not running"},
		{ExitCode: 1, Stderr: "cannot bind"},
		{ExitCode: 0},
	}}
	c := NewClient(zerolog.Nop(), runner, "adb")

	c.SoftReset(context.Background())

	if len(runner.calls) != 3 {
		t.Fatalf("SoftReset() issued %d commands, want 3", len(runner.calls))
	}
	want := []string{"kill-server", "start-server", "reconnect"}
	for i, call := range runner.calls {
		if call.args[0] != want[i] {
			t.Errorf("command %d = %q, want %q", i, call.args[0], want[i])
		}
	}
}

func TestSoftReset_ContinuesPastRunnerErrors(t *testing.T) {
	runner := &stubRunner{errs: []error{errors.New("timed out"), nil, nil}}
	c := NewClient(zerolog.Nop(), runner, "adb")

	c.SoftReset(context.Background())

	if len(runner.calls) != 3 {
		t.Fatalf("SoftReset() issued %d commands, want 3", len(runner.calls))
	}
}
