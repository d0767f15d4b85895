package recovery

import "testing"

func TestNext_TransitionTable(t *testing.T) {
	tests := []struct {
		name        string
		phase       Phase
		ev          Event
		wantPhase   Phase
		wantOutcome Outcome
	}{
		{"init always probes", PhaseInit, Event{}, PhaseProbing, ""},
		{"healthy probe terminates", PhaseProbing, Event{Healthy: true}, PhaseTerminal, OutcomeAlreadyHealthy},
		{"unhealthy probe escalates", PhaseProbing, Event{}, PhaseSoftResetting, ""},
		{"soft reset polls", PhaseSoftResetting, Event{}, PhasePollingAfterSoft, ""},
		{"soft reset after hard polls second phase", PhaseSoftResetting, Event{AfterHard: true}, PhasePollingAfterHard, ""},
		{"healthy poll after soft recovers", PhasePollingAfterSoft, Event{Healthy: true}, PhaseTerminal, OutcomeRecoveredBySoftReset},
		{"exhausted poll after soft locates", PhasePollingAfterSoft, Event{}, PhaseLocating, ""},
		{"located escalates to hard reset", PhaseLocating, Event{Located: true}, PhaseHardResetting, ""},
		{"no match terminates", PhaseLocating, Event{}, PhaseTerminal, OutcomeDeviceNotFound},
		{"hard reset success soft resets again", PhaseHardResetting, Event{ResetOK: true}, PhaseSoftResetting, ""},
		{"hard reset failure terminates", PhaseHardResetting, Event{}, PhaseTerminal, OutcomeHardResetFailed},
		{"healthy poll after hard recovers", PhasePollingAfterHard, Event{Healthy: true}, PhaseTerminal, OutcomeRecoveredByHardReset},
		{"exhausted poll after hard times out", PhasePollingAfterHard, Event{}, PhaseTerminal, OutcomeTimedOut},
		{"terminal stays terminal", PhaseTerminal, Event{Healthy: true}, PhaseTerminal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPhase, gotOutcome := Next(tt.phase, tt.ev)
			if gotPhase != tt.wantPhase {
				t.Errorf("Next(%s) phase = %s, want %s", tt.phase, gotPhase, tt.wantPhase)
			}
			if gotOutcome != tt.wantOutcome {
				t.Errorf("Next(%s) outcome = %q, want %q", tt.phase, gotOutcome, tt.wantOutcome)
			}
		})
	}
}

func TestNext_SuccessOnlyFromHealthyObservation(t *testing.T) {
	// No transition driven by a non-healthy event may produce a
	// success outcome.
	phases := []Phase{
		PhaseInit, PhaseProbing, PhaseSoftResetting, PhasePollingAfterSoft,
		PhaseLocating, PhaseHardResetting, PhasePollingAfterHard,
	}
	events := []Event{
		{}, {Located: true}, {ResetOK: true}, {AfterHard: true},
		{Located: true, ResetOK: true, AfterHard: true},
	}

	for _, phase := range phases {
		for _, ev := range events {
			if _, outcome := Next(phase, ev); outcome.Succeeded() {
				t.Errorf("Next(%s, %+v) produced success outcome %s without a healthy probe", phase, ev, outcome)
			}
		}
	}
}

func TestOutcome_Succeeded(t *testing.T) {
	success := []Outcome{OutcomeAlreadyHealthy, OutcomeRecoveredBySoftReset, OutcomeRecoveredByHardReset}
	failure := []Outcome{OutcomeDeviceNotFound, OutcomeHardResetFailed, OutcomeTimedOut}

	for _, o := range success {
		if !o.Succeeded() {
			t.Errorf("%s.Succeeded() = false, want true", o)
		}
	}
	for _, o := range failure {
		if o.Succeeded() {
			t.Errorf("%s.Succeeded() = true, want false", o)
		}
	}
}
