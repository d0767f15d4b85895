package recovery

// Phase is one stage of the escalation sequence. All phases are
// transient except PhaseTerminal; the machine runs exactly once per
// invocation.
type Phase string

const (
	PhaseInit             Phase = "init"
	PhaseProbing          Phase = "probing"
	PhaseSoftResetting    Phase = "soft_resetting"
	PhasePollingAfterSoft Phase = "polling_after_soft"
	PhaseLocating         Phase = "locating"
	PhaseHardResetting    Phase = "hard_resetting"
	PhasePollingAfterHard Phase = "polling_after_hard"
	PhaseTerminal         Phase = "terminal"
)

// Event carries the observation that drives a transition out of the
// current phase. Only the fields relevant to that phase are read.
type Event struct {
	// Healthy is the result of a probe or poll.
	Healthy bool
	// Located reports whether enumeration matched the target.
	Located bool
	// ResetOK reports whether the hard reset completed.
	ResetOK bool
	// AfterHard marks a soft reset that follows a hard reset, which
	// routes into the second polling phase.
	AfterHard bool
}

// Next is the pure transition function of the recovery machine. It
// returns the next phase and, when that phase is terminal, the
// outcome. Success outcomes are only ever produced from a Healthy
// observation, so the machine cannot report recovery it has not
// freshly verified.
func Next(phase Phase, ev Event) (Phase, Outcome) {
	switch phase {
	case PhaseInit:
		return PhaseProbing, ""
	case PhaseProbing:
		if ev.Healthy {
			return PhaseTerminal, OutcomeAlreadyHealthy
		}
		return PhaseSoftResetting, ""
	case PhaseSoftResetting:
		if ev.AfterHard {
			return PhasePollingAfterHard, ""
		}
		return PhasePollingAfterSoft, ""
	case PhasePollingAfterSoft:
		if ev.Healthy {
			return PhaseTerminal, OutcomeRecoveredBySoftReset
		}
		return PhaseLocating, ""
	case PhaseLocating:
		if ev.Located {
			return PhaseHardResetting, ""
		}
		return PhaseTerminal, OutcomeDeviceNotFound
	case PhaseHardResetting:
		if ev.ResetOK {
			return PhaseSoftResetting, ""
		}
		return PhaseTerminal, OutcomeHardResetFailed
	case PhasePollingAfterHard:
		if ev.Healthy {
			return PhaseTerminal, OutcomeRecoveredByHardReset
		}
		return PhaseTerminal, OutcomeTimedOut
	default:
		return PhaseTerminal, ""
	}
}
