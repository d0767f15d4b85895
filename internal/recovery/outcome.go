package recovery

// Outcome is the terminal result of one recovery run. Exactly one is
// produced per invocation.
type Outcome string

const (
	OutcomeAlreadyHealthy       Outcome = "already_healthy"
	OutcomeRecoveredBySoftReset Outcome = "recovered_by_soft_reset"
	OutcomeRecoveredByHardReset Outcome = "recovered_by_hard_reset"
	OutcomeDeviceNotFound       Outcome = "device_not_found"
	OutcomeHardResetFailed      Outcome = "hard_reset_failed"
	OutcomeTimedOut             Outcome = "timed_out"
)

// Succeeded reports whether the run ended with a healthy device.
func (o Outcome) Succeeded() bool {
	switch o {
	case OutcomeAlreadyHealthy, OutcomeRecoveredBySoftReset, OutcomeRecoveredByHardReset:
		return true
	}
	return false
}
