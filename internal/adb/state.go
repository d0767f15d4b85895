package adb

// DeviceState classifies the bridge-level connection state of a single
// device. Only StateHealthy satisfies recovery; the remaining states
// are equally unhealthy for escalation purposes but are logged
// distinctly.
type DeviceState string

const (
	// StateHealthy is the state token adb reports for a usable device.
	StateHealthy DeviceState = "device"
	// StateUnauthorized means the device is attached but the host key
	// has not been accepted on the device.
	StateUnauthorized DeviceState = "unauthorized"
	// StateOffline means the device is listed but not responding.
	StateOffline DeviceState = "offline"
	// StateAbsent means no listing record matched the target.
	StateAbsent DeviceState = "absent"
	// StateUnknown means the listing command itself failed, or the
	// device reported a token this tool does not recognize.
	StateUnknown DeviceState = "unknown"
)

// Healthy reports whether the state satisfies recovery.
func (s DeviceState) Healthy() bool {
	return s == StateHealthy
}

func classifyToken(token string) DeviceState {
	switch token {
	case "device":
		return StateHealthy
	case "unauthorized":
		return StateUnauthorized
	case "offline":
		return StateOffline
	default:
		return StateUnknown
	}
}
