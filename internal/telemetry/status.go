package telemetry

import "fmt"

// ConnectionState is the serial link state as seen by the acquisition loop.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Error
)

var stateNames = [...]string{"disconnected", "connecting", "connected", "error"}

func (s ConnectionState) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionState) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = ConnectionState(i)
			return nil
		}
	}
	return fmt.Errorf("telemetry: unknown connection state %q", b)
}

// Status is the connection status surfaced to the presentation layer.
type Status struct {
	State     ConnectionState `json:"state"`
	Port      string          `json:"port,omitempty"`
	LastError string          `json:"last_error,omitempty"` // shown as is, e.g. "Connection failed"
}

// Text is the human status line shown next to the angle labels.
func (s Status) Text() string {
	switch s.State {
	case Connecting:
		return "Status: Connecting..."
	case Connected:
		return "Status: Connected to " + s.Port
	case Error:
		if s.LastError != "" {
			return "Status: " + s.LastError
		}
		return "Status: Error"
	default:
		return "Status: Disconnected"
	}
}
