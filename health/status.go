package health

import "fmt"

// Status is the reachability classification of the backend.
type Status int

const (
	// StatusUnknown means no probe or platform signal has been observed yet.
	StatusUnknown Status = iota
	// StatusOnline means the last probe succeeded within the degraded threshold.
	StatusOnline
	// StatusDegraded means the last probe succeeded but was slow.
	StatusDegraded
	// StatusOffline means the backend is unreachable.
	StatusOffline
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusDegraded:
		return "degraded"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Reachable reports whether requests may be sent. Degraded counts as
// reachable.
func (s Status) Reachable() bool {
	return s == StatusOnline || s == StatusDegraded
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus parses the output of Status.String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "unknown":
		return StatusUnknown, nil
	case "online":
		return StatusOnline, nil
	case "degraded":
		return StatusDegraded, nil
	case "offline":
		return StatusOffline, nil
	default:
		return StatusUnknown, fmt.Errorf("health: unknown status %q", s)
	}
}
