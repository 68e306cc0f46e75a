package session

// State is the lifecycle state of the session. Exactly one value holds at
// any instant; StateExpired is the zero value and the only state from which
// a fresh session may be started.
type State int

const (
	StateExpired State = iota
	StateActive
	StateWarning
	StateExtending
)

func (s State) String() string {
	switch s {
	case StateExpired:
		return "expired"
	case StateActive:
		return "active"
	case StateWarning:
		return "warning"
	case StateExtending:
		return "extending"
	}
	return "unknown"
}
