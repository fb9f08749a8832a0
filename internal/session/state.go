package session

// State is the lifecycle phase of the current session.
type State int

const (
	// Anonymous: no token held.
	Anonymous State = iota
	// Authenticated: a decodable token whose expiry is in the future.
	Authenticated
	// Expiring: the token is stale or a teardown is in flight.
	Expiring
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	case Expiring:
		return "expiring"
	default:
		return "unknown"
	}
}
