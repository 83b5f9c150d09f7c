package cache

// Outcome classifies the result of a cache lookup.
type Outcome int

const (
	// OutcomeMiss means the backend answered and holds no live entry for the key.
	OutcomeMiss Outcome = iota
	// OutcomeHit means a live entry was found and decoded.
	OutcomeHit
	// OutcomeBypass means the coordinator is not connected and did not contact the backend.
	OutcomeBypass
	// OutcomeUnavailable means the backend operation failed.
	OutcomeUnavailable
	// OutcomeFormatError means an entry was found but did not decode.
	OutcomeFormatError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMiss:
		return "miss"
	case OutcomeHit:
		return "hit"
	case OutcomeBypass:
		return "bypass"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeFormatError:
		return "format_error"
	default:
		return "unknown"
	}
}

// LookupResult is the explicit result of a cache read. Get collapses every
// outcome other than OutcomeHit into "absent".
type LookupResult[T any] struct {
	Value   T
	Outcome Outcome
	// Err is set for OutcomeUnavailable and OutcomeFormatError and wraps
	// ErrCacheUnavailable or ErrCacheFormat respectively.
	Err error
}

// Hit reports whether the lookup produced a value.
func (r LookupResult[T]) Hit() bool {
	return r.Outcome == OutcomeHit
}

// State is the connection state of a Coordinator.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	// StateDegraded means the connect step failed; reads miss and writes are dropped.
	StateDegraded
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
