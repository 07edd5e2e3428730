package pagination

// State identifies where a scheduler currently is in its fetch loop. The
// zero value is StateIdle; a scheduler ends in StateDone or StateFailed.
type State int32

const (
	StateIdle State = iota
	StateAwaitingPermit
	StateAwaitingToken
	StateFetching
	StateRetrying
	StateDone
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPermit:
		return "awaiting_permit"
	case StateAwaitingToken:
		return "awaiting_token"
	case StateFetching:
		return "fetching"
	case StateRetrying:
		return "retrying"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
