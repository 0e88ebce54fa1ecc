package controller

// State is the controller's position in the gesture lifecycle.
type State int

const (
	// StateIdle means no wand tip is being tracked.
	StateIdle State = iota
	// StateTracking means a trajectory is being built.
	StateTracking
	// StateClassifying means a finalized sigil is being scored.
	StateClassifying
	// StateDispatching means the winning label is being handed to the
	// effect dispatcher.
	StateDispatching
	// StateCooldown absorbs the trailing frames of a dispatched gesture.
	StateCooldown
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	case StateClassifying:
		return "classifying"
	case StateDispatching:
		return "dispatching"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Event is a state transition notification, delivered to listeners on
// the controller's loop goroutine.
type Event struct {
	State State `json:"state"`

	// Label and Score are set on dispatch transitions.
	Label string  `json:"label,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// Stats are the controller's monotonic counters.
type Stats struct {
	Frames            uint64 `json:"frames"`
	GesturesStarted   uint64 `json:"gestures_started"`
	GesturesDiscarded uint64 `json:"gestures_discarded"`
	GesturesFinalized uint64 `json:"gestures_finalized"`
	SpellsRejected    uint64 `json:"spells_rejected"`
	SpellsDispatched  uint64 `json:"spells_dispatched"`
	ClassifyErrors    uint64 `json:"classify_errors"`
}
