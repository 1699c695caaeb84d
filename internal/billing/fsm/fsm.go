package fsm

// Status constants used by the purchase flow state machine.
const (
	StatusIdle                   = "idle"
	StatusLaunching              = "launching"
	StatusAwaitingCompletion     = "awaiting_completion"
	StatusAwaitingAcknowledgment = "awaiting_acknowledgment"
	StatusResolved               = "resolved"
)

var transitions = map[string]map[string]struct{}{
	StatusIdle: {StatusLaunching: {}},
	StatusLaunching: {
		StatusAwaitingCompletion:     {},
		StatusAwaitingAcknowledgment: {},
		StatusResolved:               {},
	},
	StatusAwaitingCompletion: {
		StatusAwaitingAcknowledgment: {},
		StatusResolved:               {},
	},
	StatusAwaitingAcknowledgment: {StatusResolved: {}},
	StatusResolved:               {StatusIdle: {}},
}

// CanTransition returns whether the purchase flow can move from the current status to the target status.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Terminal reports whether the status ends a purchase flow.
func Terminal(status string) bool {
	return status == StatusResolved
}
