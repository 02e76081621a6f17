package order

// Effect is a compensating side effect a transition requires besides the
// durable state write. Effects are returned, not executed, so the transition
// rules can be tested without a store.
type Effect string

// EffectReleasePosition resets the trader's position to Open.
const EffectReleasePosition Effect = "release_position"

var transitions = map[State][]State{
	StateInitial:  {StateOpen, StateRejected, StateFailed},
	StateOpen:     {StateFilling, StateRejected, StateFailed},
	StateFilling:  {StateFilled, StateFailed},
	StateFilled:   {},
	StateFailed:   {},
	StateRejected: {},
}

func IsTerminal(s State) bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether an order may move between the two states.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidPredecessors lists the states an order must currently be in for a
// transition to the target state to commit. The store uses this as a guard
// so that two racing transitions cannot both win: the first write commits,
// the second sees no matching row and reports a conflict.
func ValidPredecessors(to State) []State {
	var from []State
	for state, successors := range transitions {
		for _, next := range successors {
			if next == to {
				from = append(from, state)
			}
		}
	}
	return from
}

// FailClosed returns the compensating transition to apply when the durable
// write for the target state cannot be committed. A filling order whose
// state cannot be recorded must not be left ambiguous.
func FailClosed(target State) (State, FailureReason, []Effect) {
	switch target {
	case StateFilling:
		return StateFailed, FailureFailedToSetToFilling, []Effect{EffectReleasePosition}
	case StateOpen:
		return StateRejected, "", []Effect{EffectReleasePosition}
	default:
		return StateFailed, FailureTradeRequest, []Effect{EffectReleasePosition}
	}
}
