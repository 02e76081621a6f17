package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	allStates := []State{StateInitial, StateOpen, StateFilling, StateFilled, StateFailed, StateRejected}

	allowed := map[[2]State]bool{
		{StateInitial, StateOpen}:     true,
		{StateInitial, StateRejected}: true,
		{StateInitial, StateFailed}:   true,
		{StateOpen, StateFilling}:     true,
		{StateOpen, StateRejected}:    true,
		{StateOpen, StateFailed}:      true,
		{StateFilling, StateFilled}:   true,
		{StateFilling, StateFailed}:   true,
	}

	for _, from := range allStates {
		for _, to := range allStates {
			assert.Equal(t, allowed[[2]State{from, to}], CanTransition(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoSuccessors(t *testing.T) {
	for _, s := range []State{StateFilled, StateFailed, StateRejected} {
		assert.True(t, IsTerminal(s), "%s should be terminal", s)
	}
	for _, s := range []State{StateInitial, StateOpen, StateFilling} {
		assert.False(t, IsTerminal(s), "%s should not be terminal", s)
	}
}

func TestValidPredecessors(t *testing.T) {
	assert.ElementsMatch(t, []State{StateOpen}, ValidPredecessors(StateFilling))
	assert.ElementsMatch(t, []State{StateFilling}, ValidPredecessors(StateFilled))
	assert.ElementsMatch(t, []State{StateInitial, StateOpen}, ValidPredecessors(StateRejected))
	assert.ElementsMatch(t, []State{StateInitial, StateOpen, StateFilling}, ValidPredecessors(StateFailed))
}

func TestFailClosed(t *testing.T) {
	next, reason, effects := FailClosed(StateFilling)
	assert.Equal(t, StateFailed, next)
	assert.Equal(t, FailureFailedToSetToFilling, reason)
	assert.Equal(t, []Effect{EffectReleasePosition}, effects)

	next, reason, effects = FailClosed(StateOpen)
	assert.Equal(t, StateRejected, next)
	assert.Empty(t, reason)
	assert.Equal(t, []Effect{EffectReleasePosition}, effects)
}
