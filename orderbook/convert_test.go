package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tradeorder "github.com/bikraj2/10101/trade/order"
)

func TestStateFromClient_Total(t *testing.T) {
	expected := map[tradeorder.State]State{
		tradeorder.StateInitial:  StateOpen,
		tradeorder.StateOpen:     StateOpen,
		tradeorder.StateFilling:  StateMatched,
		tradeorder.StateFilled:   StateTaken,
		tradeorder.StateFailed:   StateFailed,
		tradeorder.StateRejected: StateFailed,
	}

	for from, want := range expected {
		assert.Equal(t, want, StateFromClient(from), "client state %s", from)
	}
}

func TestStateToClient_Total(t *testing.T) {
	expected := map[State]tradeorder.State{
		StateOpen:    tradeorder.StateOpen,
		StateMatched: tradeorder.StateFilling,
		StateTaken:   tradeorder.StateFilled,
		StateFailed:  tradeorder.StateFailed,
	}

	for from, want := range expected {
		assert.Equal(t, want, StateToClient(from), "coordinator state %s", from)
	}
}

func TestStateRoundTripThroughCoordinator(t *testing.T) {
	// Open and Filling survive the round trip; the rest collapse onto a
	// client-side terminal state.
	assert.Equal(t, tradeorder.StateOpen, StateToClient(StateFromClient(tradeorder.StateOpen)))
	assert.Equal(t, tradeorder.StateFilling, StateToClient(StateFromClient(tradeorder.StateFilling)))
	assert.Equal(t, tradeorder.StateFilled, StateToClient(StateFromClient(tradeorder.StateFilled)))
}
