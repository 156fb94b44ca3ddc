package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrev/clusterkit/internal/errors"
)

func testMoves() []Move {
	return []Move{
		{RangeStart: 0, RangeEnd: 1 << 62, SourceNodeID: 1, TargetNodeID: 2, EstimatedBytes: 1024},
		{RangeStart: 1 << 62, RangeEnd: 1 << 63, SourceNodeID: 2, TargetNodeID: 3, EstimatedBytes: 2048},
	}
}

func TestRebalanceLifecycle(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 3)

	var completed []Move
	ring.SetRebalanceCallback(func(m *Move) {
		completed = append(completed, *m)
	})

	ring.SetRebalancePlan(testMoves())
	assert.Equal(t, 0.0, ring.RebalanceProgress())

	require.NoError(t, ring.StartMove(0))
	require.NoError(t, ring.CompleteMove(0))
	assert.Equal(t, 0.5, ring.RebalanceProgress())

	require.NoError(t, ring.StartMove(1))
	require.NoError(t, ring.CompleteMove(1))
	assert.Equal(t, 1.0, ring.RebalanceProgress())

	require.Len(t, completed, 2)
	assert.Equal(t, uint64(1024), completed[0].EstimatedBytes)

	plan := ring.RebalancePlanSnapshot()
	require.NotNil(t, plan)
	assert.Equal(t, uint64(3072), plan.MovedBytes())

	st := ring.GetStats()
	assert.Equal(t, uint64(2), st.RebalanceMoves)
}

func TestRebalanceStateTransitions(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 3)
	ring.SetRebalancePlan(testMoves())

	// Completing or failing a pending move is rejected.
	err := ring.CompleteMove(0)
	assert.Equal(t, errors.ErrCodeInvalidState, errors.GetCode(err))
	err = ring.FailMove(0)
	assert.Equal(t, errors.ErrCodeInvalidState, errors.GetCode(err))

	require.NoError(t, ring.StartMove(0))
	err = ring.StartMove(0)
	assert.Equal(t, errors.ErrCodeInvalidState, errors.GetCode(err))

	require.NoError(t, ring.FailMove(0))
	plan := ring.RebalancePlanSnapshot()
	assert.Equal(t, MoveFailed, plan.Moves()[0].State)

	err = ring.StartMove(7)
	assert.Equal(t, errors.ErrCodeMoveNotFound, errors.GetCode(err))
}

func TestRebalanceCancel(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 3)

	// No plan means nothing left to do.
	assert.Equal(t, 1.0, ring.RebalanceProgress())
	err := ring.StartMove(0)
	assert.Equal(t, errors.ErrCodeInvalidState, errors.GetCode(err))

	ring.SetRebalancePlan(testMoves())
	assert.Equal(t, 0.0, ring.RebalanceProgress())

	ring.CancelRebalance()
	assert.Equal(t, 1.0, ring.RebalanceProgress())
	assert.Nil(t, ring.RebalancePlanSnapshot())
}
