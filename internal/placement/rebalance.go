package placement

import "github.com/devrev/clusterkit/internal/errors"

// MoveState tracks one rebalance move through its lifecycle.
type MoveState uint32

const (
	MovePending MoveState = iota
	MoveInProgress
	MoveCompleted
	MoveFailed
)

func (s MoveState) String() string {
	switch s {
	case MovePending:
		return "pending"
	case MoveInProgress:
		return "in_progress"
	case MoveCompleted:
		return "completed"
	case MoveFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Move describes one hash-range transfer between nodes.
type Move struct {
	RangeStart     uint64
	RangeEnd       uint64
	SourceNodeID   uint64
	TargetNodeID   uint64
	EstimatedBytes uint64
	State          MoveState
}

// RebalanceCallback is invoked when a move completes. It runs with the
// ring lock held and must not call back into the ring.
type RebalanceCallback func(move *Move)

// RebalancePlan is a set of moves being executed against the ring.
type RebalancePlan struct {
	moves      []Move
	completed  int
	movedBytes uint64
}

// Moves returns a copy of the plan's moves.
func (p *RebalancePlan) Moves() []Move {
	return append([]Move(nil), p.moves...)
}

// MovedBytes returns the running total of completed move sizes.
func (p *RebalancePlan) MovedBytes() uint64 { return p.movedBytes }

// SetRebalanceCallback registers a callback fired on move completion.
func (r *Ring) SetRebalanceCallback(cb RebalanceCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebalanceCallback = cb
}

// SetRebalancePlan installs a plan, replacing any existing one. Moves
// start in the Pending state.
func (r *Ring) SetRebalancePlan(moves []Move) {
	r.mu.Lock()
	defer r.mu.Unlock()
	plan := &RebalancePlan{moves: append([]Move(nil), moves...)}
	for i := range plan.moves {
		plan.moves[i].State = MovePending
	}
	r.rebalancePlan = plan
}

// RebalancePlanSnapshot returns a copy of the active plan, or nil.
func (r *Ring) RebalancePlanSnapshot() *RebalancePlan {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rebalancePlan == nil {
		return nil
	}
	return &RebalancePlan{
		moves:      append([]Move(nil), r.rebalancePlan.moves...),
		completed:  r.rebalancePlan.completed,
		movedBytes: r.rebalancePlan.movedBytes,
	}
}

// StartMove transitions a pending move to in-progress.
func (r *Ring) StartMove(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.moveAtLocked(index)
	if err != nil {
		return err
	}
	if m.State != MovePending {
		return errors.InvalidState("move is not pending")
	}
	m.State = MoveInProgress
	return nil
}

// CompleteMove marks an in-progress move as done, accumulating its
// size into the plan totals and firing the rebalance callback.
func (r *Ring) CompleteMove(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.moveAtLocked(index)
	if err != nil {
		return err
	}
	if m.State != MoveInProgress {
		return errors.InvalidState("move is not in progress")
	}
	m.State = MoveCompleted
	r.rebalancePlan.completed++
	r.rebalancePlan.movedBytes += m.EstimatedBytes
	r.stats.rebalanceMoves++
	if r.metrics != nil {
		r.metrics.RecordRebalanceMove(m.EstimatedBytes)
	}
	if r.rebalanceCallback != nil {
		r.rebalanceCallback(m)
	}
	return nil
}

// FailMove marks an in-progress move as failed.
func (r *Ring) FailMove(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.moveAtLocked(index)
	if err != nil {
		return err
	}
	if m.State != MoveInProgress {
		return errors.InvalidState("move is not in progress")
	}
	m.State = MoveFailed
	return nil
}

// CancelRebalance drops the active plan.
func (r *Ring) CancelRebalance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebalancePlan = nil
}

// RebalanceProgress reports completion as a fraction in [0, 1]. An
// empty or absent plan reports 1.
func (r *Ring) RebalanceProgress() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rebalancePlan == nil || len(r.rebalancePlan.moves) == 0 {
		return 1.0
	}
	return float64(r.rebalancePlan.completed) / float64(len(r.rebalancePlan.moves))
}

func (r *Ring) moveAtLocked(index int) (*Move, error) {
	if r.rebalancePlan == nil {
		return nil, errors.InvalidState("no rebalance plan installed")
	}
	if index < 0 || index >= len(r.rebalancePlan.moves) {
		return nil, errors.MoveNotFound(index)
	}
	return &r.rebalancePlan.moves[index], nil
}
