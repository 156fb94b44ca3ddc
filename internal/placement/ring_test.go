package placement

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrev/clusterkit/internal/errors"
)

func testNode(id uint64, rack uint32) NodeConfig {
	return NodeConfig{
		ID:      id,
		Name:    fmt.Sprintf("node-%d", id),
		Address: fmt.Sprintf("10.0.0.%d:7000", id),
		Location: Location{
			NodeID: id,
			Rack:   rack,
			AZ:     rack % 3,
			Region: 1,
		},
		Weight:   100,
		Capacity: 1 << 40,
		State:    NodeUp,
	}
}

func newTestRing(t *testing.T, strategy StrategyType, nodeCount int) *Ring {
	t.Helper()
	ring, err := New(Config{
		Name:     "test",
		Strategy: strategy,
		HashSeed: 42,
	})
	require.NoError(t, err)
	for i := 1; i <= nodeCount; i++ {
		require.NoError(t, ring.AddNode(testNode(uint64(i), uint32(i))))
	}
	return ring
}

func TestNewRingValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "missing name",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "custom strategy without implementation",
			cfg:     Config{Name: "r", Strategy: StrategyCustom},
			wantErr: true,
		},
		{
			name:    "valid ketama",
			cfg:     Config{Name: "r"},
			wantErr: false,
		},
		{
			name:    "valid maglev",
			cfg:     Config{Name: "r", Strategy: StrategyMaglev},
			wantErr: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAddRemoveNode(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 3)
	assert.Equal(t, 3, ring.NodeCount())
	assert.Equal(t, 3, ring.HealthyNodeCount())

	err := ring.AddNode(testNode(2, 2))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNodeExists, errors.GetCode(err))

	require.NoError(t, ring.RemoveNode(2))
	assert.Equal(t, 2, ring.NodeCount())
	assert.Equal(t, 2, ring.HealthyNodeCount())

	err = ring.RemoveNode(2)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNodeNotFound, errors.GetCode(err))

	_, err = ring.GetNode(2)
	assert.Equal(t, errors.ErrCodeNodeNotFound, errors.GetCode(err))

	n, err := ring.GetNode(3)
	require.NoError(t, err)
	assert.Equal(t, "node-3", n.Name())
}

func TestAddNodesSkipsExisting(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 2)
	err := ring.AddNodes([]NodeConfig{
		testNode(2, 2), // already present
		testNode(3, 3),
		testNode(4, 4),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, ring.NodeCount())
}

func TestNewRingStartsAtVersionOne(t *testing.T) {
	ring, err := New(Config{Name: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ring.Version())

	// A fresh ring is already ahead of an unversioned peer.
	delta, err := ring.SerializeDelta(0)
	require.NoError(t, err)
	assert.NotNil(t, delta)
}

func TestVersionMonotonic(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 1)
	v := ring.Version()

	require.NoError(t, ring.AddNode(testNode(2, 2)))
	assert.Greater(t, ring.Version(), v)
	v = ring.Version()

	require.NoError(t, ring.SetNodeState(2, NodeMaintenance))
	assert.Greater(t, ring.Version(), v)
	v = ring.Version()

	require.NoError(t, ring.SetNodeWeight(2, 250))
	assert.Greater(t, ring.Version(), v)
	v = ring.Version()

	require.NoError(t, ring.RemoveNode(2))
	assert.Greater(t, ring.Version(), v)
}

func TestSetNodeStateTracksHealthyCount(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 3)

	require.NoError(t, ring.SetNodeState(1, NodeDown))
	assert.Equal(t, 2, ring.HealthyNodeCount())

	// Same state again is a no-op.
	require.NoError(t, ring.SetNodeState(1, NodeDown))
	assert.Equal(t, 2, ring.HealthyNodeCount())

	require.NoError(t, ring.SetNodeState(1, NodeUp))
	assert.Equal(t, 3, ring.HealthyNodeCount())
}

func TestStateCallbacks(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 1)

	type transition struct {
		id       uint64
		from, to NodeState
	}
	var seen []transition
	ring.SetNodeStateCallback(func(n *Node, from, to NodeState) {
		seen = append(seen, transition{n.ID(), from, to})
	})

	require.NoError(t, ring.AddNode(testNode(9, 1)))
	require.NoError(t, ring.SetNodeState(9, NodeLeaving))
	require.NoError(t, ring.RemoveNode(9))

	require.Len(t, seen, 3)
	assert.Equal(t, transition{9, NodeDown, NodeUp}, seen[0])
	assert.Equal(t, transition{9, NodeUp, NodeLeaving}, seen[1])
	assert.Equal(t, transition{9, NodeLeaving, NodeDown}, seen[2])
}

func TestSetNodeWeightRegeneratesVnodes(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 2)
	n, err := ring.GetNode(1)
	require.NoError(t, err)
	before := n.VnodeCount()
	assert.Equal(t, 150, before) // weight 100 at the default multiplier

	require.NoError(t, ring.SetNodeWeight(1, 200))
	assert.Equal(t, 300, n.VnodeCount())

	// Clamped at the configured maximum.
	require.NoError(t, ring.SetNodeWeight(1, 10000))
	assert.Equal(t, 500, n.VnodeCount())
}

func TestIterateNodes(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 5)
	require.NoError(t, ring.SetNodeState(3, NodeDown))

	count := 0
	ring.IterateNodes(func(n *Node) bool {
		count++
		return true
	})
	assert.Equal(t, 5, count)

	// Early stop.
	count = 0
	ring.IterateNodes(func(n *Node) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count)

	var down []uint64
	ring.IterateNodesByState(NodeDown, func(n *Node) bool {
		down = append(down, n.ID())
		return true
	})
	assert.Equal(t, []uint64{3}, down)

	var inRack []uint64
	ring.IterateNodesByLocation(LevelRack, 4, func(n *Node) bool {
		inRack = append(inRack, n.ID())
		return true
	})
	assert.Equal(t, []uint64{4}, inRack)
}

func TestGetStats(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 4)
	_, err := ring.Locate([]byte("alpha"))
	require.NoError(t, err)
	_, err = ring.Locate([]byte("beta"))
	require.NoError(t, err)

	st := ring.GetStats()
	assert.Equal(t, 4, st.NodeCount)
	assert.Equal(t, 4, st.HealthyNodeCount)
	assert.Equal(t, 600, st.VnodeCount)
	assert.Equal(t, uint64(2), st.LocateOps)
	assert.Greater(t, st.MemoryBytes, uint64(0))
	// Equal weights give a flat distribution.
	assert.InDelta(t, 1.0, st.LoadMaxRatio, 0.001)
	assert.InDelta(t, 1.0, st.LoadMinRatio, 0.001)
	assert.InDelta(t, 0.0, st.LoadVariance, 0.001)

	ring.ResetStats()
	st = ring.GetStats()
	assert.Equal(t, uint64(0), st.LocateOps)
}
