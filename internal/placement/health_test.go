package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrev/clusterkit/internal/errors"
)

func TestHealthFailureEscalatesToSuspect(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 3)

	unreachable := NodeHealth{Reachable: false, LatencyMs: 0}
	require.NoError(t, ring.UpdateNodeHealth(1, unreachable))
	require.NoError(t, ring.UpdateNodeHealth(1, unreachable))

	n, err := ring.GetNode(1)
	require.NoError(t, err)
	assert.Equal(t, NodeUp, n.State())

	// Third consecutive failure crosses the threshold.
	require.NoError(t, ring.UpdateNodeHealth(1, unreachable))
	assert.Equal(t, NodeSuspect, n.State())
	assert.Equal(t, 2, ring.HealthyNodeCount())

	// A successful check recovers the node.
	require.NoError(t, ring.UpdateNodeHealth(1, NodeHealth{Reachable: true, LatencyMs: 0.4}))
	assert.Equal(t, NodeUp, n.State())
	assert.Equal(t, 3, ring.HealthyNodeCount())
}

func TestHealthDoesNotTouchNonUpStates(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 2)
	require.NoError(t, ring.SetNodeState(1, NodeMaintenance))

	unreachable := NodeHealth{Reachable: false}
	for i := 0; i < 5; i++ {
		require.NoError(t, ring.UpdateNodeHealth(1, unreachable))
	}
	n, err := ring.GetNode(1)
	require.NoError(t, err)
	assert.Equal(t, NodeMaintenance, n.State())
}

func TestUpdateNodeLoad(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 2)

	load := NodeLoad{CPUUsage: 0.75, MemoryUsage: 0.5, ActiveConnections: 120}
	require.NoError(t, ring.UpdateNodeLoad(2, load))

	n, err := ring.GetNode(2)
	require.NoError(t, err)
	assert.Equal(t, load, n.Load())

	err = ring.UpdateNodeLoad(99, load)
	assert.Equal(t, errors.ErrCodeNodeNotFound, errors.GetCode(err))
}

type recordingProvider struct {
	checked []uint64
}

func (p *recordingProvider) CheckHealth(nodeID uint64) NodeHealth {
	p.checked = append(p.checked, nodeID)
	return NodeHealth{Reachable: true, LatencyMs: 1.5}
}

func (p *recordingProvider) SampleLoad(nodeID uint64) NodeLoad {
	return NodeLoad{CPUUsage: float64(nodeID) / 10}
}

func TestRefreshHealthPollsProvider(t *testing.T) {
	ring := newTestRing(t, StrategyKetama, 3)

	provider := &recordingProvider{}
	ring.SetHealthProvider(provider)
	ring.RefreshHealth()

	assert.ElementsMatch(t, []uint64{1, 2, 3}, provider.checked)
	n, err := ring.GetNode(3)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, n.Load().CPUUsage, 0.001)

	// Detaching disables load awareness and stops polling.
	ring.SetHealthProvider(nil)
	provider.checked = nil
	ring.RefreshHealth()
	assert.Empty(t, provider.checked)
}
