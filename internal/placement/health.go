package placement

import (
	"time"

	"go.uber.org/zap"

	"github.com/devrev/clusterkit/internal/errors"
)

// NodeHealth is a reachability observation for one node.
type NodeHealth struct {
	Reachable bool
	LatencyMs float64
	ErrorRate float64
}

// NodeLoad is a resource usage observation for one node. Usage fields
// are fractions in [0, 1].
type NodeLoad struct {
	CPUUsage          float64
	MemoryUsage       float64
	DiskUsage         float64
	ActiveConnections uint32
	RequestQueueDepth uint32
}

// HealthProvider supplies health and load observations for cluster
// members. Implementations are called outside the ring lock.
type HealthProvider interface {
	CheckHealth(nodeID uint64) NodeHealth
	SampleLoad(nodeID uint64) NodeLoad
}

// SetHealthProvider attaches a health provider and enables load-aware
// routing. Passing nil detaches and disables it.
func (r *Ring) SetHealthProvider(p HealthProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.healthProvider = p
	r.loadAware = p != nil
}

// UpdateNodeHealth records a health observation. Repeated failures
// push an Up node to Suspect once the failure threshold is crossed; a
// successful check recovers a Suspect node to Up.
func (r *Ring) UpdateNodeHealth(id uint64, h NodeHealth) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.nodeIndex[id]
	if !ok {
		return errors.NodeNotFound(id)
	}
	n := r.nodes[idx]
	n.lastHealth = h
	n.lastHealthCheck = time.Now().UnixNano()

	if !h.Reachable && n.state == NodeUp {
		n.failureCount++
		if n.failureCount >= suspectFailureThreshold {
			r.logger.Warn("node marked suspect",
				zap.String("ring", r.name),
				zap.Uint64("node_id", id),
				zap.Uint32("failures", n.failureCount))
			return r.setNodeStateLocked(id, NodeSuspect)
		}
	} else if h.Reachable && n.state == NodeSuspect {
		n.failureCount = 0
		return r.setNodeStateLocked(id, NodeUp)
	}
	return nil
}

// UpdateNodeLoad records a load observation for later load-aware
// routing decisions.
func (r *Ring) UpdateNodeLoad(id uint64, l NodeLoad) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.nodeIndex[id]
	if !ok {
		return errors.NodeNotFound(id)
	}
	n := r.nodes[idx]
	n.lastLoad = l
	n.lastLoadUpdate = time.Now().UnixNano()
	return nil
}

// RefreshHealth polls the attached provider for every member and
// applies the observations. It is a no-op without a provider.
func (r *Ring) RefreshHealth() {
	r.mu.Lock()
	provider := r.healthProvider
	ids := make([]uint64, 0, len(r.nodes))
	for _, n := range r.nodes {
		ids = append(ids, n.id)
	}
	r.mu.Unlock()

	if provider == nil {
		return
	}
	for _, id := range ids {
		h := provider.CheckHealth(id)
		l := provider.SampleLoad(id)
		// Nodes removed between the snapshot and now are skipped.
		if err := r.UpdateNodeHealth(id, h); err != nil {
			continue
		}
		_ = r.UpdateNodeLoad(id, l)
	}
}

// SetNodeUsedBytes records the bytes a node currently stores. The
// figure feeds rebalance estimates and snapshots.
func (r *Ring) SetNodeUsedBytes(id uint64, used uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.nodeIndex[id]
	if !ok {
		return errors.NodeNotFound(id)
	}
	r.nodes[idx].usedBytes = used
	return nil
}
