package placement

import (
	"time"

	"github.com/devrev/clusterkit/internal/errors"
)

// Placement is the replica set chosen for one key. Nodes are ordered
// by preference with the primary first, and contain only routable
// members at the time of the call.
type Placement struct {
	Hash         uint64
	Nodes        []*Node
	HealthyCount int
	KeySpace     *KeySpace
}

// Primary returns the first-choice replica.
func (p *Placement) Primary() *Node {
	if len(p.Nodes) == 0 {
		return nil
	}
	return p.Nodes[0]
}

// WriteSet is the plan for writing one key: which replicas to target
// and how many must acknowledge synchronously.
type WriteSet struct {
	Targets          []*Node
	SyncRequired     int
	AsyncAllowed     int
	SuggestedTimeout time.Duration
}

// ReadSet is the plan for reading one key.
type ReadSet struct {
	Candidates        []*Node
	RequiredResponses int
	ReadRepair        bool
}

// Locate resolves the replica set for a key under the ring's default
// quorum.
func (r *Ring) Locate(key []byte) (*Placement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locateLocked(key, nil)
}

// LocateKeySpace resolves a key within a named keyspace. The keyspace
// tags the placement so callers can apply its quorum to planning.
func (r *Ring) LocateKeySpace(keySpace string, key []byte) (*Placement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ks := r.findKeySpaceLocked(keySpace)
	if ks == nil {
		return nil, errors.KeySpaceNotFound(keySpace)
	}
	return r.locateLocked(key, ks)
}

// LocateWithCount resolves a key with an explicit replica count
// instead of the quorum's replica count.
func (r *Ring) LocateWithCount(key []byte, count int) (*Placement, error) {
	if count < 1 {
		return nil, errors.InvalidArgument("replica count must be positive", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locateCountLocked(key, nil, count)
}

// LocateBulk resolves many keys under one lock acquisition. The result
// has one entry per key; a key that cannot be placed yields a nil
// entry and the first error is returned alongside the partial results.
func (r *Ring) LocateBulk(keys [][]byte) ([]*Placement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Placement, len(keys))
	var firstErr error
	for i, key := range keys {
		p, err := r.locateLocked(key, nil)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[i] = p
	}
	return out, firstErr
}

func (r *Ring) locateLocked(key []byte, ks *KeySpace) (*Placement, error) {
	max := int(r.defaultQuorum.ReplicaCount)
	if ks != nil {
		max = int(ks.quorum.ReplicaCount)
	}
	return r.locateCountLocked(key, ks, max)
}

func (r *Ring) locateCountLocked(key []byte, ks *KeySpace, max int) (*Placement, error) {
	if len(key) == 0 {
		return nil, errors.InvalidArgument("empty key", nil)
	}
	if len(r.nodes) == 0 {
		return nil, errors.NoNodes()
	}

	start := time.Now()

	var nodes []*Node
	switch r.strategy {
	case StrategyKetama:
		nodes = r.ketamaLocateLocked(key, max)
	case StrategyRendezvous:
		nodes = r.rendezvousLocateLocked(key, max)
	case StrategyJump:
		nodes = r.jumpLocateLocked(key, max)
	case StrategyMaglev:
		nodes = r.maglevLocateLocked(key, max)
	case StrategyBounded:
		nodes = r.boundedLocateLocked(key, max)
	case StrategyCustom:
		nodes = r.custom.Locate(r, key, max)
	}
	if len(nodes) == 0 {
		return nil, errors.NoNodes()
	}

	healthy := 0
	for _, n := range nodes {
		if n.state.routable() {
			healthy++
		}
	}

	p := &Placement{
		Hash:         hashKey(r.seed, key),
		Nodes:        nodes,
		HealthyCount: healthy,
		KeySpace:     ks,
	}
	r.stats.locateOps++
	if ks != nil {
		ks.locateOps++
	}
	r.stats.recordLocate(time.Since(start).Nanoseconds())
	if r.metrics != nil {
		r.metrics.RecordLocate(r.strategy.String(), time.Since(start).Seconds())
	}
	return p, nil
}

// CheckPlacementAffinity verifies a placement against the ring's
// spread rules plus any rules of the placement's keyspace.
func (r *Ring) CheckPlacementAffinity(p *Placement) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !checkAffinity(p.Nodes, r.affinityRules) {
		return false
	}
	if p.KeySpace != nil && !checkAffinity(p.Nodes, p.KeySpace.rules) {
		return false
	}
	return true
}

// PlanWrite turns a placement into a write plan. A nil quorum selects
// the ring default, or the keyspace quorum when the placement carries
// one. When fewer routable replicas exist than the write quorum
// demands, the populated plan is returned together with a quorum
// error so callers can decide whether to write at reduced durability.
func (r *Ring) PlanWrite(p *Placement, q *Quorum) (*WriteSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	quorum := r.planQuorumLocked(p, q)
	r.stats.writeOps++
	if p.KeySpace != nil {
		p.KeySpace.writeOps++
	}

	ws := &WriteSet{Targets: p.Nodes}
	sync := int(quorum.WriteSync)
	if sync > len(ws.Targets) {
		sync = len(ws.Targets)
	}
	ws.SyncRequired = sync
	ws.AsyncAllowed = len(ws.Targets) - sync
	ws.SuggestedTimeout = time.Duration(100+50*sync) * time.Millisecond

	if p.HealthyCount < int(quorum.WriteQuorum) {
		if r.metrics != nil {
			r.metrics.RecordQuorumFailure()
		}
		return ws, errors.QuorumFailed(p.HealthyCount, int(quorum.WriteQuorum))
	}
	return ws, nil
}

// PlanRead turns a placement into a read plan, mirroring PlanWrite.
func (r *Ring) PlanRead(p *Placement, q *Quorum) (*ReadSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	quorum := r.planQuorumLocked(p, q)
	r.stats.readOps++
	if p.KeySpace != nil {
		p.KeySpace.readOps++
	}

	rs := &ReadSet{Candidates: p.Nodes, ReadRepair: quorum.ReadRepair}
	required := int(quorum.ReadQuorum)
	if required > len(rs.Candidates) {
		required = len(rs.Candidates)
	}
	rs.RequiredResponses = required

	if p.HealthyCount < int(quorum.ReadQuorum) {
		if r.metrics != nil {
			r.metrics.RecordQuorumFailure()
		}
		return rs, errors.QuorumFailed(p.HealthyCount, int(quorum.ReadQuorum))
	}
	return rs, nil
}

func (r *Ring) planQuorumLocked(p *Placement, q *Quorum) Quorum {
	if q != nil {
		return *q
	}
	if p.KeySpace != nil {
		return p.KeySpace.quorum
	}
	return r.defaultQuorum
}

// selectReadCPUThreshold seeds the load-aware scan; any real sample
// is below it.
const selectReadCPUThreshold = 2.0

// SelectReadNode picks a single replica for a read. With load
// awareness enabled it prefers the least CPU-loaded routable replica,
// otherwise the first routable one.
func (r *Ring) SelectReadNode(p *Placement) (*Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loadAware {
		var best *Node
		bestCPU := selectReadCPUThreshold
		for _, n := range p.Nodes {
			if !n.state.routable() {
				continue
			}
			if n.lastLoad.CPUUsage < bestCPU {
				best = n
				bestCPU = n.lastLoad.CPUUsage
			}
		}
		if best != nil {
			return best, nil
		}
		return nil, errors.NoNodes()
	}

	for _, n := range p.Nodes {
		if n.state.routable() {
			return n, nil
		}
	}
	return nil, errors.NoNodes()
}
