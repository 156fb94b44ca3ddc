package placement

import (
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/devrev/clusterkit/internal/errors"
	"github.com/devrev/clusterkit/internal/metrics"
)

const (
	initialNodeCapacity     = 16
	initialVnodeCapacity    = 256
	initialKeySpaceCapacity = 8

	defaultVnodeMultiplier = 150
	minVnodesPerNode       = 10
	maxVnodesPerNode       = 500

	defaultNodeWeight = 100

	suspectFailureThreshold = 3
)

// VnodeConfig controls virtual node generation for vnode-based
// strategies. Zero values select the defaults.
type VnodeConfig struct {
	Multiplier uint32 // vnodes per 100 weight units
	Min        uint32
	Max        uint32
}

func (v *VnodeConfig) applyDefaults() {
	if v.Multiplier == 0 {
		v.Multiplier = defaultVnodeMultiplier
	}
	if v.Min == 0 {
		v.Min = minVnodesPerNode
	}
	if v.Max == 0 {
		v.Max = maxVnodesPerNode
	}
}

// NodeStateCallback is invoked after a node changes lifecycle state.
// It runs with the ring lock held and must not call back into the ring.
type NodeStateCallback func(node *Node, oldState, newState NodeState)

// Config describes a new ring.
type Config struct {
	Name              string
	Strategy          StrategyType
	Custom            Strategy // required when Strategy is StrategyCustom
	DefaultQuorum     *Quorum  // nil selects QuorumBalanced
	Vnodes            VnodeConfig
	AffinityRules     []AffinityRule
	ExpectedNodeCount int
	HashSeed          uint32
	Logger            *zap.Logger
	Metrics           *metrics.Metrics
}

// Ring is a consistent-hashing placement engine over a set of nodes.
// All methods are safe for concurrent use.
type Ring struct {
	mu sync.Mutex

	name          string
	strategy      StrategyType
	custom        Strategy
	seed          uint32
	defaultQuorum Quorum
	vnodeCfg      VnodeConfig
	affinityRules []AffinityRule

	nodes        []*Node
	nodeIndex    map[uint64]int
	healthyCount int

	vnodes    []vnodePoint
	needsSort bool

	jumpBuckets []*Node
	jumpDirty   bool

	maglevTable []*Node
	maglevDirty bool

	keyspaces []*KeySpace

	rebalancePlan *RebalancePlan

	loadAware      bool
	healthProvider HealthProvider

	stateCallback     NodeStateCallback
	rebalanceCallback RebalanceCallback

	version      uint64
	lastModified int64

	stats ringStats

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates an empty ring from cfg.
func New(cfg Config) (*Ring, error) {
	if cfg.Name == "" {
		return nil, errors.InvalidArgument("ring name is required", nil)
	}
	if cfg.Strategy == StrategyCustom && cfg.Custom == nil {
		return nil, errors.InvalidArgument("custom strategy requires an implementation", nil)
	}
	if cfg.Strategy > StrategyCustom {
		return nil, errors.InvalidArgument("unknown placement strategy", nil)
	}

	quorum := QuorumBalanced
	if cfg.DefaultQuorum != nil {
		quorum = *cfg.DefaultQuorum
	}
	vc := cfg.Vnodes
	vc.applyDefaults()

	nodeCap := initialNodeCapacity
	if cfg.ExpectedNodeCount > nodeCap {
		nodeCap = cfg.ExpectedNodeCount
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Ring{
		name:          cfg.Name,
		strategy:      cfg.Strategy,
		custom:        cfg.Custom,
		seed:          cfg.HashSeed,
		defaultQuorum: quorum,
		vnodeCfg:      vc,
		affinityRules: append([]AffinityRule(nil), cfg.AffinityRules...),
		nodes:         make([]*Node, 0, nodeCap),
		nodeIndex:     make(map[uint64]int, nodeCap),
		vnodes:        make([]vnodePoint, 0, initialVnodeCapacity),
		keyspaces:     make([]*KeySpace, 0, initialKeySpaceCapacity),
		version:       1,
		logger:        logger,
		metrics:       cfg.Metrics,
	}
	r.logger.Info("ring created",
		zap.String("ring", r.name),
		zap.String("strategy", r.strategy.String()),
		zap.Uint32("hash_seed", r.seed))
	return r, nil
}

// Name returns the ring name.
func (r *Ring) Name() string { return r.name }

// Strategy returns the ring's placement strategy.
func (r *Ring) Strategy() StrategyType { return r.strategy }

// Version returns the monotonically increasing topology version.
func (r *Ring) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Close releases the custom strategy, if any.
func (r *Ring) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.custom != nil {
		r.custom.Close()
		r.custom = nil
	}
}

// SetNodeStateCallback registers a callback fired on every node state
// transition, including the implicit Down->state on add and
// state->Down on remove.
func (r *Ring) SetNodeStateCallback(cb NodeStateCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateCallback = cb
}

// AddNode adds a new member to the ring.
func (r *Ring) AddNode(cfg NodeConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addNodeLocked(cfg)
}

func (r *Ring) addNodeLocked(cfg NodeConfig) error {
	if _, ok := r.nodeIndex[cfg.ID]; ok {
		return errors.NodeExists(cfg.ID)
	}
	weight := cfg.Weight
	if weight == 0 {
		weight = defaultNodeWeight
	}
	n := &Node{
		id:             cfg.ID,
		name:           cfg.Name,
		address:        cfg.Address,
		location:       cfg.Location,
		weight:         weight,
		capacity:       cfg.Capacity,
		state:          cfg.State,
		stateChangedAt: time.Now().UnixNano(),
	}
	r.nodes = append(r.nodes, n)
	r.nodeIndex[n.id] = len(r.nodes) - 1
	if n.state.routable() {
		r.healthyCount++
	}

	if r.strategy.usesVnodes() {
		r.addVnodesLocked(n)
		r.sortVnodesLocked()
	}
	r.rebuildAfterMembershipLocked()
	r.bumpVersionLocked()

	r.logger.Info("node added",
		zap.String("ring", r.name),
		zap.Uint64("node_id", n.id),
		zap.String("node", n.name),
		zap.String("state", n.state.String()),
		zap.Uint32("weight", n.weight))
	if r.metrics != nil {
		r.metrics.UpdateNodeCounts(len(r.nodes), r.healthyCount)
	}
	r.fireStateCallbackLocked(n, NodeDown, n.state)
	return nil
}

// AddNodes adds a batch of members. Nodes that already exist are
// skipped; any other failure is collected and the batch continues.
func (r *Ring) AddNodes(cfgs []NodeConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs error
	for _, cfg := range cfgs {
		if err := r.addNodeLocked(cfg); err != nil {
			if errors.GetCode(err) == errors.ErrCodeNodeExists {
				continue
			}
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// RemoveNode removes a member from the ring.
func (r *Ring) RemoveNode(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.nodeIndex[id]
	if !ok {
		return errors.NodeNotFound(id)
	}
	n := r.nodes[idx]

	if r.strategy.usesVnodes() {
		r.removeVnodesLocked(n)
	}
	if n.state.routable() {
		r.healthyCount--
	}
	delete(r.nodeIndex, id)

	// Compact the dense array and fix up shifted indexes.
	copy(r.nodes[idx:], r.nodes[idx+1:])
	r.nodes = r.nodes[:len(r.nodes)-1]
	for i := idx; i < len(r.nodes); i++ {
		r.nodeIndex[r.nodes[i].id] = i
	}

	r.rebuildAfterMembershipLocked()
	r.bumpVersionLocked()

	r.logger.Info("node removed",
		zap.String("ring", r.name),
		zap.Uint64("node_id", id),
		zap.String("node", n.name))
	if r.metrics != nil {
		r.metrics.UpdateNodeCounts(len(r.nodes), r.healthyCount)
	}
	r.fireStateCallbackLocked(n, n.state, NodeDown)
	return nil
}

// SetNodeState transitions a node to a new lifecycle state.
func (r *Ring) SetNodeState(id uint64, state NodeState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setNodeStateLocked(id, state)
}

func (r *Ring) setNodeStateLocked(id uint64, state NodeState) error {
	idx, ok := r.nodeIndex[id]
	if !ok {
		return errors.NodeNotFound(id)
	}
	n := r.nodes[idx]
	if n.state == state {
		return nil
	}
	old := n.state
	if old.routable() && !state.routable() {
		r.healthyCount--
	} else if !old.routable() && state.routable() {
		r.healthyCount++
	}
	n.state = state
	n.stateChangedAt = time.Now().UnixNano()

	r.rebuildAfterMembershipLocked()
	r.bumpVersionLocked()

	r.logger.Info("node state changed",
		zap.String("ring", r.name),
		zap.Uint64("node_id", id),
		zap.String("old_state", old.String()),
		zap.String("new_state", state.String()))
	if r.metrics != nil {
		r.metrics.UpdateNodeCounts(len(r.nodes), r.healthyCount)
	}
	r.fireStateCallbackLocked(n, old, state)
	return nil
}

// SetNodeWeight changes a node's relative capacity, regenerating its
// virtual nodes under vnode-based strategies.
func (r *Ring) SetNodeWeight(id uint64, weight uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.nodeIndex[id]
	if !ok {
		return errors.NodeNotFound(id)
	}
	n := r.nodes[idx]
	if weight == 0 {
		weight = defaultNodeWeight
	}
	if n.weight == weight {
		return nil
	}
	n.weight = weight
	if r.strategy.usesVnodes() {
		r.removeVnodesLocked(n)
		r.addVnodesLocked(n)
		r.sortVnodesLocked()
	}
	r.bumpVersionLocked()
	return nil
}

// GetNode returns a node by id.
func (r *Ring) GetNode(id uint64) (*Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.nodeIndex[id]
	if !ok {
		return nil, errors.NodeNotFound(id)
	}
	return r.nodes[idx], nil
}

// NodeCount returns the number of members, healthy or not.
func (r *Ring) NodeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// HealthyNodeCount returns the number of members in the Up state.
func (r *Ring) HealthyNodeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.healthyCount
}

// IterateNodes visits every node until fn returns false.
func (r *Ring) IterateNodes(fn func(*Node) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nodes {
		if !fn(n) {
			return
		}
	}
}

// IterateNodesByState visits every node in the given state.
func (r *Ring) IterateNodesByState(state NodeState, fn func(*Node) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nodes {
		if n.state != state {
			continue
		}
		if !fn(n) {
			return
		}
	}
}

// IterateNodesByLocation visits every node whose topology value at
// level matches value.
func (r *Ring) IterateNodesByLocation(level TopologyLevel, value uint64, fn func(*Node) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nodes {
		if n.location.value(level) != value {
			continue
		}
		if !fn(n) {
			return
		}
	}
}

// rebuildAfterMembershipLocked marks strategy lookup structures stale
// after any membership or health change. Jump and maglev defer their
// rebuilds to the next locate, so bulk membership changes stay linear.
func (r *Ring) rebuildAfterMembershipLocked() {
	switch r.strategy {
	case StrategyJump:
		r.jumpDirty = true
	case StrategyMaglev:
		r.maglevDirty = true
	}
}

func (r *Ring) bumpVersionLocked() {
	r.version++
	r.lastModified = time.Now().UnixNano()
	if r.metrics != nil {
		r.metrics.UpdateRingVersion(r.version)
	}
}

func (r *Ring) fireStateCallbackLocked(n *Node, old, new NodeState) {
	if r.stateCallback != nil {
		r.stateCallback(n, old, new)
	}
}
