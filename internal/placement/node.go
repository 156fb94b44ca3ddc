package placement

// NodeState represents the lifecycle state of a cluster member.
type NodeState uint32

const (
	NodeUp NodeState = iota
	NodeJoining
	NodeLeaving
	NodeDown
	NodeSuspect
	NodeRecovering
	NodeMaintenance
)

// String returns a human-readable state name.
func (s NodeState) String() string {
	switch s {
	case NodeUp:
		return "up"
	case NodeJoining:
		return "joining"
	case NodeLeaving:
		return "leaving"
	case NodeDown:
		return "down"
	case NodeSuspect:
		return "suspect"
	case NodeRecovering:
		return "recovering"
	case NodeMaintenance:
		return "maintenance"
	default:
		return "unknown"
	}
}

// routable reports whether a node in this state may receive traffic.
func (s NodeState) routable() bool {
	return s == NodeUp
}

// TopologyLevel identifies one level of the physical placement hierarchy,
// from most specific (node) to least specific (continent).
type TopologyLevel int

const (
	LevelNode TopologyLevel = iota
	LevelRack
	LevelCage
	LevelDatacenter
	LevelAZ
	LevelRegion
	LevelCountry
	LevelContinent
)

// Location pins a node into the topology hierarchy. Identifiers are opaque
// numeric handles assigned by the operator; equality is all that matters.
type Location struct {
	NodeID     uint64
	Rack       uint32
	Cage       uint32
	Datacenter uint32
	AZ         uint32
	Region     uint32
	Country    uint16
	Continent  uint8
}

// value returns the identifier for one level of the hierarchy.
func (l *Location) value(level TopologyLevel) uint64 {
	switch level {
	case LevelNode:
		return l.NodeID
	case LevelRack:
		return uint64(l.Rack)
	case LevelCage:
		return uint64(l.Cage)
	case LevelDatacenter:
		return uint64(l.Datacenter)
	case LevelAZ:
		return uint64(l.AZ)
	case LevelRegion:
		return uint64(l.Region)
	case LevelCountry:
		return uint64(l.Country)
	case LevelContinent:
		return uint64(l.Continent)
	default:
		return 0
	}
}

// NodeConfig describes a node being added to a ring.
type NodeConfig struct {
	ID       uint64
	Name     string
	Address  string
	Location Location
	Weight   uint32 // relative capacity, 100 = baseline; 0 means default
	Capacity uint64 // advertised storage bytes, informational
	State    NodeState
}

// Node is a member of a placement ring. All fields are owned by the ring
// and must only be touched under the ring's lock; callbacks receive the
// node while the lock is held.
type Node struct {
	id       uint64
	name     string
	address  string
	location Location
	weight   uint32
	capacity uint64
	state    NodeState

	usedBytes      uint64
	failureCount   uint32
	stateChangedAt int64

	// number of points this node owns on the hash circle
	vnodeCount int

	lastHealth      NodeHealth
	lastHealthCheck int64
	lastLoad        NodeLoad
	lastLoadUpdate  int64
}

func (n *Node) ID() uint64         { return n.id }
func (n *Node) Name() string       { return n.name }
func (n *Node) Address() string    { return n.address }
func (n *Node) Location() Location { return n.location }
func (n *Node) Weight() uint32     { return n.weight }
func (n *Node) Capacity() uint64   { return n.capacity }
func (n *Node) State() NodeState   { return n.state }
func (n *Node) UsedBytes() uint64  { return n.usedBytes }
func (n *Node) VnodeCount() int    { return n.vnodeCount }
func (n *Node) Health() NodeHealth { return n.lastHealth }
func (n *Node) Load() NodeLoad     { return n.lastLoad }
