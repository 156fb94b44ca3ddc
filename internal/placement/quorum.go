package placement

// ConsistencyLevel expresses how many replicas must acknowledge an
// operation before it is considered successful.
type ConsistencyLevel uint8

const (
	ConsistencyOne ConsistencyLevel = iota
	ConsistencyQuorum
	ConsistencyAll
)

// Quorum bundles the replication and acknowledgement parameters that
// govern read and write planning for a ring or keyspace.
type Quorum struct {
	ReplicaCount uint8 // N: total replicas per key
	WriteQuorum  uint8 // W: acks required for a write
	WriteSync    uint8 // replicas written synchronously
	ReadQuorum   uint8 // R: responses required for a read
	ReadRepair   bool
	Consistency  ConsistencyLevel
}

// Preset quorum configurations covering common durability/latency
// trade-offs. Balanced is the default for new rings.
var (
	QuorumStrong = Quorum{
		ReplicaCount: 3, WriteQuorum: 3, WriteSync: 3, ReadQuorum: 1,
		ReadRepair: false, Consistency: ConsistencyAll,
	}
	QuorumEventual = Quorum{
		ReplicaCount: 3, WriteQuorum: 1, WriteSync: 1, ReadQuorum: 1,
		ReadRepair: false, Consistency: ConsistencyOne,
	}
	QuorumBalanced = Quorum{
		ReplicaCount: 3, WriteQuorum: 2, WriteSync: 2, ReadQuorum: 2,
		ReadRepair: true, Consistency: ConsistencyQuorum,
	}
	QuorumReadHeavy = Quorum{
		ReplicaCount: 3, WriteQuorum: 3, WriteSync: 3, ReadQuorum: 1,
		ReadRepair: true, Consistency: ConsistencyAll,
	}
	QuorumWriteHeavy = Quorum{
		ReplicaCount: 3, WriteQuorum: 1, WriteSync: 1, ReadQuorum: 3,
		ReadRepair: false, Consistency: ConsistencyOne,
	}
)
