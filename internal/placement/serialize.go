package placement

import (
	"bytes"
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/devrev/clusterkit/internal/errors"
)

// Snapshot wire format, little-endian throughout:
//
//	magic "DKCR" | version u32 | name lp | quorum[8] | vnodes[16] |
//	strategy u32 | seed u32 | node count u32 | nodes... |
//	keyspace count u32 | keyspaces...
//
// where lp is a u32 length prefix followed by raw bytes, quorum packs
// N/W/Wsync/R/repair/consistency as bytes with two bytes of padding,
// and each location is a fixed 32-byte block.
var snapshotMagic = [4]byte{'D', 'K', 'C', 'R'}

const snapshotVersion = 2

type snapshotWriter struct {
	buf bytes.Buffer
}

func (w *snapshotWriter) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *snapshotWriter) u16(v uint16) { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *snapshotWriter) u32(v uint32) { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *snapshotWriter) u64(v uint64) { binary.Write(&w.buf, binary.LittleEndian, v) }

func (w *snapshotWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *snapshotWriter) quorum(q Quorum) {
	w.u8(q.ReplicaCount)
	w.u8(q.WriteQuorum)
	w.u8(q.WriteSync)
	w.u8(q.ReadQuorum)
	if q.ReadRepair {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.u8(uint8(q.Consistency))
	w.u16(0) // pad
}

func (w *snapshotWriter) location(l Location) {
	w.u64(l.NodeID)
	w.u32(l.Rack)
	w.u32(l.Cage)
	w.u32(l.Datacenter)
	w.u32(l.AZ)
	w.u32(l.Region)
	w.u16(l.Country)
	w.u8(l.Continent)
	w.u8(0) // pad
}

type snapshotReader struct {
	data []byte
	pos  int
}

func (r *snapshotReader) need(n int) error {
	if r.pos+n > len(r.data) {
		return errors.TruncatedData("snapshot ends mid-record")
	}
	return nil
}

func (r *snapshotReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *snapshotReader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *snapshotReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *snapshotReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *snapshotReader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *snapshotReader) quorum() (Quorum, error) {
	var q Quorum
	var err error
	if q.ReplicaCount, err = r.u8(); err != nil {
		return q, err
	}
	if q.WriteQuorum, err = r.u8(); err != nil {
		return q, err
	}
	if q.WriteSync, err = r.u8(); err != nil {
		return q, err
	}
	if q.ReadQuorum, err = r.u8(); err != nil {
		return q, err
	}
	repair, err := r.u8()
	if err != nil {
		return q, err
	}
	q.ReadRepair = repair != 0
	cons, err := r.u8()
	if err != nil {
		return q, err
	}
	q.Consistency = ConsistencyLevel(cons)
	_, err = r.u16() // pad
	return q, err
}

func (r *snapshotReader) location() (Location, error) {
	var l Location
	var err error
	if l.NodeID, err = r.u64(); err != nil {
		return l, err
	}
	if l.Rack, err = r.u32(); err != nil {
		return l, err
	}
	if l.Cage, err = r.u32(); err != nil {
		return l, err
	}
	if l.Datacenter, err = r.u32(); err != nil {
		return l, err
	}
	if l.AZ, err = r.u32(); err != nil {
		return l, err
	}
	if l.Region, err = r.u32(); err != nil {
		return l, err
	}
	if l.Country, err = r.u16(); err != nil {
		return l, err
	}
	if l.Continent, err = r.u8(); err != nil {
		return l, err
	}
	_, err = r.u8() // pad
	return l, err
}

// Serialize encodes the ring's topology and keyspaces into a snapshot.
// Operation counters and the rebalance plan are ephemeral and not
// included.
func (r *Ring) Serialize() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.strategy == StrategyCustom {
		return nil, errors.InvalidState("custom strategies cannot be serialized")
	}

	var w snapshotWriter
	w.buf.Write(snapshotMagic[:])
	w.u32(snapshotVersion)
	w.str(r.name)
	w.quorum(r.defaultQuorum)
	w.u32(r.vnodeCfg.Multiplier)
	w.u32(r.vnodeCfg.Min)
	w.u32(r.vnodeCfg.Max)
	w.u32(0) // reserved
	w.u32(uint32(r.strategy))
	w.u32(r.seed)

	w.u32(uint32(len(r.nodes)))
	for _, n := range r.nodes {
		w.u64(n.id)
		w.str(n.name)
		w.str(n.address)
		w.location(n.location)
		w.u32(n.weight)
		w.u64(n.capacity)
		w.u32(uint32(n.state))
		w.u64(n.usedBytes)
	}

	w.u32(uint32(len(r.keyspaces)))
	for _, ks := range r.keyspaces {
		w.str(ks.name)
		w.quorum(ks.quorum)
		w.u32(uint32(ks.strategy))
		w.u8(uint8(len(ks.rules)))
		for _, rule := range ks.rules {
			w.u8(uint8(rule.Level))
			w.u8(rule.MinSpread)
			if rule.Required {
				w.u8(1)
			} else {
				w.u8(0)
			}
			w.u8(0) // pad
		}
	}
	return w.buf.Bytes(), nil
}

// SerializeSize returns the exact byte length Serialize would produce,
// so callers can size buffers or reject oversized snapshots up front.
func (r *Ring) SerializeSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := 44 + len(r.name) // header through seed
	size += 4                // node count
	for _, n := range r.nodes {
		size += 72 + len(n.name) + len(n.address)
	}
	size += 4 // keyspace count
	for _, ks := range r.keyspaces {
		size += 17 + len(ks.name) + 4*len(ks.rules)
	}
	return size
}

// Deserialize rebuilds a ring from a snapshot produced by Serialize.
func Deserialize(data []byte, logger *zap.Logger) (*Ring, error) {
	rd := &snapshotReader{data: data}

	if err := rd.need(4); err != nil {
		return nil, err
	}
	magic := rd.data[:4]
	rd.pos = 4
	if !bytes.Equal(magic, snapshotMagic[:]) {
		return nil, errors.BadMagic(magic)
	}
	version, err := rd.u32()
	if err != nil {
		return nil, err
	}
	if version != snapshotVersion {
		return nil, errors.BadVersion(version, snapshotVersion)
	}

	name, err := rd.str()
	if err != nil {
		return nil, err
	}
	quorum, err := rd.quorum()
	if err != nil {
		return nil, err
	}
	var vc VnodeConfig
	if vc.Multiplier, err = rd.u32(); err != nil {
		return nil, err
	}
	if vc.Min, err = rd.u32(); err != nil {
		return nil, err
	}
	if vc.Max, err = rd.u32(); err != nil {
		return nil, err
	}
	if _, err = rd.u32(); err != nil { // reserved
		return nil, err
	}
	strategy, err := rd.u32()
	if err != nil {
		return nil, err
	}
	if StrategyType(strategy) >= StrategyCustom {
		return nil, errors.InvalidArgument("snapshot carries an unsupported strategy", nil)
	}
	seed, err := rd.u32()
	if err != nil {
		return nil, err
	}

	ring, err := New(Config{
		Name:          name,
		Strategy:      StrategyType(strategy),
		DefaultQuorum: &quorum,
		Vnodes:        vc,
		HashSeed:      seed,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	nodeCount, err := rd.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nodeCount; i++ {
		var cfg NodeConfig
		if cfg.ID, err = rd.u64(); err != nil {
			return nil, err
		}
		if cfg.Name, err = rd.str(); err != nil {
			return nil, err
		}
		if cfg.Address, err = rd.str(); err != nil {
			return nil, err
		}
		if cfg.Location, err = rd.location(); err != nil {
			return nil, err
		}
		if cfg.Weight, err = rd.u32(); err != nil {
			return nil, err
		}
		if cfg.Capacity, err = rd.u64(); err != nil {
			return nil, err
		}
		state, err := rd.u32()
		if err != nil {
			return nil, err
		}
		cfg.State = NodeState(state)
		usedBytes, err := rd.u64()
		if err != nil {
			return nil, err
		}
		if err := ring.AddNode(cfg); err != nil {
			return nil, err
		}
		ring.mu.Lock()
		ring.nodes[ring.nodeIndex[cfg.ID]].usedBytes = usedBytes
		ring.mu.Unlock()
	}

	ksCount, err := rd.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < ksCount; i++ {
		ksName, err := rd.str()
		if err != nil {
			return nil, err
		}
		ksQuorum, err := rd.quorum()
		if err != nil {
			return nil, err
		}
		ksStrategy, err := rd.u32()
		if err != nil {
			return nil, err
		}
		ruleCount, err := rd.u8()
		if err != nil {
			return nil, err
		}
		rules := make([]AffinityRule, 0, ruleCount)
		for j := uint8(0); j < ruleCount; j++ {
			level, err := rd.u8()
			if err != nil {
				return nil, err
			}
			minSpread, err := rd.u8()
			if err != nil {
				return nil, err
			}
			required, err := rd.u8()
			if err != nil {
				return nil, err
			}
			if _, err := rd.u8(); err != nil { // pad
				return nil, err
			}
			rules = append(rules, AffinityRule{
				Level:     TopologyLevel(level),
				MinSpread: minSpread,
				Required:  required != 0,
			})
		}
		if err := ring.AddKeySpace(ksName, ksQuorum, StrategyType(ksStrategy), rules); err != nil {
			return nil, err
		}
	}
	return ring, nil
}

// SerializeDelta returns the changes since a known topology version.
// Delta encoding is not tracked per-change, so any divergence returns
// the full snapshot; an up-to-date peer gets nil.
func (r *Ring) SerializeDelta(sinceVersion uint64) ([]byte, error) {
	r.mu.Lock()
	current := r.version
	r.mu.Unlock()
	if current <= sinceVersion {
		return nil, nil
	}
	return r.Serialize()
}

// ApplyDelta would patch a ring in place from a delta blob. Deltas are
// currently always full snapshots, so callers should use Deserialize
// instead.
func (r *Ring) ApplyDelta(data []byte) error {
	return errors.NotImplemented("ApplyDelta")
}
