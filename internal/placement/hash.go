package placement

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// hashKey hashes arbitrary bytes under the ring seed. The seed is
// folded in as a prefix since xxhash/v2 exposes only the unseeded sum.
func hashKey(seed uint32, key []byte) uint64 {
	var d xxhash.Digest
	d.Reset()
	var sb [8]byte
	binary.LittleEndian.PutUint64(sb[:], uint64(seed))
	_, _ = d.Write(sb[:])
	_, _ = d.Write(key)
	return d.Sum64()
}

// hashKeyNode hashes key||nodeID for rendezvous scoring.
func hashKeyNode(seed uint32, key []byte, nodeID uint64) uint64 {
	var d xxhash.Digest
	d.Reset()
	var sb [8]byte
	binary.LittleEndian.PutUint64(sb[:], uint64(seed))
	_, _ = d.Write(sb[:])
	_, _ = d.Write(key)
	binary.LittleEndian.PutUint64(sb[:], nodeID)
	_, _ = d.Write(sb[:])
	return d.Sum64()
}

// hashVnode hashes nodeID||vnodeIndex to a point on the ring circle.
func hashVnode(seed uint32, nodeID uint64, vnodeIndex uint32) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[0:8], nodeID)
	binary.LittleEndian.PutUint32(buf[8:12], vnodeIndex)
	var d xxhash.Digest
	d.Reset()
	var sb [8]byte
	binary.LittleEndian.PutUint64(sb[:], uint64(seed))
	_, _ = d.Write(sb[:])
	_, _ = d.Write(buf[:])
	return d.Sum64()
}

// hashNodeID hashes a bare node id, used by maglev permutation setup.
func hashNodeID(seed uint32, nodeID uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], nodeID)
	var d xxhash.Digest
	d.Reset()
	var sb [8]byte
	binary.LittleEndian.PutUint64(sb[:], uint64(seed))
	_, _ = d.Write(sb[:])
	_, _ = d.Write(buf[:])
	return d.Sum64()
}
