package placement

// maglevTableSize is prime so per-node permutations cover every slot.
const maglevTableSize = 65537

// maglevRebuildLocked regenerates the lookup table from the current
// healthy set. Each node fills slots along its own permutation
// (offset + i*skip mod size) in round-robin order, which keeps the
// table near-evenly split and mostly stable across small membership
// changes.
func (r *Ring) maglevRebuildLocked() {
	r.maglevDirty = false

	healthy := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		if n.state.routable() {
			healthy = append(healthy, n)
		}
	}
	if len(healthy) == 0 {
		r.maglevTable = nil
		return
	}
	if r.maglevTable == nil {
		r.maglevTable = make([]*Node, maglevTableSize)
	}
	if len(healthy) == 1 {
		for i := range r.maglevTable {
			r.maglevTable[i] = healthy[0]
		}
		return
	}

	offsets := make([]uint64, len(healthy))
	skips := make([]uint64, len(healthy))
	next := make([]uint64, len(healthy))
	for i, n := range healthy {
		offsets[i] = hashNodeID(r.seed, n.id) % maglevTableSize
		skips[i] = 1 + hashNodeID(r.seed+1, n.id)%(maglevTableSize-1)
	}

	for i := range r.maglevTable {
		r.maglevTable[i] = nil
	}
	filled := 0
	for filled < maglevTableSize {
		for i := range healthy {
			// Advance along node i's permutation to its next free slot.
			var slot uint64
			for {
				slot = (offsets[i] + next[i]*skips[i]) % maglevTableSize
				next[i]++
				if r.maglevTable[slot] == nil {
					break
				}
			}
			r.maglevTable[slot] = healthy[i]
			filled++
			if filled == maglevTableSize {
				break
			}
		}
	}
}

// maglevLocateLocked starts at the key's table slot and walks forward
// collecting distinct nodes.
func (r *Ring) maglevLocateLocked(key []byte, max int) []*Node {
	if r.maglevDirty {
		r.maglevRebuildLocked()
	}
	if len(r.maglevTable) == 0 {
		return nil
	}

	effectiveMax := max
	if effectiveMax > len(r.nodes) {
		effectiveMax = len(r.nodes)
	}

	seen := newSeenTracker(len(r.nodes))
	out := make([]*Node, 0, effectiveMax)
	start := hashKey(r.seed, key) % maglevTableSize
	for step := uint64(0); step < maglevTableSize && len(out) < effectiveMax; step++ {
		n := r.maglevTable[(start+step)%maglevTableSize]
		if n == nil {
			continue
		}
		idx, ok := r.nodeIndex[n.id]
		if !ok || seen.isSet(idx) {
			continue
		}
		seen.mark(idx)
		out = append(out, n)
	}
	return out
}
