package placement

// rebuildJumpLocked regenerates the dense healthy bucket array in node
// array order. Jump hashing needs a stable numbering of healthy nodes.
func (r *Ring) rebuildJumpLocked() {
	r.jumpDirty = false
	r.jumpBuckets = r.jumpBuckets[:0]
	for _, n := range r.nodes {
		if n.state.routable() {
			r.jumpBuckets = append(r.jumpBuckets, n)
		}
	}
}

// jumpConsistentHash is the Lamping/Veach jump hash over numBuckets.
func jumpConsistentHash(key uint64, numBuckets int) int {
	var b, j int64 = -1, 0
	for j < int64(numBuckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}
	return int(b)
}

// jumpLocateLocked picks the primary via jump hash over healthy
// buckets, then derives replicas by rehashing the key under shifted
// seeds until max distinct buckets are found.
func (r *Ring) jumpLocateLocked(key []byte, max int) []*Node {
	if r.jumpDirty {
		r.rebuildJumpLocked()
	}
	if len(r.jumpBuckets) == 0 {
		return nil
	}
	effectiveMax := max
	if effectiveMax > len(r.jumpBuckets) {
		effectiveMax = len(r.jumpBuckets)
	}

	seen := newSeenTracker(len(r.jumpBuckets))
	out := make([]*Node, 0, effectiveMax)

	primary := jumpConsistentHash(hashKey(r.seed, key), len(r.jumpBuckets))
	seen.mark(primary)
	out = append(out, r.jumpBuckets[primary])

	// Bounded probe: shifted seeds may collide, in which case fewer
	// than effectiveMax replicas come back.
	for replica := uint32(1); len(out) < effectiveMax && replica < uint32(4*effectiveMax); replica++ {
		idx := jumpConsistentHash(hashKey(r.seed+replica, key), len(r.jumpBuckets))
		if seen.isSet(idx) {
			continue
		}
		seen.mark(idx)
		out = append(out, r.jumpBuckets[idx])
	}
	return out
}
