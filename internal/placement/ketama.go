package placement

import "sort"

// vnodePoint is one virtual node on the hash circle.
type vnodePoint struct {
	point uint64
	owner *Node
}

// vnodeCountFor derives how many virtual nodes a weight maps to.
func (r *Ring) vnodeCountFor(weight uint32) int {
	count := int(uint64(weight) * uint64(r.vnodeCfg.Multiplier) / 100)
	if count < int(r.vnodeCfg.Min) {
		count = int(r.vnodeCfg.Min)
	}
	if count > int(r.vnodeCfg.Max) {
		count = int(r.vnodeCfg.Max)
	}
	return count
}

func (r *Ring) addVnodesLocked(n *Node) {
	count := r.vnodeCountFor(n.weight)
	for i := 0; i < count; i++ {
		r.vnodes = append(r.vnodes, vnodePoint{
			point: hashVnode(r.seed, n.id, uint32(i)),
			owner: n,
		})
	}
	n.vnodeCount = count
	r.needsSort = true
}

// removeVnodesLocked filters out a node's points in place. The
// remaining points keep their relative order, so no re-sort is needed.
func (r *Ring) removeVnodesLocked(n *Node) {
	out := r.vnodes[:0]
	for _, v := range r.vnodes {
		if v.owner != n {
			out = append(out, v)
		}
	}
	r.vnodes = out
	n.vnodeCount = 0
}

func (r *Ring) sortVnodesLocked() {
	if !r.needsSort {
		return
	}
	sort.Slice(r.vnodes, func(i, j int) bool {
		return r.vnodes[i].point < r.vnodes[j].point
	})
	r.needsSort = false
}

// ketamaLocateLocked walks the hash circle clockwise from the key's
// point, collecting up to max distinct healthy owners. Unhealthy
// owners are marked seen so a node never appears twice regardless of
// state.
func (r *Ring) ketamaLocateLocked(key []byte, max int) []*Node {
	if len(r.vnodes) == 0 {
		return nil
	}
	r.sortVnodesLocked()

	h := hashKey(r.seed, key)
	lo := sort.Search(len(r.vnodes), func(i int) bool {
		return r.vnodes[i].point >= h
	})
	if lo == len(r.vnodes) {
		lo = 0
	}

	effectiveMax := max
	if effectiveMax > len(r.nodes) {
		effectiveMax = len(r.nodes)
	}

	seen := newSeenTracker(len(r.nodes))
	out := make([]*Node, 0, effectiveMax)
	for checked := 0; checked < len(r.vnodes) && len(out) < effectiveMax; checked++ {
		v := r.vnodes[(lo+checked)%len(r.vnodes)]
		idx, ok := r.nodeIndex[v.owner.id]
		if !ok || seen.isSet(idx) {
			continue
		}
		seen.mark(idx)
		if v.owner.state.routable() {
			out = append(out, v.owner)
		}
	}
	return out
}
