package placement

// rendezvous scoring keeps the k highest-scoring healthy nodes in a
// fixed-size min-heap, then drains it into descending order. For
// replica counts this small a specialized heap beats sorting every
// candidate.

type rendezvousEntry struct {
	score uint64
	node  *Node
}

type rendezvousHeap struct {
	entries []rendezvousEntry
	k       int
}

func newRendezvousHeap(k int) *rendezvousHeap {
	return &rendezvousHeap{entries: make([]rendezvousEntry, 0, k), k: k}
}

func (h *rendezvousHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.entries[parent].score <= h.entries[i].score {
			break
		}
		h.entries[parent], h.entries[i] = h.entries[i], h.entries[parent]
		i = parent
	}
}

func (h *rendezvousHeap) siftDown(i int) {
	n := len(h.entries)
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < n && h.entries[left].score < h.entries[smallest].score {
			smallest = left
		}
		if right < n && h.entries[right].score < h.entries[smallest].score {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.entries[i], h.entries[smallest] = h.entries[smallest], h.entries[i]
		i = smallest
	}
}

// insert keeps only the k largest scores: once full, a new entry must
// beat the current minimum to displace it.
func (h *rendezvousHeap) insert(score uint64, node *Node) {
	if len(h.entries) < h.k {
		h.entries = append(h.entries, rendezvousEntry{score, node})
		h.siftUp(len(h.entries) - 1)
		return
	}
	if score <= h.entries[0].score {
		return
	}
	h.entries[0] = rendezvousEntry{score, node}
	h.siftDown(0)
}

// extractAll drains the heap into a slice ordered by descending score.
func (h *rendezvousHeap) extractAll() []*Node {
	out := make([]*Node, len(h.entries))
	for i := len(h.entries); i > 0; i-- {
		out[i-1] = h.entries[0].node
		last := len(h.entries) - 1
		h.entries[0] = h.entries[last]
		h.entries = h.entries[:last]
		h.siftDown(0)
	}
	return out
}

// rendezvousLocateLocked scores every healthy node against the key and
// returns the top max by score.
func (r *Ring) rendezvousLocateLocked(key []byte, max int) []*Node {
	heap := newRendezvousHeap(max)
	for _, n := range r.nodes {
		if !n.state.routable() {
			continue
		}
		heap.insert(hashKeyNode(r.seed, key, n.id), n)
	}
	return heap.extractAll()
}
