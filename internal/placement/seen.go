package placement

// seenTracker is a small bitmap over node indexes used to deduplicate
// replica candidates during a single locate pass. Rings up to 64 nodes
// use a single word, up to 512 a fixed array, and larger rings fall
// back to an allocated slice.
type seenTracker struct {
	single uint64
	fixed  [8]uint64
	heap   []uint64
	mode   seenMode
}

type seenMode uint8

const (
	seenSingle seenMode = iota
	seenFixed
	seenHeap
)

func newSeenTracker(capacity int) *seenTracker {
	t := &seenTracker{}
	switch {
	case capacity <= 64:
		t.mode = seenSingle
	case capacity <= 512:
		t.mode = seenFixed
	default:
		words := (capacity + 63) / 64
		t.heap = make([]uint64, words)
		t.mode = seenHeap
	}
	return t
}

func (t *seenTracker) mark(index int) {
	switch t.mode {
	case seenSingle:
		t.single |= 1 << uint(index)
	case seenFixed:
		t.fixed[index/64] |= 1 << uint(index%64)
	default:
		t.heap[index/64] |= 1 << uint(index%64)
	}
}

func (t *seenTracker) isSet(index int) bool {
	switch t.mode {
	case seenSingle:
		return t.single&(1<<uint(index)) != 0
	case seenFixed:
		return t.fixed[index/64]&(1<<uint(index%64)) != 0
	default:
		return t.heap[index/64]&(1<<uint(index%64)) != 0
	}
}
