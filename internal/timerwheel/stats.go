package timerwheel

// wheelStats holds lifetime counters, guarded by the wheel lock.
type wheelStats struct {
	registrations uint64
	cancellations uint64
	expirations   uint64
	cascades      uint64
}

// Stats is a point-in-time snapshot of wheel activity.
type Stats struct {
	Registrations uint64
	Cancellations uint64
	Expirations   uint64
	Cascades      uint64

	ActiveTimers  int
	OverflowCount int
	MemoryBytes   uint64
}

// GetStats snapshots the wheel's statistics.
func (w *Wheel) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		Registrations: w.stats.registrations,
		Cancellations: w.stats.cancellations,
		Expirations:   w.stats.expirations,
		Cascades:      w.stats.cascades,
		ActiveTimers:  w.timerCount - len(w.cancelled),
		OverflowCount: len(w.overflow),
		MemoryBytes:   w.estimateMemoryLocked(),
	}
}

// ResetStats zeroes the lifetime counters. Current-state figures such
// as the overflow count are unaffected.
func (w *Wheel) ResetStats() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats = wheelStats{}
}

func (w *Wheel) estimateMemoryLocked() uint64 {
	const timerSize = 96 // entry plus map overhead
	total := uint64(len(w.byID)) * timerSize
	total += uint64(level0Slots+3*levelNSlots) * 24
	total += uint64(cap(w.overflow)+cap(w.pending)) * 8
	return total
}
