package timerwheel

import (
	"time"

	"go.uber.org/zap"
)

// Process advances the wheel to the clock's current time, firing every
// timer that has come due. Expiry callbacks run inline on the calling
// goroutine with the wheel lock released, so they may call back into
// the wheel. Process itself must not be re-entered.
func (w *Wheel) Process() {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	now := w.nowLocked()
	w.invalidateNextEventLocked()
	w.inDispatch = true

	w.processOverflowLocked()

	for w.currentTimeUs < now {
		w.processSlotLocked(w.slotIndex[0], now)
		w.slotIndex[0] = (w.slotIndex[0] + 1) & level0Mask
		w.currentTimeUs += resolution0
		if w.slotIndex[0] == 0 {
			w.cascadeLocked(1)
		}
	}

	w.processPendingLocked(now)
	w.inDispatch = false
	// A callback may have primed the next-event cache mid-dispatch;
	// anything that fired after that query would leave it stale.
	w.invalidateNextEventLocked()

	if w.metrics != nil {
		w.metrics.RecordProcess(time.Since(start).Seconds())
		w.metrics.UpdateTimerCounts(w.timerCount-len(w.cancelled), len(w.overflow))
	}
}

// AdvanceTime shifts the wheel's epoch backwards so the clock appears
// d further along, then processes. Intended for simulations and tests.
func (w *Wheel) AdvanceTime(d time.Duration) {
	w.mu.Lock()
	w.startUs -= d.Microseconds()
	w.mu.Unlock()
	w.Process()
}

// processOverflowLocked pulls overflow timers whose deadline now fits
// inside the wheel span back into the wheels.
func (w *Wheel) processOverflowLocked() {
	if len(w.overflow) == 0 {
		return
	}
	out := w.overflow[:0]
	reentered := 0
	for _, t := range w.overflow {
		if w.isCancelledLocked(t.id) {
			w.dropCancelledLocked(t)
			continue
		}
		if t.expireUs-w.currentTimeUs < span3 {
			w.placeLocked(t)
			reentered++
		} else {
			out = append(out, t)
		}
	}
	w.overflow = out
	if reentered > 0 {
		w.logger.Debug("overflow timers re-entered the wheel", zap.Int("count", reentered))
	}
}

// processSlotLocked drains one level-0 slot, firing due timers and
// re-filing any that landed here early via cascade.
func (w *Wheel) processSlotLocked(slot int, now int64) {
	batch := w.slots[0][slot]
	if len(batch) == 0 {
		return
	}
	w.slots[0][slot] = nil
	for _, t := range batch {
		if w.isCancelledLocked(t.id) {
			w.dropCancelledLocked(t)
			continue
		}
		if t.expireUs <= now {
			w.fireLocked(t, now)
		} else {
			w.placeLocked(t)
		}
	}
}

// cascadeLocked redistributes the current slot of a higher wheel down
// into finer levels, then advances that wheel's index, recursing when
// it wraps. Only non-empty slots count as cascades.
func (w *Wheel) cascadeLocked(level int) {
	if level >= numLevels {
		return
	}
	slot := w.slotIndex[level]
	batch := w.slots[level][slot]
	w.slots[level][slot] = nil
	w.slotIndex[level] = (w.slotIndex[level] + 1) & levelNMask
	if w.slotIndex[level] == 0 {
		w.cascadeLocked(level + 1)
	}
	if len(batch) == 0 {
		return
	}
	w.stats.cascades++
	if w.metrics != nil {
		w.metrics.RecordTimerCascade()
	}

	for _, t := range batch {
		if w.isCancelledLocked(t.id) {
			w.dropCancelledLocked(t)
			continue
		}
		delta := t.expireUs - w.currentTimeUs
		if delta < resolution0 {
			w.parkPendingLocked(t)
			continue
		}
		newLevel := wheelLevel(delta)
		switch {
		case newLevel < 0:
			t.kind = inOverflow
			w.overflow = append(w.overflow, t)
		case newLevel < level:
			w.placeAtLevelLocked(t, newLevel)
		default:
			// The deadline still maps to this level or above, which
			// only happens right at a span boundary; the pending
			// queue re-files it next pass.
			w.parkPendingLocked(t)
		}
	}
}

// processPendingLocked drains the pending queue once. Entries parked
// during this drain (dispatch-time registrations, short reschedules)
// wait for the next Process call.
func (w *Wheel) processPendingLocked(now int64) {
	if len(w.pending) == 0 {
		return
	}
	batch := w.pending
	w.pending = nil
	for _, t := range batch {
		if w.isCancelledLocked(t.id) {
			w.dropCancelledLocked(t)
			continue
		}
		if t.expireUs <= now {
			w.fireLocked(t, now)
		} else {
			w.placeLocked(t)
		}
	}
}

// fireLocked runs a due timer's callback and either reschedules or
// retires it. The wheel lock is released for the duration of the
// callback so it can call back into the wheel; the in-dispatch flag
// routes any register or unregister onto the deferred paths. The timer
// itself sits in a local batch during the window, out of reach of
// other goroutines.
func (w *Wheel) fireLocked(t *timer, now int64) {
	w.mu.Unlock()
	resched := t.callback(t.id, t.data)
	w.mu.Lock()

	w.stats.expirations++
	w.timerCount--
	if w.metrics != nil {
		w.metrics.RecordTimerExpiration()
	}

	// The callback may have cancelled its own timer; that wins over
	// any reschedule request.
	if w.isCancelledLocked(t.id) {
		delete(w.cancelled, t.id)
		delete(w.byID, t.id)
		return
	}

	if resched && t.repeatUs > 0 {
		if w.repeatMode == RepeatStrict {
			t.expireUs += t.repeatUs
		} else {
			t.expireUs = now + t.repeatUs
		}
		w.timerCount++
		w.placeLocked(t)
		return
	}
	delete(w.byID, t.id)
}

// NextEventStart returns the absolute clock time in microseconds of
// the earliest scheduled timer, or false when none exist. The result
// is cached until the wheel changes.
func (w *Wheel) NextEventStart() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.nextEventValid {
		w.nextEventUs, w.nextEventSet = w.computeNextEventLocked()
		w.nextEventValid = true
	}
	if !w.nextEventSet {
		return 0, false
	}
	return w.nextEventUs + w.startUs, true
}

// NextEventOffset returns how long until the earliest timer is due.
// A timer already due yields zero.
func (w *Wheel) NextEventOffset() (time.Duration, bool) {
	abs, ok := w.NextEventStart()
	if !ok {
		return 0, false
	}
	w.mu.Lock()
	nowAbs := w.clock.MonotonicUs()
	w.mu.Unlock()
	off := abs - nowAbs
	if off < 0 {
		off = 0
	}
	return time.Duration(off) * time.Microsecond, true
}

// computeNextEventLocked scans containers for the earliest deadline.
// Wheel slots are approximated by the first entry of the first
// occupied slot ahead of the index; that is exact for level 0 and a
// close upper bound for coarser levels.
func (w *Wheel) computeNextEventLocked() (int64, bool) {
	var best int64
	found := false
	consider := func(us int64) {
		if !found || us < best {
			best = us
			found = true
		}
	}

	for _, t := range w.pending {
		consider(t.expireUs)
	}

	for level := 0; level < numLevels; level++ {
		count := levelNSlots
		mask := levelNMask
		if level == 0 {
			count = level0Slots
			mask = level0Mask
		}
		levelFound := false
		for i := 0; i < count; i++ {
			slot := (w.slotIndex[level] + i) & mask
			if len(w.slots[level][slot]) > 0 {
				consider(w.slots[level][slot][0].expireUs)
				levelFound = true
				break
			}
		}
		if levelFound {
			break
		}
	}

	for _, t := range w.overflow {
		consider(t.expireUs)
	}
	return best, found
}
