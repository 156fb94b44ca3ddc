package timerwheel

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/clusterkit/internal/errors"
	"github.com/devrev/clusterkit/internal/metrics"
)

// The wheel is hierarchical: four levels of increasing resolution
// span from 1ms ticks out to roughly 18 hours. Timers beyond the last
// level park in an overflow bucket and re-enter the wheels as time
// advances.
const (
	numLevels = 4

	level0Slots = 256
	levelNSlots = 64

	level0Mask = level0Slots - 1
	levelNMask = levelNSlots - 1

	// resolutions in microseconds per slot
	resolution0 = 1000
	resolution1 = resolution0 * level0Slots // 256ms
	resolution2 = resolution1 * levelNSlots // ~16.4s
	resolution3 = resolution2 * levelNSlots // ~17.5min

	span0 = resolution0 * level0Slots // 256ms
	span1 = resolution1 * levelNSlots // ~16.4s
	span2 = resolution2 * levelNSlots // ~17.5min
	span3 = resolution3 * levelNSlots // ~18.6h
)

var levelResolutions = [numLevels]int64{resolution0, resolution1, resolution2, resolution3}
var levelSpans = [numLevels]int64{span0, span1, span2, span3}

// wheelLevel returns the level whose span covers the delay, or -1 when
// the delay exceeds every level and must overflow.
func wheelLevel(delayUs int64) int {
	for level := 0; level < numLevels; level++ {
		if delayUs < levelSpans[level] {
			return level
		}
	}
	return -1
}

// RepeatMode selects how repeating timers compute their next deadline.
type RepeatMode int

const (
	// RepeatStrict schedules from the previous deadline, preserving
	// the cadence even when processing runs late.
	RepeatStrict RepeatMode = iota
	// RepeatDrift schedules from the time the callback actually ran.
	RepeatDrift
)

// Callback is invoked when a timer expires. Returning true reschedules
// a timer that was registered with a repeat interval. Callbacks run
// inline on the goroutine calling Process with the wheel lock
// released, so they may register, unregister, and inspect timers, but
// must not call Process.
type Callback func(id uint64, data interface{}) bool

// containerKind tags where a timer currently lives.
type containerKind uint8

const (
	inWheel containerKind = iota
	inPending
	inOverflow
)

type timer struct {
	id       uint64
	expireUs int64 // wheel-relative microseconds
	repeatUs int64 // 0 for one-shot
	callback Callback
	data     interface{}

	kind  containerKind
	level int
	slot  int
}

// Wheel is a hierarchical timer wheel. All methods are safe for
// concurrent use except Process, which drops the lock around expiry
// callbacks and therefore must be driven from a single goroutine.
type Wheel struct {
	mu sync.Mutex

	clock   Clock
	startUs int64

	currentTimeUs int64
	slotIndex     [numLevels]int
	slots         [numLevels][][]*timer

	overflow []*timer
	pending  []*timer

	byID       map[uint64]*timer
	timerCount int
	nextID     uint64

	// Cancellations requested while dispatching are deferred; the id
	// range bounds make the common no-cancel check a pair of compares.
	cancelled  map[uint64]struct{}
	cancelLow  uint64
	cancelHigh uint64

	inDispatch bool
	repeatMode RepeatMode

	nextEventValid bool
	nextEventUs    int64
	nextEventSet   bool

	stats wheelStats

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Wheel.
type Option func(*Wheel)

// WithClock substitutes the time source, mainly for tests.
func WithClock(c Clock) Option {
	return func(w *Wheel) { w.clock = c }
}

// WithRepeatMode selects the rescheduling policy for repeating timers.
func WithRepeatMode(m RepeatMode) Option {
	return func(w *Wheel) { w.repeatMode = m }
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Wheel) { w.logger = l }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Wheel) { w.metrics = m }
}

// New creates an empty wheel.
func New(opts ...Option) *Wheel {
	w := &Wheel{
		byID:       make(map[uint64]*timer),
		cancelled:  make(map[uint64]struct{}),
		repeatMode: RepeatStrict,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.clock == nil {
		w.clock = newRealClock()
	}
	w.startUs = w.clock.MonotonicUs()

	w.slots[0] = make([][]*timer, level0Slots)
	for level := 1; level < numLevels; level++ {
		w.slots[level] = make([][]*timer, levelNSlots)
	}
	return w
}

// nowLocked returns the wheel-relative time of the clock.
func (w *Wheel) nowLocked() int64 {
	return w.clock.MonotonicUs() - w.startUs
}

// Register schedules a callback after delay, repeating every repeat
// interval when repeat is nonzero and the callback keeps returning
// true. The returned id is never zero.
func (w *Wheel) Register(delay, repeat time.Duration, cb Callback, data interface{}) (uint64, error) {
	if cb == nil {
		return 0, errors.InvalidArgument("timer callback is required", nil)
	}
	if delay < 0 || repeat < 0 {
		return 0, errors.InvalidArgument("timer intervals must not be negative", nil)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.nowLocked()
	delayUs := delay.Microseconds()

	w.nextID++
	t := &timer{
		id:       w.nextID,
		expireUs: now + delayUs,
		repeatUs: repeat.Microseconds(),
		callback: cb,
		data:     data,
	}
	w.byID[t.id] = t
	w.timerCount++
	w.stats.registrations++
	w.invalidateNextEventLocked()
	if w.metrics != nil {
		w.metrics.RecordTimerRegistration()
	}

	// Dispatch-time registrations and sub-resolution delays skip the
	// wheels entirely; the pending queue drains on the next Process.
	if w.inDispatch || delayUs < resolution0 {
		w.parkPendingLocked(t)
	} else {
		w.placeLocked(t)
	}
	return t.id, nil
}

// Unregister cancels a timer. From user context the timer is removed
// immediately; from inside a callback it is marked and dropped when
// next encountered. Returns false for unknown or already-cancelled
// ids.
func (w *Wheel) Unregister(id uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unregisterLocked(id)
}

func (w *Wheel) unregisterLocked(id uint64) bool {
	t, ok := w.byID[id]
	if !ok {
		return false
	}
	if w.isCancelledLocked(id) {
		return false
	}
	w.stats.cancellations++
	w.invalidateNextEventLocked()
	if w.metrics != nil {
		w.metrics.RecordTimerCancellation()
	}

	if w.inDispatch {
		w.cancelled[id] = struct{}{}
		if len(w.cancelled) == 1 || id < w.cancelLow {
			w.cancelLow = id
		}
		if id > w.cancelHigh {
			w.cancelHigh = id
		}
		return true
	}

	w.removeFromContainerLocked(t)
	delete(w.byID, id)
	w.timerCount--
	return true
}

// StopAll cancels every registered timer.
func (w *Wheel) StopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]uint64, 0, len(w.byID))
	for id := range w.byID {
		ids = append(ids, id)
	}
	for _, id := range ids {
		w.unregisterLocked(id)
	}
	w.logger.Debug("stopped all timers", zap.Int("count", len(ids)))
}

// Count returns the number of live timers, excluding those with a
// deferred cancellation.
func (w *Wheel) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timerCount - len(w.cancelled)
}

func (w *Wheel) isCancelledLocked(id uint64) bool {
	if len(w.cancelled) == 0 || id < w.cancelLow || id > w.cancelHigh {
		return false
	}
	_, ok := w.cancelled[id]
	return ok
}

// dropCancelledLocked discards a timer whose deferred cancellation is
// being realized.
func (w *Wheel) dropCancelledLocked(t *timer) {
	delete(w.cancelled, t.id)
	delete(w.byID, t.id)
	w.timerCount--
}

func (w *Wheel) parkPendingLocked(t *timer) {
	t.kind = inPending
	w.pending = append(w.pending, t)
}

// placeLocked files a timer into the wheel level covering its delay,
// or the overflow bucket beyond the last level. Delays shorter than a
// tick go to the pending queue.
func (w *Wheel) placeLocked(t *timer) {
	delta := t.expireUs - w.currentTimeUs
	if delta < resolution0 {
		w.parkPendingLocked(t)
		return
	}
	level := wheelLevel(delta)
	if level < 0 {
		t.kind = inOverflow
		w.overflow = append(w.overflow, t)
		return
	}
	w.placeAtLevelLocked(t, level)
}

func (w *Wheel) placeAtLevelLocked(t *timer, level int) {
	mask := levelNMask
	if level == 0 {
		mask = level0Mask
	}
	slot := (w.slotIndex[level] + int((t.expireUs-w.currentTimeUs)/levelResolutions[level])) & mask
	t.kind = inWheel
	t.level = level
	t.slot = slot
	w.slots[level][slot] = append(w.slots[level][slot], t)
}

func (w *Wheel) removeFromContainerLocked(t *timer) {
	switch t.kind {
	case inWheel:
		w.slots[t.level][t.slot] = removeTimer(w.slots[t.level][t.slot], t)
	case inPending:
		w.pending = removeTimer(w.pending, t)
	case inOverflow:
		w.overflow = removeTimer(w.overflow, t)
	}
}

func removeTimer(list []*timer, t *timer) []*timer {
	for i, entry := range list {
		if entry == t {
			copy(list[i:], list[i+1:])
			return list[:len(list)-1]
		}
	}
	return list
}

func (w *Wheel) invalidateNextEventLocked() {
	w.nextEventValid = false
}
