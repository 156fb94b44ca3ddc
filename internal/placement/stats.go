package placement

import "sort"

const locateSampleWindow = 256

// ringStats holds internal operation counters and a sliding window of
// locate latencies for percentile reporting.
type ringStats struct {
	locateOps      uint64
	writeOps       uint64
	readOps        uint64
	rebalanceMoves uint64

	totalLocateNs int64
	maxLocateNs   int64
	samples       [locateSampleWindow]int64
	samplePos     int
	sampleCount   int
}

func (s *ringStats) recordLocate(ns int64) {
	s.totalLocateNs += ns
	if ns > s.maxLocateNs {
		s.maxLocateNs = ns
	}
	s.samples[s.samplePos] = ns
	s.samplePos = (s.samplePos + 1) % locateSampleWindow
	if s.sampleCount < locateSampleWindow {
		s.sampleCount++
	}
}

func (s *ringStats) p99() int64 {
	if s.sampleCount == 0 {
		return 0
	}
	sorted := make([]int64, s.sampleCount)
	copy(sorted, s.samples[:s.sampleCount])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := s.sampleCount * 99 / 100
	if idx >= s.sampleCount {
		idx = s.sampleCount - 1
	}
	return sorted[idx]
}

// Stats is a point-in-time snapshot of ring composition, balance, and
// operation counters.
type Stats struct {
	NodeCount        int
	HealthyNodeCount int
	KeySpaceCount    int
	VnodeCount       int

	// Load distribution across healthy nodes, derived from vnode
	// counts. Ratios are relative to the mean; 1/1/0 when the
	// strategy carries no vnodes.
	LoadMaxRatio float64
	LoadMinRatio float64
	LoadVariance float64

	MemoryBytes uint64

	LocateOps      uint64
	WriteOps       uint64
	ReadOps        uint64
	RebalanceMoves uint64

	AvgLocateNs int64
	P99LocateNs int64
	MaxLocateNs int64
}

// GetStats snapshots the ring's statistics.
func (r *Ring) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{
		NodeCount:        len(r.nodes),
		HealthyNodeCount: r.healthyCount,
		KeySpaceCount:    len(r.keyspaces),
		VnodeCount:       len(r.vnodes),
		LoadMaxRatio:     1.0,
		LoadMinRatio:     1.0,
		LocateOps:        r.stats.locateOps,
		WriteOps:         r.stats.writeOps,
		ReadOps:          r.stats.readOps,
		RebalanceMoves:   r.stats.rebalanceMoves,
		MaxLocateNs:      r.stats.maxLocateNs,
		P99LocateNs:      r.stats.p99(),
	}
	if r.stats.locateOps > 0 {
		st.AvgLocateNs = r.stats.totalLocateNs / int64(r.stats.locateOps)
	}

	if r.strategy.usesVnodes() && r.healthyCount > 0 {
		minCount, maxCount := -1, 0
		sum := 0
		for _, n := range r.nodes {
			if !n.state.routable() {
				continue
			}
			sum += n.vnodeCount
			if n.vnodeCount > maxCount {
				maxCount = n.vnodeCount
			}
			if minCount < 0 || n.vnodeCount < minCount {
				minCount = n.vnodeCount
			}
		}
		avg := float64(sum) / float64(r.healthyCount)
		if avg > 0 {
			st.LoadMaxRatio = float64(maxCount) / avg
			st.LoadMinRatio = float64(minCount) / avg
			var variance float64
			for _, n := range r.nodes {
				if !n.state.routable() {
					continue
				}
				d := float64(n.vnodeCount) - avg
				variance += d * d
			}
			st.LoadVariance = variance / float64(r.healthyCount)
		}
	}

	st.MemoryBytes = r.estimateMemoryLocked()
	return st
}

// ResetStats zeroes the operation counters and latency window.
func (r *Ring) ResetStats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = ringStats{}
}

// estimateMemoryLocked approximates resident bytes of the ring's
// lookup structures.
func (r *Ring) estimateMemoryLocked() uint64 {
	const (
		nodeSize  = 200 // Node struct plus map entry overhead
		vnodeSize = 16
		ksSize    = 96
	)
	total := uint64(len(r.nodes))*nodeSize +
		uint64(cap(r.vnodes))*vnodeSize +
		uint64(len(r.keyspaces))*ksSize
	if r.maglevTable != nil {
		total += uint64(len(r.maglevTable)) * 8
	}
	total += uint64(cap(r.jumpBuckets)) * 8
	return total
}
