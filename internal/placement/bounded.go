package placement

// boundedLoadFactor is the ceiling a node's CPU may exceed the healthy
// average by before bounded placement routes around it.
const boundedLoadFactor = 1.25

// boundedLocateLocked is ketama placement with a load ceiling. Nodes
// whose last reported CPU exceeds the healthy average by the load
// factor are passed over in favor of later candidates on the circle.
// Without a health provider, or when every candidate is over the
// ceiling, it degrades to plain ketama order.
func (r *Ring) boundedLocateLocked(key []byte, max int) []*Node {
	// Over-fetch so there are spare candidates to promote when the
	// preferred ones are overloaded.
	candidates := r.ketamaLocateLocked(key, len(r.nodes))
	if len(candidates) == 0 {
		return nil
	}
	if !r.loadAware {
		if len(candidates) > max {
			candidates = candidates[:max]
		}
		return candidates
	}

	avg := r.averageHealthyCPULocked()
	ceiling := avg * boundedLoadFactor

	out := make([]*Node, 0, max)
	for _, n := range candidates {
		if len(out) == max {
			break
		}
		if avg > 0 && n.lastLoad.CPUUsage > ceiling {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		// Every candidate is over the ceiling; shedding all traffic
		// would be worse than honoring the original order.
		if len(candidates) > max {
			candidates = candidates[:max]
		}
		return candidates
	}
	return out
}

func (r *Ring) averageHealthyCPULocked() float64 {
	var sum float64
	count := 0
	for _, n := range r.nodes {
		if !n.state.routable() {
			continue
		}
		sum += n.lastLoad.CPUUsage
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
