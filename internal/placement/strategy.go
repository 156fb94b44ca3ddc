package placement

// StrategyType selects the placement algorithm for a ring.
type StrategyType uint32

const (
	StrategyKetama StrategyType = iota
	StrategyRendezvous
	StrategyJump
	StrategyMaglev
	StrategyBounded
	StrategyCustom
)

func (s StrategyType) String() string {
	switch s {
	case StrategyKetama:
		return "ketama"
	case StrategyRendezvous:
		return "rendezvous"
	case StrategyJump:
		return "jump"
	case StrategyMaglev:
		return "maglev"
	case StrategyBounded:
		return "bounded"
	case StrategyCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// usesVnodes reports whether the strategy maintains a virtual node ring.
func (s StrategyType) usesVnodes() bool {
	return s == StrategyKetama || s == StrategyBounded
}

// Strategy is a pluggable placement algorithm. Implementations are
// called with the ring lock held and must not call back into the ring.
type Strategy interface {
	// Name identifies the strategy for logging and stats.
	Name() string
	// Locate returns up to max candidate replicas for key, healthiest
	// first. The returned slice is owned by the caller.
	Locate(r *Ring, key []byte, max int) []*Node
	// Close releases any resources held by the strategy.
	Close()
}

// ParseStrategy maps a config string to a strategy type.
func ParseStrategy(s string) (StrategyType, bool) {
	switch s {
	case "ketama", "":
		return StrategyKetama, true
	case "rendezvous":
		return StrategyRendezvous, true
	case "jump":
		return StrategyJump, true
	case "maglev":
		return StrategyMaglev, true
	case "bounded":
		return StrategyBounded, true
	default:
		return StrategyKetama, false
	}
}
