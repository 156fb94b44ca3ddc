package placement

// AffinityRule constrains how replicas of a key must spread across one
// level of the topology hierarchy. A required rule that cannot be met
// fails validation; an optional rule is advisory.
type AffinityRule struct {
	Level     TopologyLevel
	MinSpread uint8
	Required  bool
}

// Common spread policies.
var (
	AffinityRackSpread   = AffinityRule{Level: LevelRack, MinSpread: 2, Required: true}
	AffinityAZSpread     = AffinityRule{Level: LevelAZ, MinSpread: 2, Required: true}
	AffinityRegionSpread = AffinityRule{Level: LevelRegion, MinSpread: 2, Required: false}
)

// checkAffinity verifies a replica set against a list of spread rules.
// It returns false only when a required rule is violated.
func checkAffinity(nodes []*Node, rules []AffinityRule) bool {
	for _, rule := range rules {
		if rule.MinSpread == 0 {
			continue
		}
		unique := distinctLocations(nodes, rule.Level)
		// A set smaller than the spread can never satisfy it; only a
		// required rule makes that an error.
		if unique < int(rule.MinSpread) && rule.Required {
			return false
		}
	}
	return true
}

// distinctLocations counts distinct topology values among nodes at one level.
func distinctLocations(nodes []*Node, level TopologyLevel) int {
	seen := make([]uint64, 0, len(nodes))
	for _, n := range nodes {
		v := n.location.value(level)
		dup := false
		for _, s := range seen {
			if s == v {
				dup = true
				break
			}
		}
		if !dup {
			seen = append(seen, v)
		}
	}
	return len(seen)
}
