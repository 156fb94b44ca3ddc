package placement

import "github.com/devrev/clusterkit/internal/errors"

// KeySpace is a named namespace with its own quorum and spread rules.
// The strategy field is declarative: it records which algorithm the
// keyspace was provisioned for, while dispatch always follows the
// ring's strategy.
type KeySpace struct {
	id       int
	name     string
	quorum   Quorum
	strategy StrategyType
	rules    []AffinityRule

	// per-keyspace operation counters, guarded by the ring lock
	locateOps uint64
	writeOps  uint64
	readOps   uint64
}

func (ks *KeySpace) ID() int                { return ks.id }
func (ks *KeySpace) Name() string           { return ks.name }
func (ks *KeySpace) Quorum() Quorum         { return ks.quorum }
func (ks *KeySpace) Strategy() StrategyType { return ks.strategy }
func (ks *KeySpace) Rules() []AffinityRule  { return append([]AffinityRule(nil), ks.rules...) }

// AddKeySpace registers a new keyspace on the ring.
func (r *Ring) AddKeySpace(name string, quorum Quorum, strategy StrategyType, rules []AffinityRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addKeySpaceLocked(name, quorum, strategy, rules)
}

func (r *Ring) addKeySpaceLocked(name string, quorum Quorum, strategy StrategyType, rules []AffinityRule) error {
	if name == "" {
		return errors.InvalidArgument("keyspace name is required", nil)
	}
	if r.findKeySpaceLocked(name) != nil {
		return errors.KeySpaceExists(name)
	}
	ks := &KeySpace{
		id:       len(r.keyspaces),
		name:     name,
		quorum:   quorum,
		strategy: strategy,
		rules:    append([]AffinityRule(nil), rules...),
	}
	r.keyspaces = append(r.keyspaces, ks)
	r.bumpVersionLocked()
	return nil
}

// RemoveKeySpace deletes a keyspace by name.
func (r *Ring) RemoveKeySpace(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ks := range r.keyspaces {
		if ks.name == name {
			copy(r.keyspaces[i:], r.keyspaces[i+1:])
			r.keyspaces = r.keyspaces[:len(r.keyspaces)-1]
			r.bumpVersionLocked()
			return nil
		}
	}
	return errors.KeySpaceNotFound(name)
}

// GetKeySpace returns a keyspace by name.
func (r *Ring) GetKeySpace(name string) (*KeySpace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ks := r.findKeySpaceLocked(name); ks != nil {
		return ks, nil
	}
	return nil, errors.KeySpaceNotFound(name)
}

// KeySpaceCount returns the number of registered keyspaces.
func (r *Ring) KeySpaceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keyspaces)
}

// KeySpaceOps reports the per-keyspace locate/write/read counters.
func (r *Ring) KeySpaceOps(name string) (locates, writes, reads uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ks := r.findKeySpaceLocked(name)
	if ks == nil {
		return 0, 0, 0, errors.KeySpaceNotFound(name)
	}
	return ks.locateOps, ks.writeOps, ks.readOps, nil
}

func (r *Ring) findKeySpaceLocked(name string) *KeySpace {
	for _, ks := range r.keyspaces {
		if ks.name == name {
			return ks
		}
	}
	return nil
}
