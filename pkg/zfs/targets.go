package zfs

import (
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// TargetSet is an ordered, duplicate-free set of batch targets.
// Submitting the same identifier twice collapses to its first occurrence
// before the boundary call, so the engine never sees duplicates and a
// duplicated name can produce at most one fault record.
type TargetSet struct {
	names []string
	seen  map[string]struct{}
}

// NewTargetSet builds a set from names, deduplicating in order.
func NewTargetSet(names ...string) *TargetSet {
	s := &TargetSet{seen: make(map[string]struct{}, len(names))}
	for _, name := range names {
		s.Add(name)
	}
	return s
}

// Add appends a name unless it is already present.
func (s *TargetSet) Add(name string) {
	if _, dup := s.seen[name]; dup {
		return
	}
	s.seen[name] = struct{}{}
	s.names = append(s.names, name)
}

// Len returns the number of distinct targets.
func (s *TargetSet) Len() int {
	return len(s.names)
}

// Empty reports whether the set has no targets.
func (s *TargetSet) Empty() bool {
	return len(s.names) == 0
}

// Contains reports whether name is in the set.
func (s *TargetSet) Contains(name string) bool {
	_, ok := s.seen[name]
	return ok
}

// Names returns the targets in submission order. Callers must not modify
// the returned slice.
func (s *TargetSet) Names() []string {
	return s.names
}

// Pool returns the pool of the first target, which names the batch call
// at the boundary. Empty when the set is empty.
func (s *TargetSet) Pool() string {
	if len(s.names) == 0 {
		return ""
	}
	return PoolName(s.names[0])
}

// SinglePool reports whether every target lives in one pool. The engine
// reports cross-pool batches with the same status it uses for several
// snapshots of one filesystem, so this distinction has to come from the
// submitted names.
func (s *TargetSet) SinglePool() bool {
	if len(s.names) == 0 {
		return true
	}
	pool := PoolName(s.names[0])
	for _, name := range s.names[1:] {
		if PoolName(name) != pool {
			return false
		}
	}
	return true
}

// newValidatedSet validates each name against the flavor, rejects an
// empty batch, and returns the deduplicated set.
func newValidatedSet(op engine.Op, names []string, flavor nameFlavor) (*TargetSet, error) {
	if len(names) == 0 {
		return nil, zerrors.NewNameInvalidError(string(op), "", "empty target set")
	}
	set := NewTargetSet()
	for _, name := range names {
		if err := validateName(op, name, flavor); err != nil {
			return nil, err
		}
		set.Add(name)
	}
	return set, nil
}
