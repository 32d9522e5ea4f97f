package units

import "sort"

// Set is a collection of units deduplicated under an identity policy. It is
// not safe for concurrent use; the harvester serializes access with its own
// mutex so merge diagnostics stay exact.
type Set struct {
	identity IdentityFunc
	members  map[string]Unit
}

// NewSet returns an empty set using the package identity policy.
func NewSet() *Set {
	return NewSetWithIdentity(Identity)
}

// NewSetWithIdentity returns an empty set with an explicit identity policy.
func NewSetWithIdentity(fn IdentityFunc) *Set {
	return &Set{identity: fn, members: make(map[string]Unit)}
}

// Add inserts u and reports whether it was not already present. The first
// unit seen for a key wins; later duplicates are dropped.
func (s *Set) Add(u Unit) bool {
	key := s.identity(u)
	if _, ok := s.members[key]; ok {
		return false
	}
	s.members[key] = u
	return true
}

// AddAll inserts a batch and returns how many units were actually new.
func (s *Set) AddAll(batch []Unit) int {
	added := 0
	for _, u := range batch {
		if s.Add(u) {
			added++
		}
	}
	return added
}

func (s *Set) Contains(u Unit) bool {
	_, ok := s.members[s.identity(u)]
	return ok
}

func (s *Set) Len() int {
	return len(s.members)
}

// Units returns the members ordered by identity key so snapshots and logs
// are reproducible.
func (s *Set) Units() []Unit {
	keys := make([]string, 0, len(s.members))
	for k := range s.members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Unit, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.members[k])
	}
	return out
}

// Diff returns the members of s absent from other, ordered by identity key.
func (s *Set) Diff(other *Set) []Unit {
	var out []Unit
	for _, u := range s.Units() {
		if !other.Contains(u) {
			out = append(out, u)
		}
	}
	return out
}

// Intersect returns the members present in both sets, ordered by identity key.
func (s *Set) Intersect(other *Set) []Unit {
	var out []Unit
	for _, u := range s.Units() {
		if other.Contains(u) {
			out = append(out, u)
		}
	}
	return out
}
