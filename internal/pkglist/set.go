package pkglist

// Set is a set of strings that remembers the order in which members were
// first added. Re-adding a member does not move it.
type Set struct {
	index map[string]struct{}
	items []string
}

// NewSet creates a Set holding items.
func NewSet(items ...string) *Set {
	s := &Set{index: make(map[string]struct{}, len(items))}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item and reports whether it was new.
func (s *Set) Add(item string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[item]; ok {
		return false
	}
	s.index[item] = struct{}{}
	s.items = append(s.items, item)
	return true
}

// Union adds every member of other, in other's order.
func (s *Set) Union(other *Set) {
	if other == nil {
		return
	}
	for _, item := range other.items {
		s.Add(item)
	}
}

// Has reports whether item is a member.
func (s *Set) Has(item string) bool {
	_, ok := s.index[item]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns a copy of the members in insertion order.
func (s *Set) Items() []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s.items...)
}
