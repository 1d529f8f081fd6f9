package clone

// RefSet is an insertion-ordered set of reference URLs.
// Membership is decided on the URL with its query stripped, and the stripped
// form is what gets stored. Iteration order is the download order.
type RefSet struct {
	order []string
	seen  map[string]struct{}
}

// NewRefSet returns an empty set.
func NewRefSet() *RefSet {
	return &RefSet{seen: make(map[string]struct{})}
}

// Add inserts rawURL and reports whether it was new.
func (s *RefSet) Add(rawURL string) bool {
	key := StripQuery(rawURL)
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.order = append(s.order, key)
	return true
}

// AddAll inserts every URL in order.
func (s *RefSet) AddAll(urls []string) {
	for _, u := range urls {
		s.Add(u)
	}
}

// Contains reports whether rawURL, query stripped, is in the set.
func (s *RefSet) Contains(rawURL string) bool {
	_, ok := s.seen[StripQuery(rawURL)]
	return ok
}

// Len returns the number of unique references.
func (s *RefSet) Len() int {
	return len(s.order)
}

// Items returns a copy of the references in insertion order.
func (s *RefSet) Items() []string {
	items := make([]string, len(s.order))
	copy(items, s.order)
	return items
}
