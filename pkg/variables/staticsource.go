package variables

import (
	"maps"
	"slices"
	"sync"
)

// StaticSource is an in-memory Source implementation with settable values
// and loading state. It backs the demo binary and tests; real deployments
// adapt their own variable system to the Source interface.
type StaticSource struct {
	mu      sync.Mutex
	loading bool
	values  map[string]string
	subs    []staticSub
	nextID  int
}

type staticSub struct {
	id int
	fn func(Change)
}

// NewStaticSource returns a source preloaded with the given values and not
// loading.
func NewStaticSource(values map[string]string) *StaticSource {
	return &StaticSource{values: maps.Clone(values)}
}

func (s *StaticSource) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *StaticSource) Values() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values)
}

func (s *StaticSource) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, staticSub{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(e staticSub) bool { return e.id == id })
	}
}

// SetLoading flips the loading flag. Completing a load without a value
// change still notifies subscribers, with ValueChanged false.
func (s *StaticSource) SetLoading(loading bool) {
	s.mu.Lock()
	completed := s.loading && !loading
	s.loading = loading
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	if completed {
		notify(subs, Change{ValueChanged: false})
	}
}

// SetValues replaces the values, clears the loading flag and notifies
// subscribers with the set of changed names.
func (s *StaticSource) SetValues(values map[string]string) {
	s.mu.Lock()
	var changed []string
	for k, v := range values {
		if old, ok := s.values[k]; !ok || old != v {
			changed = append(changed, k)
		}
	}
	for k := range s.values {
		if _, ok := values[k]; !ok {
			changed = append(changed, k)
		}
	}
	slices.Sort(changed)
	s.values = maps.Clone(values)
	s.loading = false
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	notify(subs, Change{Names: changed, ValueChanged: len(changed) > 0})
}

func notify(subs []staticSub, c Change) {
	for _, sub := range subs {
		sub.fn(c)
	}
}
