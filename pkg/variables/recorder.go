package variables

import (
	"maps"
	"sync"
)

// Recorder keeps a snapshot of a source's values so a runner can tell, after
// being inactive for a while, whether its dependencies moved in the meantime.
type Recorder struct {
	mu       sync.Mutex
	values   map[string]string
	recorded bool
}

// Record snapshots the source's current values. A nil source clears the
// snapshot.
func (r *Recorder) Record(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if src == nil {
		r.values = nil
		r.recorded = false
		return
	}
	r.values = maps.Clone(src.Values())
	r.recorded = true
}

// HasChanged reports whether the source's values differ from the last
// recorded snapshot. It returns false when no snapshot was taken or the
// source is nil.
func (r *Recorder) HasChanged(src Source) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if src == nil || !r.recorded {
		return false
	}
	return !maps.Equal(r.values, src.Values())
}
