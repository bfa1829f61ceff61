package query

import "sync"

// sizeTracker records the node's last reported container width. Layout
// systems may report zero during setup; those updates are dropped.
type sizeTracker struct {
	mu    sync.Mutex
	width int
}

// set records a positive width, reporting whether it is the first one seen.
func (t *sizeTracker) set(w int) (first bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	first = t.width == 0
	t.width = w
	return first
}

func (t *sizeTracker) get() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width
}
