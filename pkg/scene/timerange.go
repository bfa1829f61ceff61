package scene

import (
	"sync"
	"time"

	"github.com/the-cloud-source/scenes/pkg/data"
	"github.com/the-cloud-source/scenes/pkg/eventstream"
)

// TimeRange is the shared, observable query window of a scene. Setting it to
// the value it already holds does not notify subscribers, so runners only
// react to actual changes.
type TimeRange struct {
	mu      sync.Mutex
	value   data.TimeRange
	changes *eventstream.Subject[data.TimeRange]
}

func NewTimeRange(from, to time.Time) *TimeRange {
	return &TimeRange{
		value:   data.TimeRange{From: from, To: to},
		changes: eventstream.New[data.TimeRange](false),
	}
}

func (t *TimeRange) Value() data.TimeRange {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

func (t *TimeRange) Set(from, to time.Time) {
	t.SetValue(data.TimeRange{From: from, To: to})
}

// SetValue stores tr and notifies subscribers, unless tr equals the current
// value.
func (t *TimeRange) SetValue(tr data.TimeRange) {
	t.mu.Lock()
	if t.value.Equal(tr) {
		t.mu.Unlock()
		return
	}
	t.value = tr
	t.mu.Unlock()

	t.changes.Emit(tr)
}

// OnChange registers fn for future changes. The current value is not
// replayed; read it with Value.
func (t *TimeRange) OnChange(fn func(data.TimeRange)) (unsub func()) {
	return t.changes.Subscribe(fn)
}
