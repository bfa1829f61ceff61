package data

import "time"

// TimeRange is an absolute query window. It is a plain value; the observable
// holder nodes share lives in the scene package.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

func (t TimeRange) Milliseconds() int64 {
	return t.Duration().Milliseconds()
}

func (t TimeRange) Equal(other TimeRange) bool {
	return t.From.Equal(other.From) && t.To.Equal(other.To)
}
