package transform

import (
	"time"

	"github.com/the-cloud-source/scenes/pkg/data"
)

// Preprocess is the generic first stage every raw result passes through
// before the configured steps. It stamps the arrival time and, when a
// Loading emission carries no series yet, retains the previous result's
// series so consumers keep showing data while a refresh is in flight.
func Preprocess(prev *data.Result, next data.Result, now time.Time) data.Result {
	next.ReceivedAt = now
	if next.State == data.LoadingStateLoading && len(next.Series) == 0 && prev != nil && len(prev.Series) > 0 {
		next.Series = prev.Series
	}
	return next
}
