package data

import (
	"time"

	"github.com/the-cloud-source/scenes/pkg/variables"
)

// Request is an immutable description of one fetch handed to an executor.
// Targets are deep copies of the node's query definitions; ScopedVars
// includes the built-in __sceneObject, __interval and __interval_ms entries.
type Request struct {
	ID            string               `json:"requestId"`
	TimeRange     TimeRange            `json:"range"`
	Interval      string               `json:"interval"`
	IntervalMS    int64                `json:"intervalMs"`
	Targets       []Query              `json:"targets"`
	MaxDataPoints int64                `json:"maxDataPoints"`
	ScopedVars    variables.ScopedVars `json:"scopedVars,omitempty"`
	StartTime     time.Time            `json:"-"`
}
