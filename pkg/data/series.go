package data

import (
	"maps"
	"slices"
	"time"
)

// Point is a single timestamped sample.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Series is one named sequence of points produced for a query. RefID ties it
// back to the query definition that produced it.
type Series struct {
	RefID  string            `json:"refId"`
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Points []Point           `json:"points"`
}

// Clone returns a deep copy.
func (s Series) Clone() Series {
	out := s
	out.Labels = maps.Clone(s.Labels)
	out.Points = slices.Clone(s.Points)
	return out
}

// CloneSeries deep-copies a slice of series.
func CloneSeries(in []Series) []Series {
	if in == nil {
		return nil
	}
	out := make([]Series, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
