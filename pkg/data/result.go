package data

import "time"

// Result is one emission on a query stream. A single request can produce
// many results over time: a Loading marker, Streaming updates, then a final
// Done or Error. Request points back at the fetch that produced it.
type Result struct {
	Series     []Series     `json:"series"`
	State      LoadingState `json:"state"`
	Error      error        `json:"-"`
	Request    *Request     `json:"-"`
	ReceivedAt time.Time    `json:"-"`
}

// ErrorString returns the error message, or "" when there is none. JSON
// encoders use this since error values do not marshal.
func (r Result) ErrorString() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}

// Clone deep-copies the series; the request back-reference is shared since
// requests are immutable once issued.
func (r Result) Clone() Result {
	out := r
	out.Series = CloneSeries(r.Series)
	return out
}
