package data

// LoadingState describes where a result stands in its fetch lifecycle.
type LoadingState string

const (
	// LoadingStateNotStarted means no fetch has been issued yet.
	LoadingStateNotStarted LoadingState = "NotStarted"

	// LoadingStateLoading means a fetch is in flight and the attached series,
	// if any, are from an earlier run.
	LoadingStateLoading LoadingState = "Loading"

	// LoadingStateStreaming means the result is part of a long-lived stream
	// and further emissions are expected.
	LoadingStateStreaming LoadingState = "Streaming"

	// LoadingStateDone means the fetch completed and the series are final.
	LoadingStateDone LoadingState = "Done"

	// LoadingStateError means the fetch or a later stage failed. Series may
	// still be present from before the failure.
	LoadingStateError LoadingState = "Error"
)

// Fetched reports whether the state represents delivered data rather than a
// run still entirely in flight.
func (s LoadingState) Fetched() bool {
	switch s {
	case LoadingStateStreaming, LoadingStateDone, LoadingStateError:
		return true
	default:
		return false
	}
}
