package variables

// ScopedVar is a single request-scoped variable value. Text carries the
// display form, Value the raw form handed to datasources.
type ScopedVar struct {
	Text  string `json:"text"`
	Value any    `json:"value"`
}

// ScopedVars maps variable names to request-scoped values.
type ScopedVars map[string]ScopedVar

// Copy returns a shallow copy of the map. Values are treated as immutable
// once set, so copying the map itself is enough.
func (s ScopedVars) Copy() ScopedVars {
	if s == nil {
		return nil
	}
	out := make(ScopedVars, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Change describes one update from a variable source. ValueChanged is false
// when the source merely finished loading and resolved to the values it
// already had.
type Change struct {
	Names        []string
	ValueChanged bool
}

// Source is the upstream variable system a runner depends on. The engine
// that resolves variables lives outside this module; runners only need to
// know whether the values they depend on are settled, what they are, and
// when they move.
type Source interface {
	// IsLoading reports whether any depended-on variable is still resolving.
	IsLoading() bool

	// Values returns the current resolved values.
	Values() map[string]string

	// Subscribe registers a callback invoked on every update. The returned
	// func removes the subscription.
	Subscribe(fn func(Change)) (unsub func())
}
