package datasource

// Ref identifies a datasource by UID and plugin type. It is the serializable
// reference carried on queries and node state; resolution to a live instance
// happens at request time.
type Ref struct {
	UID  string `json:"uid"`
	Type string `json:"type,omitempty"`
}

func (r Ref) String() string {
	if r.Type == "" {
		return r.UID
	}
	return r.Type + "/" + r.UID
}

// Instance is a resolved datasource handle. Concrete datasource plugins are
// out of scope for this module; executors receive an Instance and decide how
// to reach the backing system.
type Instance interface {
	// Ref returns the reference this instance resolves.
	Ref() Ref

	// Interval returns the source's default minimum interval, for example
	// "10s". Empty means no source-level minimum.
	Interval() string
}
