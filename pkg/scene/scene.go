package scene

import "github.com/google/uuid"

// Object is a node in a scene graph as this module sees it: addressable by
// key and driven through an activation lifecycle by the surrounding tree.
// Tree topology and activation propagation live outside this module.
type Object interface {
	// Key returns the node's stable identity within the scene.
	Key() string

	// Activate wires the object's subscriptions and may trigger work.
	// It is idempotent.
	Activate() error

	// Deactivate cancels in-flight work and drops subscriptions. State
	// already published stays readable.
	Deactivate()

	// IsActive reports whether the object is inside an activation window.
	IsActive() bool
}

// NewKey returns a fresh node key.
func NewKey() string {
	return uuid.NewString()
}
