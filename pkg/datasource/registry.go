package datasource

import (
	"context"
	"fmt"
	"sync"

	"github.com/the-cloud-source/scenes/pkg/variables"
)

// Registry resolves refs against a fixed set of registered instances. It
// satisfies the query package's Resolver interface and backs the demo and
// tests; production systems typically adapt their own resolution layer.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]Instance
	def       Instance
}

func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]Instance)}
}

// Register adds an instance under its ref UID. The first registered instance
// becomes the default unless SetDefault overrides it.
func (r *Registry) Register(inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[inst.Ref().UID] = inst
	if r.def == nil {
		r.def = inst
	}
}

// SetDefault marks the instance returned for nil or empty refs.
func (r *Registry) SetDefault(inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[inst.Ref().UID] = inst
	r.def = inst
}

// Resolve returns the instance for the given ref. A nil ref or empty UID
// resolves to the default instance.
func (r *Registry) Resolve(_ context.Context, ref *Ref, _ variables.ScopedVars) (Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ref == nil || ref.UID == "" {
		if r.def == nil {
			return nil, fmt.Errorf("no default datasource registered")
		}
		return r.def, nil
	}

	inst, ok := r.instances[ref.UID]
	if !ok {
		return nil, fmt.Errorf("datasource %q is not registered", ref.UID)
	}
	return inst, nil
}
