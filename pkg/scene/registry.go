package scene

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps node keys to live objects. References handed out elsewhere
// (for example the __sceneObject scoped var) carry only the key; holders
// resolve it here when they actually need the object, so nothing keeps a
// deactivated node alive.
type Registry struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewRegistry() *Registry {
	return &Registry{objects: make(map[string]Object)}
}

// Register adds obj under its key. Registering a key twice is an error.
func (r *Registry) Register(obj Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := obj.Key()
	if _, ok := r.objects[key]; ok {
		return fmt.Errorf("scene object %q is already registered", key)
	}
	r.objects[key] = obj
	return nil
}

// Deregister removes the object under key, if present.
func (r *Registry) Deregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.objects, key)
}

// Get resolves a key to the live object.
func (r *Registry) Get(key string) (Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[key]
	return obj, ok
}

// Keys returns the registered keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.objects))
	for k := range r.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
