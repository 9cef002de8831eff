package compute

import (
	"errors"
	"sort"
	"sync"
)

// ErrBackendNotAvailable is returned when a requested backend is not registered.
var ErrBackendNotAvailable = errors.New("compute: backend not available")

// BackendFactory creates a new backend instance.
type BackendFactory func() Backend

// Registry names.
const (
	BackendWGPU = "wgpu"
	BackendCPU  = "cpu"
)

var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
	// Priority order for Default (first registered wins).
	backendPriority = []string{BackendWGPU, BackendCPU}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns a backend instance by name.
func Get(name string) (Backend, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, ErrBackendNotAvailable
	}
	b := factory()
	if b == nil {
		return nil, ErrBackendNotAvailable
	}
	return b, nil
}

// Default returns the best registered backend based on priority
// (wgpu, then cpu, then any other registered backend).
func Default() (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			if b := factory(); b != nil {
				return b, nil
			}
		}
	}

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if b := backends[name](); b != nil {
			return b, nil
		}
	}
	return nil, ErrBackendNotAvailable
}
