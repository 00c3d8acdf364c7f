// internal/vendors/registry.go
package vendors

import "sync"

var (
	regMu    sync.RWMutex
	registry = map[string]Bundle{}
)

func Register(b Bundle) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[b.Name] = b
}

func Get(name string) (Bundle, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	b, ok := registry[name]
	return b, ok
}

func All() map[string]Bundle {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make(map[string]Bundle, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}
