package provider

import (
	"fmt"
	"strings"
)

// Registry maps provider IDs to adapters, keeping registration order as the
// canonical display order.
type Registry struct {
	order    []string
	adapters map[string]Adapter
}

// NewRegistry returns a registry holding adapters in the given order.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		_ = r.Register(a)
	}
	return r
}

// DefaultRegistry returns the built-in adapters in display order:
// Google, Baidu, DeepL, Youdao.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&GoogleAdapter{},
		&BaiduAdapter{},
		&DeepLAdapter{},
		&YoudaoAdapter{},
	)
}

// Register adds one adapter. Registering an existing ID replaces the adapter
// in place.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return fmt.Errorf("adapter is nil")
	}
	id := NormalizeID(a.ID())
	if id == "" {
		return fmt.Errorf("adapter ID is required")
	}
	if _, exists := r.adapters[id]; !exists {
		r.order = append(r.order, id)
	}
	r.adapters[id] = a
	return nil
}

// Adapter resolves an adapter by ID. Unknown IDs fail with ErrConfig.
func (r *Registry) Adapter(id string) (Adapter, error) {
	a, ok := r.adapters[NormalizeID(id)]
	if !ok {
		return nil, configErrorf("unknown provider %q (available: %s)", id, strings.Join(r.IDs(), ", "))
	}
	return a, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.adapters[NormalizeID(id)]
	return ok
}

// IDs returns the provider IDs in display order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// DisplayName returns the adapter's display name, or id when unknown.
func (r *Registry) DisplayName(id string) string {
	if a, ok := r.adapters[NormalizeID(id)]; ok {
		return a.Name()
	}
	return id
}

// NormalizeID lower-cases and trims a provider ID.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// IsValidID reports whether id names one of the built-in providers.
func IsValidID(id string) bool {
	switch NormalizeID(id) {
	case Google, Baidu, DeepL, Youdao:
		return true
	}
	return false
}
