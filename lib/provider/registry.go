package provider

import (
	"sort"
	"sync"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/go-viper/mapstructure/v2"
)

// Constructor creates a provider from its settings (the provider specific
// part of a provider configuration).
type Constructor func(settings map[string]any) (Provider, error)

// Registry maps provider type keys (e.g. "memory", "sqlite") to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a constructor for typ. Registering a type twice is an error.
func (r *Registry) Register(typ string, ctor Constructor) error {
	if typ == "" || ctor == nil {
		return collection.NewError(collection.RetCConfiguration, "provider type and constructor are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[typ]; exists {
		return collection.Errorf(collection.RetCConfiguration, "provider type %q is already registered", typ)
	}
	r.ctors[typ] = ctor
	return nil
}

// MustRegister is Register but panics on error.
func (r *Registry) MustRegister(typ string, ctor Constructor) {
	if err := r.Register(typ, ctor); err != nil {
		panic(err)
	}
}

// New creates a provider of type typ.
func (r *Registry) New(typ string, settings map[string]any) (Provider, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, collection.Errorf(collection.RetCConfiguration, "unknown provider type %q", typ)
	}
	return ctor(settings)
}

// Types returns the registered type keys in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.ctors))
	for t := range r.ctors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DecodeSettings decodes a settings map into the struct pointed to by out.
// Strings are converted to numbers, booleans and durations where needed, so
// settings read from environment variables work as well.
func DecodeSettings(settings map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return collection.Wrap(collection.RetCInternalError, err)
	}
	if err := dec.Decode(settings); err != nil {
		return collection.Wrapf(collection.RetCConfiguration, err, "invalid provider settings")
	}
	return nil
}
