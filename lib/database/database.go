package database

import (
	"context"
	"sort"
	"sync"

	"github.com/ValentinKolb/dCol/lib/cache"
	"github.com/ValentinKolb/dCol/lib/cache/local"
	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/singleflight"
)

var log = logger.GetLogger("database")

// MainProvider is the provider name used by FromConfig if none is configured.
const MainProvider = "main"

// Database owns named providers and resolves which provider serves a collection.
type Database struct {
	name            string
	registry        *provider.Registry
	shared          cache.SharedMemory
	resolver        Resolver
	defaultProvider string

	mu        sync.RWMutex
	order     []string
	providers map[string]provider.Provider
	bindings  map[string]string
	configs   map[string]CollectionConfig

	lifecycle sync.Mutex
	group     singleflight.Group
	started   bool
}

// New creates an empty database.
func New(opts ...Option) *Database {
	d := &Database{
		providers: make(map[string]provider.Provider),
		bindings:  make(map[string]string),
		configs:   make(map[string]CollectionConfig),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.shared == nil {
		d.shared = local.NewSharedMemory(0)
	}
	return d
}

// Name returns the name given with WithName.
func (d *Database) Name() string { return d.name }

// --------------------------------------------------------------------------
// Providers and collections
// --------------------------------------------------------------------------

// AddProvider registers p under name. The first provider becomes the default
// unless a default was configured. Registering a name again replaces the provider.
func (d *Database) AddProvider(name string, p provider.Provider) error {
	if name == "" {
		return collection.NewError(collection.RetCConfiguration, "provider name is required")
	}
	if p == nil {
		return collection.Errorf(collection.RetCConfiguration, "provider %s is nil", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.providers[name]; !exists {
		d.order = append(d.order, name)
	}
	d.providers[name] = p
	if d.defaultProvider == "" {
		d.defaultProvider = name
	}
	log.Debugf("%s: added provider %s", d.name, name)
	return nil
}

// Provider returns the provider name, or the default provider if name is
// empty. Unknown names are passed to the resolver.
func (d *Database) Provider(name string) (provider.Provider, error) {
	d.mu.RLock()
	if name == "" {
		name = d.defaultProvider
	}
	p, ok := d.providers[name]
	d.mu.RUnlock()
	if ok {
		return p, nil
	}
	if name != "" && d.resolver != nil {
		if p, ok := d.resolver.Resolve(name); ok && p != nil {
			return p, nil
		}
	}
	if name == "" {
		return nil, collection.NewError(collection.RetCConfiguration, "database has no default provider")
	}
	return nil, collection.Errorf(collection.RetCConfiguration, "provider %s not found", name)
}

// Providers returns the names of the registered providers in registration order.
func (d *Database) Providers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.order...)
}

// DefaultProvider returns the name of the default provider.
func (d *Database) DefaultProvider() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.defaultProvider
}

// CollectionProvider returns the provider bound to the collection, falling
// back to the default provider.
func (d *Database) CollectionProvider(name string) (provider.Provider, error) {
	d.mu.RLock()
	providerName := d.bindings[name]
	d.mu.RUnlock()
	p, err := d.Provider(providerName)
	if err != nil {
		return nil, collection.Wrapf(collection.RetCConfiguration, err, "database provider not found for collection %s", name)
	}
	return p, nil
}

// Collection returns the collection name from its provider.
func (d *Database) Collection(name string) (collection.Collection, error) {
	p, err := d.CollectionProvider(name)
	if err != nil {
		return nil, err
	}
	return p.GetCollection(name)
}

// SetCollection replaces the collection name on its provider.
func (d *Database) SetCollection(name string, col collection.Collection) error {
	p, err := d.CollectionProvider(name)
	if err != nil {
		return err
	}
	p.SetCollection(name, col)
	return nil
}

// AddCollectionProvider binds the collection to the provider providerName and
// wraps it according to cfg.Type. A collection that is bound again is
// rebuilt on top of its leaf.
func (d *Database) AddCollectionProvider(ctx context.Context, name, providerName string, cfg CollectionConfig) error {
	p, err := d.Provider(providerName)
	if err != nil {
		return collection.Errorf(collection.RetCConfiguration, "database provider %s not found for collection %s", providerName, name)
	}
	if providerName == "" {
		providerName = d.DefaultProvider()
	}

	var col collection.Collection
	switch cfg.Type {
	case CollectionPlain:
		// drops a decorator of an earlier binding
		col, err = leafOf(p, name)
		if err != nil {
			return err
		}
	case CollectionCached:
		leaf, err := leafOf(p, name)
		if err != nil {
			return err
		}
		col, err = collection.NewCachedCollection(collection.Settings{DB: p, Name: name, Inner: leaf}, local.New(cfg.MaxEntries))
		if err != nil {
			return err
		}
	case CollectionShared:
		leaf, err := leafOf(p, name)
		if err != nil {
			return err
		}
		shared, err := d.shared.Namespace(d.namespace(name))
		if err != nil {
			return collection.Wrapf(collection.RetCConfiguration, err, "shared memory for collection %s", name)
		}
		col, err = collection.NewSharedCollection(ctx, collection.Settings{DB: p, Name: name, Inner: leaf}, shared, cfg.Data)
		if err != nil {
			return err
		}
	default:
		return collection.Errorf(collection.RetCConfiguration, "unknown collection type %q for collection %s", cfg.Type, name)
	}

	d.mu.Lock()
	d.bindings[name] = providerName
	d.configs[name] = cfg
	d.mu.Unlock()
	p.SetCollection(name, col)
	log.Debugf("%s: bound collection %s to provider %s (%s)", d.name, name, providerName, typeName(cfg.Type))
	return nil
}

func typeName(t CollectionType) string {
	if t == CollectionPlain {
		return "plain"
	}
	return string(t)
}

// leafOf returns the provider backed leaf of the collection name.
func leafOf(p provider.Provider, name string) (collection.Collection, error) {
	col, err := p.GetCollection(name)
	if err != nil {
		return nil, err
	}
	return collection.At(col, collection.Innermost)
}

func (d *Database) namespace(col string) string {
	if d.name == "" {
		return col
	}
	return d.name + "." + col
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (d *Database) IsStarted() bool {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	return d.started
}

// Start starts every registered provider that is not started yet, in
// registration order. Concurrent calls are coalesced.
func (d *Database) Start(ctx context.Context) error {
	_, err, _ := d.group.Do("start", func() (any, error) {
		d.lifecycle.Lock()
		defer d.lifecycle.Unlock()
		if d.started {
			return nil, nil
		}
		for _, name := range d.Providers() {
			p, err := d.Provider(name)
			if err != nil {
				return nil, err
			}
			if p.IsStarted() {
				continue
			}
			if err := p.Start(ctx); err != nil {
				return nil, collection.Wrapf(collection.RetCInternalError, err, "failed to start provider %s", name)
			}
		}
		d.started = true
		log.Infof("database %s started", d.name)
		return nil, nil
	})
	return err
}

// Stop stops every registered provider that is started, in registration order.
func (d *Database) Stop(ctx context.Context) error {
	_, err, _ := d.group.Do("stop", func() (any, error) {
		d.lifecycle.Lock()
		defer d.lifecycle.Unlock()
		if !d.started {
			return nil, nil
		}
		for _, name := range d.Providers() {
			p, err := d.Provider(name)
			if err != nil {
				return nil, err
			}
			if !p.IsStarted() {
				continue
			}
			if err := p.Stop(ctx); err != nil {
				return nil, collection.Wrapf(collection.RetCInternalError, err, "failed to stop provider %s", name)
			}
		}
		d.started = false
		log.Infof("database %s stopped", d.name)
		return nil, nil
	})
	return err
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// AddProviderFromConfig creates a provider with the registry, registers it
// under name and binds the configured collections to it.
func (d *Database) AddProviderFromConfig(ctx context.Context, name string, cfg ProviderConfig) error {
	if d.registry == nil {
		return collection.NewError(collection.RetCConfiguration, "database has no provider registry")
	}
	if cfg.Provider == "" {
		return collection.Errorf(collection.RetCConfiguration, "provider %s has no provider type", name)
	}
	p, err := d.registry.New(cfg.Provider, cfg.Settings)
	if err != nil {
		return err
	}
	if err := d.AddProvider(name, p); err != nil {
		return err
	}
	for _, colName := range sortedKeys(cfg.Collections) {
		if err := d.AddCollectionProvider(ctx, colName, name, cfg.Collections[colName]); err != nil {
			return err
		}
	}
	return nil
}

// FromConfig adds the configured provider (named cfg.Name or "main") and all
// additional providers in name order.
func (d *Database) FromConfig(ctx context.Context, cfg ProviderConfig) error {
	name := cfg.Name
	if name == "" {
		name = MainProvider
	}
	if err := d.AddProviderFromConfig(ctx, name, cfg); err != nil {
		return err
	}
	for _, extra := range sortedKeys(cfg.Providers) {
		if err := d.AddProviderFromConfig(ctx, extra, cfg.Providers[extra]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
