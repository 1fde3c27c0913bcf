package database

import (
	"context"
	"sync"

	"github.com/ValentinKolb/dCol/lib/cache/local"
	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider"
	"golang.org/x/sync/singleflight"
)

// MainDatabase is the name of the database addressed by the Main* shorthands.
const MainDatabase = "main"

// Manager owns named databases. Databases are created on first access.
type Manager struct {
	opts []Option

	mu        sync.RWMutex
	order     []string
	databases map[string]*Database

	lifecycle sync.Mutex
	group     singleflight.Group
	started   bool
}

// NewManager creates a manager. opts are applied to every database the
// manager creates. All of them share one in-process shared memory unless
// WithSharedMemory is given.
func NewManager(opts ...Option) *Manager {
	return &Manager{
		opts:      append([]Option{WithSharedMemory(local.NewSharedMemory(0))}, opts...),
		databases: make(map[string]*Database),
	}
}

// CreateFrom creates a manager and applies cfg.
func CreateFrom(ctx context.Context, cfg Config, opts ...Option) (*Manager, error) {
	m := NewManager(opts...)
	if err := m.FromConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// --------------------------------------------------------------------------
// Databases
// --------------------------------------------------------------------------

// AddDatabase registers db under name. A nil db creates a new database.
func (m *Manager) AddDatabase(name string, db *Database) *Database {
	if db == nil {
		db = m.newDatabase(name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.databases[name]; !exists {
		m.order = append(m.order, name)
	}
	m.databases[name] = db
	return db
}

func (m *Manager) newDatabase(name string) *Database {
	opts := make([]Option, 0, len(m.opts)+1)
	opts = append(opts, m.opts...)
	return New(append(opts, WithName(name))...)
}

func (m *Manager) AddMainDatabase(db *Database) *Database {
	return m.AddDatabase(MainDatabase, db)
}

// Database returns the database name, creating it on first access. An empty
// name addresses the main database.
func (m *Manager) Database(name string) *Database {
	if name == "" {
		name = MainDatabase
	}
	m.mu.RLock()
	db, ok := m.databases[name]
	m.mu.RUnlock()
	if ok {
		return db
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if db, ok := m.databases[name]; ok {
		return db
	}
	db = m.newDatabase(name)
	m.order = append(m.order, name)
	m.databases[name] = db
	return db
}

func (m *Manager) MainDatabase() *Database {
	return m.Database(MainDatabase)
}

// Databases returns the database names in creation order.
func (m *Manager) Databases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// --------------------------------------------------------------------------
// Shorthands (docs see the Database methods)
// --------------------------------------------------------------------------

func (m *Manager) AddProvider(database, name string, p provider.Provider) error {
	return m.Database(database).AddProvider(name, p)
}

func (m *Manager) AddMainProvider(name string, p provider.Provider) error {
	return m.AddProvider(MainDatabase, name, p)
}

func (m *Manager) Provider(database, name string) (provider.Provider, error) {
	return m.Database(database).Provider(name)
}

func (m *Manager) MainProvider(name string) (provider.Provider, error) {
	return m.Provider(MainDatabase, name)
}

func (m *Manager) AddCollectionProvider(ctx context.Context, database, col, providerName string, cfg CollectionConfig) error {
	return m.Database(database).AddCollectionProvider(ctx, col, providerName, cfg)
}

func (m *Manager) AddMainCollectionProvider(ctx context.Context, col, providerName string, cfg CollectionConfig) error {
	return m.AddCollectionProvider(ctx, MainDatabase, col, providerName, cfg)
}

func (m *Manager) CollectionProvider(database, col string) (provider.Provider, error) {
	return m.Database(database).CollectionProvider(col)
}

func (m *Manager) MainCollectionProvider(col string) (provider.Provider, error) {
	return m.CollectionProvider(MainDatabase, col)
}

func (m *Manager) Collection(database, col string) (collection.Collection, error) {
	return m.Database(database).Collection(col)
}

func (m *Manager) MainCollection(col string) (collection.Collection, error) {
	return m.Collection(MainDatabase, col)
}

func (m *Manager) SetCollection(database, name string, col collection.Collection) error {
	return m.Database(database).SetCollection(name, col)
}

func (m *Manager) SetMainCollection(name string, col collection.Collection) error {
	return m.SetCollection(MainDatabase, name, col)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (m *Manager) IsStarted() bool {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.started
}

// Start starts every database that is not started yet, in creation order.
// Concurrent calls are coalesced.
func (m *Manager) Start(ctx context.Context) error {
	_, err, _ := m.group.Do("start", func() (any, error) {
		m.lifecycle.Lock()
		defer m.lifecycle.Unlock()
		if m.started {
			return nil, nil
		}
		for _, name := range m.Databases() {
			db := m.Database(name)
			if db.IsStarted() {
				continue
			}
			if err := db.Start(ctx); err != nil {
				return nil, err
			}
		}
		m.started = true
		return nil, nil
	})
	return err
}

// Stop stops every started database in creation order.
func (m *Manager) Stop(ctx context.Context) error {
	_, err, _ := m.group.Do("stop", func() (any, error) {
		m.lifecycle.Lock()
		defer m.lifecycle.Unlock()
		if !m.started {
			return nil, nil
		}
		for _, name := range m.Databases() {
			db := m.Database(name)
			if !db.IsStarted() {
				continue
			}
			if err := db.Stop(ctx); err != nil {
				return nil, err
			}
		}
		m.started = false
		return nil, nil
	})
	return err
}

// FromConfig applies the configuration of every database, in name order.
func (m *Manager) FromConfig(ctx context.Context, cfg Config) error {
	for _, name := range sortedKeys(cfg) {
		if err := m.Database(name).FromConfig(ctx, cfg[name]); err != nil {
			return collection.Wrapf(collection.RetCConfiguration, err, "database %s", name)
		}
	}
	return nil
}
