package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider"
	"github.com/lni/dragonboat/v4/logger"
	_ "github.com/mattn/go-sqlite3"
)

var log = logger.GetLogger("provider")

const (
	// TypeName is the registry key of the SQLite provider.
	TypeName = "sqlite"
	// PathEnv is consulted if the settings name no path.
	PathEnv = "DCOL_SQLITE_PATH"
)

// Settings of the SQLite provider.
type Settings struct {
	// Path of the database file. ":memory:" keeps the database in memory.
	Path string `mapstructure:"path"`
	// WAL enables the write-ahead log (ignored for in-memory databases).
	WAL bool `mapstructure:"wal"`
}

// Provider stores all collections of a database in one SQLite file.
//
// Tables:
//
//	documents(id, collection, data)       id is the record identity
//	indexes(collection, name, spec)       index definitions of AddIndex
//
// Records are stored as JSON without their identity. The identity is the
// integer row id, exposed as a decimal string; any other string is a
// malformed identity.
type Provider struct {
	*provider.Collections
	settings Settings

	mu sync.RWMutex
	db *sql.DB
}

var _ provider.Provider = (*Provider)(nil)

// New creates a SQLite provider. The database is opened by Start.
func New(settings Settings) *Provider {
	if settings.Path == "" {
		settings.Path = os.Getenv(PathEnv)
	}
	if settings.Path == "" {
		settings.Path = ":memory:"
	}
	p := &Provider{settings: settings}
	p.Collections = provider.NewCollections(p)
	return p
}

// Register adds the SQLite provider to a registry.
func Register(r *provider.Registry) error {
	return r.Register(TypeName, func(raw map[string]any) (provider.Provider, error) {
		var s Settings
		if err := provider.DecodeSettings(raw, &s); err != nil {
			return nil, err
		}
		return New(s), nil
	})
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (p *Provider) IsStarted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db != nil
}

func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return nil
	}

	if p.settings.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(p.settings.Path), 0o755); err != nil {
			return collection.Wrap(collection.RetCInternalError, err)
		}
	}
	db, err := sql.Open("sqlite3", p.settings.Path)
	if err != nil {
		return collection.Wrap(collection.RetCInternalError, err)
	}
	// a single connection serialises writers and keeps in-memory databases alive
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS documents_collection ON documents (collection, id)`,
		`CREATE TABLE IF NOT EXISTS indexes (
			collection TEXT NOT NULL,
			name TEXT NOT NULL,
			spec TEXT NOT NULL,
			PRIMARY KEY (collection, name)
		)`,
	}
	if p.settings.WAL && p.settings.Path != ":memory:" {
		stmts = append([]string{"PRAGMA journal_mode=WAL"}, stmts...)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return collection.Wrap(collection.RetCInternalError, err)
		}
	}
	p.db = db
	log.Infof("sqlite provider started (%s)", p.settings.Path)
	return nil
}

func (p *Provider) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	log.Infof("sqlite provider stopped (%s)", p.settings.Path)
	if err != nil {
		return collection.Wrap(collection.RetCInternalError, err)
	}
	return nil
}

func (p *Provider) SupportsFeature(feature collection.Feature) bool {
	return collection.FeatureAll.Has(feature)
}

// conn returns the open database. The read lock is held until release is called.
func (p *Provider) conn() (*sql.DB, func(), error) {
	p.mu.RLock()
	if p.db == nil {
		p.mu.RUnlock()
		return nil, nil, collection.NewError(collection.RetCInvalidOperation, "sqlite provider is not started")
	}
	return p.db, p.mu.RUnlock, nil
}

// read runs fn on the database.
func (p *Provider) read(fn func(q querier) error) error {
	db, release, err := p.conn()
	if err != nil {
		return err
	}
	defer release()
	return fn(db)
}

// tx runs fn in a transaction which is committed if fn succeeds.
func (p *Provider) tx(ctx context.Context, fn func(q querier) error) error {
	db, release, err := p.conn()
	if err != nil {
		return err
	}
	defer release()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return collection.Wrap(collection.RetCInternalError, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return collection.Wrap(collection.RetCInternalError, err)
	}
	return nil
}
