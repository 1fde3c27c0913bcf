package memory

import (
	"container/list"
	"encoding/json"
	"io"
	"sort"
	"sync"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/record"
)

// Engine is a thread safe in-memory record store. It knows nothing about
// identity generation: every record handed to a write must already carry its
// identity. This keeps all operations deterministic, which the raft provider
// relies on when it replays the same commands on every replica.
//
// Records are kept in insertion order; reads without sort return them in
// that order. All records returned are copies.
type Engine struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// table is a single collection.
type table struct {
	records map[string]*list.Element // id -> element holding a record.Record
	order   *list.List
	indexes map[string]*index
}

type index struct {
	spec record.IndexSpec
	keys map[string]string // only maintained for unique indexes: key -> id
}

// NewEngine creates an empty engine.
func NewEngine() *Engine {
	return &Engine{tables: make(map[string]*table)}
}

func newTable() *table {
	return &table{
		records: make(map[string]*list.Element),
		order:   list.New(),
		indexes: make(map[string]*index),
	}
}

// --------------------------------------------------------------------------
// Table internals (callers hold the engine lock)
// --------------------------------------------------------------------------

func (e *Engine) table(name string, create bool) *table {
	t, ok := e.tables[name]
	if !ok && create {
		t = newTable()
		e.tables[name] = t
	}
	return t
}

func (t *table) get(id string) record.Record {
	if t == nil {
		return nil
	}
	el, ok := t.records[id]
	if !ok {
		return nil
	}
	return el.Value.(record.Record)
}

// each calls fn for every record in insertion order until fn returns false.
func (t *table) each(fn func(rec record.Record) bool) {
	if t == nil {
		return
	}
	for el := t.order.Front(); el != nil; el = el.Next() {
		if !fn(el.Value.(record.Record)) {
			return
		}
	}
}

func (t *table) match(cond record.Condition) []record.Record {
	var out []record.Record
	t.each(func(rec record.Record) bool {
		if record.Matches(rec, cond) {
			out = append(out, rec)
		}
		return true
	})
	return out
}

// first returns the first record matching cond in the given sort order.
func (t *table) first(cond record.Condition, s record.Sort) record.Record {
	if len(s) == 0 {
		var found record.Record
		t.each(func(rec record.Record) bool {
			if record.Matches(rec, cond) {
				found = rec
				return false
			}
			return true
		})
		return found
	}
	recs := t.match(cond)
	s.Apply(recs)
	if len(recs) == 0 {
		return nil
	}
	return recs[0]
}

// check verifies that storing rec does not violate a unique index.
func (t *table) check(rec record.Record) error {
	id, _ := rec.ID()
	for name, idx := range t.indexes {
		if !idx.spec.Unique {
			continue
		}
		key, ok := idx.spec.Key(rec)
		if !ok {
			continue
		}
		if other, exists := idx.keys[key]; exists && other != id {
			return collection.Errorf(collection.RetCInvalidOperation, "duplicate key for unique index %s", name)
		}
	}
	return nil
}

func (t *table) unindex(rec record.Record) {
	id, _ := rec.ID()
	for _, idx := range t.indexes {
		if !idx.spec.Unique {
			continue
		}
		if key, ok := idx.spec.Key(rec); ok && idx.keys[key] == id {
			delete(idx.keys, key)
		}
	}
}

func (t *table) reindex(rec record.Record) {
	id, _ := rec.ID()
	for _, idx := range t.indexes {
		if !idx.spec.Unique {
			continue
		}
		if key, ok := idx.spec.Key(rec); ok {
			idx.keys[key] = id
		}
	}
}

// put inserts or replaces rec (in place, keeping its position).
func (t *table) put(rec record.Record) error {
	id, ok := rec.ID()
	if !ok {
		return collection.NewError(collection.RetCInvalidOperation, "record has no identity")
	}
	if err := t.check(rec); err != nil {
		return err
	}
	if el, exists := t.records[id]; exists {
		t.unindex(el.Value.(record.Record))
		el.Value = rec
	} else {
		t.records[id] = t.order.PushBack(rec)
	}
	t.reindex(rec)
	return nil
}

func (t *table) del(id string) bool {
	el, ok := t.records[id]
	if !ok {
		return false
	}
	t.unindex(el.Value.(record.Record))
	t.order.Remove(el)
	delete(t.records, id)
	return true
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// Find returns the records of collection name matching cond.
func (e *Engine) Find(name string, cond record.Condition, opts record.FindOptions) []record.Record {
	e.mu.RLock()
	recs := e.tables[name].match(cond)
	e.mu.RUnlock()

	opts.Sort.Apply(recs)
	recs = opts.Page(recs)
	out := make([]record.Record, len(recs))
	for i, r := range recs {
		out[i] = opts.Projection.Apply(r)
	}
	return out
}

// FindOne returns the first record matching cond or nil.
func (e *Engine) FindOne(name string, cond record.Condition, projection record.Projection) record.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return projection.Apply(e.tables[name].first(cond, nil))
}

// Get returns the record with the given identity or nil.
func (e *Engine) Get(name, id string, projection record.Projection) record.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return projection.Apply(e.tables[name].get(id))
}

// Count returns the number of records matching cond.
func (e *Engine) Count(name string, cond record.Condition) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	e.tables[name].each(func(rec record.Record) bool {
		if record.Matches(rec, cond) {
			n++
		}
		return true
	})
	return n
}

// Aggregate runs pipeline over all records of the collection.
func (e *Engine) Aggregate(name string, pipeline record.Pipeline) ([]record.Record, error) {
	e.mu.RLock()
	recs := e.tables[name].match(nil)
	e.mu.RUnlock()
	return pipeline.Run(recs)
}

// Names returns the names of all collections in sorted order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.tables))
	for n := range e.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

// Insert stores all records. Either all or none are stored.
func (e *Engine) Insert(name string, recs []record.Record) ([]record.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.table(name, true)

	seen := make(map[string]bool, len(recs))
	for _, r := range recs {
		id, ok := r.ID()
		if !ok {
			return nil, collection.NewError(collection.RetCInvalidOperation, "record has no identity")
		}
		if seen[id] || t.records[id] != nil {
			return nil, collection.Errorf(collection.RetCInvalidOperation, "duplicate identity %s", id)
		}
		seen[id] = true
	}
	out := make([]record.Record, 0, len(recs))
	for i, r := range recs {
		rec := r.Clone()
		if err := t.put(rec); err != nil {
			// roll back the records of this batch
			for _, done := range recs[:i] {
				id, _ := done.ID()
				t.del(id)
			}
			return nil, err
		}
		out = append(out, rec.Clone())
	}
	return out, nil
}

// Update merges patch into the record with the given identity. It returns the
// updated record or nil if it does not exist.
func (e *Engine) Update(name, id string, patch record.Record) (record.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tables[name]
	old := t.get(id)
	if old == nil {
		return nil, nil
	}
	rec := old.Merge(patch)
	rec[record.IDField] = id
	if err := t.put(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Replace replaces the record with the given identity. It returns the new
// record or nil if it does not exist.
func (e *Engine) Replace(name, id string, rec record.Record) (record.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tables[name]
	if t.get(id) == nil {
		return nil, nil
	}
	rec = rec.Clone()
	rec[record.IDField] = id
	if err := t.put(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// UpdateMany merges update into all records matching filter. If nothing
// matched and upsertID is set, filter merged with update is inserted under
// upsertID. It returns the number of updated (or inserted) records.
func (e *Engine) UpdateMany(name string, filter record.Condition, update record.Record, upsertID string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.table(name, upsertID != "")

	matched := t.match(filter)
	if len(matched) == 0 {
		if upsertID == "" {
			return 0, nil
		}
		rec := record.Record(filter).Merge(update)
		rec[record.IDField] = upsertID
		if err := t.put(rec); err != nil {
			return 0, err
		}
		return 1, nil
	}

	updated := make([]record.Record, 0, len(matched))
	for _, old := range matched {
		rec := old.Merge(update)
		rec[record.IDField] = old[record.IDField]
		updated = append(updated, rec)
	}
	// validate all before writing so the call is all or nothing
	for _, rec := range updated {
		t.unindex(t.get(mustID(rec)))
	}
	var err error
	for _, rec := range updated {
		if err = t.check(rec); err != nil {
			break
		}
		t.reindex(rec)
	}
	if err != nil {
		for _, rec := range updated {
			t.unindex(rec)
		}
		for _, old := range matched {
			t.reindex(old)
		}
		return 0, err
	}
	for _, rec := range updated {
		t.records[mustID(rec)].Value = rec
	}
	return len(updated), nil
}

func mustID(rec record.Record) string {
	id, _ := rec.ID()
	return id
}

// Remove deletes the records matching cond (only the first if justOne).
func (e *Engine) Remove(name string, cond record.Condition, justOne bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tables[name]
	if t == nil {
		return 0
	}
	var matched []record.Record
	if justOne {
		if r := t.first(cond, nil); r != nil {
			matched = append(matched, r)
		}
	} else {
		matched = t.match(cond)
	}
	for _, r := range matched {
		t.del(mustID(r))
	}
	return len(matched)
}

// RemoveIDs deletes the records with the given identities.
func (e *Engine) RemoveIDs(name string, ids []string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tables[name]
	if t == nil {
		return 0
	}
	n := 0
	for _, id := range ids {
		if t.del(id) {
			n++
		}
	}
	return n
}

// AddIndex creates an index. Creating an index that already exists with the
// same definition is a no-op.
func (e *Engine) AddIndex(name string, spec record.IndexSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", collection.Wrap(collection.RetCInvalidOperation, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.table(name, true)
	idxName := spec.IndexName()
	if _, exists := t.indexes[idxName]; exists {
		return idxName, nil
	}
	idx := &index{spec: spec, keys: make(map[string]string)}
	if spec.Unique {
		var err error
		t.each(func(rec record.Record) bool {
			key, ok := spec.Key(rec)
			if !ok {
				return true
			}
			if _, dup := idx.keys[key]; dup {
				err = collection.Errorf(collection.RetCInvalidOperation, "cannot create unique index %s: duplicate key", idxName)
				return false
			}
			idx.keys[key] = mustID(rec)
			return true
		})
		if err != nil {
			return "", err
		}
	}
	t.indexes[idxName] = idx
	return idxName, nil
}

// Drop removes the collection. It reports whether it existed.
func (e *Engine) Drop(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.tables[name]
	delete(e.tables, name)
	return ok
}

// Rename renames a collection. It reports whether the source existed and
// fails if the target already exists.
func (e *Engine) Rename(name, newName string) (bool, error) {
	if newName == "" {
		return false, collection.NewError(collection.RetCInvalidOperation, "new collection name is empty")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return false, nil
	}
	if _, exists := e.tables[newName]; exists {
		return false, collection.Errorf(collection.RetCInvalidOperation, "collection %s already exists", newName)
	}
	e.tables[newName] = t
	delete(e.tables, name)
	return true, nil
}

// FindOneAndReplace replaces the first record matching query. If nothing
// matches and upsertID is set, rec is inserted under upsertID.
func (e *Engine) FindOneAndReplace(name string, query record.Condition, rec record.Record, opts record.FindOneAndOptions, upsertID string) (record.Record, error) {
	return e.findOneAnd(name, query, opts, upsertID, func(old record.Record) record.Record {
		return rec.Clone()
	})
}

// FindOneAndUpdate merges update into the first record matching query. If
// nothing matches and upsertID is set, query merged with update is inserted.
func (e *Engine) FindOneAndUpdate(name string, query record.Condition, update record.Record, opts record.FindOneAndOptions, upsertID string) (record.Record, error) {
	return e.findOneAnd(name, query, opts, upsertID, func(old record.Record) record.Record {
		if old == nil {
			return record.Record(query).Merge(update)
		}
		return old.Merge(update)
	})
}

func (e *Engine) findOneAnd(name string, query record.Condition, opts record.FindOneAndOptions, upsertID string, modify func(old record.Record) record.Record) (record.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.table(name, opts.Upsert && upsertID != "")

	old := t.first(query, opts.Sort)
	var id string
	switch {
	case old != nil:
		id = mustID(old)
	case opts.Upsert && upsertID != "":
		id = upsertID
	default:
		return nil, nil
	}

	rec := modify(old)
	if rec == nil {
		rec = record.Record{}
	}
	rec[record.IDField] = id
	if err := t.put(rec); err != nil {
		return nil, err
	}
	if opts.ReturnAfter {
		return opts.Projection.Apply(rec), nil
	}
	return opts.Projection.Apply(old), nil
}

// FindOneAndDelete deletes the first record matching query and returns it.
func (e *Engine) FindOneAndDelete(name string, query record.Condition, opts record.FindOneAndOptions) record.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tables[name]
	old := t.first(query, opts.Sort)
	if old == nil {
		return nil
	}
	t.del(mustID(old))
	return opts.Projection.Apply(old)
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

type snapshot struct {
	Collections map[string]tableSnapshot `json:"collections"`
}

type tableSnapshot struct {
	Records []record.Record    `json:"records"`
	Indexes []record.IndexSpec `json:"indexes,omitempty"`
}

// Save writes all collections as JSON to w.
func (e *Engine) Save(w io.Writer) error {
	e.mu.RLock()
	snap := snapshot{Collections: make(map[string]tableSnapshot, len(e.tables))}
	for name, t := range e.tables {
		ts := tableSnapshot{Records: make([]record.Record, 0, len(t.records))}
		t.each(func(rec record.Record) bool {
			ts.Records = append(ts.Records, rec)
			return true
		})
		for _, idx := range t.indexes {
			ts.Indexes = append(ts.Indexes, idx.spec)
		}
		snap.Collections[name] = ts
	}
	// encode under the lock, the records are shared with the tables
	err := json.NewEncoder(w).Encode(snap)
	e.mu.RUnlock()
	return err
}

// Load replaces the content of the engine with a snapshot written by Save.
func (e *Engine) Load(r io.Reader) error {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return err
	}
	tables := make(map[string]*table, len(snap.Collections))
	for name, ts := range snap.Collections {
		t := newTable()
		for _, spec := range ts.Indexes {
			t.indexes[spec.IndexName()] = &index{spec: spec, keys: make(map[string]string)}
		}
		for _, rec := range ts.Records {
			if err := t.put(rec); err != nil {
				return err
			}
		}
		tables[name] = t
	}
	e.mu.Lock()
	e.tables = tables
	e.mu.Unlock()
	return nil
}
