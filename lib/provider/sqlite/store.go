package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/record"
)

// querier is implemented by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func internalErr(err error) error {
	var ce *collection.Error
	if errors.As(err, &ce) {
		return err
	}
	return collection.Wrap(collection.RetCInternalError, err)
}

// --------------------------------------------------------------------------
// Identities
// --------------------------------------------------------------------------

// parseID converts an identity to the native row id.
func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// idOf returns the native identity of item. present is false if the item has
// no identity, ok is false if it has a malformed one.
func idOf(item record.Record) (id int64, present, ok bool) {
	s, present := item.ID()
	if !present {
		return 0, false, true
	}
	id, ok = parseID(s)
	return id, true, ok
}

// --------------------------------------------------------------------------
// Condition push down
// --------------------------------------------------------------------------

// where translates the scalar parts of cond into SQL. Everything that cannot
// be expressed is left to record.Matches, which is applied to every loaded
// row anyway. none is true if cond cannot match any row.
func where(cond record.Condition) (clause string, args []any, full bool, none bool) {
	var parts []string
	full = true
	for _, field := range cond.Fields() {
		value := cond[field]
		if field == record.IDField {
			s, isString := value.(string)
			if !isString {
				s = fmt.Sprint(value)
			}
			id, ok := parseID(s)
			if !ok {
				return "", nil, false, true
			}
			parts = append(parts, "id = ?")
			args = append(args, id)
			continue
		}
		if !fieldPattern.MatchString(field) {
			full = false
			continue
		}
		// json_extract maps true to 1, json_type keeps the comparison type exact
		path := "json_extract(data, '$." + field + "')"
		kind := "json_type(data, '$." + field + "')"
		switch v := value.(type) {
		case nil:
			parts = append(parts, path+" IS NULL")
		case bool:
			parts = append(parts, kind+" = ?")
			args = append(args, strconv.FormatBool(v))
		case string:
			parts = append(parts, kind+" = 'text' AND "+path+" = ?")
			args = append(args, v)
		default:
			if f, ok := record.Number(v); ok {
				parts = append(parts, kind+" IN ('integer', 'real') AND "+path+" = ?")
				args = append(args, f)
			} else {
				full = false
			}
		}
	}
	if len(parts) == 0 {
		return "", nil, full, false
	}
	return " AND " + strings.Join(parts, " AND "), args, full, false
}

// --------------------------------------------------------------------------
// Row access
// --------------------------------------------------------------------------

func decode(id int64, data string) (record.Record, error) {
	var rec record.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, collection.Wrapf(collection.RetCInternalError, err, "corrupt document %d", id)
	}
	if rec == nil {
		rec = record.Record{}
	}
	rec[record.IDField] = formatID(id)
	return rec, nil
}

func encode(rec record.Record) (string, error) {
	b, err := json.Marshal(rec.Without(record.IDField))
	if err != nil {
		return "", collection.Wrapf(collection.RetCInvalidOperation, err, "record cannot be stored")
	}
	return string(b), nil
}

// load returns the records of collection name matching cond in insertion order.
// limit > 0 stops after limit matches.
func load(ctx context.Context, q querier, name string, cond record.Condition, limit int) ([]record.Record, error) {
	clause, args, full, none := where(cond)
	if none {
		return nil, nil
	}
	query := "SELECT id, data FROM documents WHERE collection = ?" + clause + " ORDER BY id"
	if full && limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}
	rows, err := q.QueryContext(ctx, query, append([]any{name}, args...)...)
	if err != nil {
		return nil, internalErr(err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		var id int64
		var data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, internalErr(err)
		}
		rec, err := decode(id, data)
		if err != nil {
			return nil, err
		}
		if !record.Matches(rec, cond) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, internalErrOrNil(rows.Err())
}

func internalErrOrNil(err error) error {
	if err == nil {
		return nil
	}
	return internalErr(err)
}

// first returns the first record matching cond in sort order.
func first(ctx context.Context, q querier, name string, cond record.Condition, s record.Sort) (record.Record, error) {
	limit := 1
	if len(s) > 0 {
		limit = 0
	}
	recs, err := load(ctx, q, name, cond, limit)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	s.Apply(recs)
	return recs[0], nil
}

func getByID(ctx context.Context, q querier, name string, id int64) (record.Record, error) {
	var data string
	err := q.QueryRowContext(ctx, "SELECT data FROM documents WHERE collection = ? AND id = ?", name, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, internalErr(err)
	}
	return decode(id, data)
}

// insert stores item and returns it with its identity. An integer identity
// supplied by the caller is kept.
func insert(ctx context.Context, q querier, name string, item record.Record) (record.Record, error) {
	id, present, ok := idOf(item)
	if !ok {
		return nil, collection.Errorf(collection.RetCInvalidOperation, "malformed identity %v", item[record.IDField])
	}
	if err := checkUnique(ctx, q, name, item, id); err != nil {
		return nil, err
	}
	data, err := encode(item)
	if err != nil {
		return nil, err
	}
	var res sql.Result
	if present {
		res, err = q.ExecContext(ctx, "INSERT INTO documents (id, collection, data) VALUES (?, ?, ?)", id, name, data)
	} else {
		res, err = q.ExecContext(ctx, "INSERT INTO documents (collection, data) VALUES (?, ?)", name, data)
	}
	if err != nil {
		return nil, internalErr(err)
	}
	if !present {
		if id, err = res.LastInsertId(); err != nil {
			return nil, internalErr(err)
		}
	}
	rec := item.Clone()
	rec[record.IDField] = formatID(id)
	return rec, nil
}

// write overwrites the record id with rec.
func write(ctx context.Context, q querier, name string, id int64, rec record.Record) (record.Record, error) {
	if err := checkUnique(ctx, q, name, rec, id); err != nil {
		return nil, err
	}
	data, err := encode(rec)
	if err != nil {
		return nil, err
	}
	if _, err := q.ExecContext(ctx, "UPDATE documents SET data = ? WHERE collection = ? AND id = ?", data, name, id); err != nil {
		return nil, internalErr(err)
	}
	out := rec.Clone()
	out[record.IDField] = formatID(id)
	return out, nil
}

// --------------------------------------------------------------------------
// Indexes
// --------------------------------------------------------------------------

func indexSpecs(ctx context.Context, q querier, name string) ([]record.IndexSpec, error) {
	rows, err := q.QueryContext(ctx, "SELECT spec FROM indexes WHERE collection = ?", name)
	if err != nil {
		return nil, internalErr(err)
	}
	defer rows.Close()
	var specs []record.IndexSpec
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, internalErr(err)
		}
		var spec record.IndexSpec
		if err := json.Unmarshal([]byte(raw), &spec); err != nil {
			return nil, internalErr(err)
		}
		specs = append(specs, spec)
	}
	return specs, internalErrOrNil(rows.Err())
}

// checkUnique verifies that storing rec under self does not violate a unique index.
func checkUnique(ctx context.Context, q querier, name string, rec record.Record, self int64) error {
	specs, err := indexSpecs(ctx, q, name)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if !spec.Unique {
			continue
		}
		cond := make(record.Condition, len(spec.Fields))
		for _, f := range spec.Fields {
			cond[f] = rec[f]
		}
		if _, ok := spec.Key(rec); !ok {
			continue
		}
		matches, err := load(ctx, q, name, cond, 2)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if id, _ := parseID(m[record.IDField].(string)); id != self {
				return collection.Errorf(collection.RetCInvalidOperation, "duplicate key for unique index %s", spec.IndexName())
			}
		}
	}
	return nil
}

// sqlIndexName derives a valid SQL identifier for an index of a collection.
func sqlIndexName(name, index string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name + "\x00" + index))
	return fmt.Sprintf("dcol_idx_%x", h.Sum64())
}

// createSQLIndex creates the expression index backing spec.
func createSQLIndex(ctx context.Context, q querier, name string, spec record.IndexSpec) error {
	exprs := []string{"collection"}
	for _, f := range spec.Fields {
		exprs = append(exprs, "json_extract(data, '$."+f+"')")
	}
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON documents (%s)", sqlIndexName(name, spec.IndexName()), strings.Join(exprs, ", "))
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return internalErr(err)
	}
	return nil
}

func dropSQLIndexes(ctx context.Context, q querier, name string, specs []record.IndexSpec) error {
	for _, spec := range specs {
		if _, err := q.ExecContext(ctx, "DROP INDEX IF EXISTS "+sqlIndexName(name, spec.IndexName())); err != nil {
			return internalErr(err)
		}
	}
	return nil
}
