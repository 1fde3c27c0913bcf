package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// IDField is the uniform name of the identity field of a Record.
const IDField = "id"

// Record is a single data item, a mapping of field name to value.
type Record map[string]any

// ID returns the identity of the record as a string. The boolean is false if
// the record carries no identity or the identity is empty.
func (r Record) ID() (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r[IDField]
	if !ok || v == nil {
		return "", false
	}
	var id string
	switch t := v.(type) {
	case string:
		id = t
	case fmt.Stringer:
		id = t.String()
	default:
		id = fmt.Sprint(t)
	}
	return id, id != ""
}

// Clone returns a shallow copy of the record. Nil stays nil.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Without returns a copy of the record without the given fields.
func (r Record) Without(fields ...string) Record {
	c := r.Clone()
	for _, f := range fields {
		delete(c, f)
	}
	return c
}

// Merge returns a copy of r with all fields of patch set. Fields of patch win.
func (r Record) Merge(patch Record) Record {
	c := r.Clone()
	if c == nil {
		c = make(Record, len(patch))
	}
	for k, v := range patch {
		c[k] = v
	}
	return c
}

// CloneAll clones every record of the slice.
func CloneAll(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// --------------------------------------------------------------------------
// Value canonicalisation
// --------------------------------------------------------------------------

// ValueKey returns a canonical string for a scalar value. All numeric kinds map
// to the same key if they are numerically equal. The boolean is false for
// values that are not scalars (maps, slices, structs).
func ValueKey(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "n:", true
	case string:
		return "s:" + t, true
	case bool:
		return "b:" + strconv.FormatBool(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return "s:" + t.String(), true
		}
		return numberKey(f), true
	}
	if f, ok := toFloat(v); ok {
		return numberKey(f), true
	}
	return "", false
}

func numberKey(f float64) string {
	return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
}

// Number returns v as float64 if it is of a numeric kind.
func Number(v any) (float64, bool) { return toFloat(v) }

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

// Equal reports whether two field values are equal. Scalars are compared by
// their canonical key, everything else by its JSON encoding.
func Equal(a, b any) bool {
	ka, okA := ValueKey(a)
	kb, okB := ValueKey(b)
	if okA && okB {
		return ka == kb
	}
	if okA != okB {
		return false
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}

// rank orders values of different kinds: nil < bool < number < string < other.
func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		return 3
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	return 4
}

// Compare returns -1, 0 or 1 depending on the order of a and b.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0:
		return 0
	case 1:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case 2:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa == fb || (math.IsNaN(fa) && math.IsNaN(fb)):
			return 0
		case fa < fb:
			return -1
		default:
			return 1
		}
	case 3:
		return strings.Compare(a.(string), b.(string))
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return strings.Compare(string(ja), string(jb))
}

// --------------------------------------------------------------------------
// Conditions
// --------------------------------------------------------------------------

// Condition is an equality filter: a record matches if every field of the
// condition is present in the record with an equal value.
type Condition map[string]any

// Matches reports whether rec satisfies cond. An empty condition matches
// every record.
func Matches(rec Record, cond Condition) bool {
	for field, want := range cond {
		got, ok := rec[field]
		if !ok {
			if want == nil {
				continue
			}
			return false
		}
		if !Equal(got, want) {
			return false
		}
	}
	return true
}

// Single returns the only field and value of the condition. The boolean is
// false if the condition does not have exactly one field.
func (c Condition) Single() (string, any, bool) {
	if len(c) != 1 {
		return "", nil, false
	}
	for k, v := range c {
		return k, v, true
	}
	return "", nil, false
}

// Fields returns the condition's field names in sorted order.
func (c Condition) Fields() []string {
	fields := make([]string, 0, len(c))
	for k := range c {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Clone returns a shallow copy of the condition.
func (c Condition) Clone() Condition {
	if c == nil {
		return nil
	}
	out := make(Condition, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ByID returns a condition matching the record with the given identity.
func ByID(id string) Condition {
	return Condition{IDField: id}
}

// DecodeJSON decodes a JSON object into a Record. Integral numbers become
// int64 and all other numbers float64, at any depth, so integer fields keep
// their kind across a JSON round trip.
func DecodeJSON(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	for k, v := range rec {
		rec[k] = normalizeNumbers(v)
	}
	return rec, nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
	}
	return v
}
