package record

import (
	"fmt"
	"sort"
)

// Projection lists the fields a read should return. The identity field is
// always returned. An empty projection returns whole records.
type Projection []string

// IsSet reports whether the projection restricts the returned fields.
func (p Projection) IsSet() bool { return len(p) > 0 }

// Apply returns a copy of rec containing only the projected fields.
func (p Projection) Apply(rec Record) Record {
	if rec == nil || !p.IsSet() {
		return rec.Clone()
	}
	out := make(Record, len(p)+1)
	if id, ok := rec[IDField]; ok {
		out[IDField] = id
	}
	for _, f := range p {
		if v, ok := rec[f]; ok {
			out[f] = v
		}
	}
	return out
}

// SortField is one key of a sort order.
type SortField struct {
	Field string `json:"field" yaml:"field"`
	Desc  bool   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// Sort is an ordered list of sort keys.
type Sort []SortField

// Asc and Desc build single sort keys.
func Asc(field string) SortField  { return SortField{Field: field} }
func Desc(field string) SortField { return SortField{Field: field, Desc: true} }

// Less reports whether a sorts before b.
func (s Sort) Less(a, b Record) bool {
	for _, k := range s {
		c := Compare(a[k.Field], b[k.Field])
		if c == 0 {
			continue
		}
		if k.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// Apply sorts records in place (stable).
func (s Sort) Apply(records []Record) {
	if len(s) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool { return s.Less(records[i], records[j]) })
}

// FindOptions parameterise a multi-record read.
type FindOptions struct {
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
	Sort       Sort       `json:"sort,omitempty"`
	Projection Projection `json:"projection,omitempty"`
}

// Page applies offset and limit to an already sorted slice.
func (o FindOptions) Page(records []Record) []Record {
	if o.Offset > 0 {
		if o.Offset >= len(records) {
			return []Record{}
		}
		records = records[o.Offset:]
	}
	if o.Limit > 0 && o.Limit < len(records) {
		records = records[:o.Limit]
	}
	return records
}

// UpdateOptions parameterise UpdateMany.
type UpdateOptions struct {
	// Upsert inserts filter merged with the update if nothing matched.
	Upsert bool `json:"upsert,omitempty"`
}

// IndexSpec describes a secondary index.
type IndexSpec struct {
	Name   string   `json:"name,omitempty" yaml:"name,omitempty"`
	Fields []string `json:"fields" yaml:"fields"`
	Unique bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// IndexName returns the explicit name of the index or one derived from its fields.
func (s IndexSpec) IndexName() string {
	if s.Name != "" {
		return s.Name
	}
	name := ""
	for i, f := range s.Fields {
		if i > 0 {
			name += "_"
		}
		name += f + "_1"
	}
	return name
}

// Validate checks that the index names at least one field.
func (s IndexSpec) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("index %q has no fields", s.Name)
	}
	return nil
}

// Key returns the canonical key of rec for this index. The boolean is false if
// one of the indexed values is not a scalar.
func (s IndexSpec) Key(rec Record) (string, bool) {
	key := ""
	for _, f := range s.Fields {
		k, ok := ValueKey(rec[f])
		if !ok {
			return "", false
		}
		key += k + "\x00"
	}
	return key, true
}

// FindOneAndOptions parameterise the find-one-and-* operations.
type FindOneAndOptions struct {
	Sort       Sort       `json:"sort,omitempty"`
	Projection Projection `json:"projection,omitempty"`
	// ReturnAfter returns the record after the modification instead of before.
	ReturnAfter bool `json:"returnAfter,omitempty"`
	// Upsert inserts a new record if nothing matched (replace and update only).
	Upsert bool `json:"upsert,omitempty"`
}

// --------------------------------------------------------------------------
// Aggregation
// --------------------------------------------------------------------------

// Group collapses records sharing the same value of By into one record per
// group. The result carries By and, if Count is set, the number of records
// in the group under that field name.
type Group struct {
	By    string `json:"by"`
	Count string `json:"count,omitempty"`
}

// Stage is one step of an aggregation pipeline. Exactly one field should be set.
type Stage struct {
	Match   Condition  `json:"match,omitempty"`
	Sort    Sort       `json:"sort,omitempty"`
	Skip    int        `json:"skip,omitempty"`
	Limit   int        `json:"limit,omitempty"`
	Project Projection `json:"project,omitempty"`
	Group   *Group     `json:"group,omitempty"`
	// Count replaces the stream with a single record {Count: n}.
	Count string `json:"count,omitempty"`
}

// Pipeline is an ordered list of aggregation stages.
type Pipeline []Stage

// Run evaluates the pipeline over records. The input slice is not modified.
func (p Pipeline) Run(records []Record) ([]Record, error) {
	out := CloneAll(records)
	for i, st := range p {
		switch {
		case st.Match != nil:
			filtered := out[:0:0]
			for _, r := range out {
				if Matches(r, st.Match) {
					filtered = append(filtered, r)
				}
			}
			out = filtered
		case len(st.Sort) > 0:
			st.Sort.Apply(out)
		case st.Skip > 0:
			out = FindOptions{Offset: st.Skip}.Page(out)
		case st.Limit > 0:
			out = FindOptions{Limit: st.Limit}.Page(out)
		case st.Project.IsSet():
			for j, r := range out {
				out[j] = st.Project.Apply(r)
			}
		case st.Group != nil:
			out = group(out, *st.Group)
		case st.Count != "":
			out = []Record{{st.Count: len(out)}}
		default:
			return nil, fmt.Errorf("pipeline stage %d is empty", i)
		}
	}
	return out, nil
}

func group(records []Record, g Group) []Record {
	var order []string
	groups := make(map[string]Record)
	for _, r := range records {
		v := r[g.By]
		k, ok := ValueKey(v)
		if !ok {
			k = fmt.Sprintf("x:%v", v)
		}
		acc, seen := groups[k]
		if !seen {
			acc = Record{g.By: v}
			if g.Count != "" {
				acc[g.Count] = 0
			}
			groups[k] = acc
			order = append(order, k)
		}
		if g.Count != "" {
			acc[g.Count] = acc[g.Count].(int) + 1
		}
	}
	out := make([]Record, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k])
	}
	return out
}
