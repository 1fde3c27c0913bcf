package collection

import (
	"context"

	"github.com/ValentinKolb/dCol/lib/record"
)

// Hook intercepts a lifecycle event. It receives a copy of the working
// options of the operation and may return a Patch that is merged into them
// before the next hook runs. Returning an error aborts the operation.
//
// Setting Patch.Result in a before hook skips the operation itself; the after
// hooks still run.
type Hook func(ctx context.Context, event Event, col Collection, opts Options) (*Patch, error)

// Options is the working state of one operation. Only the fields relevant to
// the operation are set. Result holds the outcome once the operation ran (or
// was provided by a before hook).
type Options struct {
	Condition     record.Condition
	Limit         int
	Offset        int
	Sort          record.Sort
	Projection    record.Projection
	ID            string
	IDs           []string
	Item          record.Record
	Items         []record.Record
	Filter        record.Condition
	Update        record.Record
	UpdateOptions record.UpdateOptions
	JustOne       bool
	Index         record.IndexSpec
	BatchSize     int
	Pipeline      record.Pipeline
	FindOneAnd    record.FindOneAndOptions
	NewName       string

	Result any
}

// FindOptions returns the paging, sorting and projection options.
func (o Options) FindOptions() record.FindOptions {
	return record.FindOptions{
		Limit:      o.Limit,
		Offset:     o.Offset,
		Sort:       o.Sort,
		Projection: o.Projection,
	}
}

// Patch is a partial update of Options. Nil fields leave the option unchanged.
type Patch struct {
	Condition     record.Condition
	Limit         *int
	Offset        *int
	Sort          record.Sort
	Projection    record.Projection
	ID            *string
	IDs           []string
	Item          record.Record
	Items         []record.Record
	Filter        record.Condition
	Update        record.Record
	UpdateOptions *record.UpdateOptions
	JustOne       *bool
	Index         *record.IndexSpec
	BatchSize     *int
	Pipeline      record.Pipeline
	FindOneAnd    *record.FindOneAndOptions
	NewName       *string

	Result any
}

// Apply merges p into o.
func (o *Options) Apply(p *Patch) {
	if p == nil {
		return
	}
	if p.Condition != nil {
		o.Condition = p.Condition
	}
	if p.Limit != nil {
		o.Limit = *p.Limit
	}
	if p.Offset != nil {
		o.Offset = *p.Offset
	}
	if p.Sort != nil {
		o.Sort = p.Sort
	}
	if p.Projection != nil {
		o.Projection = p.Projection
	}
	if p.ID != nil {
		o.ID = *p.ID
	}
	if p.IDs != nil {
		o.IDs = p.IDs
	}
	if p.Item != nil {
		o.Item = p.Item
	}
	if p.Items != nil {
		o.Items = p.Items
	}
	if p.Filter != nil {
		o.Filter = p.Filter
	}
	if p.Update != nil {
		o.Update = p.Update
	}
	if p.UpdateOptions != nil {
		o.UpdateOptions = *p.UpdateOptions
	}
	if p.JustOne != nil {
		o.JustOne = *p.JustOne
	}
	if p.Index != nil {
		o.Index = *p.Index
	}
	if p.BatchSize != nil {
		o.BatchSize = *p.BatchSize
	}
	if p.Pipeline != nil {
		o.Pipeline = p.Pipeline
	}
	if p.FindOneAnd != nil {
		o.FindOneAnd = *p.FindOneAnd
	}
	if p.NewName != nil {
		o.NewName = *p.NewName
	}
	if p.Result != nil {
		o.Result = p.Result
	}
}

// Ptr returns a pointer to v. It is a convenience for building patches.
func Ptr[T any](v T) *T { return &v }
