package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("collection")

// Innermost addresses the leaf of a collection chain in AddHook and At.
const Innermost = -1

// DefaultBatchSize is the chunk size of the by-batches operations if none is given.
const DefaultBatchSize = 100

// Settings configure a collection.
type Settings struct {
	// DB is the storage provider owning the collection. Required.
	DB Storage
	// Name of the collection. Required.
	Name string
	// Inner is the collection wrapped by a decorator. Decorators create a
	// leaf collection on DB if it is nil.
	Inner Collection
}

func (s Settings) validate() error {
	if s.DB == nil {
		return NewError(RetCConfiguration, "collection requires an owning storage provider")
	}
	if s.Name == "" {
		return NewError(RetCConfiguration, "collection requires a name")
	}
	return nil
}

// Base implements Collection on top of an Operations executor. Every call
// runs the before hooks, the executor (unless a before hook already provided
// a result) and the after hooks.
type Base struct {
	name  string
	db    Storage
	inner Collection
	exec  Operations

	hooks   *xsync.MapOf[Event, []Hook]
	latency *xsync.MapOf[Op, *metrics.Histogram]
}

// NewBase wraps exec with the hook pipeline.
func NewBase(settings Settings, exec Operations) (*Base, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, NewError(RetCConfiguration, "collection requires an executor")
	}
	return &Base{
		name:    settings.Name,
		db:      settings.DB,
		inner:   settings.Inner,
		exec:    exec,
		hooks:   xsync.NewMapOf[Event, []Hook](),
		latency: xsync.NewMapOf[Op, *metrics.Histogram](),
	}, nil
}

func (b *Base) Name() string { return b.name }

func (b *Base) Inner() Collection { return b.inner }

// DB returns the storage provider owning the collection.
func (b *Base) DB() Storage { return b.db }

// AddHook registers hook for event on the collection depth links down the chain.
func (b *Base) AddHook(event Event, hook Hook, depth int) error {
	if hook == nil {
		return NewError(RetCInvalidOperation, "hook must not be nil")
	}
	if event.Op >= opCount {
		return Errorf(RetCInvalidOperation, "unknown event %s", event)
	}
	if depth != 0 {
		target, err := At(b, depth)
		if err != nil {
			return err
		}
		if target != Collection(b) {
			return target.AddHook(event, hook, 0)
		}
	}
	// copy on write, running operations keep their snapshot of the list
	b.hooks.Compute(event, func(old []Hook, _ bool) ([]Hook, bool) {
		hooks := make([]Hook, len(old), len(old)+1)
		copy(hooks, old)
		return append(hooks, hook), false
	})
	return nil
}

// At walks depth links down the chain starting at c. Innermost walks to the leaf.
func At(c Collection, depth int) (Collection, error) {
	if c == nil {
		return nil, NewError(RetCInvalidOperation, "collection is nil")
	}
	if depth < Innermost {
		return nil, Errorf(RetCInvalidOperation, "invalid depth %d", depth)
	}
	for hops := 0; depth == Innermost || hops < depth; hops++ {
		next := c.Inner()
		if next == nil {
			if depth == Innermost {
				break
			}
			return nil, Errorf(RetCInvalidOperation, "collection %s has no link at depth %d", c.Name(), depth)
		}
		c = next
	}
	return c, nil
}

// --------------------------------------------------------------------------
// Hook pipeline
// --------------------------------------------------------------------------

// callHooks runs the wildcard hooks of the event's phase, then the hooks of
// the event itself.
func (b *Base) callHooks(ctx context.Context, event Event, opts *Options) error {
	if err := b.callHook(ctx, event.Wildcard(), event, opts); err != nil {
		return err
	}
	return b.callHook(ctx, event, event, opts)
}

func (b *Base) callHook(ctx context.Context, key Event, event Event, opts *Options) error {
	hooks, ok := b.hooks.Load(key)
	if !ok {
		return nil
	}
	for _, h := range hooks {
		patch, err := h(ctx, event, b, *opts)
		if err != nil {
			return err
		}
		opts.Apply(patch)
	}
	return nil
}

// execute runs one operation through the hook pipeline.
func execute[T any](ctx context.Context, b *Base, op Op, opts Options, run func(context.Context, Options) (T, error)) (T, error) {
	var zero T
	defer b.observe(op, time.Now())

	if err := b.callHooks(ctx, Before(op), &opts); err != nil {
		return zero, err
	}
	if opts.Result == nil {
		res, err := run(ctx, opts)
		if err != nil {
			return zero, err
		}
		opts.Result = res
	} else {
		log.Debugf("%s.%s: result provided by before hook, skipping execution", b.name, op)
	}
	if err := b.callHooks(ctx, After(op), &opts); err != nil {
		return zero, err
	}
	return resultAs[T](opts.Result, op)
}

// resultAs converts the result of an operation back to its typed form.
func resultAs[T any](res any, op Op) (T, error) {
	var out T
	if res == nil {
		return out, nil
	}
	if v, ok := res.(T); ok {
		return v, nil
	}
	switch p := any(&out).(type) {
	case *record.Record:
		if m, ok := res.(map[string]any); ok {
			*p = m
			return out, nil
		}
	case *[]record.Record:
		if ms, ok := res.([]map[string]any); ok {
			recs := make([]record.Record, len(ms))
			for i, m := range ms {
				recs[i] = m
			}
			*p = recs
			return out, nil
		}
	}
	return out, Errorf(RetCInvalidOperation, "%s: result has type %T, expected %T", op, res, out)
}

func (b *Base) observe(op Op, start time.Time) {
	h, _ := b.latency.LoadOrCompute(op, func() *metrics.Histogram {
		return metrics.GetOrCreateHistogram(fmt.Sprintf(`dcol_operation_duration_seconds{collection=%q,op=%q}`, b.name, op))
	})
	h.Update(time.Since(start).Seconds())
}

// --------------------------------------------------------------------------
// Interface Methods (docs see collection/interface.go)
// --------------------------------------------------------------------------

func (b *Base) Find(ctx context.Context, cond record.Condition, opts record.FindOptions) ([]record.Record, error) {
	return execute(ctx, b, OpFind, Options{
		Condition:  cond,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
		Sort:       opts.Sort,
		Projection: opts.Projection,
	}, func(ctx context.Context, o Options) ([]record.Record, error) {
		return b.exec.Find(ctx, o.Condition, o.FindOptions())
	})
}

func (b *Base) FindOne(ctx context.Context, cond record.Condition, projection record.Projection) (record.Record, error) {
	return execute(ctx, b, OpFindOne, Options{Condition: cond, Projection: projection},
		func(ctx context.Context, o Options) (record.Record, error) {
			return b.exec.FindOne(ctx, o.Condition, o.Projection)
		})
}

func (b *Base) Exists(ctx context.Context, cond record.Condition) (bool, error) {
	return execute(ctx, b, OpExists, Options{Condition: cond},
		func(ctx context.Context, o Options) (bool, error) {
			return b.exec.Exists(ctx, o.Condition)
		})
}

func (b *Base) FindByID(ctx context.Context, id string, projection record.Projection) (record.Record, error) {
	return execute(ctx, b, OpFindByID, Options{ID: id, Projection: projection},
		func(ctx context.Context, o Options) (record.Record, error) {
			return b.exec.FindByID(ctx, o.ID, o.Projection)
		})
}

func (b *Base) ExistsByID(ctx context.Context, id string) (bool, error) {
	return execute(ctx, b, OpExistsByID, Options{ID: id},
		func(ctx context.Context, o Options) (bool, error) {
			return b.exec.ExistsByID(ctx, o.ID)
		})
}

func (b *Base) InsertOne(ctx context.Context, item record.Record) (record.Record, error) {
	return execute(ctx, b, OpInsertOne, Options{Item: item},
		func(ctx context.Context, o Options) (record.Record, error) {
			return b.exec.InsertOne(ctx, o.Item)
		})
}

func (b *Base) InsertMany(ctx context.Context, items []record.Record) ([]record.Record, error) {
	return execute(ctx, b, OpInsertMany, Options{Items: items},
		func(ctx context.Context, o Options) ([]record.Record, error) {
			return b.exec.InsertMany(ctx, o.Items)
		})
}

func (b *Base) Update(ctx context.Context, item record.Record) (record.Record, error) {
	return execute(ctx, b, OpUpdate, Options{Item: item},
		func(ctx context.Context, o Options) (record.Record, error) {
			return b.exec.Update(ctx, o.Item)
		})
}

func (b *Base) UpdateMany(ctx context.Context, filter record.Condition, update record.Record, opts record.UpdateOptions) (int, error) {
	return execute(ctx, b, OpUpdateMany, Options{Filter: filter, Update: update, UpdateOptions: opts},
		func(ctx context.Context, o Options) (int, error) {
			return b.exec.UpdateMany(ctx, o.Filter, o.Update, o.UpdateOptions)
		})
}

func (b *Base) Replace(ctx context.Context, item record.Record) (record.Record, error) {
	return execute(ctx, b, OpReplace, Options{Item: item},
		func(ctx context.Context, o Options) (record.Record, error) {
			return b.exec.Replace(ctx, o.Item)
		})
}

func (b *Base) Save(ctx context.Context, item record.Record) (record.Record, error) {
	return execute(ctx, b, OpSave, Options{Item: item},
		func(ctx context.Context, o Options) (record.Record, error) {
			return b.exec.Save(ctx, o.Item)
		})
}

func (b *Base) Remove(ctx context.Context, cond record.Condition, justOne bool) (int, error) {
	return execute(ctx, b, OpRemove, Options{Condition: cond, JustOne: justOne},
		func(ctx context.Context, o Options) (int, error) {
			return b.exec.Remove(ctx, o.Condition, o.JustOne)
		})
}

func (b *Base) RemoveByID(ctx context.Context, id string) (int, error) {
	return execute(ctx, b, OpRemoveByID, Options{ID: id},
		func(ctx context.Context, o Options) (int, error) {
			return b.exec.RemoveByID(ctx, o.ID)
		})
}

func (b *Base) AddIndex(ctx context.Context, spec record.IndexSpec) (string, error) {
	return execute(ctx, b, OpAddIndex, Options{Index: spec},
		func(ctx context.Context, o Options) (string, error) {
			return b.exec.AddIndex(ctx, o.Index)
		})
}

func (b *Base) Count(ctx context.Context, cond record.Condition) (int, error) {
	return execute(ctx, b, OpCount, Options{Condition: cond},
		func(ctx context.Context, o Options) (int, error) {
			return b.exec.Count(ctx, o.Condition)
		})
}

func (b *Base) Drop(ctx context.Context) (bool, error) {
	return execute(ctx, b, OpDrop, Options{},
		func(ctx context.Context, o Options) (bool, error) {
			return b.exec.Drop(ctx)
		})
}

func (b *Base) InsertByBatches(ctx context.Context, items []record.Record, batchSize int) ([]record.Record, error) {
	return execute(ctx, b, OpInsertByBatches, Options{Items: items, BatchSize: batchSize},
		func(ctx context.Context, o Options) ([]record.Record, error) {
			return b.exec.InsertByBatches(ctx, o.Items, o.BatchSize)
		})
}

func (b *Base) UpdateByBatches(ctx context.Context, items []record.Record, batchSize int) ([]record.Record, error) {
	return execute(ctx, b, OpUpdateByBatches, Options{Items: items, BatchSize: batchSize},
		func(ctx context.Context, o Options) ([]record.Record, error) {
			return b.exec.UpdateByBatches(ctx, o.Items, o.BatchSize)
		})
}

func (b *Base) RemoveByIDByBatches(ctx context.Context, ids []string, batchSize int) (int, error) {
	return execute(ctx, b, OpRemoveByIDByBatches, Options{IDs: ids, BatchSize: batchSize},
		func(ctx context.Context, o Options) (int, error) {
			return b.exec.RemoveByIDByBatches(ctx, o.IDs, o.BatchSize)
		})
}

func (b *Base) Aggregate(ctx context.Context, pipeline record.Pipeline) ([]record.Record, error) {
	return execute(ctx, b, OpAggregate, Options{Pipeline: pipeline},
		func(ctx context.Context, o Options) ([]record.Record, error) {
			return b.exec.Aggregate(ctx, o.Pipeline)
		})
}

func (b *Base) FindOneAndReplace(ctx context.Context, query record.Condition, item record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	return execute(ctx, b, OpFindOneAndReplace, Options{Condition: query, Item: item, FindOneAnd: opts},
		func(ctx context.Context, o Options) (record.Record, error) {
			return b.exec.FindOneAndReplace(ctx, o.Condition, o.Item, o.FindOneAnd)
		})
}

func (b *Base) FindOneAndUpdate(ctx context.Context, query record.Condition, update record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	return execute(ctx, b, OpFindOneAndUpdate, Options{Condition: query, Update: update, FindOneAnd: opts},
		func(ctx context.Context, o Options) (record.Record, error) {
			return b.exec.FindOneAndUpdate(ctx, o.Condition, o.Update, o.FindOneAnd)
		})
}

func (b *Base) FindOneAndDelete(ctx context.Context, query record.Condition, opts record.FindOneAndOptions) (record.Record, error) {
	return execute(ctx, b, OpFindOneAndDelete, Options{Condition: query, FindOneAnd: opts},
		func(ctx context.Context, o Options) (record.Record, error) {
			return b.exec.FindOneAndDelete(ctx, o.Condition, o.FindOneAnd)
		})
}

func (b *Base) Rename(ctx context.Context, newName string) (bool, error) {
	return execute(ctx, b, OpRename, Options{NewName: newName},
		func(ctx context.Context, o Options) (bool, error) {
			return b.exec.Rename(ctx, o.NewName)
		})
}
