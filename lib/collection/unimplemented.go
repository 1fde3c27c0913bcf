package collection

import (
	"context"

	"github.com/ValentinKolb/dCol/lib/record"
)

// Unimplemented can be embedded into an Operations executor. Every operation
// that is not overridden fails with RetCNotImplemented.
type Unimplemented struct {
	// Name is used in error messages.
	Name string
}

func (u Unimplemented) fail(op Op) error {
	return Errorf(RetCNotImplemented, "%s is not implemented for collection %s", op, u.Name)
}

func (u Unimplemented) Find(context.Context, record.Condition, record.FindOptions) ([]record.Record, error) {
	return nil, u.fail(OpFind)
}

func (u Unimplemented) FindOne(context.Context, record.Condition, record.Projection) (record.Record, error) {
	return nil, u.fail(OpFindOne)
}

func (u Unimplemented) Exists(context.Context, record.Condition) (bool, error) {
	return false, u.fail(OpExists)
}

func (u Unimplemented) FindByID(context.Context, string, record.Projection) (record.Record, error) {
	return nil, u.fail(OpFindByID)
}

func (u Unimplemented) ExistsByID(context.Context, string) (bool, error) {
	return false, u.fail(OpExistsByID)
}

func (u Unimplemented) InsertOne(context.Context, record.Record) (record.Record, error) {
	return nil, u.fail(OpInsertOne)
}

func (u Unimplemented) InsertMany(context.Context, []record.Record) ([]record.Record, error) {
	return nil, u.fail(OpInsertMany)
}

func (u Unimplemented) Update(context.Context, record.Record) (record.Record, error) {
	return nil, u.fail(OpUpdate)
}

func (u Unimplemented) UpdateMany(context.Context, record.Condition, record.Record, record.UpdateOptions) (int, error) {
	return 0, u.fail(OpUpdateMany)
}

func (u Unimplemented) Replace(context.Context, record.Record) (record.Record, error) {
	return nil, u.fail(OpReplace)
}

func (u Unimplemented) Save(context.Context, record.Record) (record.Record, error) {
	return nil, u.fail(OpSave)
}

func (u Unimplemented) Remove(context.Context, record.Condition, bool) (int, error) {
	return 0, u.fail(OpRemove)
}

func (u Unimplemented) RemoveByID(context.Context, string) (int, error) {
	return 0, u.fail(OpRemoveByID)
}

func (u Unimplemented) AddIndex(context.Context, record.IndexSpec) (string, error) {
	return "", u.fail(OpAddIndex)
}

func (u Unimplemented) Count(context.Context, record.Condition) (int, error) {
	return 0, u.fail(OpCount)
}

func (u Unimplemented) Drop(context.Context) (bool, error) {
	return false, u.fail(OpDrop)
}

func (u Unimplemented) InsertByBatches(context.Context, []record.Record, int) ([]record.Record, error) {
	return nil, u.fail(OpInsertByBatches)
}

func (u Unimplemented) UpdateByBatches(context.Context, []record.Record, int) ([]record.Record, error) {
	return nil, u.fail(OpUpdateByBatches)
}

func (u Unimplemented) RemoveByIDByBatches(context.Context, []string, int) (int, error) {
	return 0, u.fail(OpRemoveByIDByBatches)
}

func (u Unimplemented) Aggregate(context.Context, record.Pipeline) ([]record.Record, error) {
	return nil, u.fail(OpAggregate)
}

func (u Unimplemented) FindOneAndReplace(context.Context, record.Condition, record.Record, record.FindOneAndOptions) (record.Record, error) {
	return nil, u.fail(OpFindOneAndReplace)
}

func (u Unimplemented) FindOneAndUpdate(context.Context, record.Condition, record.Record, record.FindOneAndOptions) (record.Record, error) {
	return nil, u.fail(OpFindOneAndUpdate)
}

func (u Unimplemented) FindOneAndDelete(context.Context, record.Condition, record.FindOneAndOptions) (record.Record, error) {
	return nil, u.fail(OpFindOneAndDelete)
}

func (u Unimplemented) Rename(context.Context, string) (bool, error) {
	return false, u.fail(OpRename)
}
