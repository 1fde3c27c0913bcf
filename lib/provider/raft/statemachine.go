package raft

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider/memory"
	"github.com/ValentinKolb/dCol/lib/provider/raft/internal"
	"github.com/ValentinKolb/dCol/lib/record"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// StateMachine is a Dragonboat state machine holding the collections of a
// shard in a memory.Engine.
type StateMachine struct {
	replicaID uint64
	shardID   uint64
	engine    *memory.Engine
}

var _ sm.IConcurrentStateMachine = (*StateMachine)(nil)

// NewStateMachine is the state machine factory passed to StartConcurrentReplica.
func NewStateMachine(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return &StateMachine{
		replicaID: replicaID,
		shardID:   shardID,
		engine:    memory.NewEngine(),
	}
}

// Lookup handles read-only queries.
func (fsm *StateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, collection.Errorf(collection.RetCInternalError, "invalid query type: %T", itf)
	}

	e := fsm.engine
	switch q.Type {
	case internal.QueryTFind:
		return e.Find(q.Collection, q.Cond, q.Options), nil
	case internal.QueryTFindOne:
		return e.FindOne(q.Collection, q.Cond, q.Projection), nil
	case internal.QueryTGet:
		return e.Get(q.Collection, q.ID, q.Projection), nil
	case internal.QueryTCount:
		return e.Count(q.Collection, q.Cond), nil
	case internal.QueryTAggregate:
		recs, err := e.Aggregate(q.Collection, q.Pipeline)
		if err != nil {
			return nil, collection.Wrap(collection.RetCInvalidOperation, err)
		}
		return recs, nil
	default:
		return nil, collection.Errorf(collection.RetCInvalidOperation, "unknown query operation: %s", q.Type)
	}
}

// Update applies committed commands. The result value of every entry is a
// collection.RetCode; on success the data holds an internal.Result as JSON,
// otherwise the error message.
func (fsm *StateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	for idx, e := range entries {
		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = failure(collection.Wrapf(collection.RetCInvalidOperation, err, "failed to deserialize command"))
			continue
		}

		res, err := fsm.apply(cmd)
		if err != nil {
			entries[idx].Result = failure(err)
			continue
		}
		data, err := json.Marshal(res)
		if err != nil {
			entries[idx].Result = failure(collection.Wrapf(collection.RetCInternalError, err, "failed to encode result"))
			continue
		}
		entries[idx].Result = sm.Result{Value: uint64(collection.RetCSuccess), Data: data}
	}

	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("state machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

func failure(err error) sm.Result {
	code, msg := collection.RetCInternalError, err.Error()
	var ce *collection.Error
	if errors.As(err, &ce) {
		code, msg = ce.Code, ce.Msg
	}
	return sm.Result{Value: uint64(code), Data: []byte(msg)}
}

// apply executes a single command on the engine.
func (fsm *StateMachine) apply(cmd internal.Command) (res internal.Result, err error) {
	e := fsm.engine
	name := cmd.Collection

	switch cmd.Type {
	case internal.CommandTInsert:
		res.Records, err = e.Insert(name, cmd.Items)
	case internal.CommandTUpdate:
		res.Record, err = e.Update(name, cmd.ID, cmd.Item)
	case internal.CommandTUpdateBatch:
		for _, item := range cmd.Items {
			id, _ := item.ID()
			var rec record.Record
			if rec, err = e.Update(name, id, item); err != nil {
				return res, err
			}
			if rec != nil {
				res.Records = append(res.Records, rec)
			}
		}
	case internal.CommandTReplace:
		res.Record, err = e.Replace(name, cmd.ID, cmd.Item)
	case internal.CommandTSave:
		if e.Get(name, cmd.ID, nil) != nil {
			res.Record, err = e.Update(name, cmd.ID, cmd.Item)
			break
		}
		var recs []record.Record
		if recs, err = e.Insert(name, []record.Record{cmd.Item}); err == nil {
			res.Record = recs[0]
		}
	case internal.CommandTUpdateMany:
		res.N, err = e.UpdateMany(name, cmd.Cond, cmd.Item, cmd.UpsertID)
	case internal.CommandTRemove:
		res.N = e.Remove(name, cmd.Cond, cmd.JustOne)
	case internal.CommandTRemoveIDs:
		res.N = e.RemoveIDs(name, cmd.IDs)
	case internal.CommandTAddIndex:
		if cmd.Index == nil {
			return res, collection.NewError(collection.RetCInvalidOperation, "index specification is missing")
		}
		res.Name, err = e.AddIndex(name, *cmd.Index)
	case internal.CommandTDrop:
		res.Ok = e.Drop(name)
	case internal.CommandTRename:
		res.Ok, err = e.Rename(name, cmd.NewName)
	case internal.CommandTFindOneAndReplace:
		res.Record, err = e.FindOneAndReplace(name, cmd.Cond, cmd.Item, options(cmd), cmd.UpsertID)
	case internal.CommandTFindOneAndUpdate:
		res.Record, err = e.FindOneAndUpdate(name, cmd.Cond, cmd.Item, options(cmd), cmd.UpsertID)
	case internal.CommandTFindOneAndDelete:
		res.Record = e.FindOneAndDelete(name, cmd.Cond, options(cmd))
	default:
		return res, collection.Errorf(collection.RetCInvalidOperation, "unknown command operation: %s", cmd.Type)
	}
	return res, err
}

func options(cmd internal.Command) record.FindOneAndOptions {
	if cmd.Options == nil {
		return record.FindOneAndOptions{}
	}
	return *cmd.Options
}

// PrepareSnapshot captures the engine while updates are paused.
func (fsm *StateMachine) PrepareSnapshot() (interface{}, error) {
	var buf bytes.Buffer
	if err := fsm.engine.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveSnapshot writes the state captured by PrepareSnapshot.
func (fsm *StateMachine) SaveSnapshot(ctx interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	data, ok := ctx.([]byte)
	if !ok {
		return fmt.Errorf("unexpected snapshot context %T", ctx)
	}
	_, err := writer.Write(data)
	return err
}

// RecoverFromSnapshot replaces the engine content with a snapshot.
func (fsm *StateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	return fsm.engine.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *StateMachine) Close() error {
	return nil
}
