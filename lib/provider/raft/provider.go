package raft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider"
	"github.com/ValentinKolb/dCol/lib/provider/raft/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("provider")
)

// TypeName is the registry key of the raft provider.
const TypeName = "raft"

// Provider replicates the collections of a database with the RAFT consensus
// protocol (Dragonboat). Every node runs a StateMachine; writes are proposed
// to the shard and reads are linearizable.
type Provider struct {
	*provider.Collections
	settings Settings

	mu      sync.RWMutex
	nh      *dragonboat.NodeHost
	session *client.Session
}

var _ provider.Provider = (*Provider)(nil)

// New creates a raft provider. The replica is started by Start.
func New(settings Settings) *Provider {
	p := &Provider{settings: settings.withDefaults()}
	p.Collections = provider.NewCollections(p)
	return p
}

// Register adds the raft provider to a registry.
func Register(r *provider.Registry) error {
	return r.Register(TypeName, func(raw map[string]any) (provider.Provider, error) {
		var s Settings
		if err := provider.DecodeSettings(raw, &s); err != nil {
			return nil, err
		}
		if s.ReplicaID == 0 {
			return nil, collection.NewError(collection.RetCConfiguration, "raft provider requires a replica-id")
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
	return p.nh != nil
}

// Start creates the NodeHost, starts the replica and waits until the shard
// can serve reads or ctx is done.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nh != nil {
		return nil
	}

	s := p.settings
	if s.address() == "" {
		return collection.Errorf(collection.RetCConfiguration, "no address found for replica %d in members", s.ReplicaID)
	}
	nh, err := dragonboat.NewNodeHost(s.toNodeHostConfig())
	if err != nil {
		return collection.Wrapf(collection.RetCInternalError, err, "failed to create node host")
	}

	members := s.Members
	if s.Join {
		members = map[uint64]string{}
	}
	if err := nh.StartConcurrentReplica(members, s.Join, NewStateMachine, s.toDragonboatConfig()); err != nil {
		nh.Close()
		return collection.Wrapf(collection.RetCInternalError, err, "failed to start shard %d", s.ShardID)
	}

	p.nh = nh
	p.session = nh.GetNoOPSession(s.ShardID)
	if err := p.waitReady(ctx); err != nil {
		p.nh.Close()
		p.nh, p.session = nil, nil
		return err
	}
	log.Infof("raft provider started (shard %d, replica %d, %s)", s.ShardID, s.ReplicaID, s.address())
	return nil
}

// waitReady polls the shard with a linearizable read until it succeeds.
func (p *Provider) waitReady(ctx context.Context) error {
	interval := time.Duration(p.settings.RTTMillisecond) * time.Millisecond
	for {
		rctx, cancel := context.WithTimeout(ctx, p.settings.Timeout)
		_, err := p.nh.SyncRead(rctx, p.settings.ShardID, internal.Query{Type: internal.QueryTCount})
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return collection.Wrapf(collection.RetCInternalError, err, "shard %d not ready", p.settings.ShardID)
		case <-time.After(interval):
		}
	}
}

func (p *Provider) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nh == nil {
		return nil
	}
	p.nh.Close()
	p.nh, p.session = nil, nil
	log.Infof("raft provider stopped (shard %d, replica %d)", p.settings.ShardID, p.settings.ReplicaID)
	return nil
}

func (p *Provider) SupportsFeature(feature collection.Feature) bool {
	return collection.FeatureAll.Has(feature)
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// transient reports whether a dragonboat error is worth a retry.
func transient(err error) bool {
	return errors.Is(err, dragonboat.ErrSystemBusy) || errors.Is(err, dragonboat.ErrShardNotReady)
}

// write proposes cmd and returns the result of the state machine.
func (p *Provider) write(ctx context.Context, cmd internal.Command) (internal.Result, error) {
	var res internal.Result
	data, err := cmd.Serialize()
	if err != nil {
		return res, collection.Wrapf(collection.RetCInvalidOperation, err, "command cannot be encoded")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.nh == nil {
		return res, collection.NewError(collection.RetCInvalidOperation, "raft provider is not started")
	}

	for i := 0; i < retries; i++ {
		pctx, cancel := context.WithTimeout(ctx, p.settings.Timeout)
		out, err := p.nh.SyncPropose(pctx, p.session, data)
		cancel()

		if transient(err) {
			log.Infof("SyncPropose: system busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(p.settings.Timeout / 10)
			continue
		}
		if err != nil {
			return res, collection.Wrap(collection.RetCInternalError, err)
		}
		if out.Value != uint64(collection.RetCSuccess) {
			return res, collection.NewError(collection.RetCode(out.Value), string(out.Data))
		}
		if err := decodeResult(out.Data, &res); err != nil {
			return res, err
		}
		return res, nil
	}
	return res, collection.NewError(collection.RetCInternalError, "timeout")
}

// read queries the state machine and converts the response to R.
//
// Reads are linearizable (SyncRead) unless stale is set, then the faster
// StaleRead of the local replica is used.
func read[R any](ctx context.Context, p *Provider, q internal.Query, stale bool) (R, error) {
	var zero R

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.nh == nil {
		return zero, collection.NewError(collection.RetCInvalidOperation, "raft provider is not started")
	}

	for i := 0; i < retries; i++ {
		var res interface{}
		var err error

		if stale {
			res, err = p.nh.StaleRead(p.settings.ShardID, q)
		} else {
			rctx, cancel := context.WithTimeout(ctx, p.settings.Timeout)
			res, err = p.nh.SyncRead(rctx, p.settings.ShardID, q)
			cancel()
		}

		if transient(err) {
			log.Infof("SyncRead: system busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(p.settings.Timeout / 10)
			continue
		}
		if err != nil {
			var ce *collection.Error
			if errors.As(err, &ce) {
				return zero, ce
			}
			return zero, collection.Wrap(collection.RetCInternalError, err)
		}

		casted, ok := res.(R)
		if !ok {
			return zero, collection.NewError(collection.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, collection.NewError(collection.RetCInternalError, "timeout")
}
