// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/couchbaselabs/gocbcorex/internal/syncutil"
)

// KVClientPoolOptions configures one endpoint's pool (§4.5).
type KVClientPoolOptions struct {
	TargetSize       int
	ClientTemplate   KVClientOptions
	ReconnectBackoff ExponentialBackoffCalculator
	Logger           *zap.Logger
}

// KVClientPool maintains TargetSize healthy connections to one endpoint,
// reconnecting failed slots with exponential backoff and exposing the
// live set via an atomically-swappable snapshot (§4.5, §9).
type KVClientPool struct {
	opts   KVClientPoolOptions
	logger *zap.Logger

	ready syncutil.Fence

	mu       sync.Mutex
	slots    []*poolSlot
	draining bool

	healthy atomic.Pointer[[]*KVClient]

	wg sync.WaitGroup
}

type poolSlot struct {
	client  *KVClient
	attempt uint32
}

// NewKVClientPool builds and starts a pool, immediately beginning to
// dial TargetSize connections.
func NewKVClientPool(opts KVClientPoolOptions) *KVClientPool {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TargetSize <= 0 {
		opts.TargetSize = 1
	}

	p := &KVClientPool{
		opts:   opts,
		logger: logger,
		slots:  make([]*poolSlot, opts.TargetSize),
	}
	empty := make([]*KVClient, 0)
	p.healthy.Store(&empty)

	for i := range p.slots {
		p.slots[i] = &poolSlot{}
		p.spawnConnector(i)
	}

	return p
}

// spawnConnector dials and bootstraps a replacement for slot i,
// retrying with backoff until it succeeds or the pool is draining.
func (p *KVClientPool) spawnConnector(i int) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		for {
			p.mu.Lock()
			draining := p.draining
			attempt := p.slots[i].attempt
			p.mu.Unlock()
			if draining {
				return
			}

			if attempt > 0 {
				delay := p.opts.ReconnectBackoff.Backoff(attempt)
				time.Sleep(delay)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			client, err := DialAndBootstrapKVClient(ctx, p.opts.ClientTemplate)
			cancel()

			p.mu.Lock()
			if p.draining {
				p.mu.Unlock()
				if client != nil {
					_ = client.Close()
				}
				return
			}
			if err != nil {
				p.logger.Debug("kv client connect failed, backing off",
					zap.String("address", p.opts.ClientTemplate.Address), zap.Error(err))
				p.slots[i].attempt++
				p.mu.Unlock()
				continue
			}

			p.slots[i] = &poolSlot{client: client}
			p.publishSnapshotLocked()
			p.mu.Unlock()

			p.ready.Release()

			<-clientClosed(client)

			p.mu.Lock()
			if !p.draining {
				p.slots[i] = &poolSlot{attempt: 1}
				p.publishSnapshotLocked()
			}
			p.mu.Unlock()
		}
	}()
}

// clientClosed returns a channel that closes once client's dispatcher has
// torn down, so the connector can notice liveness loss without polling.
func clientClosed(client *KVClient) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for !client.IsClosed() {
			time.Sleep(50 * time.Millisecond)
		}
		close(done)
	}()
	return done
}

func (p *KVClientPool) publishSnapshotLocked() {
	snapshot := make([]*KVClient, 0, len(p.slots))
	for _, s := range p.slots {
		if s.client != nil && !s.client.IsClosed() {
			snapshot = append(snapshot, s.client)
		}
	}
	p.healthy.Store(&snapshot)
}

// GetClient returns a healthy client chosen at random, waiting for the
// pool's first connection if none is ready yet.
func (p *KVClientPool) GetClient(ctx context.Context) (*KVClient, error) {
	snapshot := *p.healthy.Load()
	if len(snapshot) == 0 {
		if !p.ready.Wait(ctx) {
			return nil, ctx.Err()
		}
		snapshot = *p.healthy.Load()
	}
	if len(snapshot) == 0 {
		return nil, ErrorClass.New("no healthy kv clients available")
	}
	return snapshot[rand.Intn(len(snapshot))], nil
}

// Reconfigure swaps the bootstrap options template used for future
// reconnects; existing connections are left untouched (§4.5).
func (p *KVClientPool) Reconfigure(template KVClientOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts.ClientTemplate = template
}

// Close drains the pool: stops reconnecting and closes every current
// client. In-flight ops on those clients fail with ClosedInFlight (§4.2).
func (p *KVClientPool) Close() {
	p.mu.Lock()
	p.draining = true
	clients := make([]*KVClient, 0, len(p.slots))
	for _, s := range p.slots {
		if s.client != nil {
			clients = append(clients, s.client)
		}
	}
	p.mu.Unlock()

	for _, c := range clients {
		_ = c.Close()
	}

	p.wg.Wait()
}
