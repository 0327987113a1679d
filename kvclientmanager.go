// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"context"
	"math/rand"
	"sync"

	"go.uber.org/zap"
)

// KVClientManager holds the endpoint -> pool map for a whole cluster
// (§4.6 "fleet"), growing and shrinking it as config reconfigurations
// arrive.
type KVClientManager struct {
	logger         *zap.Logger
	poolSize       int
	clientTemplate KVClientOptions

	mu    sync.RWMutex
	pools map[string]*KVClientPool
}

// NewKVClientManager builds an empty fleet; call Reconfigure with the
// first parsed config to populate it.
func NewKVClientManager(poolSize int, template KVClientOptions, logger *zap.Logger) *KVClientManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KVClientManager{
		logger:         logger,
		poolSize:       poolSize,
		clientTemplate: template,
		pools:          make(map[string]*KVClientPool),
	}
}

// Reconfigure computes the active endpoint set from cfg (translated
// through networkType) and adds, removes, or passes through pools to
// match it (§4.6).
func (m *KVClientManager) Reconfigure(cfg *ParsedConfig, networkType string, useTLS bool) {
	wanted := make(map[string]struct{})
	for _, node := range cfg.Nodes {
		if !node.HasData {
			continue
		}
		addr, ok := node.KVEndpoint(networkType, useTLS)
		if !ok {
			continue
		}
		wanted[addr] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for addr := range wanted {
		if _, ok := m.pools[addr]; ok {
			continue
		}
		template := m.clientTemplate
		template.Address = addr
		m.pools[addr] = NewKVClientPool(KVClientPoolOptions{
			TargetSize:       m.poolSize,
			ClientTemplate:   template,
			ReconnectBackoff: DefaultExponentialBackoffCalculator(),
			Logger:           m.logger,
		})
		m.logger.Debug("added kv endpoint", zap.String("address", addr))
	}

	for addr, pool := range m.pools {
		if _, ok := wanted[addr]; ok {
			continue
		}
		delete(m.pools, addr)
		m.logger.Debug("removing kv endpoint", zap.String("address", addr))
		go pool.Close()
	}
}

// GetClient returns a healthy client for a specific endpoint.
func (m *KVClientManager) GetClient(ctx context.Context, endpoint string) (*KVClient, error) {
	m.mu.RLock()
	pool, ok := m.pools[endpoint]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrorClass.New("no pool for endpoint " + endpoint)
	}
	return pool.GetClient(ctx)
}

// GetRandomClient returns a healthy client from a randomly chosen
// endpoint, used for operations that don't need a specific node (error
// map priming, collection-id resolution).
func (m *KVClientManager) GetRandomClient(ctx context.Context) (*KVClient, error) {
	m.mu.RLock()
	endpoints := make([]string, 0, len(m.pools))
	for addr := range m.pools {
		endpoints = append(endpoints, addr)
	}
	m.mu.RUnlock()

	if len(endpoints) == 0 {
		return nil, ErrorClass.New("fleet has no endpoints")
	}

	return m.GetClient(ctx, endpoints[rand.Intn(len(endpoints))])
}

// Close drains every pool in the fleet.
func (m *KVClientManager) Close() {
	m.mu.Lock()
	pools := make([]*KVClientPool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.pools = make(map[string]*KVClientPool)
	m.mu.Unlock()

	for _, p := range pools {
		p.Close()
	}
}
