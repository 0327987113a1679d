// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ConfigSubscriber is notified every time the manager accepts a strictly
// newer config (§4.7). Implementations must not block.
type ConfigSubscriber func(cfg *ParsedConfig)

// ConfigManager holds the cluster's current topology snapshot behind an
// atomic pointer (§9 "Concurrent maps and atomic config swap"): readers
// take a cheap load, writers compare-and-swap to publish.
type ConfigManager struct {
	logger *zap.Logger

	current atomic.Pointer[ParsedConfig]

	mu          sync.Mutex
	subscribers []ConfigSubscriber
}

// NewConfigManager builds a ConfigManager with no initial config.
func NewConfigManager(logger *zap.Logger) *ConfigManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigManager{logger: logger}
}

// Current returns the most recently accepted config, or nil if none has
// been accepted yet.
func (m *ConfigManager) Current() *ParsedConfig {
	return m.current.Load()
}

// Subscribe registers fn to be called on every future accepted config. It
// does not replay the current config; callers that need it should call
// Current first.
func (m *ConfigManager) Subscribe(fn ConfigSubscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Apply offers a newly fetched or pushed config to the manager. It is
// accepted only if it strictly dominates the current one (§3 invariant,
// §4.7); stale or equal-version configs are silently dropped. Returns
// whether cfg was accepted.
func (m *ConfigManager) Apply(cfg *ParsedConfig) bool {
	for {
		cur := m.current.Load()
		if cur != nil && !cfg.Version.NewerThan(cur.Version) {
			m.logger.Debug("dropping stale or duplicate config",
				zap.Int64("rev_epoch", cfg.Version.RevEpoch), zap.Int64("rev_id", cfg.Version.RevID))
			return false
		}
		if m.current.CompareAndSwap(cur, cfg) {
			break
		}
	}

	m.mu.Lock()
	subs := append([]ConfigSubscriber(nil), m.subscribers...)
	m.mu.Unlock()

	for _, sub := range subs {
		sub(cfg)
	}
	return true
}
