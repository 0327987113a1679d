// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchbaselabs/gocbcorex/memdx"
)

func configAt(epoch, rev int64) *ParsedConfig {
	return &ParsedConfig{Version: memdx.ConfigVersion{RevEpoch: epoch, RevID: rev}}
}

func TestConfigManager_AcceptsFirstConfig(t *testing.T) {
	m := NewConfigManager(nil)
	require.Nil(t, m.Current())

	ok := m.Apply(configAt(0, 1))
	require.True(t, ok)
	require.Equal(t, int64(1), m.Current().Version.RevID)
}

func TestConfigManager_DropsStaleOrEqual(t *testing.T) {
	m := NewConfigManager(nil)
	require.True(t, m.Apply(configAt(0, 5)))

	require.False(t, m.Apply(configAt(0, 5)))
	require.False(t, m.Apply(configAt(0, 4)))
	require.Equal(t, int64(5), m.Current().Version.RevID)
}

func TestConfigManager_EpochDominatesRevID(t *testing.T) {
	m := NewConfigManager(nil)
	require.True(t, m.Apply(configAt(1, 100)))

	// Lower epoch with a higher rev_id is still stale.
	require.False(t, m.Apply(configAt(0, 999)))
	require.True(t, m.Apply(configAt(2, 0)))
}

func TestConfigManager_NotifiesSubscribersOnlyOnAccept(t *testing.T) {
	m := NewConfigManager(nil)

	var seen []int64
	m.Subscribe(func(cfg *ParsedConfig) {
		seen = append(seen, cfg.Version.RevID)
	})

	require.True(t, m.Apply(configAt(0, 1)))
	require.False(t, m.Apply(configAt(0, 1)))
	require.True(t, m.Apply(configAt(0, 2)))

	require.Equal(t, []int64{1, 2}, seen)
}
