// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func emptyEntries(n int) [][]int {
	out := make([][]int, n)
	for i := range out {
		out[i] = []int{}
	}
	return out
}

func TestVbucketMap_HashingStability(t *testing.T) {
	longKey := []byte("hello world, I am a super long key lets see if it works")

	cases := []struct {
		numVbuckets int
		want        map[string]uint16
	}{
		{1024, map[string]uint16{
			"zero":  0x0202,
			"multi": 0x00aa,
			"hello": 0x0210,
			"long":  0x03d4,
		}},
		{64, map[string]uint16{
			"zero":  0x0002,
			"multi": 0x002a,
			"hello": 0x0010,
			"long":  0x0014,
		}},
		{48, map[string]uint16{
			"zero":  0x0012,
			"multi": 0x000a,
			"hello": 0x0010,
			"long":  0x0004,
		}},
		{13, map[string]uint16{
			"zero":  0x000c,
			"multi": 0x0008,
			"hello": 0x0008,
			"long":  0x0003,
		}},
	}

	for _, c := range cases {
		m, err := NewVbucketMap(emptyEntries(c.numVbuckets), 1)
		require.NoError(t, err)

		require.Equal(t, c.want["zero"], m.VbucketByKey([]byte{0}))
		require.Equal(t, c.want["multi"], m.VbucketByKey([]byte{0, 1, 2, 3, 4, 5, 6, 7}))
		require.Equal(t, c.want["hello"], m.VbucketByKey([]byte("hello")))
		require.Equal(t, c.want["long"], m.VbucketByKey(longKey))
	}
}

func TestVbucketMap_NodeByVbucket(t *testing.T) {
	entries := [][]int{
		{0, 1},
		{1, -1},
	}
	m, err := NewVbucketMap(entries, 1)
	require.NoError(t, err)

	node, err := m.NodeByVbucket(0, 0)
	require.NoError(t, err)
	require.Equal(t, 0, node)

	node, err = m.NodeByVbucket(1, 1)
	require.NoError(t, err)
	require.Equal(t, -1, node)

	_, err = m.NodeByVbucket(5, 0)
	require.ErrorIs(t, err, ErrInvalidVbucket)
}

func TestVbucketMap_IsValid(t *testing.T) {
	m, err := NewVbucketMap([][]int{{0, 1}}, 1)
	require.NoError(t, err)
	require.True(t, m.IsValid())

	empty, err := NewVbucketMap([][]int{{}}, 1)
	require.NoError(t, err)
	require.False(t, empty.IsValid())
}
