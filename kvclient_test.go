// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchbaselabs/gocbcorex/memdx"
)

func TestKVClient_MaybeCompress_SkipsWhenSnappyNotNegotiated(t *testing.T) {
	client := &KVClient{
		EnabledFeatures: memdx.NewFeatureSet(memdx.HelloFeatureDataType),
		Compression:     memdx.DefaultCompressionOptions(),
	}

	value := []byte(strings.Repeat("a", 128))
	out, compressed := client.MaybeCompress(value)
	require.False(t, compressed)
	require.Equal(t, value, out)
}

func TestKVClient_MaybeCompress_CompressesWhenSnappyNegotiated(t *testing.T) {
	client := &KVClient{
		EnabledFeatures: memdx.NewFeatureSet(memdx.HelloFeatureDataType, memdx.HelloFeatureSnappy),
		Compression:     memdx.DefaultCompressionOptions(),
	}

	value := []byte(strings.Repeat("a", 128))
	out, compressed := client.MaybeCompress(value)
	require.True(t, compressed)
	require.NotEqual(t, value, out)
}

func TestKVClient_MaybeCompress_StillGatedByOptionsBelowMinSize(t *testing.T) {
	client := &KVClient{
		EnabledFeatures: memdx.NewFeatureSet(memdx.HelloFeatureSnappy),
		Compression:     memdx.DefaultCompressionOptions(),
	}

	value := []byte("short")
	out, compressed := client.MaybeCompress(value)
	require.False(t, compressed)
	require.Equal(t, value, out)
}
