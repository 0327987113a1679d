// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifyNetworkType_MatchesDefaultAddresses(t *testing.T) {
	cfg := &ParsedConfig{
		SourceAddress: "node1.internal:11210",
		Nodes: []ParsedConfigNode{
			{
				Addresses: ParsedConfigNodeAddresses{
					Hostname:    "node1.internal",
					NonSSLPorts: ParsedConfigPorts{KV: 11210},
				},
				AltAddresses: map[string]ParsedConfigNodeAddresses{
					"external": {Hostname: "node1.public", NonSSLPorts: ParsedConfigPorts{KV: 11210}},
				},
			},
		},
	}

	require.Equal(t, "default", IdentifyNetworkType(cfg))
}

func TestIdentifyNetworkType_FallsBackToAlternateAddresses(t *testing.T) {
	cfg := &ParsedConfig{
		SourceAddress: "node1.public:11210",
		Nodes: []ParsedConfigNode{
			{
				Addresses: ParsedConfigNodeAddresses{
					Hostname:    "node1.internal",
					NonSSLPorts: ParsedConfigPorts{KV: 11210},
				},
				AltAddresses: map[string]ParsedConfigNodeAddresses{
					"external": {Hostname: "node1.public", NonSSLPorts: ParsedConfigPorts{KV: 11210}},
				},
			},
		},
	}

	require.Equal(t, "external", IdentifyNetworkType(cfg))
}

func TestIdentifyNetworkType_DefaultsWhenNothingMatches(t *testing.T) {
	cfg := &ParsedConfig{
		SourceAddress: "unrelated.example:11210",
		Nodes: []ParsedConfigNode{
			{
				Addresses: ParsedConfigNodeAddresses{
					Hostname:    "node1.internal",
					NonSSLPorts: ParsedConfigPorts{KV: 11210},
				},
			},
		},
	}

	require.Equal(t, "default", IdentifyNetworkType(cfg))
}
