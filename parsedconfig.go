// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"net"
	"strconv"
	"strings"

	"github.com/couchbaselabs/gocbcorex/cbconfig"
	"github.com/couchbaselabs/gocbcorex/memdx"
)

// ParsedConfigPorts is one KV/mgmt port pair, used for either the
// plaintext or the TLS set; both are optional (a port of 0 means "not
// advertised").
type ParsedConfigPorts struct {
	KV   int
	Mgmt int
}

// ParsedConfigNodeAddresses is one addressing scheme's view of a node:
// its hostname plus plaintext and TLS port sets (§3 "Nodes").
type ParsedConfigNodeAddresses struct {
	Hostname    string
	NonSSLPorts ParsedConfigPorts
	SSLPorts    ParsedConfigPorts
}

// ParsedConfigNode is one cluster member, with its default addresses and
// any alternate-address groups keyed by network-type name.
type ParsedConfigNode struct {
	Addresses   ParsedConfigNodeAddresses
	AltAddresses map[string]ParsedConfigNodeAddresses
	HasData     bool
}

// ParsedConfigBucket is the optional per-bucket slice of a config (§3).
type ParsedConfigBucket struct {
	Name        string
	UUID        string
	VBucketMap  [][]int
	NumReplicas int
}

// ParsedConfig is the compiled, routing-ready form of a cbconfig.TerseConfig
// (§3 "Cluster configuration (parsed)").
type ParsedConfig struct {
	Version         memdx.ConfigVersion
	Nodes           []ParsedConfigNode
	Bucket          *ParsedConfigBucket
	ClusterFeatures []string

	// SourceHostname is the bare host (no port) the config was fetched
	// from, used to fill in a node's hostname when the server reports an
	// empty one (§6 "empty hostname inherits the source hostname").
	SourceHostname string

	// SourceAddress is the full "host:port" that was dialed to fetch this
	// config, compared against every node's advertised host:port pairs by
	// the network-type heuristic (§4.7). Kept separate from
	// SourceHostname because the heuristic needs the port and node-
	// hostname inheritance must not.
	SourceAddress string
}

// ParseConfig compiles a terse-JSON document (as returned by
// GET_CLUSTER_CONFIG) into a ParsedConfig, resolving the "first K nodes
// are data nodes" rule (§3) from the vbucket map's server count.
// sourceAddress is the "host:port" that was dialed to fetch this config.
func ParseConfig(tc *cbconfig.TerseConfig, sourceAddress string) (*ParsedConfig, error) {
	sourceHostname := stripPort(sourceAddress)

	cfg := &ParsedConfig{
		Version:        memdx.ConfigVersion{RevEpoch: tc.RevEpoch, RevID: tc.Rev},
		SourceHostname: sourceHostname,
		SourceAddress:  sourceAddress,
	}

	numDataNodes := 0
	if tc.VBucketServerMap != nil {
		numDataNodes = len(tc.VBucketServerMap.ServerList)
		cfg.Bucket = &ParsedConfigBucket{
			Name:        tc.Name,
			UUID:        tc.UUID,
			VBucketMap:  tc.VBucketServerMap.VBucketMap,
			NumReplicas: tc.VBucketServerMap.NumReplicas,
		}
	}

	for i, n := range tc.NodesExt {
		node := ParsedConfigNode{
			AltAddresses: make(map[string]ParsedConfigNodeAddresses),
			HasData:      i < numDataNodes,
		}

		hostname := n.Hostname
		if hostname == "" {
			hostname = sourceHostname
		}
		node.Addresses.Hostname = wrapIPv6(hostname)

		if n.Services != nil {
			node.Addresses.NonSSLPorts = ParsedConfigPorts{KV: n.Services.KV, Mgmt: n.Services.Mgmt}
			node.Addresses.SSLPorts = ParsedConfigPorts{KV: n.Services.KVSSL, Mgmt: n.Services.MgmtSSL}
		}

		for network, alt := range n.AlternateAddresses {
			altHostname := alt.Hostname
			if altHostname == "" {
				altHostname = hostname
			}
			addrs := ParsedConfigNodeAddresses{Hostname: wrapIPv6(altHostname)}
			if alt.Ports != nil {
				addrs.NonSSLPorts = ParsedConfigPorts{KV: alt.Ports.KV, Mgmt: alt.Ports.Mgmt}
				addrs.SSLPorts = ParsedConfigPorts{KV: alt.Ports.KVSSL, Mgmt: alt.Ports.MgmtSSL}
			}
			node.AltAddresses[network] = addrs
		}

		cfg.Nodes = append(cfg.Nodes, node)
	}

	for capName := range tc.ClusterCapabilities {
		cfg.ClusterFeatures = append(cfg.ClusterFeatures, capName)
	}

	return cfg, nil
}

// stripPort removes a trailing ":port" from addr, returning addr
// unchanged if it has none (including a bare, bracketless IPv6 host).
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// wrapIPv6 brackets a hostname containing ':' per §6's "Hostnames
// containing ':' are wrapped in brackets" rule.
func wrapIPv6(hostname string) string {
	if strings.Contains(hostname, ":") && !strings.HasPrefix(hostname, "[") {
		return "[" + hostname + "]"
	}
	return hostname
}

// KVEndpoint formats a node's KV address for the given network type and
// TLS preference, as "host:port".
func (n ParsedConfigNode) KVEndpoint(networkType string, useTLS bool) (string, bool) {
	addrs := n.Addresses
	if networkType != "default" && networkType != "" {
		if alt, ok := n.AltAddresses[networkType]; ok {
			addrs = alt
		}
	}

	port := addrs.NonSSLPorts.KV
	if useTLS {
		port = addrs.SSLPorts.KV
	}
	if port == 0 {
		return "", false
	}

	return addrs.Hostname + ":" + strconv.Itoa(port), true
}
