// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import "strconv"

// IdentifyNetworkType implements the one-time network-type heuristic of
// §4.7: walk every node's default addresses first, then every node's
// alternate-address groups, looking for an advertised host:port that
// equals the address the config was fetched from. The first match wins;
// "default" if none do.
func IdentifyNetworkType(cfg *ParsedConfig) string {
	for _, node := range cfg.Nodes {
		if nodeContainsAddress(node.Addresses, cfg.SourceAddress) {
			return "default"
		}
	}

	for _, node := range cfg.Nodes {
		for networkType, addrs := range node.AltAddresses {
			if nodeContainsAddress(addrs, cfg.SourceAddress) {
				return networkType
			}
		}
	}

	return "default"
}

func nodeContainsAddress(addrs ParsedConfigNodeAddresses, addr string) bool {
	if addrs.NonSSLPorts.KV != 0 && hostPort(addrs.Hostname, addrs.NonSSLPorts.KV) == addr {
		return true
	}
	if addrs.NonSSLPorts.Mgmt != 0 && hostPort(addrs.Hostname, addrs.NonSSLPorts.Mgmt) == addr {
		return true
	}
	if addrs.SSLPorts.KV != 0 && hostPort(addrs.Hostname, addrs.SSLPorts.KV) == addr {
		return true
	}
	if addrs.SSLPorts.Mgmt != 0 && hostPort(addrs.Hostname, addrs.SSLPorts.Mgmt) == addr {
		return true
	}
	return false
}

func hostPort(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}
