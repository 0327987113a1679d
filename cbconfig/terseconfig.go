// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package cbconfig decodes the terse-JSON cluster configuration document
// servers publish via GET_CLUSTER_CONFIG and the streaming config URI
// (§6 "Configuration JSON").
package cbconfig

// VBucketServerMap is the raw vbucket-to-node table as published on the
// wire, before it's compiled into a routing-ready form (§3).
type VBucketServerMap struct {
	HashAlgorithm string     `json:"hashAlgorithm"`
	NumReplicas   int        `json:"numReplicas"`
	ServerList    []string   `json:"serverList"`
	VBucketMap    [][]int    `json:"vBucketMap"`
}

// TerseExtNodePorts is one address family's (default or alternate) port
// table, both plaintext and TLS variants.
type TerseExtNodePorts struct {
	KV        int `json:"kv"`
	Capi      int `json:"capi"`
	Mgmt      int `json:"mgmt"`
	N1QL      int `json:"n1ql"`
	FTS       int `json:"fts"`
	CBAS      int `json:"cbas"`
	Eventing  int `json:"eventingAdminPort"`
	GSI       int `json:"indexHttp"`
	Backup    int `json:"backupAPI"`
	KVSSL     int `json:"kvSSL"`
	CapiSSL   int `json:"capiSSL"`
	MgmtSSL   int `json:"mgmtSSL"`
	N1QLSSL   int `json:"n1qlSSL"`
	FTSSSL    int `json:"ftsSSL"`
	CBASSSL   int `json:"cbasSSL"`
	EventingSSL int `json:"eventingSSL"`
	GSISSL    int `json:"indexHttps"`
	BackupSSL int `json:"backupAPIHTTPS"`
}

// TerseExtNodeAltAddresses is one alternate-address network's hostname
// and ports, keyed by network name in TerseNodeExtConfig.AlternateAddresses.
type TerseExtNodeAltAddresses struct {
	Ports    *TerseExtNodePorts `json:"ports,omitempty"`
	Hostname string             `json:"hostname,omitempty"`
}

// TerseNodePorts is the legacy (pre-nodesExt) direct/proxy port pair.
type TerseNodePorts struct {
	Direct int `json:"direct"`
	Proxy  int `json:"proxy"`
}

// TerseNodeConfig is one entry of the legacy "nodes" array.
type TerseNodeConfig struct {
	CouchbaseAPIBase string          `json:"couchbaseApiBase,omitempty"`
	Hostname         string          `json:"hostname,omitempty"`
	Ports            *TerseNodePorts `json:"ports,omitempty"`
}

// TerseNodeExtConfig is one entry of "nodesExt": the modern per-node
// service/port map plus any alternate-address groups (§6).
type TerseNodeExtConfig struct {
	Services            *TerseExtNodePorts                  `json:"services,omitempty"`
	ThisNode            bool                                `json:"thisNode,omitempty"`
	Hostname            string                              `json:"hostname,omitempty"`
	AlternateAddresses  map[string]TerseExtNodeAltAddresses  `json:"alternateAddresses,omitempty"`
}

// TerseConfig is the full parsed terse-JSON cluster/bucket configuration
// document (§6 "Configuration JSON (terse form)").
type TerseConfig struct {
	Rev                      int64                   `json:"rev"`
	RevEpoch                 int64                   `json:"revEpoch,omitempty"`
	Name                     string                  `json:"name,omitempty"`
	NodeLocator              string                  `json:"nodeLocator,omitempty"`
	UUID                     string                  `json:"uuid,omitempty"`
	URI                      string                  `json:"uri,omitempty"`
	StreamingURI             string                  `json:"streamingUri,omitempty"`
	BucketCapabilitiesVer    string                  `json:"bucketCapabilitiesVer,omitempty"`
	BucketCapabilities       []string                `json:"bucketCapabilities,omitempty"`
	CollectionsManifestUID   string                  `json:"collectionsManifestUid,omitempty"`
	VBucketServerMap         *VBucketServerMap        `json:"vBucketServerMap,omitempty"`
	Nodes                    []TerseNodeConfig        `json:"nodes,omitempty"`
	NodesExt                 []TerseNodeExtConfig     `json:"nodesExt,omitempty"`
	ClusterCapabilitiesVer   []int64                  `json:"clusterCapabilitiesVer,omitempty"`
	ClusterCapabilities      map[string][]string      `json:"clusterCapabilities,omitempty"`
}
