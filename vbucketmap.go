// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"hash/crc32"
)

// VbucketMap is a 2-D table [num_vbuckets][1+num_replicas] of node
// indices; -1 means "no replica here" (§3).
type VbucketMap struct {
	entries     [][]int
	numReplicas int
}

// NewVbucketMap builds a VbucketMap from the raw entries of a bucket's
// vBucketServerMap (§6).
func NewVbucketMap(entries [][]int, numReplicas int) (*VbucketMap, error) {
	if len(entries) == 0 {
		return nil, ErrorClass.New("vbucket map must have at least a single entry")
	}
	return &VbucketMap{entries: entries, numReplicas: numReplicas}, nil
}

// IsValid reports whether the map's first entry carries any node indices
// at all, distinguishing a populated map from a memcached (non-Couchbase)
// bucket's empty placeholder map.
func (m *VbucketMap) IsValid() bool {
	if len(m.entries) == 0 {
		return false
	}
	return len(m.entries[0]) > 0
}

// NumVbuckets is the partition count this map was built for.
func (m *VbucketMap) NumVbuckets() int {
	return len(m.entries)
}

// NumReplicas is the number of replicas configured per vbucket.
func (m *VbucketMap) NumReplicas() int {
	return m.numReplicas
}

// VbucketByKey hashes key to its partition id (§3, §4.8 step 1): CRC32 of
// the key, shifted right 16 bits, masked to 15 bits, modulo num_vbuckets.
func (m *VbucketMap) VbucketByKey(key []byte) uint16 {
	checksum := crc32.ChecksumIEEE(key)
	midBits := uint16(checksum>>16) & 0x7fff
	return midBits % uint16(len(m.entries))
}

// ErrInvalidVbucket is returned when a vbucket id is out of range for
// this map.
var ErrInvalidVbucket = ErrorClass.New("invalid vbucket id")

// ErrInvalidReplica is returned when a replica index exceeds the
// configured number of replicas plus the active node.
var ErrInvalidReplica = ErrorClass.New("invalid replica index")

// NodeByVbucket looks up the node index serving vbID at the given replica
// position (0 = active, 1..=num_replicas = replicas), per §4.8 step 2. A
// -1 result means "no replica configured at this position", not an
// error.
func (m *VbucketMap) NodeByVbucket(vbID uint16, replicaIdx int) (int, error) {
	if replicaIdx > m.numReplicas+1 {
		return 0, ErrInvalidReplica
	}

	if int(vbID) >= len(m.entries) {
		return 0, ErrInvalidVbucket
	}

	row := m.entries[vbID]
	if replicaIdx >= len(row) {
		return -1, nil
	}
	return row[replicaIdx], nil
}
