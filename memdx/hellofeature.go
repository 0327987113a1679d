// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import "fmt"

// HelloFeature is a capability bit negotiated during the HELLO operation.
type HelloFeature uint16

const (
	HelloFeatureDataType             HelloFeature = 0x01
	HelloFeatureTLS                  HelloFeature = 0x02
	HelloFeatureTCPNoDelay           HelloFeature = 0x03
	HelloFeatureSeqNo                HelloFeature = 0x04
	HelloFeatureTCPDelay             HelloFeature = 0x05
	HelloFeatureXattr                HelloFeature = 0x06
	HelloFeatureXerror               HelloFeature = 0x07
	HelloFeatureSelectBucket         HelloFeature = 0x08
	HelloFeatureSnappy               HelloFeature = 0x0a
	HelloFeatureJSON                 HelloFeature = 0x0b
	HelloFeatureDuplex               HelloFeature = 0x0c
	HelloFeatureClusterMapNotif      HelloFeature = 0x0d
	HelloFeatureUnorderedExec        HelloFeature = 0x0e
	HelloFeatureDurations            HelloFeature = 0x0f
	HelloFeatureAltRequests          HelloFeature = 0x10
	HelloFeatureSyncReplication      HelloFeature = 0x11
	HelloFeatureCollections          HelloFeature = 0x12
	HelloFeatureOpenTracing          HelloFeature = 0x13
	HelloFeaturePreserveExpiry       HelloFeature = 0x14
	HelloFeaturePointInTimeRecovery  HelloFeature = 0x16
	HelloFeatureCreateAsDeleted      HelloFeature = 0x17
	HelloFeatureReplaceBodyWithXattr HelloFeature = 0x19
)

var helloFeatureNames = map[HelloFeature]string{
	HelloFeatureDataType:             "DataType",
	HelloFeatureTLS:                  "TLS",
	HelloFeatureTCPNoDelay:           "TCPNoDelay",
	HelloFeatureSeqNo:                "SeqNo",
	HelloFeatureTCPDelay:             "TCPDelay",
	HelloFeatureXattr:                "Xattr",
	HelloFeatureXerror:               "Xerror",
	HelloFeatureSelectBucket:         "SelectBucket",
	HelloFeatureSnappy:               "Snappy",
	HelloFeatureJSON:                 "JSON",
	HelloFeatureDuplex:               "Duplex",
	HelloFeatureClusterMapNotif:      "ClusterMapNotif",
	HelloFeatureUnorderedExec:        "UnorderedExec",
	HelloFeatureDurations:            "Durations",
	HelloFeatureAltRequests:          "AltRequests",
	HelloFeatureSyncReplication:      "SyncReplication",
	HelloFeatureCollections:          "Collections",
	HelloFeatureOpenTracing:          "OpenTracing",
	HelloFeaturePreserveExpiry:       "PreserveExpiry",
	HelloFeaturePointInTimeRecovery:  "PointInTimeRecovery",
	HelloFeatureCreateAsDeleted:      "CreateAsDeleted",
	HelloFeatureReplaceBodyWithXattr: "ReplaceBodyWithXattr",
}

func (f HelloFeature) String() string {
	if name, ok := helloFeatureNames[f]; ok {
		return name
	}
	return fmt.Sprintf("HelloFeature(0x%02x)", uint16(f))
}

// FeatureSet records the intersection of requested and server-echoed
// HELLO features for a single connection.
type FeatureSet map[HelloFeature]struct{}

func NewFeatureSet(features ...HelloFeature) FeatureSet {
	fs := make(FeatureSet, len(features))
	for _, f := range features {
		fs[f] = struct{}{}
	}
	return fs
}

func (fs FeatureSet) Has(f HelloFeature) bool {
	_, ok := fs[f]
	return ok
}

// Intersect returns the features present in both sets, matching the
// dispatcher's "enabled = requested ∩ echoed" rule from spec.md §3.
func (fs FeatureSet) Intersect(other FeatureSet) FeatureSet {
	out := make(FeatureSet)
	for f := range fs {
		if other.Has(f) {
			out[f] = struct{}{}
		}
	}
	return out
}
