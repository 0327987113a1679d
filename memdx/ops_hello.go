// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"context"
	"encoding/binary"
)

// HelloRequest names the client (for server-side logging) and the
// features it would like to negotiate (§4.3 step 1).
type HelloRequest struct {
	ClientName string
	Features   []HelloFeature
}

// HelloResponse records the feature set the server actually echoed back.
// Bootstrap intersects this with the requested set per §3's "Hello
// features" contract.
type HelloResponse struct {
	EnabledFeatures FeatureSet
}

// Hello negotiates the connection's feature set.
func Hello(ctx context.Context, d Dispatcher, req *HelloRequest) (*HelloResponse, error) {
	value := make([]byte, len(req.Features)*2)
	for i, f := range req.Features {
		binary.BigEndian.PutUint16(value[i*2:i*2+2], uint16(f))
	}

	pkt, err := execSimple(ctx, d, &Packet{
		Magic:  MagicReq,
		OpCode: OpCodeHello,
		Key:    []byte(req.ClientName),
		Value:  value,
	})
	if err != nil {
		return nil, err
	}

	features := make([]HelloFeature, 0, len(pkt.Value)/2)
	for i := 0; i+1 < len(pkt.Value); i += 2 {
		features = append(features, HelloFeature(binary.BigEndian.Uint16(pkt.Value[i:i+2])))
	}

	return &HelloResponse{EnabledFeatures: NewFeatureSet(features...)}, nil
}

// GetErrorMapRequest asks for the server's error-classification table
// (§4.3 step 2), versioned so the server can reply with its best match.
type GetErrorMapRequest struct {
	Version uint16
}

// GetErrorMapResponse is the parsed error map, or nil if the server sent
// an empty body (treated as non-fatal by bootstrap).
type GetErrorMapResponse struct {
	ErrMap *ErrMap
}

// GetErrorMap fetches and parses the connection's error map.
func GetErrorMap(ctx context.Context, d Dispatcher, req *GetErrorMapRequest) (*GetErrorMapResponse, error) {
	value := make([]byte, 2)
	binary.BigEndian.PutUint16(value, req.Version)

	pkt, err := execSimple(ctx, d, &Packet{
		Magic:  MagicReq,
		OpCode: OpCodeGetErrorMap,
		Value:  value,
	})
	if err != nil {
		return nil, err
	}

	if len(pkt.Value) == 0 {
		return &GetErrorMapResponse{}, nil
	}

	m, err := ParseErrMap(pkt.Value)
	if err != nil {
		return nil, err
	}
	return &GetErrorMapResponse{ErrMap: m}, nil
}

// SelectBucketRequest opens a bucket on this connection (§4.3 step 4).
// Failure here is always fatal to the connection.
type SelectBucketRequest struct {
	BucketName string
}

// SelectBucket selects a bucket on the connection.
func SelectBucket(ctx context.Context, d Dispatcher, req *SelectBucketRequest) error {
	_, err := execSimple(ctx, d, &Packet{
		Magic:  MagicReq,
		OpCode: OpCodeSelectBucket,
		Key:    []byte(req.BucketName),
	})
	return err
}

// GetClusterConfigRequest asks the server for a config newer than
// KnownVersion (§4.3 step 5, §4.7). A zero KnownVersion always gets the
// full current config.
type GetClusterConfigRequest struct {
	KnownVersion ConfigVersion
}

// GetClusterConfigResponse carries the raw terse-JSON config body, or an
// empty Config when the server reports "unchanged".
type GetClusterConfigResponse struct {
	Config []byte
}

// GetClusterConfig fetches the cluster's topology document.
func GetClusterConfig(ctx context.Context, d Dispatcher, req *GetClusterConfigRequest) (*GetClusterConfigResponse, error) {
	var extras []byte
	if req.KnownVersion.RevEpoch != 0 || req.KnownVersion.RevID != 0 {
		extras = make([]byte, 16)
		binary.BigEndian.PutUint64(extras[0:8], uint64(req.KnownVersion.RevEpoch))
		binary.BigEndian.PutUint64(extras[8:16], uint64(req.KnownVersion.RevID))
	}

	pkt, err := execSimple(ctx, d, &Packet{
		Magic:  MagicReq,
		OpCode: OpCodeGetClusterConfig,
		Extras: extras,
	})
	if err != nil {
		return nil, err
	}
	return &GetClusterConfigResponse{Config: pkt.Value}, nil
}

// GetCollectionIDRequest resolves a (scope, collection) name pair to its
// numeric id (§4.9).
type GetCollectionIDRequest struct {
	ScopeName      string
	CollectionName string
}

// GetCollectionIDResponse carries the resolved id and the manifest
// revision it was resolved against, used by the collection cache's
// invalidation arithmetic.
type GetCollectionIDResponse struct {
	CollectionID uint32
	ManifestRev  uint64
}

// GetCollectionID resolves a scope/collection name pair.
func GetCollectionID(ctx context.Context, d Dispatcher, req *GetCollectionIDRequest) (*GetCollectionIDResponse, error) {
	path := req.ScopeName + "." + req.CollectionName

	pkt, err := execSimple(ctx, d, &Packet{
		Magic:  MagicReq,
		OpCode: OpCodeGetCollectionID,
		Key:    []byte(path),
	})
	if err != nil {
		return nil, err
	}

	resp := &GetCollectionIDResponse{}
	if len(pkt.Extras) >= 12 {
		resp.ManifestRev = binary.BigEndian.Uint64(pkt.Extras[0:8])
		resp.CollectionID = binary.BigEndian.Uint32(pkt.Extras[8:12])
	}
	return resp, nil
}
