// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/couchbaselabs/gocbcorex/memdx"
)

// KVClientOptions parameterises a single connection's dial + bootstrap
// (§4.5's "bootstrap options template").
type KVClientOptions struct {
	Address         string
	Dialer          Dialer
	ClientName      string
	RequestFeatures []memdx.HelloFeature
	Credentials     memdx.Credentials
	BucketName      string
	Compression     CompressionOptions
	Logger          *zap.Logger
}

// CompressionOptions re-exports memdx's compression gate so callers don't
// need to import memdx just to configure it.
type CompressionOptions = memdx.CompressionOptions

// KVClient is one live, bootstrapped connection to a node, ready to
// dispatch operations.
type KVClient struct {
	*memdx.Client

	Address         string
	EnabledFeatures memdx.FeatureSet
	Compression     CompressionOptions
}

// MaybeCompress conditionally snappy-compresses value for this
// connection, gated on whether Snappy was actually negotiated during
// bootstrap (§4.4: "If the connection did not negotiate Snappy … pass
// through") in addition to c.Compression's own size/ratio gate.
func (c *KVClient) MaybeCompress(value []byte) ([]byte, bool) {
	if !c.EnabledFeatures.Has(memdx.HelloFeatureSnappy) {
		return value, false
	}
	return c.Compression.MaybeCompress(value)
}

// DialAndBootstrapKVClient dials addr and runs the connection's handshake
// (§4.3) before returning it ready for use.
func DialAndBootstrapKVClient(ctx context.Context, opts KVClientOptions) (*KVClient, error) {
	conn, err := opts.Dialer.DialNode(ctx, opts.Address)
	if err != nil {
		return nil, &memdx.DispatchError{Cause: err}
	}

	return bootstrapOverConn(ctx, conn, opts)
}

func bootstrapOverConn(ctx context.Context, conn net.Conn, opts KVClientOptions) (*KVClient, error) {
	client := memdx.NewClient(conn, memdx.ClientOptions{Logger: opts.Logger})

	result, err := memdx.Bootstrap(ctx, client, memdx.BootstrapOptions{
		ClientName:       opts.ClientName,
		RequestFeatures:  opts.RequestFeatures,
		Credentials:      opts.Credentials,
		BucketName:       opts.BucketName,
		GetErrorMap:      true,
		GetClusterConfig: true,
	}, opts.Logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	client.SetErrorMap(result.ErrMap)

	return &KVClient{
		Client:          client,
		Address:         opts.Address,
		EnabledFeatures: result.EnabledFeatures,
		Compression:     opts.Compression,
	}, nil
}
