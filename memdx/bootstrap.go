// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"context"

	"go.uber.org/zap"
)

// BootstrapOptions parameterises one connection's handshake (§4.3).
type BootstrapOptions struct {
	ClientName       string
	RequestFeatures  []HelloFeature
	Credentials      Credentials
	BucketName       string
	GetErrorMap      bool
	GetClusterConfig bool
}

// BootstrapResult is whatever the handshake learned that the caller
// (normally the KV client pool) needs to keep around for the connection's
// lifetime.
type BootstrapResult struct {
	EnabledFeatures FeatureSet
	ErrMap          *ErrMap
	ClusterConfig   []byte
	BucketSelected  bool
}

// Bootstrap runs the full per-connection handshake against d in the order
// mandated by §4.3: HELLO and GET_ERROR_MAP are attempted but non-fatal;
// authentication and SELECT_BUCKET are fatal; GET_CLUSTER_CONFIG is
// attempted but non-fatal. ctx's deadline bounds the whole sequence, not
// each step individually — a timeout partway through surfaces as
// Cancelled{Timeout} to the caller via whichever op was in flight.
func Bootstrap(ctx context.Context, d Dispatcher, opts BootstrapOptions, logger *zap.Logger) (*BootstrapResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	result := &BootstrapResult{}

	if len(opts.RequestFeatures) > 0 {
		helloResp, err := Hello(ctx, d, &HelloRequest{
			ClientName: opts.ClientName,
			Features:   opts.RequestFeatures,
		})
		if err != nil {
			if kind, ok := IsCancelledError(err); ok {
				return nil, &CancelledError{Kind: kind}
			}
			logger.Debug("hello failed, continuing with defaults", zap.Error(err))
		} else {
			result.EnabledFeatures = NewFeatureSet(opts.RequestFeatures...).Intersect(helloResp.EnabledFeatures)
		}
	}

	if opts.GetErrorMap {
		emResp, err := GetErrorMap(ctx, d, &GetErrorMapRequest{Version: 2})
		if err != nil {
			if kind, ok := IsCancelledError(err); ok {
				return nil, &CancelledError{Kind: kind}
			}
			logger.Debug("get error map failed, continuing without it", zap.Error(err))
		} else {
			result.ErrMap = emResp.ErrMap
		}
	}

	if opts.Credentials.Username != "" || opts.Credentials.BearerToken != "" {
		if err := AuthenticateAuto(ctx, d, opts.Credentials); err != nil {
			return nil, err
		}
	}

	if opts.BucketName != "" {
		if err := SelectBucket(ctx, d, &SelectBucketRequest{BucketName: opts.BucketName}); err != nil {
			return nil, err
		}
		result.BucketSelected = true
	}

	if opts.GetClusterConfig {
		cfgResp, err := GetClusterConfig(ctx, d, &GetClusterConfigRequest{})
		if err != nil {
			if kind, ok := IsCancelledError(err); ok {
				return nil, &CancelledError{Kind: kind}
			}
			logger.Debug("get cluster config failed, continuing without one", zap.Error(err))
		} else {
			result.ClusterConfig = cfgResp.Config
		}
	}

	return result, nil
}
