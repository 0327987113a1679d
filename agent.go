// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/couchbaselabs/gocbcorex/cbconfig"
	"github.com/couchbaselabs/gocbcorex/memdx"
)

// AgentOptions configures a self-contained agent: one cluster's worth of
// KV connectivity, with no process-wide global state (§9 "Global
// state" — a process may instantiate many agents, and they share
// nothing).
type AgentOptions struct {
	SeedAddresses   []string
	BucketName      string
	Credentials     memdx.Credentials
	Dialer          Dialer
	PoolSize        int
	RequestFeatures []memdx.HelloFeature
	Compression     CompressionOptions
	RetryStrategy   RetryStrategy
	Logger          *zap.Logger
}

// DefaultRequestFeatures is the feature bundle bootstrap asks for on
// every connection.
func DefaultRequestFeatures() []memdx.HelloFeature {
	return []memdx.HelloFeature{
		memdx.HelloFeatureDataType,
		memdx.HelloFeatureTCPNoDelay,
		memdx.HelloFeatureSeqNo,
		memdx.HelloFeatureXattr,
		memdx.HelloFeatureXerror,
		memdx.HelloFeatureSelectBucket,
		memdx.HelloFeatureSnappy,
		memdx.HelloFeatureJSON,
		memdx.HelloFeatureCollections,
		memdx.HelloFeatureAltRequests,
		memdx.HelloFeatureClusterMapNotif,
	}
}

// Agent is the top-level handle a caller holds: it owns the fleet, the
// config manager/watcher, the vbucket router, the collection resolver,
// and the retry strategy, and exposes key-addressed KV operations that
// route through all of them.
type Agent struct {
	opts AgentOptions

	manager  *KVClientManager
	cfgMgr   *ConfigManager
	watcher  *ConfigWatcher
	resolver *CollectionResolver
	strategy RetryStrategy

	networkType string
	useTLS      bool
}

// CreateAgent bootstraps against SeedAddresses to learn the cluster's
// topology, then stands up the fleet, config watcher, and collection
// resolver against it.
func CreateAgent(ctx context.Context, opts AgentOptions) (*Agent, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 1
	}
	if opts.RetryStrategy == nil {
		opts.RetryStrategy = NewBestEffortStrategy()
	}
	if len(opts.RequestFeatures) == 0 {
		opts.RequestFeatures = DefaultRequestFeatures()
	}

	template := KVClientOptions{
		Dialer:          opts.Dialer,
		ClientName:      "gocbcorex",
		RequestFeatures: opts.RequestFeatures,
		Credentials:     opts.Credentials,
		BucketName:      opts.BucketName,
		Compression:     opts.Compression,
		Logger:          opts.Logger,
	}

	var bootstrapConfig *ParsedConfig
	var lastErr error
	for _, addr := range opts.SeedAddresses {
		seedTemplate := template
		seedTemplate.Address = addr

		client, err := DialAndBootstrapKVClient(ctx, seedTemplate)
		if err != nil {
			lastErr = err
			continue
		}

		cfgResp, err := memdx.GetClusterConfig(ctx, client, &memdx.GetClusterConfigRequest{})
		_ = client.Close()
		if err != nil {
			lastErr = err
			continue
		}

		tc, err := cbconfig.Parse(cfgResp.Config)
		if err != nil {
			lastErr = err
			continue
		}

		bootstrapConfig, err = ParseConfig(tc, addr)
		if err != nil {
			lastErr = err
			continue
		}
		break
	}

	if bootstrapConfig == nil {
		return nil, ErrorClass.Wrap(lastErr)
	}

	networkType := IdentifyNetworkType(bootstrapConfig)

	cfgMgr := NewConfigManager(opts.Logger)
	cfgMgr.Apply(bootstrapConfig)

	manager := NewKVClientManager(opts.PoolSize, template, opts.Logger)
	manager.Reconfigure(bootstrapConfig, networkType, opts.Dialer.TLSConfig != nil)

	cfgMgr.Subscribe(func(cfg *ParsedConfig) {
		manager.Reconfigure(cfg, networkType, opts.Dialer.TLSConfig != nil)
	})

	watcher := NewConfigWatcher(cfgMgr, manager.GetRandomClient, ConfigWatcherOptions{Logger: opts.Logger})
	watcher.Start(ctx)

	resolver := NewCollectionResolver(func(ctx context.Context, scope, collection string) (*memdx.GetCollectionIDResponse, error) {
		client, err := manager.GetRandomClient(ctx)
		if err != nil {
			return nil, err
		}
		return memdx.GetCollectionID(ctx, client, &memdx.GetCollectionIDRequest{ScopeName: scope, CollectionName: collection})
	})

	return &Agent{
		opts:        opts,
		manager:     manager,
		cfgMgr:      cfgMgr,
		watcher:     watcher,
		resolver:    resolver,
		strategy:    opts.RetryStrategy,
		networkType: networkType,
		useTLS:      opts.Dialer.TLSConfig != nil,
	}, nil
}

// Close tears the agent down: stops the config watcher and closes every
// pool in the fleet.
func (a *Agent) Close() {
	a.watcher.Stop()
	a.manager.Close()
}

// clientForKey routes key to the node currently responsible for its
// active vbucket (§4.8).
func (a *Agent) clientForKey(ctx context.Context, key []byte) (*KVClient, uint16, error) {
	cfg := a.cfgMgr.Current()
	if cfg == nil || cfg.Bucket == nil {
		return nil, 0, ErrorClass.New("no bucket config available")
	}

	vbMap, err := NewVbucketMap(cfg.Bucket.VBucketMap, cfg.Bucket.NumReplicas)
	if err != nil {
		return nil, 0, err
	}

	vbID := vbMap.VbucketByKey(key)
	nodeIdx, err := vbMap.NodeByVbucket(vbID, 0)
	if err != nil {
		return nil, 0, err
	}
	if nodeIdx < 0 || nodeIdx >= len(cfg.Nodes) {
		return nil, 0, ErrorClass.New("no active node for vbucket")
	}

	addr, ok := cfg.Nodes[nodeIdx].KVEndpoint(a.networkType, a.useTLS)
	if !ok {
		return nil, 0, ErrorClass.New("node has no kv endpoint for network type")
	}

	client, err := a.manager.GetClient(ctx, addr)
	return client, vbID, err
}

// applyNotMyVbucketHint implements §7's "out-of-band fast config refresh"
// side effect: a NotMyVbucket response's value is a terse cluster config
// (scenario 4), not ordinary error context. Handing it to the config
// manager here means the router can already be pointed at the right node
// by the time the retry orchestrator reissues the op, instead of waiting
// for the next poll interval.
func (a *Agent) applyNotMyVbucketHint(err error) {
	var se *memdx.ServerError
	if !errors.As(err, &se) || se.Status != memdx.StatusNotMyVbucket || len(se.RawValue) == 0 {
		return
	}

	cur := a.cfgMgr.Current()
	sourceAddress := ""
	if cur != nil {
		sourceAddress = cur.SourceAddress
	}

	tc, parseErr := cbconfig.Parse(se.RawValue)
	if parseErr != nil {
		return
	}
	cfg, parseErr := ParseConfig(tc, sourceAddress)
	if parseErr != nil {
		return
	}
	a.cfgMgr.Apply(cfg)
}

// Get fetches a document, routing by key and retrying per the agent's
// strategy.
func (a *Agent) Get(ctx context.Context, key []byte, timeout time.Duration) (*memdx.GetResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := OrchestrateRetries(ctx, a.strategy, true, ClassifyRetryReason,
		func(ctx context.Context) (any, error) {
			var vbID uint16
			resp, err := OrchestrateKVOp(ctx, func(ctx context.Context) (*KVClient, error) {
				client, vb, err := a.clientForKey(ctx, key)
				vbID = vb
				return client, err
			}, func(ctx context.Context, client *KVClient) (*memdx.GetResponse, error) {
				return memdx.Get(ctx, client, &memdx.GetRequest{VbucketID: vbID, Key: key})
			})
			if err != nil {
				a.applyNotMyVbucketHint(err)
			}
			return resp, err
		})
	if err != nil {
		return nil, err
	}
	return result.(*memdx.GetResponse), nil
}

// GetFromCollection fetches a document from a named scope/collection,
// resolving the collection id through the agent's resolver (§4.9) before
// routing by key, retrying per the agent's strategy. A manifest-outdated
// response from the server invalidates the resolver's cache and
// re-resolves once per OrchestrateCollectionID's rules.
func (a *Agent) GetFromCollection(ctx context.Context, scopeName, collectionName string, key []byte, timeout time.Duration) (*memdx.GetResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return OrchestrateCollectionID(ctx, a.resolver, scopeName, collectionName,
		func(ctx context.Context, collectionID uint32) (*memdx.GetResponse, error) {
			result, err := OrchestrateRetries(ctx, a.strategy, true, ClassifyRetryReason,
				func(ctx context.Context) (any, error) {
					var vbID uint16
					resp, err := OrchestrateKVOp(ctx, func(ctx context.Context) (*KVClient, error) {
						client, vb, err := a.clientForKey(ctx, key)
						vbID = vb
						return client, err
					}, func(ctx context.Context, client *KVClient) (*memdx.GetResponse, error) {
						return memdx.Get(ctx, client, &memdx.GetRequest{VbucketID: vbID, CollectionID: collectionID, Key: key})
					})
					if err != nil {
						a.applyNotMyVbucketHint(err)
					}
					return resp, err
				})
			if err != nil {
				return nil, err
			}
			return result.(*memdx.GetResponse), nil
		})
}

// Set upserts a document, routing by key and retrying non-idempotently
// only on safe reasons.
func (a *Agent) Set(ctx context.Context, key, value []byte, timeout time.Duration) (*memdx.StoreResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := OrchestrateRetries(ctx, a.strategy, false, ClassifyRetryReason,
		func(ctx context.Context) (any, error) {
			var vbID uint16
			resp, err := OrchestrateKVOp(ctx, func(ctx context.Context) (*KVClient, error) {
				client, vb, err := a.clientForKey(ctx, key)
				vbID = vb
				return client, err
			}, func(ctx context.Context, client *KVClient) (*memdx.StoreResponse, error) {
				sendValue, compressed := client.MaybeCompress(value)
				datatype := memdx.DataType(0)
				if compressed {
					datatype |= memdx.DataTypeSnappy
				}
				return memdx.Set(ctx, client, &memdx.StoreRequest{VbucketID: vbID, Key: key, Value: sendValue, Datatype: datatype})
			})
			if err != nil {
				a.applyNotMyVbucketHint(err)
			}
			return resp, err
		})
	if err != nil {
		return nil, err
	}
	return result.(*memdx.StoreResponse), nil
}
