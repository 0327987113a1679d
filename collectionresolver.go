// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"context"
	"errors"
	"sync"

	"github.com/couchbaselabs/gocbcorex/memdx"
)

// collectionKey identifies a scope/collection name pair in the resolver's
// cache (§3 "Collection id cache").
type collectionKey struct {
	scope      string
	collection string
}

type collectionEntry struct {
	id          uint32
	manifestRev uint64
}

// CollectionResolver caches (scope, collection) -> (id, manifest_rev),
// populating entries on demand via GetCollectionID and invalidating them
// when a server reports a newer manifest revision (§4.9).
type CollectionResolver struct {
	resolve func(ctx context.Context, scope, collection string) (*memdx.GetCollectionIDResponse, error)

	mu      sync.RWMutex
	entries map[collectionKey]collectionEntry
}

// NewCollectionResolver builds a resolver that calls resolve to fill
// cache misses, typically a thin wrapper around memdx.GetCollectionID
// dispatched through any healthy client in the fleet.
func NewCollectionResolver(resolve func(ctx context.Context, scope, collection string) (*memdx.GetCollectionIDResponse, error)) *CollectionResolver {
	return &CollectionResolver{
		resolve: resolve,
		entries: make(map[collectionKey]collectionEntry),
	}
}

// Resolve returns the cached id for (scope, collection), resolving it on
// first use.
func (r *CollectionResolver) Resolve(ctx context.Context, scope, collection string) (uint32, uint64, error) {
	key := collectionKey{scope, collection}

	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return e.id, e.manifestRev, nil
	}

	return r.fetchAndStore(ctx, key)
}

func (r *CollectionResolver) fetchAndStore(ctx context.Context, key collectionKey) (uint32, uint64, error) {
	resp, err := r.resolve(ctx, key.scope, key.collection)
	if err != nil {
		return 0, 0, err
	}

	r.mu.Lock()
	r.entries[key] = collectionEntry{id: resp.CollectionID, manifestRev: resp.ManifestRev}
	r.mu.Unlock()

	return resp.CollectionID, resp.ManifestRev, nil
}

func (r *CollectionResolver) invalidate(key collectionKey) {
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
}

// ManifestOutdatedError is returned by an op's implementation when the
// server reports "unknown collection" alongside a manifest revision
// newer than the one the op was dispatched with.
type ManifestOutdatedError struct {
	InvalidatingRev uint64
}

func (e *ManifestOutdatedError) Error() string {
	return "collection manifest outdated"
}

// OrchestrateCollectionID implements §4.9's orchestrate_collection_id:
// resolve (scope, collection) to its id, invoke op with it, and on a
// ManifestOutdatedError decide whether to invalidate and retry once or
// surface the error immediately, per the exact arithmetic the spec
// requires:
//   - invalidating_rev < cached_rev: the error is stale information (a
//     response that raced an earlier invalidation); surface it without
//     touching the cache.
//   - invalidating_rev >= cached_rev: invalidate and re-resolve once. If
//     the re-resolved id is unchanged, the caller is genuinely using a
//     stale name — surface the error rather than looping forever.
func OrchestrateCollectionID[T any](
	ctx context.Context,
	r *CollectionResolver,
	scope, collection string,
	op func(ctx context.Context, collectionID uint32) (T, error),
) (T, error) {
	var zero T

	key := collectionKey{scope, collection}
	id, rev, err := r.Resolve(ctx, scope, collection)
	if err != nil {
		return zero, err
	}

	result, err := op(ctx, id)
	if err == nil {
		return result, nil
	}

	outdated, ok := asManifestOutdated(err)
	if !ok {
		return zero, err
	}

	if outdated.InvalidatingRev < rev {
		return zero, err
	}

	r.invalidate(key)
	newID, _, resolveErr := r.Resolve(ctx, scope, collection)
	if resolveErr != nil {
		return zero, resolveErr
	}

	if newID == id {
		return zero, err
	}

	return op(ctx, newID)
}

// asManifestOutdated recognises both an op's own explicit
// ManifestOutdatedError and a raw *memdx.ServerError carrying
// StatusUnknownCollection with a manifest revision in its opportunistic
// JSON context (§6, scenario 5) — the latter is what GetCollectionID's
// sibling data ops actually return on the wire; there's no need for every
// op implementation to re-wrap it by hand.
func asManifestOutdated(err error) (*ManifestOutdatedError, bool) {
	var moe *ManifestOutdatedError
	if errors.As(err, &moe) {
		return moe, true
	}

	var se *memdx.ServerError
	if errors.As(err, &se) && se.Status == memdx.StatusUnknownCollection && se.Context != nil && se.Context.ManifestRev != 0 {
		return &ManifestOutdatedError{InvalidatingRev: se.Context.ManifestRev}, true
	}

	return nil, false
}
