// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchbaselabs/gocbcorex/memdx"
)

func TestCollectionResolver_ResolvesOnceAndCaches(t *testing.T) {
	calls := 0
	r := NewCollectionResolver(func(ctx context.Context, scope, collection string) (*memdx.GetCollectionIDResponse, error) {
		calls++
		return &memdx.GetCollectionIDResponse{CollectionID: 9, ManifestRev: 4}, nil
	})

	id, rev, err := r.Resolve(context.Background(), "_default", "items")
	require.NoError(t, err)
	require.Equal(t, uint32(9), id)
	require.Equal(t, uint64(4), rev)

	_, _, err = r.Resolve(context.Background(), "_default", "items")
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

// TestOrchestrateCollectionID_InvalidatesAndRetries matches scenario 5 of
// spec.md §8: a stale cached id fails with UnknownCollection at a higher
// manifest revision, the resolver re-resolves to a new id, and the op
// succeeds on retry.
func TestOrchestrateCollectionID_InvalidatesAndRetries(t *testing.T) {
	resolveCount := 0
	r := NewCollectionResolver(func(ctx context.Context, scope, collection string) (*memdx.GetCollectionIDResponse, error) {
		resolveCount++
		if resolveCount == 1 {
			return &memdx.GetCollectionIDResponse{CollectionID: 9, ManifestRev: 4}, nil
		}
		return &memdx.GetCollectionIDResponse{CollectionID: 12, ManifestRev: 5}, nil
	})

	attempt := 0
	result, err := OrchestrateCollectionID(context.Background(), r, "_default", "items",
		func(ctx context.Context, collectionID uint32) (string, error) {
			attempt++
			if collectionID == 9 {
				return "", &memdx.ServerError{
					Status:  memdx.StatusUnknownCollection,
					Context: &memdx.ServerErrorContext{ManifestRev: 5},
				}
			}
			return "ok", nil
		})

	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 2, attempt)
	require.Equal(t, 2, resolveCount)
}

func TestOrchestrateCollectionID_StaleInvalidationIsSurfacedWithoutResolving(t *testing.T) {
	resolveCount := 0
	r := NewCollectionResolver(func(ctx context.Context, scope, collection string) (*memdx.GetCollectionIDResponse, error) {
		resolveCount++
		return &memdx.GetCollectionIDResponse{CollectionID: 9, ManifestRev: 10}, nil
	})

	wantErr := &memdx.ServerError{
		Status:  memdx.StatusUnknownCollection,
		Context: &memdx.ServerErrorContext{ManifestRev: 3},
	}

	_, err := OrchestrateCollectionID(context.Background(), r, "_default", "items",
		func(ctx context.Context, collectionID uint32) (string, error) {
			return "", wantErr
		})

	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 1, resolveCount)
}

func TestOrchestrateCollectionID_SameIDAfterReresolveSurfacesError(t *testing.T) {
	r := NewCollectionResolver(func(ctx context.Context, scope, collection string) (*memdx.GetCollectionIDResponse, error) {
		return &memdx.GetCollectionIDResponse{CollectionID: 9, ManifestRev: 5}, nil
	})

	wantErr := &memdx.ServerError{
		Status:  memdx.StatusUnknownCollection,
		Context: &memdx.ServerErrorContext{ManifestRev: 9},
	}

	_, err := OrchestrateCollectionID(context.Background(), r, "_default", "items",
		func(ctx context.Context, collectionID uint32) (string, error) {
			return "", wantErr
		})

	require.ErrorIs(t, err, wantErr)
}

func TestOrchestrateCollectionID_NonOutdatedErrorSurfacesImmediately(t *testing.T) {
	r := NewCollectionResolver(func(ctx context.Context, scope, collection string) (*memdx.GetCollectionIDResponse, error) {
		return &memdx.GetCollectionIDResponse{CollectionID: 9, ManifestRev: 5}, nil
	})

	wantErr := errors.New("dispatch failure")
	_, err := OrchestrateCollectionID(context.Background(), r, "_default", "items",
		func(ctx context.Context, collectionID uint32) (string, error) {
			return "", wantErr
		})

	require.ErrorIs(t, err, wantErr)
}
