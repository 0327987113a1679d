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

func TestClassifyRetryReason_TypedStatuses(t *testing.T) {
	cases := []struct {
		status memdx.Status
		want   RetryReason
	}{
		{memdx.StatusNotMyVbucket, RetryReasonNotMyVbucket},
		{memdx.StatusUnknownCollection, RetryReasonUnknownCollectionID},
		{memdx.StatusTmpFail, RetryReasonTmpFailure},
		{memdx.StatusLocked, RetryReasonLocked},
		{memdx.StatusAuthError, RetryReasonAuthError},
		{memdx.StatusAccessError, RetryReasonAuthError},
	}

	for _, c := range cases {
		err := &memdx.ServerError{Status: c.status}
		require.Equal(t, c.want, ClassifyRetryReason(err))
	}
}

func TestClassifyRetryReason_FallsBackToErrorMapForUnknownStatus(t *testing.T) {
	err := &memdx.ServerError{
		Status: memdx.Status(0x99),
		ErrMapEntry: &memdx.ErrMapEntry{
			Attrs: []memdx.ErrMapAttribute{memdx.ErrMapAttrTemp},
		},
	}

	require.Equal(t, RetryReasonTmpFailure, ClassifyRetryReason(err))
}

func TestClassifyRetryReason_UnmappedUnknownStatusIsUnknown(t *testing.T) {
	err := &memdx.ServerError{Status: memdx.Status(0x99)}
	require.Equal(t, RetryReasonUnknown, ClassifyRetryReason(err))
}

func TestClassifyRetryReason_DispatchAndClosedInFlight(t *testing.T) {
	dispatchErr := &memdx.DispatchError{Cause: errors.New("write failed")}
	require.Equal(t, RetryReasonSocketNotAvailable, ClassifyRetryReason(dispatchErr))

	require.Equal(t, RetryReasonConnectionClosedInFlight, ClassifyRetryReason(memdx.ErrClosedInFlight))
}

func TestOrchestrateKVOp_SucceedsOnFirstClient(t *testing.T) {
	calls := 0
	getClient := func(ctx context.Context) (*KVClient, error) {
		calls++
		return &KVClient{}, nil
	}

	result, err := OrchestrateKVOp(context.Background(), getClient, func(ctx context.Context, client *KVClient) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 1, calls)
}

func TestOrchestrateKVOp_RetriesOnceOnDispatchError(t *testing.T) {
	clients := 0
	getClient := func(ctx context.Context) (*KVClient, error) {
		clients++
		return &KVClient{}, nil
	}

	attempts := 0
	result, err := OrchestrateKVOp(context.Background(), getClient, func(ctx context.Context, client *KVClient) (string, error) {
		attempts++
		if attempts == 1 {
			return "", &memdx.DispatchError{Cause: errors.New("conn reset")}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 2, clients)
	require.Equal(t, 2, attempts)
}

func TestOrchestrateKVOp_DoesNotRetryServerStatusError(t *testing.T) {
	clients := 0
	getClient := func(ctx context.Context) (*KVClient, error) {
		clients++
		return &KVClient{}, nil
	}

	_, err := OrchestrateKVOp(context.Background(), getClient, func(ctx context.Context, client *KVClient) (string, error) {
		return "", &memdx.ServerError{Status: memdx.StatusTmpFail}
	})
	require.Error(t, err)
	require.Equal(t, 1, clients)
}
