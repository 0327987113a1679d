// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFailFastStrategy_NeverRetries(t *testing.T) {
	s := FailFastStrategy{}
	for _, reason := range []RetryReason{RetryReasonUnknown, RetryReasonNotMyVbucket, RetryReasonTmpFailure} {
		_, ok := s.RetryAfter(RetryInfo{Idempotent: true}, reason)
		require.False(t, ok)
		_, ok = s.RetryAfter(RetryInfo{Idempotent: false}, reason)
		require.False(t, ok)
	}
}

func TestBestEffortStrategy_IdempotentAlwaysRetries(t *testing.T) {
	s := NewBestEffortStrategy()
	_, ok := s.RetryAfter(RetryInfo{Idempotent: true}, RetryReasonUnknown)
	require.True(t, ok)
}

func TestBestEffortStrategy_NonIdempotentOnlyOnSafeReasons(t *testing.T) {
	s := NewBestEffortStrategy()

	safe := []RetryReason{RetryReasonNotMyVbucket, RetryReasonSocketNotAvailable, RetryReasonConnectionClosedInFlight}
	for _, reason := range safe {
		_, ok := s.RetryAfter(RetryInfo{Idempotent: false}, reason)
		require.True(t, ok, "reason %v should allow non-idempotent retry", reason)
	}

	unsafe := []RetryReason{RetryReasonUnknown, RetryReasonTmpFailure, RetryReasonLocked, RetryReasonAuthMechanismNotSupported}
	for _, reason := range unsafe {
		_, ok := s.RetryAfter(RetryInfo{Idempotent: false}, reason)
		require.False(t, ok, "reason %v should not allow non-idempotent retry", reason)
	}
}

func TestBestEffortStrategy_AuthErrorNeverRetriesEvenWhenIdempotent(t *testing.T) {
	s := NewBestEffortStrategy()
	_, ok := s.RetryAfter(RetryInfo{Idempotent: true}, RetryReasonAuthError)
	require.False(t, ok)
	_, ok = s.RetryAfter(RetryInfo{Idempotent: false}, RetryReasonAuthError)
	require.False(t, ok)
}

func TestOrchestrateRetries_SurfacesAuthErrorImmediately(t *testing.T) {
	s := NewBestEffortStrategy()
	attempts := 0

	_, err := OrchestrateRetries(context.Background(), s, true,
		func(error) RetryReason { return RetryReasonAuthError },
		func(ctx context.Context) (any, error) {
			attempts++
			return nil, errors.New("auth failure")
		})

	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestBestEffortStrategy_Idempotence(t *testing.T) {
	s := NewBestEffortStrategy()
	info := RetryInfo{Idempotent: true, Attempts: 3}

	d1, ok1 := s.RetryAfter(info, RetryReasonTmpFailure)
	d2, ok2 := s.RetryAfter(info, RetryReasonTmpFailure)
	require.Equal(t, ok1, ok2)
	require.Equal(t, d1, d2)
}

func TestExponentialBackoffCalculator_ClampsToMinAndMax(t *testing.T) {
	c := DefaultExponentialBackoffCalculator()
	require.Equal(t, c.Min, c.Backoff(0))
	require.LessOrEqual(t, c.Backoff(100), c.Max)
}

func TestControlledBackoff_HoldsAtFinalRung(t *testing.T) {
	last := ControlledBackoff(1000)
	require.Equal(t, controlledBackoffLadder[len(controlledBackoffLadder)-1], last)
}

func TestOrchestrateRetries_GivesUpWhenStrategyDeclines(t *testing.T) {
	attempts := 0
	wantErr := errors.New("boom")

	_, err := OrchestrateRetries(context.Background(), FailFastStrategy{}, true,
		func(error) RetryReason { return RetryReasonUnknown },
		func(ctx context.Context) (any, error) {
			attempts++
			return nil, wantErr
		})

	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 1, attempts)
}

func TestOrchestrateRetries_RetriesUntilSuccess(t *testing.T) {
	attempts := 0

	result, err := OrchestrateRetries(context.Background(), NewBestEffortStrategy(), true,
		func(error) RetryReason { return RetryReasonTmpFailure },
		func(ctx context.Context) (any, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("not yet")
			}
			return "done", nil
		})

	require.NoError(t, err)
	require.Equal(t, "done", result)
	require.Equal(t, 3, attempts)
}

func TestOrchestrateRetries_AbortsOnDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := OrchestrateRetries(ctx, NewBestEffortStrategy(), true,
		func(error) RetryReason { return RetryReasonTmpFailure },
		func(ctx context.Context) (any, error) {
			return nil, errors.New("always fails")
		})

	require.Error(t, err)
}
