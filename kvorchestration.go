// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"context"

	"github.com/couchbaselabs/gocbcorex/memdx"
)

// OrchestrateKVOp runs op against a freshly obtained client, and — only
// for a DispatchError (the request never reached the server at all) —
// retries once more against the client a second getClient call returns
// (which may be the same connection) before handing control to
// the caller's retry orchestrator. A server-status error (the request
// did round-trip) is never retried here; that decision belongs to
// OrchestrateRetries, which classifies it by reason.
func OrchestrateKVOp[T any](
	ctx context.Context,
	getClient func(ctx context.Context) (*KVClient, error),
	op func(ctx context.Context, client *KVClient) (T, error),
) (T, error) {
	var zero T

	client, err := getClient(ctx)
	if err != nil {
		return zero, err
	}

	result, err := op(ctx, client)
	if err == nil {
		return result, nil
	}
	if !memdx.IsDispatchError(err) {
		return zero, err
	}

	client, retryErr := getClient(ctx)
	if retryErr != nil {
		return zero, err
	}

	return op(ctx, client)
}

// ClassifyRetryReason maps a failed KV op's error to a RetryReason for
// OrchestrateRetries, per §7's propagation policy and §4.10's reason
// list.
func ClassifyRetryReason(err error) RetryReason {
	var se *memdx.ServerError
	if !asServerError(err, &se) {
		if memdx.IsDispatchError(err) {
			return RetryReasonSocketNotAvailable
		}
		if err == memdx.ErrClosedInFlight {
			return RetryReasonConnectionClosedInFlight
		}
		return RetryReasonUnknown
	}

	switch se.Status {
	case memdx.StatusNotMyVbucket:
		return RetryReasonNotMyVbucket
	case memdx.StatusUnknownCollection:
		return RetryReasonUnknownCollectionID
	case memdx.StatusTmpFail:
		return RetryReasonTmpFailure
	case memdx.StatusLocked:
		return RetryReasonLocked
	case memdx.StatusAuthError, memdx.StatusAccessError:
		return RetryReasonAuthError
	default:
		return classifyByErrorMap(se)
	}
}

// classifyByErrorMap falls back to the connection's negotiated error map
// for a status this client has no typed case for (§7): a code tagged
// retry-now, retry-later, auto-retry, retry, temp, or rate-limit is
// treated like TmpFail; anything else (or no map entry at all) is a
// generic, non-retriable server error.
func classifyByErrorMap(se *memdx.ServerError) RetryReason {
	if se.ErrMapEntry == nil {
		return RetryReasonUnknown
	}
	for _, attr := range se.ErrMapEntry.Attrs {
		switch attr {
		case "retry-now", "retry-later", "auto-retry",
			memdx.ErrMapAttrRetry, memdx.ErrMapAttrTemp, memdx.ErrMapAttrRateLimit:
			return RetryReasonTmpFailure
		}
	}
	return RetryReasonUnknown
}

func asServerError(err error, target **memdx.ServerError) bool {
	if se, ok := err.(*memdx.ServerError); ok {
		*target = se
		return true
	}
	return false
}
