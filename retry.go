// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"context"
	"math"
	"time"
)

// RetryReason classifies why an operation failed, for the retry strategy
// to decide whether (and how) to retry it (§4.10, §7).
type RetryReason int

const (
	RetryReasonUnknown RetryReason = iota
	RetryReasonNotMyVbucket
	RetryReasonUnknownCollectionID
	RetryReasonTmpFailure
	RetryReasonLocked
	RetryReasonConnectionClosedInFlight
	RetryReasonSocketNotAvailable
	RetryReasonAuthMechanismNotSupported
	RetryReasonAuthError
)

// allowsNonIdempotentRetry reports whether this reason is safe to retry
// even for a non-idempotent request (§4.10 BestEffort strategy).
func (r RetryReason) allowsNonIdempotentRetry() bool {
	switch r {
	case RetryReasonNotMyVbucket, RetryReasonSocketNotAvailable, RetryReasonConnectionClosedInFlight:
		return true
	default:
		return false
	}
}

// terminal reports whether this reason must never be retried, regardless
// of idempotency (§7: "Auth errors are never retried at the orchestrator
// — they reach the user").
func (r RetryReason) terminal() bool {
	return r == RetryReasonAuthError
}

// RetryInfo is the mutable state an orchestrated retry loop threads
// through repeated retry_after calls (§4.10).
type RetryInfo struct {
	Idempotent bool
	Attempts   uint32
}

// RetryStrategy decides whether and how long to wait before retrying a
// failed operation (§4.10).
type RetryStrategy interface {
	RetryAfter(info RetryInfo, reason RetryReason) (time.Duration, bool)
}

// FailFastStrategy never retries.
type FailFastStrategy struct{}

// RetryAfter always returns (0, false).
func (FailFastStrategy) RetryAfter(RetryInfo, RetryReason) (time.Duration, bool) {
	return 0, false
}

// BackoffCalculator computes the delay before the Nth retry attempt.
type BackoffCalculator interface {
	Backoff(attempts uint32) time.Duration
}

// ExponentialBackoffCalculator grows the delay geometrically between Min
// and Max (§4.10).
type ExponentialBackoffCalculator struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
}

// DefaultExponentialBackoffCalculator matches §4.10's reference values:
// min 1ms, max 500ms, factor 2.0.
func DefaultExponentialBackoffCalculator() ExponentialBackoffCalculator {
	return ExponentialBackoffCalculator{Min: time.Millisecond, Max: 500 * time.Millisecond, Factor: 2.0}
}

// Backoff computes min * factor^attempts, clamped to [Min, Max].
func (c ExponentialBackoffCalculator) Backoff(attempts uint32) time.Duration {
	backoff := float64(c.Min) * math.Pow(c.Factor, float64(attempts))
	if backoff > float64(c.Max) {
		return c.Max
	}
	if backoff < float64(c.Min) {
		return c.Min
	}
	return time.Duration(backoff)
}

// controlledBackoffLadder is the fixed backoff schedule §4.10 offers as
// an alternative to the exponential calculator.
var controlledBackoffLadder = []time.Duration{
	1 * time.Millisecond,
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	500 * time.Millisecond,
	1000 * time.Millisecond,
}

// ControlledBackoff looks up attempts on the fixed ladder, holding at the
// final rung for every attempt beyond it.
func ControlledBackoff(attempts uint32) time.Duration {
	if int(attempts) >= len(controlledBackoffLadder) {
		return controlledBackoffLadder[len(controlledBackoffLadder)-1]
	}
	return controlledBackoffLadder[attempts]
}

// BestEffortStrategy never retries a terminal reason (an auth error); it
// retries idempotent requests for every other reason, and non-idempotent
// requests only on reasons known to be safe (§4.10).
type BestEffortStrategy struct {
	Calc BackoffCalculator
}

// NewBestEffortStrategy builds a BestEffortStrategy using the default
// exponential calculator.
func NewBestEffortStrategy() BestEffortStrategy {
	return BestEffortStrategy{Calc: DefaultExponentialBackoffCalculator()}
}

// RetryAfter implements RetryStrategy.
func (s BestEffortStrategy) RetryAfter(info RetryInfo, reason RetryReason) (time.Duration, bool) {
	if reason.terminal() {
		return 0, false
	}
	if !info.Idempotent && !reason.allowsNonIdempotentRetry() {
		return 0, false
	}
	return s.Calc.Backoff(info.Attempts), true
}

// OrchestrateRetries runs op repeatedly until it succeeds, the strategy
// gives up, or ctx's deadline elapses (§4.10). classify turns a failed
// op's error into a RetryReason; a reason of RetryReasonUnknown with no
// strategy match ends the loop with the original error.
func OrchestrateRetries(
	ctx context.Context,
	strategy RetryStrategy,
	idempotent bool,
	classify func(error) RetryReason,
	op func(ctx context.Context) (any, error),
) (any, error) {
	info := RetryInfo{Idempotent: idempotent}

	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		reason := classify(err)
		delay, ok := strategy.RetryAfter(info, reason)
		if !ok {
			return nil, err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		info.Attempts++
	}
}
