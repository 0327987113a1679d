// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"encoding/json"
	"errors"

	"github.com/zeebo/errs"
)

// ErrorClass roots every error this package returns, matching the
// teacher's convention of one errs.Class per package (see e.g.
// satellite/metabase's use of github.com/zeebo/errs).
var ErrorClass = errs.Class("memdx")

// CancellationKind distinguishes why a pending op was resolved early.
type CancellationKind int

const (
	CancellationTimeout CancellationKind = iota + 1
	CancellationRequestCancelled
)

func (k CancellationKind) String() string {
	switch k {
	case CancellationTimeout:
		return "timeout"
	case CancellationRequestCancelled:
		return "request cancelled"
	default:
		return "unknown cancellation"
	}
}

// CancelledError is returned to a waiter when its pending op was cancelled,
// either by an expired deadline or an explicit cancellation (§5).
type CancelledError struct {
	Kind CancellationKind
}

func (e *CancelledError) Error() string {
	return "cancelled: " + e.Kind.String()
}

// ServerError wraps a non-success status response, carrying whatever
// opportunistic JSON error context the server attached (§6).
type ServerError struct {
	Status  Status
	Opaque  uint32
	Context *ServerErrorContext

	// RawValue is the response's undecoded value, kept alongside Context
	// for statuses whose value isn't a ServerErrorContext object at all —
	// NotMyVbucket's value is a terse cluster-config document, not an
	// {error,context,ref} blob (§7, scenario 4).
	RawValue []byte

	// ErrMapEntry is the connection's error-map classification for this
	// status, when one was negotiated and the status is listed in it
	// (§7, original_source errmapcomponent.rs). Nil when no map was
	// negotiated or the map doesn't mention the status.
	ErrMapEntry *ErrMapEntry
}

func (e *ServerError) Error() string {
	if e.Context != nil && e.Context.Error != "" {
		return "server error " + e.Status.String() + ": " + e.Context.Error
	}
	return "server error " + e.Status.String()
}

// ServerErrorContext is the opportunistic JSON payload a server-error
// response may carry (§6): manifest_rev, bucket, and a textual reason.
type ServerErrorContext struct {
	Error       string `json:"error"`
	Context     string `json:"context"`
	Ref         string `json:"ref"`
	ManifestRev uint64 `json:"manifest_uid,string,omitempty"`
	Bucket      string `json:"bucket,omitempty"`
}

// DispatchError means the request never got a chance to round-trip a
// status code at all (socket closed, write failed, queue full). These are
// always retriable with a fresh dispatcher (§7).
type DispatchError struct {
	Cause error
}

func (e *DispatchError) Error() string {
	return "dispatch error: " + e.Cause.Error()
}

func (e *DispatchError) Unwrap() error { return e.Cause }

// ProtocolError indicates malformed wire data: unknown magic, a truncated
// header that never completes, or a SCRAM message the client could not
// parse. Fatal for the connection that produced it (§7).
type ProtocolError struct {
	Message string
	Cause   error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return "protocol error: " + e.Message + ": " + e.Cause.Error()
	}
	return "protocol error: " + e.Message
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// ErrClosed is returned by a dispatcher that has already torn down.
var ErrClosed = ErrorClass.New("dispatcher closed")

// ErrClosedInFlight is delivered to every in-flight waiter when the
// dispatcher's connection is torn down out from under them (§4.2).
var ErrClosedInFlight = ErrorClass.New("connection closed with operation in flight")

// ErrNoSupportedAuthMechanisms is returned by SASL auto-negotiation when
// none of the client's preferred mechanisms are in the server's list.
var ErrNoSupportedAuthMechanisms = ErrorClass.New("no supported auth mechanisms")

// IsDispatchError reports whether err (or something it wraps) is a
// DispatchError, used by the KV orchestration retry-with-different-client
// helper (SPEC_FULL.md §C.4) to decide whether a fresh dispatcher should be
// tried before handing control to the full retry orchestrator.
func IsDispatchError(err error) bool {
	var de *DispatchError
	return errors.As(err, &de)
}

// IsCancelledError reports whether err is a CancelledError and, if so,
// its kind.
func IsCancelledError(err error) (CancellationKind, bool) {
	var ce *CancelledError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// parseServerErrorContext best-effort decodes a server-error response
// value as JSON context (§6). A non-JSON value (most status codes carry
// no body, or a plain string) is not an error, just "no context".
func parseServerErrorContext(value []byte) (*ServerErrorContext, bool) {
	if len(value) == 0 {
		return nil, false
	}
	var sc ServerErrorContext
	if err := json.Unmarshal(value, &sc); err != nil {
		return nil, false
	}
	return &sc, true
}
