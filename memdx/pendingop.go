// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"context"
)

// opResult is what a dispatcher delivers to a pending op's channel: either
// a response packet or an error (dispatch, protocol, or cancellation).
type opResult struct {
	pkt *Packet
	err error
}

// PendingOp is a single in-flight request/response transaction. Recv
// blocks for the response (or the op's deadline, via ctx); Cancel detaches
// it from the dispatcher's in-flight map immediately (§4.2).
type PendingOp struct {
	opaque uint32
	client *Client
	ch     chan opResult
}

// Recv waits for the response packet, or for ctx to be done. On ctx
// cancellation it cancels the op at the dispatcher (so a late response
// doesn't resurrect it) and returns the resulting CancelledError.
func (p *PendingOp) Recv(ctx context.Context) (*Packet, error) {
	select {
	case res := <-p.ch:
		return res.pkt, res.err
	case <-ctx.Done():
		kind := CancellationRequestCancelled
		if ctx.Err() == context.DeadlineExceeded {
			kind = CancellationTimeout
		}
		p.Cancel(kind)
		res := <-p.ch
		return res.pkt, res.err
	}
}

// Cancel removes this op from the dispatcher's in-flight map and resolves
// it with a CancelledError of the given kind. Calling Cancel more than
// once, or after the op already resolved, is a no-op.
func (p *PendingOp) Cancel(kind CancellationKind) {
	p.client.cancelOp(p.opaque, kind)
}

// TypedResponse describes a type that can convert a raw Packet into a
// typed response. None of this package's response types implement it;
// each op decodes its response packet directly.
type TypedResponse[T any] interface {
	FromPacket(pkt *Packet) (T, error)
}
