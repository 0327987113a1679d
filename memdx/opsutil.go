// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"context"
	"encoding/binary"
)

// MutationToken identifies a mutation's position in a partition's history
// (§3 GLOSSARY), returned by any op with the MutationSeqNo feature active.
type MutationToken struct {
	VbUUID uint64
	SeqNo  uint64
}

// Dispatcher is the subset of *Client an operation encoder needs. Ops
// depend on this interface, not the concrete type, so tests can exercise
// them against a fake.
type Dispatcher interface {
	Dispatch(req *Packet) (*PendingOp, error)
}

// execSimple dispatches req and waits for its single response, translating
// a non-success status into a *ServerError (with opportunistic JSON
// context, §6) and leaving dispatch/cancellation errors as-is.
func execSimple(ctx context.Context, d Dispatcher, req *Packet) (*Packet, error) {
	op, err := d.Dispatch(req)
	if err != nil {
		return nil, err
	}

	pkt, err := op.Recv(ctx)
	if err != nil {
		return nil, err
	}

	if pkt.Status != StatusSuccess {
		return pkt, newServerError(pkt, d)
	}

	return pkt, nil
}

// errorMapSource is implemented by *Client; execSimple type-asserts the
// Dispatcher interface down to it so ops built against the narrow
// interface still get error-map-backed classification (§7) without every
// op encoder needing its own reference to the connection.
type errorMapSource interface {
	currentErrorMap() *ErrMap
}

func newServerError(pkt *Packet, d Dispatcher) error {
	se := &ServerError{Status: pkt.Status, Opaque: pkt.Opaque, RawValue: pkt.Value}
	if sc, ok := parseServerErrorContext(pkt.Value); ok {
		se.Context = sc
	}
	if src, ok := d.(errorMapSource); ok {
		if em := src.currentErrorMap(); em != nil {
			if entry, ok := em.Lookup(pkt.Status); ok {
				se.ErrMapEntry = &entry
			}
		}
	}
	return se
}

// extractMutationToken reads a 16-byte {vbuuid, seqno} pair from extras,
// used by mutating ops when the server echoes one back.
func extractMutationToken(extras []byte) (MutationToken, bool) {
	if len(extras) < 16 {
		return MutationToken{}, false
	}
	return MutationToken{
		VbUUID: binary.BigEndian.Uint64(extras[0:8]),
		SeqNo:  binary.BigEndian.Uint64(extras[8:16]),
	}, true
}

// serverDuration opportunistically extracts the response's server-duration
// extended frame, left undecoded per the open question in spec §9: its
// exact numeric encoding varies by server version, so callers receive the
// raw bytes via FindFramingExtra instead of a hard-coded format here.
func serverDuration(framingExtras []byte) ([]byte, bool) {
	extras, err := decodeFramingExtras(framingExtras)
	if err != nil {
		return nil, false
	}
	return FindFramingExtra(extras, ExtResFrameCodeServerDuration)
}
