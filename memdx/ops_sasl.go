// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"bytes"
	"context"
)

// SASLListMechsResponse is the space-separated mechanism list the server
// advertises, used by auto-negotiation's fallback path (§4.3).
type SASLListMechsResponse struct {
	Mechanisms map[AuthMechanism]struct{}
}

// SASLListMechs asks the server which SASL mechanisms it supports.
func SASLListMechs(ctx context.Context, d Dispatcher) (*SASLListMechsResponse, error) {
	pkt, err := execSimple(ctx, d, &Packet{
		Magic:  MagicReq,
		OpCode: OpCodeSASLListMechs,
	})
	if err != nil {
		return nil, err
	}
	return &SASLListMechsResponse{Mechanisms: parseMechanismList(pkt.Value)}, nil
}

// SASLAuthRequest starts (or, for single-round mechanisms, completes) a
// SASL exchange (§4.3).
type SASLAuthRequest struct {
	Mechanism AuthMechanism
	Payload   []byte
}

// SASLStepRequest continues a multi-round SASL exchange (SCRAM only).
type SASLStepRequest struct {
	Mechanism AuthMechanism
	Payload   []byte
}

// SASLAuthResponse reports whether the exchange needs another round
// (SASL_STEP) or is already complete.
type SASLAuthResponse struct {
	NeedsMoreSteps bool
	Payload        []byte
}

// execSASL runs a SASL_AUTH or SASL_STEP request, translating the
// protocol's "needs more steps" signal (StatusAuthContinue) out of the
// error path rather than leaving it as a ServerError, since it is not a
// failure — it is the expected shape of a SCRAM round-trip.
func execSASL(ctx context.Context, d Dispatcher, req *Packet) (*SASLAuthResponse, error) {
	op, err := d.Dispatch(req)
	if err != nil {
		return nil, err
	}

	pkt, err := op.Recv(ctx)
	if err != nil {
		return nil, err
	}

	switch pkt.Status {
	case StatusSuccess:
		return &SASLAuthResponse{Payload: pkt.Value}, nil
	case StatusAuthContinue:
		return &SASLAuthResponse{NeedsMoreSteps: true, Payload: pkt.Value}, nil
	default:
		return nil, newServerError(pkt, d)
	}
}

// SASLAuth sends SASL_AUTH.
func SASLAuth(ctx context.Context, d Dispatcher, req *SASLAuthRequest) (*SASLAuthResponse, error) {
	return execSASL(ctx, d, &Packet{
		Magic:  MagicReq,
		OpCode: OpCodeSASLAuth,
		Key:    []byte(req.Mechanism),
		Value:  req.Payload,
	})
}

// SASLStep sends SASL_STEP.
func SASLStep(ctx context.Context, d Dispatcher, req *SASLStepRequest) (*SASLAuthResponse, error) {
	return execSASL(ctx, d, &Packet{
		Magic:  MagicReq,
		OpCode: OpCodeSASLStep,
		Key:    []byte(req.Mechanism),
		Value:  req.Payload,
	})
}

// PlainAuthPayload builds the PLAIN mechanism's single-round payload:
// \0username\0password (§4.3).
func PlainAuthPayload(username, password string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0)
	buf.WriteString(username)
	buf.WriteByte(0)
	buf.WriteString(password)
	return buf.Bytes()
}

// OauthBearerPayload builds the OAUTHBEARER mechanism's single-round GS2
// payload carrying a bearer token (§4.3, SPEC_FULL.md §C.1).
func OauthBearerPayload(token string) []byte {
	var buf bytes.Buffer
	buf.WriteString("n,,\x01auth=Bearer ")
	buf.WriteString(token)
	buf.WriteString("\x01\x01")
	return buf.Bytes()
}
