// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pairedConns returns two ends of an in-memory connection, standing in
// for a TCP socket in dispatcher tests.
func pairedConns(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

// fakeServer reads requests off conn and replies with a canned status for
// every opcode it sees, echoing the opaque back, until conn closes.
func fakeServer(t *testing.T, conn net.Conn, status Status) {
	t.Helper()
	go func() {
		buf := make([]byte, 0, 4096)
		tmp := make([]byte, 4096)
		for {
			n, err := conn.Read(tmp)
			if n > 0 {
				buf = append(buf, tmp[:n]...)
				for {
					pkt, rem, decErr := Decode(buf)
					if decErr != nil || pkt == nil {
						break
					}
					buf = rem

					resp := &Packet{
						Magic:  MagicRes,
						OpCode: pkt.OpCode,
						Opaque: pkt.Opaque,
						Status: status,
					}
					_, _ = conn.Write(Encode(resp))
				}
			}
			if err != nil {
				return
			}
		}
	}()
}

func TestClient_DispatchAndRecv(t *testing.T) {
	clientConn, serverConn := pairedConns(t)
	fakeServer(t, serverConn, StatusSuccess)

	c := NewClient(clientConn, ClientOptions{})
	defer c.Close()

	op, err := c.Dispatch(&Packet{Magic: MagicReq, OpCode: OpCodeGet})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pkt, err := op.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, pkt.Status)
}

func TestClient_DispatchServerError(t *testing.T) {
	clientConn, serverConn := pairedConns(t)
	fakeServer(t, serverConn, StatusKeyNotFound)

	c := NewClient(clientConn, ClientOptions{})
	defer c.Close()

	_, err := Get(context.Background(), c, &GetRequest{Key: []byte("missing")})
	require.Error(t, err)

	var se *ServerError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StatusKeyNotFound, se.Status)
}

func TestClient_RecvTimeoutCancelsPendingOp(t *testing.T) {
	clientConn, serverConn := pairedConns(t)
	// No fake server reading: the request sits unanswered until we cancel.

	c := NewClient(clientConn, ClientOptions{})
	defer c.Close()
	defer serverConn.Close()

	op, err := c.Dispatch(&Packet{Magic: MagicReq, OpCode: OpCodeGet})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = op.Recv(ctx)
	require.Error(t, err)
	kind, ok := IsCancelledError(err)
	require.True(t, ok)
	require.Equal(t, CancellationTimeout, kind)
}

func TestClient_TeardownFailsInFlightOps(t *testing.T) {
	clientConn, serverConn := pairedConns(t)

	c := NewClient(clientConn, ClientOptions{})

	op1, err := c.Dispatch(&Packet{Magic: MagicReq, OpCode: OpCodeGet})
	require.NoError(t, err)
	op2, err := c.Dispatch(&Packet{Magic: MagicReq, OpCode: OpCodeSet})
	require.NoError(t, err)

	require.NoError(t, serverConn.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err1 := op1.Recv(ctx)
	_, err2 := op2.Recv(ctx)
	require.ErrorIs(t, err1, ErrClosedInFlight)
	require.ErrorIs(t, err2, ErrClosedInFlight)

	_, err = c.Dispatch(&Packet{Magic: MagicReq, OpCode: OpCodeGet})
	require.ErrorIs(t, err, ErrClosed)
}
