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

// scriptedServer replies to each opcode using respond, echoing the
// request's opaque, until conn closes.
func scriptedServer(t *testing.T, conn net.Conn, respond func(req *Packet) *Packet) {
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

					resp := respond(pkt)
					if resp == nil {
						continue
					}
					resp.Magic = MagicRes
					resp.OpCode = pkt.OpCode
					resp.Opaque = pkt.Opaque
					_, _ = conn.Write(Encode(resp))
				}
			}
			if err != nil {
				return
			}
		}
	}()
}

func bootstrapHappyPathServer(t *testing.T, conn net.Conn) {
	scriptedServer(t, conn, func(req *Packet) *Packet {
		switch req.OpCode {
		case OpCodeHello:
			return &Packet{Status: StatusSuccess, Value: req.Value}
		case OpCodeGetErrorMap:
			return &Packet{Status: StatusSuccess, Value: []byte(`{"version":2,"revision":1,"errors":{}}`)}
		case OpCodeSASLListMechs:
			return &Packet{Status: StatusSuccess, Value: []byte("PLAIN")}
		case OpCodeSASLAuth:
			return &Packet{Status: StatusSuccess}
		case OpCodeSelectBucket:
			return &Packet{Status: StatusSuccess}
		case OpCodeGetClusterConfig:
			return &Packet{Status: StatusSuccess, Value: []byte(`{"rev":1}`)}
		default:
			return &Packet{Status: StatusSuccess}
		}
	})
}

func TestBootstrap_HappyPath(t *testing.T) {
	clientConn, serverConn := pairedConns(t)
	bootstrapHappyPathServer(t, serverConn)

	c := NewClient(clientConn, ClientOptions{})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := Bootstrap(ctx, c, BootstrapOptions{
		ClientName:      "test-client",
		RequestFeatures: []HelloFeature{HelloFeatureXerror, HelloFeatureCollections},
		Credentials:     Credentials{Username: "user", Password: "pass"},
		BucketName:      "default",
		GetErrorMap:     true,
		GetClusterConfig: true,
	}, nil)
	require.NoError(t, err)
	require.True(t, result.BucketSelected)
	require.NotNil(t, result.ErrMap)
	require.Equal(t, []byte(`{"rev":1}`), result.ClusterConfig)
	require.True(t, result.EnabledFeatures.Has(HelloFeatureXerror))
}

func TestBootstrap_NonFatalStepsDoNotAbortHandshake(t *testing.T) {
	clientConn, serverConn := pairedConns(t)
	scriptedServer(t, serverConn, func(req *Packet) *Packet {
		switch req.OpCode {
		case OpCodeHello:
			return &Packet{Status: StatusNotSupported}
		case OpCodeGetErrorMap:
			return &Packet{Status: StatusNotSupported}
		case OpCodeSASLListMechs:
			return &Packet{Status: StatusSuccess, Value: []byte("PLAIN")}
		case OpCodeSASLAuth:
			return &Packet{Status: StatusSuccess}
		case OpCodeSelectBucket:
			return &Packet{Status: StatusSuccess}
		case OpCodeGetClusterConfig:
			return &Packet{Status: StatusNotSupported}
		default:
			return &Packet{Status: StatusSuccess}
		}
	})

	c := NewClient(clientConn, ClientOptions{})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := Bootstrap(ctx, c, BootstrapOptions{
		ClientName:      "test-client",
		RequestFeatures: []HelloFeature{HelloFeatureXerror},
		Credentials:     Credentials{Username: "user", Password: "pass"},
		BucketName:      "default",
		GetErrorMap:     true,
		GetClusterConfig: true,
	}, nil)
	require.NoError(t, err)
	require.True(t, result.BucketSelected)
	require.Nil(t, result.ErrMap)
	require.Empty(t, result.ClusterConfig)
}

func TestBootstrap_AuthFailureIsFatal(t *testing.T) {
	clientConn, serverConn := pairedConns(t)
	scriptedServer(t, serverConn, func(req *Packet) *Packet {
		switch req.OpCode {
		case OpCodeHello:
			return &Packet{Status: StatusSuccess, Value: req.Value}
		case OpCodeSASLListMechs:
			return &Packet{Status: StatusSuccess, Value: []byte("PLAIN")}
		case OpCodeSASLAuth:
			return &Packet{Status: StatusAuthError}
		default:
			return &Packet{Status: StatusSuccess}
		}
	})

	c := NewClient(clientConn, ClientOptions{})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Bootstrap(ctx, c, BootstrapOptions{
		ClientName:  "test-client",
		Credentials: Credentials{Username: "user", Password: "wrong"},
		BucketName:  "default",
	}, nil)
	require.Error(t, err)
}
