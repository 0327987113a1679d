// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randPacket(flexible bool) *Packet {
	magic := MagicReq
	if flexible {
		magic = MagicReqExt
	}

	p := &Packet{
		Magic:     magic,
		OpCode:    OpCode(rand.Intn(256)),
		Datatype:  DataType(rand.Intn(8)),
		Opaque:    rand.Uint32(),
		Cas:       rand.Uint64(),
		VbucketID: uint16(rand.Intn(1024)),
	}

	if flexible && rand.Intn(2) == 0 {
		p.FramingExtras = randBytes(rand.Intn(20))
	}
	if rand.Intn(2) == 0 {
		p.Extras = randBytes(rand.Intn(24))
	}
	if rand.Intn(2) == 0 {
		p.Key = randBytes(rand.Intn(32))
	}
	if rand.Intn(2) == 0 {
		p.Value = randBytes(rand.Intn(256))
	}

	if flexible {
		// classic framing caps key length at 16 bits; flexible caps at 8.
		if len(p.Key) > 255 {
			p.Key = p.Key[:255]
		}
	}

	return p
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

func requireEqualPacket(t *testing.T, exp, got *Packet) {
	t.Helper()
	require.Equal(t, exp.Magic, got.Magic)
	require.Equal(t, exp.OpCode, got.OpCode)
	require.Equal(t, exp.Datatype, got.Datatype)
	require.Equal(t, exp.Opaque, got.Opaque)
	require.Equal(t, exp.Cas, got.Cas)
	require.Equal(t, exp.VbucketID, got.VbucketID)
	require.Equal(t, exp.FramingExtras, got.FramingExtras)
	require.Equal(t, exp.Extras, got.Extras)
	require.Equal(t, exp.Key, got.Key)
	require.Equal(t, exp.Value, got.Value)
}

func TestFrameRoundTrip_Fuzz(t *testing.T) {
	for i := 0; i < 2000; i++ {
		exp := randPacket(i%2 == 0)
		buf := Encode(exp)

		got, rem, err := Decode(buf)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, 0, len(rem))
		requireEqualPacket(t, exp, got)
	}
}

func TestDecodeBoundary_NeedMore(t *testing.T) {
	exp := randPacket(true)
	exp.Key = randBytes(10)
	exp.Value = randBytes(50)
	buf := Encode(exp)

	for split := 0; split < len(buf); split++ {
		got, rem, err := Decode(buf[:split])
		require.NoError(t, err)
		require.Nil(t, got)
		require.Equal(t, buf[:split], rem)
	}

	got, rem, err := Decode(buf)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 0, len(rem))
}

func TestDecode_PacketConcatenation(t *testing.T) {
	a := randPacket(false)
	b := randPacket(true)

	buf := append(Encode(a), Encode(b)...)

	got1, rem, err := Decode(buf)
	require.NoError(t, err)
	requireEqualPacket(t, a, got1)

	got2, rem, err := Decode(rem)
	require.NoError(t, err)
	requireEqualPacket(t, b, got2)
	require.Equal(t, 0, len(rem))
}

func TestDecode_UnknownMagicRejected(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[0] = 0xEE
	_, _, err := Decode(buf)
	require.Error(t, err)
}
