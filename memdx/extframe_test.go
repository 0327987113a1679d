// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFramingExtras_RoundTrip(t *testing.T) {
	entries := []ReqFramingExtra{
		{Code: ExtReqFrameCodeBarrier, Data: nil},
		{Code: ExtReqFrameCodeDurability, Data: []byte{0x01, 0x02}},
		{Code: ExtReqFrameCodeOnBehalfOf, Data: []byte("user:bob")},
	}

	encoded := encodeFramingExtras(entries)
	decoded, err := decodeFramingExtras(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(entries))

	for i, e := range entries {
		require.Equal(t, ExtResFrameCode(e.Code), decoded[i].Code)
		if len(e.Data) == 0 {
			require.Empty(t, decoded[i].Data)
		} else {
			require.Equal(t, e.Data, decoded[i].Data)
		}
	}
}

func TestFramingExtras_LongPayloadEscapes(t *testing.T) {
	long := make([]byte, 40)
	for i := range long {
		long[i] = byte(i)
	}
	entries := []ReqFramingExtra{{Code: ExtReqFrameCodeOtelContext, Data: long}}

	encoded := encodeFramingExtras(entries)
	decoded, err := decodeFramingExtras(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Equal(t, long, decoded[0].Data)
}

func TestFindFramingExtra(t *testing.T) {
	extras := []FramingExtra{
		{Code: ExtResFrameCodeServerDuration, Data: []byte{0x01}},
		{Code: ExtResFrameCodeReadUnits, Data: []byte{0x02}},
	}

	data, ok := FindFramingExtra(extras, ExtResFrameCodeReadUnits)
	require.True(t, ok)
	require.Equal(t, []byte{0x02}, data)

	_, ok = FindFramingExtra(extras, ExtResFrameCodeThrottleDuration)
	require.False(t, ok)
}
