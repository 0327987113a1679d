// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

// ExtReqFrameCode identifies a request-side extended framing entry (§3).
type ExtReqFrameCode uint8

const (
	ExtReqFrameCodeBarrier     ExtReqFrameCode = 0x00
	ExtReqFrameCodeDurability  ExtReqFrameCode = 0x01
	ExtReqFrameCodeStreamID    ExtReqFrameCode = 0x02
	ExtReqFrameCodeOtelContext ExtReqFrameCode = 0x03
	ExtReqFrameCodeOnBehalfOf  ExtReqFrameCode = 0x04
	ExtReqFrameCodePreserveTTL ExtReqFrameCode = 0x05
	ExtReqFrameCodeExtraPerm   ExtReqFrameCode = 0x06
)

// ExtResFrameCode identifies a response-side extended framing entry (§3).
type ExtResFrameCode uint8

const (
	ExtResFrameCodeServerDuration   ExtResFrameCode = 0x00
	ExtResFrameCodeReadUnits        ExtResFrameCode = 0x01
	ExtResFrameCodeWriteUnits       ExtResFrameCode = 0x02
	ExtResFrameCodeThrottleDuration ExtResFrameCode = 0x03
)

// FramingExtra is one decoded TLV entry from the flexible-framing-extras
// section of a packet. Data is kept as opaque bytes per the §9 open
// question on server-duration encoding: callers that know how to decode a
// specific code do so themselves via a generic accessor rather than this
// package hard-coding one format.
type FramingExtra struct {
	Code ExtResFrameCode
	Data []byte
}

// ReqFramingExtra is one encoded TLV entry to place in a request's
// flexible-framing-extras section.
type ReqFramingExtra struct {
	Code ExtReqFrameCode
	Data []byte
}

// encodeFramingExtras appends the compact TLV encoding described in §3:
// each entry is a 4-bit code / 4-bit length nibble pair followed (for
// len==15) by an escape byte, followed by the payload. Lengths under 15
// fit directly in the nibble.
func encodeFramingExtras(entries []ReqFramingExtra) []byte {
	var out []byte
	for _, e := range entries {
		out = appendFramingEntry(out, uint8(e.Code), e.Data)
	}
	return out
}

func appendFramingEntry(out []byte, code uint8, data []byte) []byte {
	l := len(data)
	codeNibble := code
	lenNibble := uint8(l)
	if code >= 15 {
		codeNibble = 15
	}
	if l >= 15 {
		lenNibble = 15
	}
	out = append(out, (codeNibble<<4)|lenNibble)
	if code >= 15 {
		out = append(out, code-15)
	}
	if l >= 15 {
		out = append(out, uint8(l-15))
	}
	out = append(out, data...)
	return out
}

// decodeFramingExtras parses the response-side flexible-framing-extras
// blob into a sequence of opaque TLV entries. Unknown codes round-trip
// as-is (§8 invariant).
func decodeFramingExtras(buf []byte) ([]FramingExtra, error) {
	var out []FramingExtra
	for len(buf) > 0 {
		b := buf[0]
		buf = buf[1:]
		code := uint8(b >> 4)
		length := uint8(b & 0x0f)

		if code == 15 {
			if len(buf) < 1 {
				return nil, ErrorClass.New("truncated framing extra escape code")
			}
			code = 15 + buf[0]
			buf = buf[1:]
		}
		if length == 15 {
			if len(buf) < 1 {
				return nil, ErrorClass.New("truncated framing extra escape length")
			}
			length = 15 + buf[0]
			buf = buf[1:]
		}

		if len(buf) < int(length) {
			return nil, ErrorClass.New("truncated framing extra payload")
		}

		data := make([]byte, length)
		copy(data, buf[:length])
		buf = buf[length:]

		out = append(out, FramingExtra{Code: ExtResFrameCode(code), Data: data})
	}
	return out, nil
}

// FindFramingExtra returns the first matching entry's data, used by
// callers that want to opportunistically read a known extended-frame
// code (e.g. server-duration) without the codec hard-decoding it.
func FindFramingExtra(extras []FramingExtra, code ExtResFrameCode) ([]byte, bool) {
	for _, e := range extras {
		if e.Code == code {
			return e.Data, true
		}
	}
	return nil, false
}
