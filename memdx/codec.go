// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"encoding/binary"
)

// HeaderSize is the fixed 24-byte memcached binary-protocol header (§3).
const HeaderSize = 24

// MaxBodySize guards against a corrupt total-body-length field making the
// decoder wait forever for an unreasonably large frame.
const MaxBodySize = 20 * 1024 * 1024

// Encode serialises a packet into its complete wire representation:
// header followed by framing-extras, extras, key, and value (§3). All
// multi-byte header fields are big-endian.
func Encode(p *Packet) []byte {
	// Only the Req/Res extended magics use the flexible layout; server
	// push frames (ServerReq/ServerRes) are always classic framing.
	flexible := p.Magic == MagicReqExt || p.Magic == MagicResExt

	framingLen := len(p.FramingExtras)
	keyLen := len(p.Key)
	extrasLen := len(p.Extras)
	valueLen := len(p.Value)

	totalBody := framingLen + extrasLen + keyLen + valueLen

	out := make([]byte, HeaderSize, HeaderSize+totalBody)

	out[0] = byte(p.Magic)
	out[1] = byte(p.OpCode)

	if flexible {
		out[2] = byte(framingLen)
		out[3] = byte(keyLen)
	} else {
		binary.BigEndian.PutUint16(out[2:4], uint16(keyLen))
	}

	out[4] = byte(extrasLen)
	out[5] = byte(p.Datatype)

	if p.Magic.IsRequest() {
		binary.BigEndian.PutUint16(out[6:8], p.VbucketID)
	} else {
		binary.BigEndian.PutUint16(out[6:8], uint16(p.Status))
	}

	binary.BigEndian.PutUint32(out[8:12], uint32(totalBody))
	binary.BigEndian.PutUint32(out[12:16], p.Opaque)
	binary.BigEndian.PutUint64(out[16:24], p.Cas)

	out = append(out, p.FramingExtras...)
	out = append(out, p.Extras...)
	out = append(out, p.Key...)
	out = append(out, p.Value...)

	return out
}

// Decode consumes exactly one packet from the front of buf. It returns
// (nil, buf, nil) when fewer bytes than a complete packet are present
// ("NeedMore" in spec.md §4.1 terms) so callers can feed it an
// incrementally filling buffer. On success it returns the parsed packet
// and the remaining, unconsumed tail of buf.
func Decode(buf []byte) (*Packet, []byte, error) {
	if len(buf) < HeaderSize {
		return nil, buf, nil
	}

	magic := Magic(buf[0])
	if !magic.valid() {
		return nil, buf, &ProtocolError{Message: "unknown magic"}
	}

	flexible := magic == MagicReqExt || magic == MagicResExt
	opcode := OpCode(buf[1])

	var framingLen, keyLen int
	if flexible {
		framingLen = int(buf[2])
		keyLen = int(buf[3])
	} else {
		keyLen = int(binary.BigEndian.Uint16(buf[2:4]))
	}

	extrasLen := int(buf[4])
	datatype := DataType(buf[5])
	statusOrVbucket := binary.BigEndian.Uint16(buf[6:8])
	totalBody := int(binary.BigEndian.Uint32(buf[8:12]))

	if totalBody > MaxBodySize {
		return nil, buf, &ProtocolError{Message: "total body length exceeds maximum"}
	}

	if len(buf) < HeaderSize+totalBody {
		return nil, buf, nil
	}

	opaque := binary.BigEndian.Uint32(buf[12:16])
	cas := binary.BigEndian.Uint64(buf[16:24])

	body := buf[HeaderSize : HeaderSize+totalBody]

	valueLen := totalBody - framingLen - extrasLen - keyLen
	if valueLen < 0 {
		return nil, buf, &ProtocolError{Message: "field lengths exceed total body length"}
	}

	p := &Packet{
		Magic:    magic,
		OpCode:   opcode,
		Datatype: datatype,
		Opaque:   opaque,
		Cas:      cas,
	}

	if magic.IsRequest() {
		p.VbucketID = statusOrVbucket
	} else {
		p.Status = Status(statusOrVbucket)
	}

	off := 0
	if framingLen > 0 {
		p.FramingExtras = cloneBytes(body[off : off+framingLen])
		off += framingLen
	}
	if extrasLen > 0 {
		p.Extras = cloneBytes(body[off : off+extrasLen])
		off += extrasLen
	}
	if keyLen > 0 {
		p.Key = cloneBytes(body[off : off+keyLen])
		off += keyLen
	}
	if valueLen > 0 {
		p.Value = cloneBytes(body[off : off+valueLen])
	}

	return p, buf[HeaderSize+totalBody:], nil
}
