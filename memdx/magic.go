// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import "fmt"

// Magic is the first byte of every packet header. It distinguishes
// requests from responses and classic framing from flexible framing.
type Magic uint8

const (
	MagicReq       Magic = 0x80
	MagicRes       Magic = 0x81
	MagicReqExt    Magic = 0x08
	MagicResExt    Magic = 0x18
	MagicServerReq Magic = 0x82
	MagicServerRes Magic = 0x83
)

func (m Magic) IsRequest() bool {
	return m == MagicReq || m == MagicReqExt
}

func (m Magic) IsResponse() bool {
	return m == MagicRes || m == MagicResExt
}

func (m Magic) IsFlexible() bool {
	return m == MagicReqExt || m == MagicResExt
}

func (m Magic) String() string {
	switch m {
	case MagicReq:
		return "Req"
	case MagicRes:
		return "Res"
	case MagicReqExt:
		return "ReqExt"
	case MagicResExt:
		return "ResExt"
	case MagicServerReq:
		return "ServerReq"
	case MagicServerRes:
		return "ServerRes"
	default:
		return fmt.Sprintf("Magic(0x%02x)", uint8(m))
	}
}

func (m Magic) valid() bool {
	switch m {
	case MagicReq, MagicRes, MagicReqExt, MagicResExt, MagicServerReq, MagicServerRes:
		return true
	default:
		return false
	}
}
