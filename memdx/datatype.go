// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

// DataType is the bitfield carried in the packet header describing how the
// value is encoded.
type DataType uint8

const (
	DataTypeRaw      DataType = 0x00
	DataTypeJSON     DataType = 0x01
	DataTypeSnappy   DataType = 0x02
	DataTypeXattr    DataType = 0x04
)

func (d DataType) HasJSON() bool   { return d&DataTypeJSON != 0 }
func (d DataType) HasSnappy() bool { return d&DataTypeSnappy != 0 }
func (d DataType) HasXattr() bool  { return d&DataTypeXattr != 0 }
