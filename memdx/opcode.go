// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import "fmt"

// OpCode identifies the operation a packet carries.
type OpCode uint8

const (
	OpCodeGet              OpCode = 0x00
	OpCodeSet              OpCode = 0x01
	OpCodeAdd              OpCode = 0x02
	OpCodeReplace          OpCode = 0x03
	OpCodeDelete           OpCode = 0x04
	OpCodeIncrement        OpCode = 0x05
	OpCodeDecrement        OpCode = 0x06
	OpCodeAppend           OpCode = 0x0e
	OpCodePrepend          OpCode = 0x0f
	OpCodeTouch            OpCode = 0x1c
	OpCodeGAT              OpCode = 0x1d
	OpCodeHello            OpCode = 0x1f
	OpCodeSASLListMechs    OpCode = 0x20
	OpCodeSASLAuth         OpCode = 0x21
	OpCodeSASLStep         OpCode = 0x22
	OpCodeSelectBucket     OpCode = 0x89
	OpCodeGetLocked        OpCode = 0x94
	OpCodeUnlockKey        OpCode = 0x95
	OpCodeGetMeta          OpCode = 0xa0
	OpCodeGetClusterConfig OpCode = 0xb5
	OpCodeGetCollectionID  OpCode = 0xbb
	OpCodeGetErrorMap      OpCode = 0xfe
)

var opCodeNames = map[OpCode]string{
	OpCodeGet:              "Get",
	OpCodeSet:               "Set",
	OpCodeAdd:               "Add",
	OpCodeReplace:           "Replace",
	OpCodeDelete:            "Delete",
	OpCodeIncrement:         "Increment",
	OpCodeDecrement:         "Decrement",
	OpCodeAppend:            "Append",
	OpCodePrepend:           "Prepend",
	OpCodeTouch:             "Touch",
	OpCodeGAT:               "GAT",
	OpCodeHello:             "Hello",
	OpCodeSASLListMechs:     "SASLListMechs",
	OpCodeSASLAuth:          "SASLAuth",
	OpCodeSASLStep:          "SASLStep",
	OpCodeSelectBucket:      "SelectBucket",
	OpCodeGetLocked:         "GetLocked",
	OpCodeUnlockKey:         "UnlockKey",
	OpCodeGetMeta:           "GetMeta",
	OpCodeGetClusterConfig:  "GetClusterConfig",
	OpCodeGetCollectionID:   "GetCollectionID",
	OpCodeGetErrorMap:       "GetErrorMap",
}

func (c OpCode) String() string {
	if name, ok := opCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("OpCode(0x%02x)", uint8(c))
}
