// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import "fmt"

// Status is the 16-bit response status field. On requests the same wire
// position carries the vbucket id instead; see Packet.
type Status uint16

const (
	StatusSuccess              Status = 0x00
	StatusKeyNotFound          Status = 0x01
	StatusKeyExists            Status = 0x02
	StatusTooBig               Status = 0x03
	StatusInvalidArgs          Status = 0x04
	StatusNotStored            Status = 0x05
	StatusDeltaBadval          Status = 0x06
	StatusNotMyVbucket         Status = 0x07
	StatusNoBucket             Status = 0x08
	StatusLocked               Status = 0x09
	StatusAuthStale            Status = 0x1f
	StatusAuthError            Status = 0x20
	StatusAuthContinue         Status = 0x21
	StatusRangeError           Status = 0x22
	StatusRollback             Status = 0x23
	StatusAccessError          Status = 0x24
	StatusNotInitialized       Status = 0x25
	StatusRateLimitedNetwork   Status = 0x30
	StatusRateLimitedOps       Status = 0x31
	StatusUnknownCommand       Status = 0x81
	StatusOutOfMemory          Status = 0x82
	StatusNotSupported         Status = 0x83
	StatusInternalError        Status = 0x84
	StatusBusy                 Status = 0x85
	StatusTmpFail              Status = 0x86
	StatusDurabilityInvalidLevel    Status = 0xa0
	StatusDurabilityImpossible      Status = 0xa1
	StatusSyncWriteInProgress       Status = 0xa2
	StatusSyncWriteAmbiguous        Status = 0xa3
	StatusSyncWriteReCommitInProgress Status = 0xa4
	StatusRangeScanCancelled        Status = 0xa5
	StatusRangeScanMore             Status = 0xa6
	StatusRangeScanComplete         Status = 0xa7
	StatusUnknownCollection         Status = 0x88
	StatusUnknownScope              Status = 0x8c
	StatusCollectionsNotEnabled     Status = 0x89
	StatusNoCollectionsManifest     Status = 0x8a
	StatusCannotApplyCollectionsManifest Status = 0x8b
	StatusServerError               Status = 0xff
	StatusSubDocPathNotFound         Status = 0xc0
	StatusSubDocPathMismatch         Status = 0xc1
	StatusSubDocPathInvalid          Status = 0xc2
	StatusSubDocPathTooBig           Status = 0xc3
	StatusSubDocDocTooDeep           Status = 0xc4
	StatusSubDocCantInsert           Status = 0xc5
	StatusSubDocNotJSON              Status = 0xc6
	StatusSubDocBadRange             Status = 0xc7
	StatusSubDocBadDelta             Status = 0xc8
	StatusSubDocPathExists           Status = 0xc9
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusKeyNotFound:
		return "KeyNotFound"
	case StatusKeyExists:
		return "KeyExists"
	case StatusTooBig:
		return "TooBig"
	case StatusNotMyVbucket:
		return "NotMyVbucket"
	case StatusNoBucket:
		return "NoBucket"
	case StatusLocked:
		return "Locked"
	case StatusAuthError:
		return "AuthError"
	case StatusAccessError:
		return "AccessError"
	case StatusUnknownCommand:
		return "UnknownCommand"
	case StatusTmpFail:
		return "TmpFail"
	case StatusDurabilityInvalidLevel:
		return "DurabilityInvalidLevel"
	case StatusDurabilityImpossible:
		return "DurabilityImpossible"
	case StatusSyncWriteInProgress:
		return "SyncWriteInProgress"
	case StatusSyncWriteAmbiguous:
		return "SyncWriteAmbiguous"
	case StatusUnknownCollection:
		return "UnknownCollection"
	case StatusUnknownScope:
		return "UnknownScope"
	case StatusCollectionsNotEnabled:
		return "CollectionsNotEnabled"
	default:
		return fmt.Sprintf("Status(0x%02x)", uint16(s))
	}
}
