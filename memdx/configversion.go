// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

// ConfigVersion is the (rev_epoch, rev_id) pair cluster configs are
// ordered by (§3): compare by epoch first, then rev_id.
type ConfigVersion struct {
	RevEpoch int64
	RevID    int64
}

// NewerThan reports whether v strictly dominates other, per the manager's
// monotonicity invariant (§3, §4.7).
func (v ConfigVersion) NewerThan(other ConfigVersion) bool {
	if v.RevEpoch != other.RevEpoch {
		return v.RevEpoch > other.RevEpoch
	}
	return v.RevID > other.RevID
}
