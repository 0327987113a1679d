// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"github.com/golang/snappy"
)

// CompressionOptions gates when an outbound value is snappy-compressed
// before being placed on the wire (§4.4). Compression is skipped below
// MinSize, and the compressed form is discarded in favour of the raw
// value whenever it doesn't beat MinRatio.
type CompressionOptions struct {
	Enabled  bool
	MinSize  int
	MinRatio float64
}

// DefaultCompressionOptions matches the teacher's convention of a
// constructor per option struct rather than hand-built zero values at
// every call site.
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		Enabled:  true,
		MinSize:  32,
		MinRatio: 0.83,
	}
}

// MaybeCompress conditionally snappy-compresses value, returning the
// (possibly unchanged) bytes to place on the wire and whether the Snappy
// datatype bit should be set.
func (o CompressionOptions) MaybeCompress(value []byte) ([]byte, bool) {
	if !o.Enabled || len(value) < o.MinSize {
		return value, false
	}

	compressed := snappy.Encode(nil, value)
	ratio := float64(len(compressed)) / float64(len(value))
	if ratio > o.MinRatio {
		return value, false
	}

	return compressed, true
}

// Decompress reverses MaybeCompress for a value whose datatype carries
// the Snappy bit.
func Decompress(value []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, value)
	if err != nil {
		return nil, &ProtocolError{Message: "invalid snappy payload", Cause: err}
	}
	return out, nil
}
