// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"encoding/json"
)

// ErrMapAttribute is one of the server-defined classification tags an
// error-map entry can carry (e.g. "temp", "retry", "rate-limit").
type ErrMapAttribute string

const (
	ErrMapAttrSuccess        ErrMapAttribute = "success"
	ErrMapAttrItemOnly       ErrMapAttribute = "item-only"
	ErrMapAttrInvalidInput   ErrMapAttribute = "invalid-input"
	ErrMapAttrFetchConfig    ErrMapAttribute = "fetch-config"
	ErrMapAttrConnStateInval ErrMapAttribute = "conn-state-invalidated"
	ErrMapAttrAuth           ErrMapAttribute = "auth"
	ErrMapAttrSpecial        ErrMapAttribute = "special-handling"
	ErrMapAttrSupport        ErrMapAttribute = "support"
	ErrMapAttrTemp           ErrMapAttribute = "temp"
	ErrMapAttrInternal       ErrMapAttribute = "internal"
	ErrMapAttrRetry          ErrMapAttribute = "retry"
	ErrMapAttrRateLimit      ErrMapAttribute = "rate-limit"
	ErrMapAttrSubdoc         ErrMapAttribute = "subdoc"
	ErrMapAttrDcp            ErrMapAttribute = "dcp"
)

// ErrMapRetrySpec describes the server-recommended retry shape for an
// error code, when it supplies one.
type ErrMapRetrySpec struct {
	Strategy    string `json:"strategy"`
	Interval    int    `json:"interval"`
	After       int    `json:"after"`
	Ceiling     int    `json:"ceiling"`
	MaxDuration int    `json:"max-duration"`
}

// ErrMapEntry is a single code's classification within the error map.
type ErrMapEntry struct {
	Name       string            `json:"name"`
	Desc       string            `json:"desc"`
	Attrs      []ErrMapAttribute `json:"attrs"`
	Retry      *ErrMapRetrySpec  `json:"retry,omitempty"`
}

// ErrMap is the parsed response of GetErrorMap (§6): a version plus a
// table from numeric status to its server-supplied classification.
type ErrMap struct {
	Version  int                             `json:"version"`
	Revision int                             `json:"revision"`
	Errors   map[string]ErrMapEntry          `json:"errors"`
}

// ParseErrMap decodes the JSON document returned by GetErrorMap.
func ParseErrMap(body []byte) (*ErrMap, error) {
	var m ErrMap
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, &ProtocolError{Message: "invalid error map", Cause: err}
	}
	return &m, nil
}

// Lookup returns the entry for a status code, if the map has one.
func (m *ErrMap) Lookup(status Status) (ErrMapEntry, bool) {
	if m == nil {
		return ErrMapEntry{}, false
	}
	hexKey := uint16ToHex(uint16(status))
	e, ok := m.Errors[hexKey]
	return e, ok
}

// HasAttribute reports whether the map classifies status with attr. A nil
// map or unknown status is treated as "not classified", not an error:
// callers fall back to whatever their built-in Status handling implies.
func (m *ErrMap) HasAttribute(status Status, attr ErrMapAttribute) bool {
	e, ok := m.Lookup(status)
	if !ok {
		return false
	}
	for _, a := range e.Attrs {
		if a == attr {
			return true
		}
	}
	return false
}

func uint16ToHex(v uint16) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 4)
	for i := 3; i >= 0; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf)
}
