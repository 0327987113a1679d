// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package cbconfig

import (
	"encoding/json"

	"github.com/zeebo/errs"
)

// ErrorClass roots every error this package returns.
var ErrorClass = errs.Class("cbconfig")

// Parse decodes a GET_CLUSTER_CONFIG response body into a TerseConfig. An
// empty body fails to decode and returns an error; callers (the config
// watcher) check for an empty body, meaning "server reports no newer
// config", before calling Parse.
func Parse(body []byte) (*TerseConfig, error) {
	var cfg TerseConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, ErrorClass.Wrap(err)
	}
	return &cfg, nil
}
