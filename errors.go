// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import "github.com/zeebo/errs"

// ErrorClass roots every error this package returns directly (errors
// from memdx and cbconfig keep their own classes and are wrapped, not
// re-rooted).
var ErrorClass = errs.Class("gocbcorex")
