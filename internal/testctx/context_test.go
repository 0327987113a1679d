// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package testctx_test

import (
	"testing"
	"time"

	"github.com/couchbaselabs/gocbcorex/internal/testctx"
)

func TestBasic(t *testing.T) {
	ctx := testctx.New(t)
	defer ctx.Cleanup()

	ctx.Go(func() error {
		time.Sleep(time.Millisecond)
		return nil
	})

	t.Log(ctx.Dir("a", "b", "c"))
	t.Log(ctx.File("a", "w", "c.txt"))
}
