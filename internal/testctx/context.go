// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package testctx provides a context.Context wired to testing.T that
// manages background goroutines and scratch directories for a single
// test (grounded on the teacher's internal/testcontext helper).
package testctx

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// Context extends context.Context with goroutine tracking and a
// per-test scratch directory.
type Context struct {
	context.Context

	t      *testing.T
	cancel context.CancelFunc
	group  errgroup.Group
	dir    string
}

// New returns a Context derived from context.Background with no
// deadline, tied to t's lifetime.
func New(t *testing.T) *Context {
	return NewWithTimeout(t, 0)
}

// NewWithTimeout returns a Context that cancels itself after timeout (0
// means no timeout).
func NewWithTimeout(t *testing.T, timeout time.Duration) *Context {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	return &Context{
		Context: ctx,
		t:       t,
		cancel:  cancel,
		dir:     t.TempDir(),
	}
}

// Go runs fn in a tracked goroutine; Cleanup fails the test if any
// tracked goroutine returned an error.
func (ctx *Context) Go(fn func() error) {
	ctx.group.Go(fn)
}

// Dir returns the path of a subdirectory of this test's scratch
// directory; it does not create the subdirectory.
func (ctx *Context) Dir(elem ...string) string {
	dir := filepath.Join(append([]string{ctx.dir}, elem...)...)
	return dir
}

// File returns a path inside Dir(elem[:len(elem)-1]...) named
// elem[len(elem)-1].
func (ctx *Context) File(elem ...string) string {
	return filepath.Join(ctx.Dir(elem...))
}

// Cleanup cancels the context, waits for tracked goroutines, and reports
// any error they returned.
func (ctx *Context) Cleanup() {
	ctx.cancel()
	if err := ctx.group.Wait(); err != nil {
		ctx.t.Fatal(err)
	}
}
