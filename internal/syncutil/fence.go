// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package syncutil holds small concurrency primitives used by the KV
// client pool.
package syncutil

import (
	"context"
	"sync"
)

// Fence is a one-shot gate: any number of goroutines can Wait on it
// before it opens; Release wakes every current and future waiter exactly
// once. Used by the KV client pool to let callers block until the pool
// has produced its first healthy connection.
type Fence struct {
	once     sync.Once
	released chan struct{}
	initOnce sync.Once
}

func (fence *Fence) init() {
	fence.initOnce.Do(func() {
		fence.released = make(chan struct{})
	})
}

// Release opens the fence. Calling it more than once has no further
// effect.
func (fence *Fence) Release() {
	fence.init()
	fence.once.Do(func() {
		close(fence.released)
	})
}

// Wait blocks until Release is called or ctx is done, returning false in
// the latter case.
func (fence *Fence) Wait(ctx context.Context) bool {
	fence.init()
	select {
	case <-fence.released:
		return true
	case <-ctx.Done():
		return false
	}
}

// Released reports whether the fence has already been released, without
// blocking.
func (fence *Fence) Released() bool {
	fence.init()
	select {
	case <-fence.released:
		return true
	default:
		return false
	}
}
