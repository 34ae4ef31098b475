// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"sync"
)

// tableKey identifies one logical session: a name on an endpoint.
type tableKey struct {
	endpoint string
	name     string
}

// keyedLocks serializes lifecycle operations per tableKey. Distinct
// keys never contend. Acquisition honors context cancellation, so a
// caller stuck behind a long statement can give up.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[tableKey]*keyLock
}

type keyLock struct {
	token chan struct{}
	refs  int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[tableKey]*keyLock)}
}

// acquire blocks until the lock for key is held or ctx is done. The
// returned function releases the lock and must be called exactly once.
func (k *keyedLocks) acquire(ctx context.Context, key tableKey) (func(), error) {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyLock{token: make(chan struct{}, 1)}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	select {
	case lock.token <- struct{}{}:
		return func() {
			<-lock.token
			k.release(key, lock)
		}, nil
	case <-ctx.Done():
		k.release(key, lock)
		return nil, ctx.Err()
	}
}

func (k *keyedLocks) release(key tableKey, lock *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(k.locks, key)
	}
}

// held returns the number of keys with a holder or waiter.
func (k *keyedLocks) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
