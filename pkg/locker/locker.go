// Package locker provides per-key critical sections for the item being
// reserved. Locks are held only around one check-then-write sequence.
package locker

import (
	"context"
	"strconv"
	"sync"
)

// Locker acquires an exclusive lock for key. The returned func releases it and
// is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ItemKey is the lock key used for everything touching the item's stock or bookings.
func ItemKey(itemID int64) string {
	return "item:" + strconv.FormatInt(itemID, 10)
}

// KeyedMutex is an in-process Locker. Mutexes are created on demand and
// dropped when nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*refMutex)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{ch: make(chan struct{}, 1)}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	select {
	case m.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, m)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-m.ch
			k.release(key, m)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, m *refMutex) {
	k.mu.Lock()
	defer k.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(k.locks, key)
	}
}

// size is the number of keys currently tracked.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// Multi takes the locks of every Locker in order and releases them in reverse.
type Multi []Locker

func (ms Multi) Lock(ctx context.Context, key string) (func(), error) {
	return lockEach(len(ms), func(i int) (func(), error) {
		return ms[i].Lock(ctx, key)
	})
}

// LockAll locks every key in the given order and returns a func releasing
// all of them. Callers pass keys sorted so that concurrent LockAll calls
// can't deadlock.
func LockAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	return lockEach(len(keys), func(i int) (func(), error) {
		return l.Lock(ctx, keys[i])
	})
}

// lockEach takes n locks in order. If one fails, those already taken are
// released in reverse order.
func lockEach(n int, lock func(i int) (func(), error)) (func(), error) {
	unlocks := make([]func(), 0, n)
	unlockAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for i := range n {
		unlock, err := lock(i)
		if err != nil {
			unlockAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}

	return unlockAll, nil
}
