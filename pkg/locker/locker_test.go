package locker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_Exclusive(t *testing.T) {
	km := NewKeyedMutex()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock, err := km.Lock(context.Background(), ItemKey(1))
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}

	wg.Wait()
	assert.EqualValues(t, 1, maxSeen)
	assert.Equal(t, 0, km.size())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := NewKeyedMutex()

	unlock1, err := km.Lock(context.Background(), ItemKey(1))
	require.NoError(t, err)
	defer unlock1()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	unlock2, err := km.Lock(ctx, ItemKey(2))
	require.NoError(t, err)
	unlock2()
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	km := NewKeyedMutex()

	unlock, err := km.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = km.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, km.size())
}

func TestLockAll(t *testing.T) {
	km := NewKeyedMutex()

	unlock, err := LockAll(context.Background(), km, ItemKey(1), ItemKey(2), ItemKey(3))
	require.NoError(t, err)
	assert.Equal(t, 3, km.size())

	unlock()
	assert.Equal(t, 0, km.size())
}

func TestLockAll_ReleasesTakenOnFailure(t *testing.T) {
	km := NewKeyedMutex()

	held, err := km.Lock(context.Background(), ItemKey(3))
	require.NoError(t, err)
	defer held()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = LockAll(ctx, km, ItemKey(1), ItemKey(2), ItemKey(3))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, km.size())
}

func TestLockEach_ReleaseOrder(t *testing.T) {
	var released []int
	lock := func(i int) (func(), error) {
		return func() { released = append(released, i) }, nil
	}

	unlock, err := lockEach(3, lock)
	require.NoError(t, err)
	unlock()
	assert.Equal(t, []int{2, 1, 0}, released)

	released = nil
	_, err = lockEach(3, func(i int) (func(), error) {
		if i == 2 {
			return nil, model.ErrConflict
		}
		return lock(i)
	})
	require.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, []int{1, 0}, released)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedis_LockUnlock(t *testing.T) {
	mr, client := newRedis(t)
	l := &Redis{Client: client, TTL: time.Second, Wait: 50 * time.Millisecond, Poll: 5 * time.Millisecond}

	unlock, err := l.Lock(context.Background(), ItemKey(7))
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:item:7"))

	_, err = l.Lock(context.Background(), ItemKey(7))
	assert.ErrorIs(t, err, model.ErrConflict)

	unlock()
	assert.False(t, mr.Exists("lock:item:7"))

	unlock, err = l.Lock(context.Background(), ItemKey(7))
	require.NoError(t, err)
	unlock()
}

func TestRedis_ReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newRedis(t)
	l := &Redis{Client: client, TTL: time.Second, Wait: 0}

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	// our lock expired and somebody else took the key
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("lock:k", "someone-else"))

	unlock()

	got, err := mr.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestMulti(t *testing.T) {
	mr, client := newRedis(t)
	km := NewKeyedMutex()
	l := Multi{km, &Redis{Client: client, TTL: time.Second}}

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:k"))
	assert.Equal(t, 1, km.size())

	unlock()
	assert.False(t, mr.Exists("lock:k"))
	assert.Equal(t, 0, km.size())
}

func TestMulti_ReleasesTakenOnFailure(t *testing.T) {
	mr, client := newRedis(t)
	km := NewKeyedMutex()
	l := Multi{km, &Redis{Client: client, TTL: time.Second}}

	require.NoError(t, mr.Set("lock:k", "someone-else"))

	_, err := l.Lock(context.Background(), "k")
	require.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, 0, km.size())
}
