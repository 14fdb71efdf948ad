package dedup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStore(client)
}

// failingFastStore always errors, simulating a Redis outage.
type failingFastStore struct{}

func (failingFastStore) SetIfAbsent(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

// memDurable is an in-memory stand-in for the Postgres claims table.
type memDurable struct {
	mu     sync.Mutex
	claims map[string]bool
	err    error
}

func (m *memDurable) InsertClaim(_ context.Context, shopID, eventType, nonce string, _ time.Time) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims == nil {
		m.claims = make(map[string]bool)
	}
	key := shopID + "/" + eventType + "/" + nonce
	if m.claims[key] {
		return false, nil
	}
	m.claims[key] = true
	return true, nil
}

func TestClaimFastPath(t *testing.T) {
	_, store := setupTestRedis(t)
	guard := NewGuard(store, nil, Options{TTL: time.Hour}, nil)
	ctx := context.Background()

	first, err := guard.Claim(ctx, "shop-1", "checkout_completed", "ev-1")
	require.NoError(t, err)
	assert.False(t, first.IsReplay)
	assert.Equal(t, PathFast, first.Path)

	second, err := guard.Claim(ctx, "shop-1", "checkout_completed", "ev-1")
	require.NoError(t, err)
	assert.True(t, second.IsReplay)
	assert.Equal(t, PathFast, second.Path)
}

func TestClaimScoping(t *testing.T) {
	_, store := setupTestRedis(t)
	guard := NewGuard(store, nil, Options{TTL: time.Hour}, nil)
	ctx := context.Background()

	base, err := guard.Claim(ctx, "shop-1", "checkout_completed", "ev-1")
	require.NoError(t, err)
	require.False(t, base.IsReplay)

	t.Run("different shop is independent", func(t *testing.T) {
		c, err := guard.Claim(ctx, "shop-2", "checkout_completed", "ev-1")
		require.NoError(t, err)
		assert.False(t, c.IsReplay)
	})

	t.Run("different event type is independent", func(t *testing.T) {
		c, err := guard.Claim(ctx, "shop-1", "checkout_started", "ev-1")
		require.NoError(t, err)
		assert.False(t, c.IsReplay)
	})

	t.Run("different id is independent", func(t *testing.T) {
		c, err := guard.Claim(ctx, "shop-1", "checkout_completed", "ev-2")
		require.NoError(t, err)
		assert.False(t, c.IsReplay)
	})
}

func TestClaimExpiry(t *testing.T) {
	mr, store := setupTestRedis(t)
	guard := NewGuard(store, nil, Options{TTL: time.Minute}, nil)
	ctx := context.Background()

	first, err := guard.Claim(ctx, "shop-1", "checkout_completed", "ev-1")
	require.NoError(t, err)
	require.False(t, first.IsReplay)

	mr.FastForward(2 * time.Minute)

	// Expired claim is reusable by a later event.
	again, err := guard.Claim(ctx, "shop-1", "checkout_completed", "ev-1")
	require.NoError(t, err)
	assert.False(t, again.IsReplay)
}

func TestClaimTTLByEventType(t *testing.T) {
	mr, store := setupTestRedis(t)
	guard := NewGuard(store, nil, Options{
		TTL:            time.Hour,
		TTLByEventType: map[string]time.Duration{"page_viewed": time.Minute},
	}, nil)
	ctx := context.Background()

	_, err := guard.Claim(ctx, "shop-1", "page_viewed", "ev-1")
	require.NoError(t, err)
	_, err = guard.Claim(ctx, "shop-1", "checkout_completed", "ev-1")
	require.NoError(t, err)

	mr.FastForward(10 * time.Minute)

	pv, err := guard.Claim(ctx, "shop-1", "page_viewed", "ev-1")
	require.NoError(t, err)
	assert.False(t, pv.IsReplay, "short-TTL claim should have expired")

	cc, err := guard.Claim(ctx, "shop-1", "checkout_completed", "ev-1")
	require.NoError(t, err)
	assert.True(t, cc.IsReplay, "long-TTL claim should still hold")
}

func TestClaimConcurrentSingleWinner(t *testing.T) {
	_, store := setupTestRedis(t)
	guard := NewGuard(store, nil, Options{TTL: time.Hour}, nil)
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	var winners atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := guard.Claim(ctx, "shop-1", "checkout_completed", "contested")
			if err == nil && !c.IsReplay {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load(), "exactly one concurrent claim must win")
}

func TestClaimDurableFallback(t *testing.T) {
	durable := &memDurable{}
	guard := NewGuard(failingFastStore{}, durable, Options{TTL: time.Hour}, nil)
	ctx := context.Background()

	first, err := guard.Claim(ctx, "shop-1", "checkout_completed", "ev-1")
	require.NoError(t, err)
	assert.False(t, first.IsReplay)
	assert.Equal(t, PathDurable, first.Path)

	second, err := guard.Claim(ctx, "shop-1", "checkout_completed", "ev-1")
	require.NoError(t, err)
	assert.True(t, second.IsReplay)
	assert.Equal(t, PathDurable, second.Path)
}

func TestClaimDegradedPolicies(t *testing.T) {
	ctx := context.Background()
	degradedDurable := &memDurable{err: errors.New("db down")}

	t.Run("fail open by default", func(t *testing.T) {
		guard := NewGuard(failingFastStore{}, degradedDurable, Options{TTL: time.Hour}, nil)
		c, err := guard.Claim(ctx, "shop-1", "checkout_completed", "ev-1")
		require.NoError(t, err)
		assert.False(t, c.IsReplay)
		assert.Equal(t, PathFailOpen, c.Path)
	})

	t.Run("fail closed suppresses the claim", func(t *testing.T) {
		guard := NewGuard(failingFastStore{}, degradedDurable, Options{
			TTL:    time.Hour,
			Policy: Policy{OnStoreError: FailClosed},
		}, nil)
		c, err := guard.Claim(ctx, "shop-1", "checkout_completed", "ev-1")
		require.NoError(t, err)
		assert.True(t, c.IsReplay)
		assert.Equal(t, PathFailClosed, c.Path)
	})

	t.Run("no stores at all fails open", func(t *testing.T) {
		guard := NewGuard(nil, nil, Options{TTL: time.Hour}, nil)
		c, err := guard.Claim(ctx, "shop-1", "checkout_completed", "ev-1")
		require.NoError(t, err)
		assert.False(t, c.IsReplay)
		assert.Equal(t, PathFailOpen, c.Path)
	})
}

func TestRedisStorePublishAndGet(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	set, err := store.SetIfAbsent(ctx, "k", "v", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	missing, err := store.Get(ctx, "absent")
	require.NoError(t, err)
	assert.Empty(t, missing)

	assert.NoError(t, store.Publish(ctx, "events:accepted:shop-1", []byte(`{}`)))
}
