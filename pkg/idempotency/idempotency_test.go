package idempotency

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	key := "checkout:" + uuid.NewString()

	got, err := s.Reserve(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.Reserve(ctx, key)
	assert.ErrorIs(t, err, ErrInFlight)

	require.NoError(t, s.Release(ctx, key))
	got, err = s.Reserve(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Complete(ctx, key, "order-1"))
	got, err = s.Reserve(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "order-1", got)

	// completed keys survive a release
	require.NoError(t, s.Release(ctx, key))
	got, err = s.Reserve(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "order-1", got)
}

func exerciseConcurrentReserve(t *testing.T, s Store) {
	key := "race:" + uuid.NewString()
	var owners, inflight atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Reserve(context.Background(), key)
			switch {
			case err == nil && got == "":
				owners.Add(1)
			case err == ErrInFlight:
				inflight.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, owners.Load())
	assert.EqualValues(t, 19, inflight.Load())
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Minute))
	exerciseConcurrentReserve(t, NewMemoryStore(time.Minute))
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.Reserve(context.Background(), "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	got, err := s.Reserve(context.Background(), "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_SweepsExpiredKeys(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_, err := s.Reserve(ctx, k)
		require.NoError(t, err)
	}
	require.NoError(t, s.Complete(ctx, "b", "order-1"))
	assert.Equal(t, 3, s.Len())

	now = now.Add(2 * time.Minute)
	_, err := s.Reserve(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	got, err := s.Reserve(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := NewRedisClient(context.Background(), addr, os.Getenv("REDIS_PASSWORD"))
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.Close()

	s := NewRedisStore(client, time.Minute)
	exerciseStore(t, s)
	exerciseConcurrentReserve(t, s)
}
