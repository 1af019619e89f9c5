package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(&Config{Addr: mr.Addr()})
	t.Cleanup(func() { _ = Close(client) })
	return mr, client
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := Connect(context.Background(), &Config{Addr: addr})
	require.NoError(t, err)
	assert.NoError(t, Close(client))

	mr.Close()
	_, err = Connect(context.Background(), &Config{Addr: addr})
	assert.Error(t, err)
	assert.NoError(t, Close(nil))
}

func TestPublishToStream_ConvertsValues(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	id, err := PublishToStream(ctx, client, "fms:test", map[string]interface{}{
		"name":  "AMK_D_L-1_C41_LA1",
		"floor": -1,
		"ok":    true,
		"area":  map[string]int{"capacity": 2},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "fms:test", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "AMK_D_L-1_C41_LA1", msgs[0].Values["name"])
	assert.Equal(t, "-1", msgs[0].Values["floor"])
	assert.Equal(t, "true", msgs[0].Values["ok"])
	assert.Equal(t, `{"capacity":2}`, msgs[0].Values["area"])
}

func TestEventPublisher_Publish(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	p := NewEventPublisher(client, "fms:resource-events")
	require.NoError(t, p.Publish(ctx, "reservation.scheduled", map[string]any{"subarea_id": 3}))

	msgs, err := client.XRange(ctx, "fms:resource-events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "reservation.scheduled", msgs[0].Values["event"])

	var data map[string]int
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &data))
	assert.Equal(t, 3, data["subarea_id"])
}

func TestLocker_MutualExclusion(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	locker := NewLocker(client, "fms:lock:subarea:", 5*time.Second)
	locker.wait = 100 * time.Millisecond

	unlock, err := locker.Lock(ctx, "7")
	require.NoError(t, err)
	assert.True(t, mr.Exists("fms:lock:subarea:7"))

	_, err = locker.Lock(ctx, "7")
	assert.True(t, errors.Is(err, ErrLockNotAcquired))

	// 其它子区域不受影响
	unlockOther, err := locker.Lock(ctx, "8")
	require.NoError(t, err)
	unlockOther()

	unlock()
	assert.False(t, mr.Exists("fms:lock:subarea:7"))

	unlock, err = locker.Lock(ctx, "7")
	require.NoError(t, err)
	unlock()
}

func TestLocker_WaitsForRelease(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	locker := NewLocker(client, "fms:lock:subarea:", 5*time.Second)

	unlock, err := locker.Lock(ctx, "7")
	require.NoError(t, err)

	released := make(chan struct{})
	go func() {
		time.Sleep(120 * time.Millisecond)
		unlock()
		close(released)
	}()

	unlockSecond, err := locker.Lock(ctx, "7")
	require.NoError(t, err)
	<-released
	unlockSecond()
}

func TestLocker_ContextCancelled(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewLocker(client, "fms:lock:subarea:", 5*time.Second)

	_, err := locker.Lock(context.Background(), "7")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "7")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLocker_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	locker := NewLocker(client, "lock:", time.Second)

	_, err := locker.Lock(ctx, "a")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	unlock, err := locker.Lock(ctx, "a")
	require.NoError(t, err)
	unlock()
}

func TestRedisKV_GetSet(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	kv := NewRedisKV(client)

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}
