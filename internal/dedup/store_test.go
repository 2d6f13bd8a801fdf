package dedup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "rvc010:ETHUSDT:15m:lastTs")
	require.NoError(t, err)
	assert.False(t, ok, "missing key should be absent")

	require.NoError(t, s.Set(ctx, "rvc010:ETHUSDT:15m:lastTs", 1700000899999))
	v, ok, err := s.Get(ctx, "rvc010:ETHUSDT:15m:lastTs")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1700000899999), v)

	require.NoError(t, s.Set(ctx, "rvc010:ETHUSDT:15m:lastTs", 1700001799999))
	v, _, err = s.Get(ctx, "rvc010:ETHUSDT:15m:lastTs")
	require.NoError(t, err)
	assert.Equal(t, int64(1700001799999), v, "set should overwrite")

	_, ok, err = s.Get(ctx, "rvc010:BTCUSDT:15m:lastTs")
	require.NoError(t, err)
	assert.False(t, ok, "keys are independent")
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	testStoreContract(t, s)
	assert.Equal(t, 1, s.Len())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	s := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	defer s.Close()

	testStoreContract(t, s)

	raw, err := mr.Get("rvc010:ETHUSDT:15m:lastTs")
	require.NoError(t, err)
	assert.Equal(t, "1700001799999", raw)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(context.Background(), RedisConfig{URL: "redis://" + mr.Addr(), Prefix: "stocktrack:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), "k", 7))
	assert.True(t, mr.Exists("stocktrack:k"))
}

func TestRedisStore_ConnectFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(context.Background(), RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestRedisStore_NonIntegerValue(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.Set("bad", "not-a-number")

	s := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	defer s.Close()

	_, _, err := s.Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestSQLStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "dedup.db"))
	require.NoError(t, err)
	defer s.Close()

	testStoreContract(t, s)
}

func TestSQLStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "k", 42))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)
}

func TestSQLStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "dedup.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	testStoreContract(t, s)
}
