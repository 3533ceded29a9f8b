package redis

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestClientKeyNamespace(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })

	require.Equal(t, "basketbot:state:s1", Wrap(rdb, "").Key("state:s1"))
	require.Equal(t, "desk2:lock:session:s1", Wrap(rdb, "desk2").Key("lock:session:s1"))

	store := NewStateStore(Wrap(rdb, ""), 0)
	require.Equal(t, "basketbot:state:default", store.key("default"))
}

func TestHasPattern(t *testing.T) {
	require.True(t, hasPattern("ch:ticks:*"))
	require.True(t, hasPattern("ch:ticks:s[12]"))
	require.False(t, hasPattern("ch:ticks:s1"))
}

func TestNewSignalBusDefaultsMaxLen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })

	require.Equal(t, DefaultStreamMaxLen, NewSignalBus(Wrap(rdb, ""), 0).maxLen)
	require.Equal(t, int64(50), NewSignalBus(Wrap(rdb, ""), 50).maxLen)
}
