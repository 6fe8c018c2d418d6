package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/leafsii/post-api/pkg/kv"
	_ "github.com/leafsii/post-api/pkg/kv/memory"
	_ "github.com/leafsii/post-api/pkg/kv/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreFromConfig_Memory(t *testing.T) {
	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "sess:abc", []byte("alice")))
	got, err := store.Get(ctx, "sess:abc")
	require.NoError(t, err)
	assert.Equal(t, "alice", string(got))
}

func TestNewStoreFromConfig_UnsupportedBackend(t *testing.T) {
	_, err := kv.NewStoreFromConfig(kv.Config{Backend: "etcd"})
	assert.ErrorContains(t, err, "unsupported backend")
}

func TestNewStoreFromConfig_RedisRequiresURL(t *testing.T) {
	_, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendRedis})
	assert.Error(t, err)
}

func TestNewStoreFromConfig_RedisDownFallsBackToMemory(t *testing.T) {
	var messages []string
	store, err := kv.NewStoreFromConfig(kv.Config{
		Backend:             kv.BackendRedis,
		RedisURL:            "redis://127.0.0.1:1/0",
		FailoverEnabled:     true,
		ProbeInterval:       time.Hour,
		StartupProbeTimeout: 200 * time.Millisecond,
		Logger: func(msg string, fields ...any) {
			messages = append(messages, msg)
		},
	})
	require.NoError(t, err)
	defer store.Close()

	fs, ok := store.(*kv.FailoverStore)
	require.True(t, ok)
	assert.Equal(t, "fallback", fs.GetActiveBackend())
	assert.NotEmpty(t, messages)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "sess:down", []byte("bob"), time.Minute))
	got, err := store.Get(ctx, "sess:down")
	require.NoError(t, err)
	assert.Equal(t, "bob", string(got))
}
