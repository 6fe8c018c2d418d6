package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/leafsii/post-api/pkg/kv"
	"github.com/leafsii/post-api/pkg/kv/kvtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("POSTS_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("POSTS_TEST_REDIS_URL not set, skipping Redis tests")
	}

	factory := func(t *testing.T) kv.Store {
		store, err := New(redisURL)
		require.NoError(t, err)
		require.NoError(t, store.Ping(context.Background()))
		return store
	}

	kvtest.RunConformanceTests(t, factory)
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		in       string
		addr     string
		db       int
		password string
	}{
		{"redis://localhost:6379/0", "localhost:6379", 0, ""},
		{"redis://:secret@cache:6380/2", "cache:6380", 2, "secret"},
		{"127.0.0.1:6379", "127.0.0.1:6379", 0, ""},
		{"127.0.0.1:6379/3", "127.0.0.1:6379", 3, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			opt, err := ParseOptions(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.addr, opt.Addr)
			assert.Equal(t, tt.db, opt.DB)
			assert.Equal(t, tt.password, opt.Password)
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, IsConnectionError(nil))
	assert.False(t, IsConnectionError(context.Canceled))
	assert.True(t, IsConnectionError(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")))
	assert.False(t, IsConnectionError(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")))
}

func TestUnreachableRedisReportsBackendUnavailable(t *testing.T) {
	store, err := New("redis://127.0.0.1:1/0")
	require.NoError(t, err)
	defer store.Close()

	err = store.Ping(context.Background())
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)
}
