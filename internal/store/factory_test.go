package store

import (
	"context"
	"testing"

	"github.com/leafsii/post-api/internal/config"
	"github.com/leafsii/post-api/internal/store/memory"
	"github.com/leafsii/post-api/internal/store/mongo"
	"github.com/leafsii/post-api/internal/store/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewBackend(t *testing.T) {
	logger := zap.NewNop().Sugar()

	tests := []struct {
		backend string
		want    any
	}{
		{"memory", &memory.Store{}},
		{"", &memory.Store{}},
		{"mongo", &mongo.Store{}},
		{"postgres", &postgres.Store{}},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			b, err := NewBackend(config.StoreConfig{Backend: tt.backend}, logger)
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestNewBackendUnsupported(t *testing.T) {
	_, err := NewBackend(config.StoreConfig{Backend: "sqlite"}, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, ErrUnsupportedBackend)
}

func TestConnectAndMigrateMemory(t *testing.T) {
	b := memory.New()
	require.NoError(t, ConnectAndMigrate(context.Background(), b, true))
	assert.True(t, b.IsHealthy(context.Background()))
}

func TestConnectAndMigrateUnreachable(t *testing.T) {
	b := postgres.New("postgres://user:pw@127.0.0.1:1/posts?sslmode=disable&connect_timeout=1", 0)
	err := ConnectAndMigrate(context.Background(), b, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to store")
}
