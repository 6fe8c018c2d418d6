package postgres

import (
	"context"
	"io/fs"
	"os"
	"testing"

	"github.com/leafsii/post-api/internal/posts"
	"github.com/leafsii/post-api/internal/store/interfaces"
	"github.com/leafsii/post-api/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreConformance(t *testing.T) {
	dsn := os.Getenv("POSTS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTS_TEST_POSTGRES_DSN not set")
	}

	storetest.RunConformanceTests(t, func(t *testing.T) interfaces.Backend {
		ctx := context.Background()
		s := New(dsn, 0)
		require.NoError(t, s.Connect(ctx))
		require.NoError(t, s.Migrate(ctx))
		require.NoError(t, s.Truncate(ctx))
		return s
	}, "00000000-0000-4000-8000-000000000000")
}

func TestPostgresStoreRejectsMalformedIDBeforeConnecting(t *testing.T) {
	s := New("postgres://invalid", 0)
	ctx := context.Background()

	err := s.Replace(ctx, "42", posts.Fields{})
	assert.ErrorIs(t, err, interfaces.ErrInvalidID)

	err = s.Delete(ctx, "42")
	assert.ErrorIs(t, err, interfaces.ErrInvalidID)
}

func TestPostgresStoreNotConnected(t *testing.T) {
	s := New("postgres://invalid", 0)
	ctx := context.Background()

	assert.False(t, s.IsHealthy(ctx))

	_, err := s.Find(ctx)
	assert.ErrorIs(t, err, interfaces.ErrDatabaseNotConnected)

	err = s.Migrate(ctx)
	assert.ErrorIs(t, err, interfaces.ErrDatabaseNotConnected)
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(Migrations, MigrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "00001_create_posts.sql", entries[0].Name())
}
