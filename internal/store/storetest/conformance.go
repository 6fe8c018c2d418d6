// Package storetest provides conformance tests for post store backends
package storetest

import (
	"context"
	"testing"

	"github.com/leafsii/post-api/internal/posts"
	"github.com/leafsii/post-api/internal/store/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// BackendFactory returns a connected, empty backend
type BackendFactory func(t *testing.T) interfaces.Backend

// RunConformanceTests runs all conformance tests against a backend.
// unknownID must be well formed for the backend but never assigned.
func RunConformanceTests(t *testing.T, factory BackendFactory, unknownID string) {
	tests := []struct {
		name string
		test func(t *testing.T, b interfaces.Backend)
	}{
		{"Healthy", testHealthy},
		{"FindEmpty", testFindEmpty},
		{"InsertFind", testInsertFind},
		{"Replace", testReplace},
		{"Delete", testDelete},
		{"ReplaceUnknown", func(t *testing.T, b interfaces.Backend) { testReplaceUnknown(t, b, unknownID) }},
		{"DeleteUnknown", func(t *testing.T, b interfaces.Backend) { testDeleteUnknown(t, b, unknownID) }},
		{"MalformedID", testMalformedID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := factory(t)
			defer b.Disconnect(context.Background())
			tt.test(t, b)
		})
	}
}

func sample(name string) posts.Fields {
	return posts.Fields{
		Name:        name,
		Category:    "misc",
		Image0:      name + "-0.png",
		Image1:      name + "-1.png",
		Description: "about " + name,
	}
}

func testHealthy(t *testing.T, b interfaces.Backend) {
	assert.True(t, b.IsHealthy(context.Background()))
}

func testFindEmpty(t *testing.T, b interfaces.Backend) {
	docs, err := b.Find(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testInsertFind(t *testing.T, b interfaces.Backend) {
	ctx := context.Background()

	first, err := b.Insert(ctx, sample("first"))
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := b.Insert(ctx, sample("second"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	docs, err := b.Find(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, posts.Post{ID: first, Fields: sample("first")}, docs[0])
	assert.Equal(t, posts.Post{ID: second, Fields: sample("second")}, docs[1])
}

func testReplace(t *testing.T, b interfaces.Backend) {
	ctx := context.Background()

	id, err := b.Insert(ctx, sample("old"))
	require.NoError(t, err)

	replacement := posts.Fields{Name: "n2", Image0: "i0", Image1: "i1", Description: "d2"}
	require.NoError(t, b.Replace(ctx, id, replacement))

	docs, err := b.Find(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, posts.Post{ID: id, Fields: replacement}, docs[0])
}

func testDelete(t *testing.T, b interfaces.Backend) {
	ctx := context.Background()

	keep, err := b.Insert(ctx, sample("keep"))
	require.NoError(t, err)
	drop, err := b.Insert(ctx, sample("drop"))
	require.NoError(t, err)

	require.NoError(t, b.Delete(ctx, drop))

	docs, err := b.Find(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, keep, docs[0].ID)
}

func testReplaceUnknown(t *testing.T, b interfaces.Backend, unknownID string) {
	ctx := context.Background()
	require.NoError(t, b.Replace(ctx, unknownID, sample("ghost")))

	docs, err := b.Find(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testDeleteUnknown(t *testing.T, b interfaces.Backend, unknownID string) {
	assert.NoError(t, b.Delete(context.Background(), unknownID))
}

func testMalformedID(t *testing.T, b interfaces.Backend) {
	ctx := context.Background()

	err := b.Replace(ctx, "not-an-id", sample("x"))
	assert.ErrorIs(t, err, interfaces.ErrInvalidID)

	err = b.Delete(ctx, "not-an-id")
	assert.ErrorIs(t, err, interfaces.ErrInvalidID)
}
