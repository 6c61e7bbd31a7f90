package app

import (
	"context"
	"errors"
	"testing"

	"yt2minio/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCleanupRemovesAllVersions(t *testing.T) {
	store := &fakeStore{
		bucketExists: true,
		versions: []storage.VersionInfo{
			{Key: "First Clip [id1].mp4", VersionID: "v1"},
			{Key: "First Clip [id1].mp4", VersionID: "v2", IsDeleteMarker: true},
			{Key: "Second Clip [id2].webm", VersionID: "v3"},
		},
	}

	removed, err := Cleanup(context.Background(), store, "vids", false, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 3, removed)
	assert.Equal(t, []string{
		"First Clip [id1].mp4@v1",
		"First Clip [id1].mp4@v2",
		"Second Clip [id2].webm@v3",
	}, store.removed)
}

func TestCleanupDryRun(t *testing.T) {
	store := &fakeStore{
		bucketExists: true,
		versions: []storage.VersionInfo{
			{Key: "First Clip [id1].mp4", VersionID: "v1"},
		},
	}

	removed, err := Cleanup(context.Background(), store, "vids", true, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 0, removed)
	assert.Empty(t, store.removed)
}

func TestCleanupEmptyBucket(t *testing.T) {
	store := &fakeStore{bucketExists: true}

	removed, err := Cleanup(context.Background(), store, "vids", false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestCleanupBucketMissing(t *testing.T) {
	store := &fakeStore{bucketExists: false}

	_, err := Cleanup(context.Background(), store, "vids", false, zap.NewNop())
	assert.ErrorIs(t, err, storage.ErrBucketMissing)
}

func TestCleanupListError(t *testing.T) {
	store := &fakeStore{bucketExists: true, versionsErr: errors.New("listing interrupted")}

	_, err := Cleanup(context.Background(), store, "vids", false, zap.NewNop())
	assert.ErrorIs(t, err, storage.ErrStoreUnavailable)
}

func TestCleanupRemoveError(t *testing.T) {
	store := &fakeStore{
		bucketExists: true,
		versions: []storage.VersionInfo{
			{Key: "First Clip [id1].mp4", VersionID: "v1"},
		},
		removeErr: errors.New("access denied"),
	}

	removed, err := Cleanup(context.Background(), store, "vids", false, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to remove")
	assert.Equal(t, 0, removed)
}
