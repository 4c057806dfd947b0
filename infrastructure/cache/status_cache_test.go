package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"media-hub/domain/dto"
)

func newTestStatusCache(t *testing.T) *StatusCache {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStatusCache(client)
}

func snapshot(version int64, status string) *dto.UploadStatusResponse {
	return &dto.UploadStatusResponse{JobID: "job-1", Status: status, Version: version}
}

func TestStatusCache_SetThenGet(t *testing.T) {
	c := newTestStatusCache(t)

	c.SetSnapshot(context.Background(), snapshot(5, "uploading"))

	held, ok := c.GetSnapshot(context.Background(), "job-1")
	require.True(t, ok)
	require.Equal(t, int64(5), held.Version)
	require.Equal(t, "uploading", held.Status)
}

func TestStatusCache_StaleWriteDoesNotOverwriteNewer(t *testing.T) {
	c := newTestStatusCache(t)

	c.SetSnapshot(context.Background(), snapshot(5, "completed"))
	c.SetSnapshot(context.Background(), snapshot(3, "uploading"))

	held, ok := c.GetSnapshot(context.Background(), "job-1")
	require.True(t, ok)
	require.Equal(t, int64(5), held.Version)
	require.Equal(t, "completed", held.Status)
}

func TestStatusCache_EqualVersionDropped(t *testing.T) {
	c := newTestStatusCache(t)

	c.SetSnapshot(context.Background(), snapshot(5, "uploading"))
	c.SetSnapshot(context.Background(), snapshot(5, "completed"))

	held, ok := c.GetSnapshot(context.Background(), "job-1")
	require.True(t, ok)
	require.Equal(t, "uploading", held.Status)
}

func TestStatusCache_NewerVersionWins(t *testing.T) {
	c := newTestStatusCache(t)

	c.SetSnapshot(context.Background(), snapshot(5, "uploading"))
	c.SetSnapshot(context.Background(), snapshot(6, "completed"))

	held, ok := c.GetSnapshot(context.Background(), "job-1")
	require.True(t, ok)
	require.Equal(t, int64(6), held.Version)
	require.Equal(t, "completed", held.Status)
}

func TestStatusCache_NilClientIsNoop(t *testing.T) {
	c := NewStatusCache(nil)

	c.SetSnapshot(context.Background(), snapshot(1, "pending"))

	_, ok := c.GetSnapshot(context.Background(), "job-1")
	require.False(t, ok)
}
