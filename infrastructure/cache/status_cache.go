package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"media-hub/domain/dto"

	"github.com/redis/go-redis/v9"
)

// IStatusCache caches the latest status snapshot per job so the pull channel
// can answer without a database round trip.
type IStatusCache interface {
	SetSnapshot(ctx context.Context, snap *dto.UploadStatusResponse)
	GetSnapshot(ctx context.Context, jobID string) (*dto.UploadStatusResponse, bool)
}

// StatusCache stores snapshots in Redis. A newer version already in the cache
// wins over a late writer, matching the observer convergence rule. A nil
// client degrades to a no-op.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client, ttl: time.Hour}
}

func statusKey(jobID string) string { return "upload:status:" + jobID }

// setSnapshotScript writes the snapshot only when its version is newer than
// the one held, so concurrent publishers cannot interleave an older write
// over a newer one.
var setSnapshotScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local held = cjson.decode(cur)
  if tonumber(held['version']) >= tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

func (c *StatusCache) SetSnapshot(ctx context.Context, snap *dto.UploadStatusResponse) {
	if c.client == nil || snap == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	// Best effort: the pull path re-validates against the stored job anyway.
	_ = setSnapshotScript.Run(ctx, c.client,
		[]string{statusKey(snap.JobID)},
		payload, snap.Version, c.ttl.Milliseconds(),
	).Err()
}

func (c *StatusCache) GetSnapshot(ctx context.Context, jobID string) (*dto.UploadStatusResponse, bool) {
	if c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, statusKey(jobID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, false
		}
		return nil, false
	}
	var snap dto.UploadStatusResponse
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false
	}
	return &snap, true
}
