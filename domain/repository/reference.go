package repository

import (
	"context"
	"time"

	"media-hub/domain/model"
)

// IReference persists short-lived file references. Consume must be
// compare-and-set: at most one caller succeeds for a given id.
type IReference interface {
	Create(ctx context.Context, ref *model.FileReference) error
	Get(ctx context.Context, id string) (*model.FileReference, error)
	// Consume atomically marks the reference consumed when it is still
	// unconsumed and unexpired at the given instant.
	Consume(ctx context.Context, id string, now time.Time) (*model.FileReference, error)
	// DeleteExpired removes unconsumed references whose TTL elapsed before now,
	// skipping the given ids, and returns the number removed.
	DeleteExpired(ctx context.Context, now time.Time, keepIDs []string) (int64, error)
}
