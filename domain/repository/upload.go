package repository

import (
	"context"

	"media-hub/domain/model"
)

// IUploadJob persists upload jobs. Update implementations must persist the
// bumped version together with the mutated fields.
type IUploadJob interface {
	Create(ctx context.Context, job *model.UploadJob) error
	Get(ctx context.Context, jobID string) (*model.UploadJob, error)
	Update(ctx context.Context, job *model.UploadJob) error
	ListActive(ctx context.Context, owner string) ([]*model.UploadJob, error)
}
