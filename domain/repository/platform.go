package repository

import (
	"context"
	"io"

	"media-hub/domain/model"
)

// UploadCallbacks receive progress while a platform upload is in flight.
// OnProgress may be invoked concurrently with the blocking upload call and
// may deliver duplicate or out-of-order byte counts.
type UploadCallbacks struct {
	OnProgress func(bytesUploaded, totalBytes int64)
}

// IPlatform abstracts the third-party platform API. Implementations classify
// failures into the model.ErrorKind taxonomy so the job manager can branch.
type IPlatform interface {
	// UploadVideo blocks for the duration of the upload and returns the
	// terminal outcome. Progress is reported through callbacks.
	UploadVideo(ctx context.Context, accessToken string, job *model.UploadJob, media io.Reader, cb UploadCallbacks) (model.UploadOutcome, error)

	// RefreshCredential exchanges the refresh token for fresh token material.
	RefreshCredential(ctx context.Context, cred model.Credential) (model.Credential, error)

	// FetchAccountProfile loads display metadata for the authorized account.
	FetchAccountProfile(ctx context.Context, accessToken string) (*model.PlatformAccount, error)

	// ObjectURL returns the public link for a platform object id, or "" when
	// the platform has no public URL scheme.
	ObjectURL(platformObjectID string) string
}
