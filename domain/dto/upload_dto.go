package dto

import (
	"time"

	"media-hub/domain/model"
)

// CreateReferenceRequest registers a received file and returns its handle.
type CreateReferenceRequest struct {
	FileName  string `json:"file_name" binding:"required"`
	SizeBytes int64  `json:"size_bytes" binding:"required"`
	MimeType  string `json:"mime_type"`
	Checksum  string `json:"checksum"`
	Kind      string `json:"kind"`
}

// CreateUploadRequest creates a new upload job.
type CreateUploadRequest struct {
	AccountID        string               `json:"account_id" binding:"required"`
	ReferenceID      string               `json:"reference_id" binding:"required"`
	ThumbReferenceID string               `json:"thumbnail_reference_id"`
	Metadata         model.UploadMetadata `json:"metadata"`
}

// UploadStatusChannel is the denormalized channel block of a status snapshot.
type UploadStatusChannel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Handle    string `json:"handle,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// UploadStatusVideo is the video block of a status snapshot.
type UploadStatusVideo struct {
	Title    string `json:"title"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	VideoID  string `json:"videoId,omitempty"`
}

// UploadStatusResponse is the snapshot shape shared by the pull endpoint and
// every push message. Version is the convergence marker: observers must
// discard snapshots whose version is not newer than the one they hold.
type UploadStatusResponse struct {
	JobID       string               `json:"job_id"`
	Status      string               `json:"status"`
	Progress    model.UploadProgress `json:"progress"`
	Channel     UploadStatusChannel  `json:"channel"`
	Video       UploadStatusVideo    `json:"video"`
	Message     string               `json:"message,omitempty"`
	Version     int64                `json:"version"`
	StartedAt   *time.Time           `json:"startedAt,omitempty"`
	CompletedAt *time.Time           `json:"completedAt,omitempty"`
}

// StatusSnapshot builds the observer-facing snapshot for a job. The transient
// platform state "uploaded" is normalized to completed here.
func StatusSnapshot(job *model.UploadJob, account *model.PlatformAccount, fileName string) *UploadStatusResponse {
	res := &UploadStatusResponse{
		JobID:    job.ID,
		Status:   string(job.State.Normalize()),
		Progress: job.Progress,
		Video: UploadStatusVideo{
			Title:    job.Metadata.Title,
			FileName: fileName,
			FileSize: job.Progress.TotalBytes,
			Status:   string(job.State.Normalize()),
			Progress: job.Progress.Percent,
		},
		Message:     job.StatusMessage,
		Version:     job.Version,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.PlatformObjectID != nil {
		res.Video.VideoID = *job.PlatformObjectID
	}
	if account != nil {
		res.Channel = UploadStatusChannel{
			ID:        account.ID,
			Name:      account.Name,
			Handle:    account.Handle,
			AvatarURL: account.AvatarURL,
		}
	}
	return res
}
