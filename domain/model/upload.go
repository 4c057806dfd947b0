package model

import "time"

// JobState is the upload job lifecycle state. Transitions are
// pending -> uploading -> {completed|failed}; completed and failed are
// terminal. Some platforms report "uploaded" just before terminal
// confirmation; observers treat it as completed.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateUploading JobState = "uploading"
	JobStateUploaded  JobState = "uploaded"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether no further transition is permitted from s.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// Normalize collapses the transient platform synonym "uploaded" into
// completed for observer-facing snapshots.
func (s JobState) Normalize() JobState {
	if s == JobStateUploaded {
		return JobStateCompleted
	}
	return s
}

// UploadMetadata is the caller-supplied publication metadata for a job.
type UploadMetadata struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags,omitempty"`
	CategoryID  string     `json:"category_id,omitempty"`
	Privacy     string     `json:"privacy,omitempty"`
	PublishAt   *time.Time `json:"publish_at,omitempty"`
	MadeForKids bool       `json:"made_for_kids"`
}

// UploadProgress tracks byte progress; percent is non-decreasing while the
// job is not terminal and bytes_uploaded never exceeds total_bytes.
type UploadProgress struct {
	BytesUploaded int64 `json:"bytes_uploaded"`
	TotalBytes    int64 `json:"total_bytes"`
	Percent       int   `json:"percent"`
}

// UploadJob is one tracked attempt to publish a payload to a platform account.
type UploadJob struct {
	ID               string         `json:"id"`
	Owner            string         `json:"owner"`
	AccountID        string         `json:"account_id"`
	Platform         string         `json:"platform"`
	ReferenceID      string         `json:"reference_id"`
	ThumbReferenceID *string        `json:"thumbnail_reference_id,omitempty"`
	Metadata         UploadMetadata `json:"metadata"`
	State            JobState       `json:"state"`
	Progress         UploadProgress `json:"progress"`
	PlatformObjectID *string        `json:"platform_object_id,omitempty"`
	StatusMessage    string         `json:"status_message,omitempty"`
	// Version increases with every persisted mutation; observers discard
	// snapshots whose version is not newer than the one they hold.
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// UploadOutcome is the terminal result reported by a platform adapter.
type UploadOutcome struct {
	Success          bool
	PlatformObjectID string
	FailureKind      ErrorKind
	Reason           string
}

// SuccessOutcome builds a successful terminal outcome.
func SuccessOutcome(platformObjectID string) UploadOutcome {
	return UploadOutcome{Success: true, PlatformObjectID: platformObjectID}
}

// FailureOutcome builds a failed terminal outcome.
func FailureOutcome(kind ErrorKind, reason string) UploadOutcome {
	return UploadOutcome{FailureKind: kind, Reason: reason}
}
