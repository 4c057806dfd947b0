package model

import "time"

// ReferenceKind distinguishes the payload a reference points at.
type ReferenceKind string

const (
	ReferenceKindVideo     ReferenceKind = "video"
	ReferenceKindThumbnail ReferenceKind = "thumbnail"
)

// FileReference is a short-lived handle to an uploaded binary payload awaiting
// consumption by an upload job. The id is the only externally shared handle.
type FileReference struct {
	ID          string        `json:"id" bson:"_id"`
	Owner       string        `json:"owner" bson:"owner"`
	FileName    string        `json:"file_name" bson:"file_name"`
	SizeBytes   int64         `json:"size_bytes" bson:"size_bytes"`
	MimeType    string        `json:"mime_type" bson:"mime_type"`
	Checksum    string        `json:"checksum" bson:"checksum"`
	Kind        ReferenceKind `json:"kind" bson:"kind"`
	StoragePath string        `json:"storage_path,omitempty" bson:"storage_path,omitempty"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at" bson:"expires_at"`
	ConsumedAt  *time.Time    `json:"consumed_at,omitempty" bson:"consumed_at,omitempty"`
}

// Expired reports whether the reference TTL has elapsed at the given instant.
func (r *FileReference) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Consumed reports whether an upload job already claimed this reference.
func (r *FileReference) Consumed() bool {
	return r.ConsumedAt != nil
}
