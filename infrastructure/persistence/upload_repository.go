package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"media-hub/domain/model"
)

// UploadRepository implements upload job persistence on PostgreSQL. Metadata
// is stored as a JSON document; progress and version are flat columns so
// status polling stays a single-row read.
type UploadRepository struct{ db *sql.DB }

func NewUploadRepository(db *sql.DB) *UploadRepository { return &UploadRepository{db: db} }

const uploadColumns = `id, owner, account_id, platform, reference_id, thumb_reference_id, metadata,
	state, bytes_uploaded, total_bytes, percent, platform_object_id, status_message, version,
	created_at, started_at, completed_at`

func (r *UploadRepository) Create(ctx context.Context, job *model.UploadJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(job.Metadata)
	if err != nil {
		return err
	}
	q := `INSERT INTO upload_jobs (` + uploadColumns + `)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err = r.db.ExecContext(ctx, q,
		job.ID, job.Owner, job.AccountID, job.Platform, job.ReferenceID, job.ThumbReferenceID, string(meta),
		string(job.State), job.Progress.BytesUploaded, job.Progress.TotalBytes, job.Progress.Percent,
		job.PlatformObjectID, job.StatusMessage, job.Version,
		job.CreatedAt, job.StartedAt, job.CompletedAt,
	)
	return err
}

func (r *UploadRepository) Get(ctx context.Context, jobID string) (*model.UploadJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM upload_jobs WHERE id=$1`, jobID)
	return scanUploadJob(row)
}

func (r *UploadRepository) Update(ctx context.Context, job *model.UploadJob) error {
	meta, err := json.Marshal(job.Metadata)
	if err != nil {
		return err
	}
	q := `UPDATE upload_jobs SET
			metadata=$1, state=$2, bytes_uploaded=$3, total_bytes=$4, percent=$5,
			platform_object_id=$6, status_message=$7, version=$8, started_at=$9, completed_at=$10
		  WHERE id=$11`
	_, err = r.db.ExecContext(ctx, q,
		string(meta), string(job.State), job.Progress.BytesUploaded, job.Progress.TotalBytes, job.Progress.Percent,
		job.PlatformObjectID, job.StatusMessage, job.Version, job.StartedAt, job.CompletedAt,
		job.ID,
	)
	return err
}

// ListActive returns non-terminal jobs for the owner; an empty owner matches
// every owner so the stall watchdog can scan the whole table.
func (r *UploadRepository) ListActive(ctx context.Context, owner string) ([]*model.UploadJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+uploadColumns+` FROM upload_jobs WHERE ($1='' OR owner=$1) AND state IN ('pending','uploading') ORDER BY created_at ASC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*model.UploadJob
	for rows.Next() {
		j, err := scanUploadJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanUploadJob(row rowScanner) (*model.UploadJob, error) {
	j := &model.UploadJob{}
	var thumbRef, objectID sql.NullString
	var meta string
	var state string
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&j.ID, &j.Owner, &j.AccountID, &j.Platform, &j.ReferenceID, &thumbRef, &meta,
		&state, &j.Progress.BytesUploaded, &j.Progress.TotalBytes, &j.Progress.Percent,
		&objectID, &j.StatusMessage, &j.Version,
		&j.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.NewDomainError(model.KindNotFound, "upload job not found")
		}
		return nil, err
	}
	j.State = model.JobState(state)
	if thumbRef.Valid {
		v := thumbRef.String
		j.ThumbReferenceID = &v
	}
	if objectID.Valid {
		v := objectID.String
		j.PlatformObjectID = &v
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	if err := json.Unmarshal([]byte(meta), &j.Metadata); err != nil {
		return nil, err
	}
	return j, nil
}
