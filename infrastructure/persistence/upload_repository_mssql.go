package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"media-hub/domain/model"
)

// UploadRepositoryMSSQL is the SQL Server variant used in production.
type UploadRepositoryMSSQL struct{ db *sql.DB }

func NewUploadRepositoryMSSQL(db *sql.DB) *UploadRepositoryMSSQL {
	return &UploadRepositoryMSSQL{db: db}
}

// EnsureUploadSchemaMSSQL creates the upload_jobs table for SQL Server if it does not exist.
func EnsureUploadSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.upload_jobs') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[upload_jobs] (
        id NVARCHAR(64) PRIMARY KEY,
        owner NVARCHAR(128) NOT NULL,
        account_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(32) NOT NULL,
        reference_id NVARCHAR(64) NOT NULL,
        thumb_reference_id NVARCHAR(64) NULL,
        metadata NVARCHAR(MAX) NOT NULL DEFAULT '{}',
        state NVARCHAR(16) NOT NULL,
        bytes_uploaded BIGINT NOT NULL DEFAULT 0,
        total_bytes BIGINT NOT NULL DEFAULT 0,
        percent INT NOT NULL DEFAULT 0,
        platform_object_id NVARCHAR(128) NULL,
        status_message NVARCHAR(MAX) NOT NULL DEFAULT '',
        version BIGINT NOT NULL DEFAULT 0,
        created_at DATETIME2 NOT NULL,
        started_at DATETIME2 NULL,
        completed_at DATETIME2 NULL
    );
    CREATE INDEX IX_upload_jobs_owner_state ON dbo.[upload_jobs](owner, state);
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create upload_jobs (mssql): %w", err)
	}
	return nil
}

func (r *UploadRepositoryMSSQL) Create(ctx context.Context, job *model.UploadJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(job.Metadata)
	if err != nil {
		return err
	}
	q := `INSERT INTO dbo.[upload_jobs] (` + uploadColumns + `)
		  VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10,@p11,@p12,@p13,@p14,@p15,@p16,@p17)`
	_, err = r.db.ExecContext(ctx, q,
		job.ID, job.Owner, job.AccountID, job.Platform, job.ReferenceID, nullString(job.ThumbReferenceID), string(meta),
		string(job.State), job.Progress.BytesUploaded, job.Progress.TotalBytes, job.Progress.Percent,
		nullString(job.PlatformObjectID), job.StatusMessage, job.Version,
		job.CreatedAt, nullTime(job.StartedAt), nullTime(job.CompletedAt),
	)
	return err
}

func (r *UploadRepositoryMSSQL) Get(ctx context.Context, jobID string) (*model.UploadJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM dbo.[upload_jobs] WHERE id=@p1`, jobID)
	return scanUploadJob(row)
}

func (r *UploadRepositoryMSSQL) Update(ctx context.Context, job *model.UploadJob) error {
	meta, err := json.Marshal(job.Metadata)
	if err != nil {
		return err
	}
	q := `UPDATE dbo.[upload_jobs] SET
			metadata=@p1, state=@p2, bytes_uploaded=@p3, total_bytes=@p4, percent=@p5,
			platform_object_id=@p6, status_message=@p7, version=@p8, started_at=@p9, completed_at=@p10
		  WHERE id=@p11`
	_, err = r.db.ExecContext(ctx, q,
		string(meta), string(job.State), job.Progress.BytesUploaded, job.Progress.TotalBytes, job.Progress.Percent,
		nullString(job.PlatformObjectID), job.StatusMessage, job.Version, nullTime(job.StartedAt), nullTime(job.CompletedAt),
		job.ID,
	)
	return err
}

func (r *UploadRepositoryMSSQL) ListActive(ctx context.Context, owner string) ([]*model.UploadJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+uploadColumns+` FROM dbo.[upload_jobs] WHERE (@p1='' OR owner=@p1) AND state IN ('pending','uploading') ORDER BY created_at ASC`, owner)
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
