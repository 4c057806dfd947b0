package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"media-hub/domain/model"
)

var uploadJobColumnNames = []string{
	"id", "owner", "account_id", "platform", "reference_id", "thumb_reference_id", "metadata",
	"state", "bytes_uploaded", "total_bytes", "percent", "platform_object_id", "status_message", "version",
	"created_at", "started_at", "completed_at",
}

func uploadJobRow(createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(uploadJobColumnNames).
		AddRow("job-1", "tulus", "chan-1", "youtube", "ref-1", nil, `{"title":"My Video"}`,
			"uploading", int64(50), int64(100), 50, nil, "Upload started", int64(3),
			createdAt, createdAt, nil)
}

func TestUploadRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewUploadRepository(db)
	createdAt := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + uploadColumns + ` FROM upload_jobs WHERE id=$1`)).
		WithArgs("job-1").
		WillReturnRows(uploadJobRow(createdAt))

	job, err := repository.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, "job-1", job.ID)
	require.Equal(t, model.JobStateUploading, job.State)
	require.Equal(t, "My Video", job.Metadata.Title)
	require.Equal(t, int64(50), job.Progress.BytesUploaded)
	require.Equal(t, int64(3), job.Version)
	require.Nil(t, job.ThumbReferenceID)
	require.Nil(t, job.CompletedAt)
	require.NotNil(t, job.StartedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepository_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewUploadRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + uploadColumns + ` FROM upload_jobs WHERE id=$1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(uploadJobColumnNames))

	_, err = repository.Get(context.Background(), "missing")
	require.True(t, model.IsKind(err, model.KindNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewUploadRepository(db)
	createdAt := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	job := &model.UploadJob{
		ID:          "job-1",
		Owner:       "tulus",
		AccountID:   "chan-1",
		Platform:    "youtube",
		ReferenceID: "ref-1",
		Metadata:    model.UploadMetadata{Title: "My Video"},
		State:       model.JobStatePending,
		Progress:    model.UploadProgress{TotalBytes: 100},
		Version:     1,
		CreatedAt:   createdAt,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO upload_jobs (`+uploadColumns+`)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`)).
		WithArgs(
			"job-1", "tulus", "chan-1", "youtube", "ref-1", nil, sqlmock.AnyArg(),
			"pending", int64(0), int64(100), 0,
			nil, "", int64(1),
			createdAt, nil, nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repository.Create(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepository_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewUploadRepository(db)
	startedAt := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	completedAt := startedAt.Add(time.Minute)
	objectID := "vid-123"

	job := &model.UploadJob{
		ID:               "job-1",
		Metadata:         model.UploadMetadata{Title: "My Video"},
		State:            model.JobStateCompleted,
		Progress:         model.UploadProgress{BytesUploaded: 100, TotalBytes: 100, Percent: 100},
		PlatformObjectID: &objectID,
		StatusMessage:    "https://www.youtube.com/watch?v=vid-123",
		Version:          7,
		StartedAt:        &startedAt,
		CompletedAt:      &completedAt,
	}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE upload_jobs SET
			metadata=$1, state=$2, bytes_uploaded=$3, total_bytes=$4, percent=$5,
			platform_object_id=$6, status_message=$7, version=$8, started_at=$9, completed_at=$10
		  WHERE id=$11`)).
		WithArgs(
			sqlmock.AnyArg(), "completed", int64(100), int64(100), 100,
			"vid-123", job.StatusMessage, int64(7), startedAt, completedAt,
			"job-1",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repository.Update(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepository_ListActive_AllOwners(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewUploadRepository(db)
	createdAt := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	// The stall watchdog passes an empty owner to scan every job.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + uploadColumns + ` FROM upload_jobs WHERE ($1='' OR owner=$1) AND state IN ('pending','uploading') ORDER BY created_at ASC`)).
		WithArgs("").
		WillReturnRows(uploadJobRow(createdAt))

	jobs, err := repository.ListActive(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "tulus", jobs[0].Owner)
	require.NoError(t, mock.ExpectationsWereMet())
}
