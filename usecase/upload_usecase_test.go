package usecase_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"media-hub/domain/dto"
	"media-hub/domain/model"
	"media-hub/domain/repository"
	"media-hub/infrastructure/configuration"
	"media-hub/usecase"
)

type uploadFixture struct {
	refs     *fakeReferenceRepo
	accounts *fakeAccountRepo
	jobs     *fakeJobRepo
	platform *fakePlatform
	uploads  usecase.IUploadUsecase
}

func newUploadFixture(t *testing.T, cfg configuration.Upload) *uploadFixture {
	t.Helper()
	refs := newFakeReferenceRepo()
	accounts := newFakeAccountRepo()
	jobs := newFakeJobRepo()
	platform := &fakePlatform{}
	platforms := map[string]repository.IPlatform{"youtube": platform}

	credentials := usecase.NewCredentialUsecase(accounts, platforms, noopEncryptor{}, 5*time.Minute, 3)
	uploads := usecase.NewUploadUsecase(
		jobs, accounts, refs, credentials, platforms,
		nil, nil, nil, cfg,
	).WithMediaOpener(func(ref *model.FileReference) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("payload")), nil
	})

	return &uploadFixture{refs: refs, accounts: accounts, jobs: jobs, platform: platform, uploads: uploads}
}

func defaultUploadConfig() configuration.Upload {
	return configuration.Upload{
		ReferenceTTLMinutes:     30,
		RefreshMarginSeconds:    300,
		RefreshFailureThreshold: 3,
		StartRetryAttempts:      3,
		StallTimeoutSeconds:     300,
		PollIntervalSeconds:     1,
		ObserverMaxWaitMinutes:  1,
	}
}

func (f *uploadFixture) seedAccount(t *testing.T, owner string) *model.PlatformAccount {
	t.Helper()
	exp := time.Now().Add(time.Hour)
	account := &model.PlatformAccount{
		ID:       "chan-1",
		Owner:    owner,
		Platform: "youtube",
		Name:     "Tulus Tech",
		Handle:   "@tulustech",
		IsActive: true,
		Credential: model.Credential{
			AccessToken:    "access-token",
			RefreshToken:   "refresh-token",
			TokenExpiresAt: &exp,
		},
	}
	require.NoError(t, f.accounts.Upsert(context.Background(), account))
	return account
}

func (f *uploadFixture) seedReference(t *testing.T, owner string) *model.FileReference {
	t.Helper()
	now := time.Now().UTC()
	ref := &model.FileReference{
		ID:        "ref-1",
		Owner:     owner,
		FileName:  "clip.mp4",
		SizeBytes: 100,
		Kind:      model.ReferenceKindVideo,
		CreatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}
	require.NoError(t, f.refs.Create(context.Background(), ref))
	return ref
}

func (f *uploadFixture) createJob(t *testing.T, owner string) *model.UploadJob {
	t.Helper()
	job, err := f.uploads.CreateJob(context.Background(), owner, &dto.CreateUploadRequest{
		AccountID:   "chan-1",
		ReferenceID: "ref-1",
		Metadata:    model.UploadMetadata{Title: "My Video"},
	})
	require.NoError(t, err)
	return job
}

func waitForState(t *testing.T, jobs *fakeJobRepo, jobID string, want model.JobState) *model.UploadJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobs.Get(context.Background(), jobID)
		require.NoError(t, err)
		if job.State == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := jobs.Get(context.Background(), jobID)
	t.Fatalf("job %s never reached state %s (last: %s)", jobID, want, job.State)
	return nil
}

func TestCreateJob_Success(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")

	job := f.createJob(t, "tulus")
	require.Equal(t, model.JobStatePending, job.State)
	require.Equal(t, int64(1), job.Version)
	require.Equal(t, int64(100), job.Progress.TotalBytes)
	require.Equal(t, "youtube", job.Platform)
}

func TestCreateJob_MissingTitle(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")

	_, err := f.uploads.CreateJob(context.Background(), "tulus", &dto.CreateUploadRequest{
		AccountID:   "chan-1",
		ReferenceID: "ref-1",
	})
	require.True(t, model.IsKind(err, model.KindValidationError))
}

func TestCreateJob_AccountNeedsReauth(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	account := f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")

	account.RefreshState.NeedsReauth = true
	require.NoError(t, f.accounts.Upsert(context.Background(), account))

	_, err := f.uploads.CreateJob(context.Background(), "tulus", &dto.CreateUploadRequest{
		AccountID:   "chan-1",
		ReferenceID: "ref-1",
		Metadata:    model.UploadMetadata{Title: "My Video"},
	})
	require.True(t, model.IsKind(err, model.KindAccountNotUsable))
}

func TestCreateJob_ConsumedReference(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")

	_, err := f.refs.Consume(context.Background(), "ref-1", time.Now().UTC())
	require.NoError(t, err)

	_, err = f.uploads.CreateJob(context.Background(), "tulus", &dto.CreateUploadRequest{
		AccountID:   "chan-1",
		ReferenceID: "ref-1",
		Metadata:    model.UploadMetadata{Title: "My Video"},
	})
	require.True(t, model.IsKind(err, model.KindReferenceInvalid))
}

func TestCreateJob_ExpiredReference(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	ref := f.seedReference(t, "tulus")

	ref.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, f.refs.Create(context.Background(), ref))

	_, err := f.uploads.CreateJob(context.Background(), "tulus", &dto.CreateUploadRequest{
		AccountID:   "chan-1",
		ReferenceID: "ref-1",
		Metadata:    model.UploadMetadata{Title: "My Video"},
	})
	require.True(t, model.IsKind(err, model.KindReferenceExpired))
}

func TestCreateJob_ReferenceOwnedByAnotherUser(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "somebody-else")

	_, err := f.uploads.CreateJob(context.Background(), "tulus", &dto.CreateUploadRequest{
		AccountID:   "chan-1",
		ReferenceID: "ref-1",
		Metadata:    model.UploadMetadata{Title: "My Video"},
	})
	require.True(t, model.IsKind(err, model.KindReferenceInvalid))
}

func TestStartJob_CompletesAndPublishesWatchLink(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	release := make(chan struct{})
	f.platform.uploadFn = func(ctx context.Context, call int, j *model.UploadJob, cb repository.UploadCallbacks) (model.UploadOutcome, error) {
		<-release
		cb.OnProgress(50, 100)
		cb.OnProgress(100, 100)
		return model.SuccessOutcome("vid-123"), nil
	}

	started, err := f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStateUploading, started.State)
	startedVersion := started.Version
	close(release)

	done := waitForState(t, f.jobs, job.ID, model.JobStateCompleted)
	require.NotNil(t, done.PlatformObjectID)
	require.Equal(t, "vid-123", *done.PlatformObjectID)
	require.Equal(t, 100, done.Progress.Percent)
	require.Contains(t, done.StatusMessage, "vid-123")
	require.NotNil(t, done.CompletedAt)
	require.Greater(t, done.Version, startedVersion)

	ref, err := f.refs.Get(context.Background(), "ref-1")
	require.NoError(t, err)
	require.True(t, ref.Consumed())
}

func TestStartJob_IdempotentWhileUploading(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	release := make(chan struct{})
	f.platform.uploadFn = func(ctx context.Context, call int, j *model.UploadJob, cb repository.UploadCallbacks) (model.UploadOutcome, error) {
		<-release
		return model.SuccessOutcome("vid-123"), nil
	}

	_, err := f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)

	// A second start while the upload is in flight neither consumes nor fails.
	again, err := f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStateUploading, again.State)

	close(release)
	waitForState(t, f.jobs, job.ID, model.JobStateCompleted)

	uploads, _ := f.platform.calls()
	require.Equal(t, 1, uploads)
}

func TestStartJob_RejectedAfterTerminal(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	_, err := f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)
	waitForState(t, f.jobs, job.ID, model.JobStateCompleted)

	_, err = f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.True(t, model.IsKind(err, model.KindValidationError))
}

func TestStartJob_UnknownOwner(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	_, err := f.uploads.StartJob(context.Background(), "intruder", job.ID)
	require.True(t, model.IsKind(err, model.KindNotFound))
}

func TestStartJob_FailsJobWhenReferenceConsumedElsewhere(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	_, err := f.refs.Consume(context.Background(), "ref-1", time.Now().UTC())
	require.NoError(t, err)

	_, err = f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.True(t, model.IsKind(err, model.KindReferenceInvalid))

	// The job must not wedge in pending with its reference gone.
	failed, err := f.jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStateFailed, failed.State)
	require.Contains(t, failed.StatusMessage, "consumed")

	uploads, _ := f.platform.calls()
	require.Zero(t, uploads)
}

func TestRunUpload_RetriesTransientFailure(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	f.platform.uploadFn = func(ctx context.Context, call int, j *model.UploadJob, cb repository.UploadCallbacks) (model.UploadOutcome, error) {
		if call == 1 {
			return model.FailureOutcome(model.KindTransientNetwork, "connection reset"), nil
		}
		return model.SuccessOutcome("vid-123"), nil
	}

	_, err := f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)
	waitForState(t, f.jobs, job.ID, model.JobStateCompleted)

	uploads, _ := f.platform.calls()
	require.Equal(t, 2, uploads)
}

func TestRunUpload_NoRetryAfterBytesAccepted(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	f.platform.uploadFn = func(ctx context.Context, call int, j *model.UploadJob, cb repository.UploadCallbacks) (model.UploadOutcome, error) {
		cb.OnProgress(40, 100)
		return model.FailureOutcome(model.KindTransientNetwork, "connection reset"), nil
	}

	_, err := f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)
	failed := waitForState(t, f.jobs, job.ID, model.JobStateFailed)
	require.Contains(t, failed.StatusMessage, "partial upload accepted")

	uploads, _ := f.platform.calls()
	require.Equal(t, 1, uploads)
}

func TestRunUpload_NonRetryableFailsImmediately(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	f.platform.uploadFn = func(ctx context.Context, call int, j *model.UploadJob, cb repository.UploadCallbacks) (model.UploadOutcome, error) {
		return model.FailureOutcome(model.KindQuotaExceeded, "daily quota exhausted"), nil
	}

	_, err := f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)
	failed := waitForState(t, f.jobs, job.ID, model.JobStateFailed)
	require.Contains(t, failed.StatusMessage, "QuotaExceeded")

	uploads, _ := f.platform.calls()
	require.Equal(t, 1, uploads)
}

func TestRunUpload_ExhaustsRetryBudget(t *testing.T) {
	cfg := defaultUploadConfig()
	cfg.StartRetryAttempts = 2
	f := newUploadFixture(t, cfg)
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	f.platform.uploadFn = func(ctx context.Context, call int, j *model.UploadJob, cb repository.UploadCallbacks) (model.UploadOutcome, error) {
		return model.FailureOutcome(model.KindTransientNetwork, "connection reset"), nil
	}

	_, err := f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)
	waitForState(t, f.jobs, job.ID, model.JobStateFailed)

	uploads, _ := f.platform.calls()
	require.Equal(t, 2, uploads)
}

func TestRunUpload_AuthRevokedFlagsAccount(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	f.platform.uploadFn = func(ctx context.Context, call int, j *model.UploadJob, cb repository.UploadCallbacks) (model.UploadOutcome, error) {
		return model.FailureOutcome(model.KindAuthRevoked, "token revoked by user"), nil
	}

	_, err := f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)
	waitForState(t, f.jobs, job.ID, model.JobStateFailed)

	account, err := f.accounts.Get(context.Background(), "tulus", "chan-1")
	require.NoError(t, err)
	require.True(t, account.RefreshState.NeedsReauth)
	require.False(t, account.Usable())
}

func TestRecordProgress_MonotonicUnderOutOfOrderCallbacks(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	reported := make(chan struct{})
	release := make(chan struct{})
	f.platform.uploadFn = func(ctx context.Context, call int, j *model.UploadJob, cb repository.UploadCallbacks) (model.UploadOutcome, error) {
		// Duplicate and out-of-order byte counts must not move progress backwards.
		cb.OnProgress(10, 100)
		cb.OnProgress(50, 100)
		cb.OnProgress(30, 100)
		cb.OnProgress(50, 100)
		close(reported)
		<-release
		return model.SuccessOutcome("vid-123"), nil
	}

	_, err := f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)

	select {
	case <-reported:
	case <-time.After(5 * time.Second):
		t.Fatal("progress callbacks never ran")
	}

	mid, err := f.jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50), mid.Progress.BytesUploaded)
	require.Equal(t, 50, mid.Progress.Percent)

	close(release)
	waitForState(t, f.jobs, job.ID, model.JobStateCompleted)
}

func TestRecordProgress_ClampsToTotalBytes(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	reported := make(chan struct{})
	release := make(chan struct{})
	f.platform.uploadFn = func(ctx context.Context, call int, j *model.UploadJob, cb repository.UploadCallbacks) (model.UploadOutcome, error) {
		cb.OnProgress(250, 100)
		close(reported)
		<-release
		return model.SuccessOutcome("vid-123"), nil
	}

	_, err := f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)

	select {
	case <-reported:
	case <-time.After(5 * time.Second):
		t.Fatal("progress callbacks never ran")
	}

	mid, err := f.jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.LessOrEqual(t, mid.Progress.BytesUploaded, mid.Progress.TotalBytes)
	require.LessOrEqual(t, mid.Progress.Percent, 100)

	close(release)
	waitForState(t, f.jobs, job.ID, model.JobStateCompleted)
}

func TestCheckStalled_FailsJobWithoutProgress(t *testing.T) {
	cfg := defaultUploadConfig()
	cfg.StallTimeoutSeconds = 0
	f := newUploadFixture(t, cfg)
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	f.platform.uploadFn = func(ctx context.Context, call int, j *model.UploadJob, cb repository.UploadCallbacks) (model.UploadOutcome, error) {
		// Hang until the watchdog cancels the upload context.
		<-ctx.Done()
		return model.FailureOutcome(model.KindTransientNetwork, "cancelled"), nil
	}

	_, err := f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)
	waitForState(t, f.jobs, job.ID, model.JobStateUploading)

	require.NoError(t, f.uploads.CheckStalled(context.Background()))

	failed := waitForState(t, f.jobs, job.ID, model.JobStateFailed)
	require.Contains(t, failed.StatusMessage, "Timeout")
}

func TestListActive_FiltersTerminalJobs(t *testing.T) {
	f := newUploadFixture(t, defaultUploadConfig())
	f.seedAccount(t, "tulus")
	f.seedReference(t, "tulus")
	job := f.createJob(t, "tulus")

	active, err := f.uploads.ListActive(context.Background(), "tulus")
	require.NoError(t, err)
	require.Len(t, active, 1)

	_, err = f.uploads.StartJob(context.Background(), "tulus", job.ID)
	require.NoError(t, err)
	waitForState(t, f.jobs, job.ID, model.JobStateCompleted)

	active, err = f.uploads.ListActive(context.Background(), "tulus")
	require.NoError(t, err)
	require.Empty(t, active)
}
