package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"media-hub/domain/dto"
	"media-hub/domain/model"
	"media-hub/usecase"
)

func TestCreateReference_DefaultsToVideoKind(t *testing.T) {
	repo := newFakeReferenceRepo()
	references := usecase.NewReferenceUsecase(repo, 30*time.Minute)

	ref, err := references.CreateReference(context.Background(), "tulus", &dto.CreateReferenceRequest{
		FileName:  "clip.mp4",
		SizeBytes: 1024,
		MimeType:  "video/mp4",
	})
	require.NoError(t, err)
	require.Len(t, ref.ID, 32)
	require.Equal(t, model.ReferenceKindVideo, ref.Kind)
	require.True(t, ref.ExpiresAt.After(ref.CreatedAt))
}

func TestCreateReference_RejectsUnknownKind(t *testing.T) {
	repo := newFakeReferenceRepo()
	references := usecase.NewReferenceUsecase(repo, 30*time.Minute)

	_, err := references.CreateReference(context.Background(), "tulus", &dto.CreateReferenceRequest{
		FileName:  "clip.gif",
		SizeBytes: 1024,
		Kind:      "sticker",
	})
	require.True(t, model.IsKind(err, model.KindValidationError))
}

func TestCreateReference_RequiresFileNameAndSize(t *testing.T) {
	repo := newFakeReferenceRepo()
	references := usecase.NewReferenceUsecase(repo, 30*time.Minute)

	_, err := references.CreateReference(context.Background(), "tulus", &dto.CreateReferenceRequest{SizeBytes: 10})
	require.True(t, model.IsKind(err, model.KindValidationError))

	_, err = references.CreateReference(context.Background(), "tulus", &dto.CreateReferenceRequest{FileName: "clip.mp4"})
	require.True(t, model.IsKind(err, model.KindValidationError))
}

func TestGetReference_HiddenFromOtherOwners(t *testing.T) {
	repo := newFakeReferenceRepo()
	references := usecase.NewReferenceUsecase(repo, 30*time.Minute)

	ref, err := references.CreateReference(context.Background(), "tulus", &dto.CreateReferenceRequest{
		FileName:  "clip.mp4",
		SizeBytes: 1024,
	})
	require.NoError(t, err)

	_, err = references.GetReference(context.Background(), "intruder", ref.ID)
	require.True(t, model.IsKind(err, model.KindNotFound))
}

func TestConsumeReference_AtMostOnce(t *testing.T) {
	repo := newFakeReferenceRepo()
	references := usecase.NewReferenceUsecase(repo, 30*time.Minute)

	ref, err := references.CreateReference(context.Background(), "tulus", &dto.CreateReferenceRequest{
		FileName:  "clip.mp4",
		SizeBytes: 1024,
	})
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = references.ConsumeReference(context.Background(), "tulus", ref.ID)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.True(t, model.IsKind(err, model.KindReferenceInvalid))
		}
	}
	require.Equal(t, 1, succeeded)
}

func TestConsumeReference_Expired(t *testing.T) {
	repo := newFakeReferenceRepo()
	references := usecase.NewReferenceUsecase(repo, 30*time.Minute)

	ref, err := references.CreateReference(context.Background(), "tulus", &dto.CreateReferenceRequest{
		FileName:  "clip.mp4",
		SizeBytes: 1024,
	})
	require.NoError(t, err)

	repo.mu.Lock()
	repo.refs[ref.ID].ExpiresAt = time.Now().UTC().Add(-time.Minute)
	repo.mu.Unlock()

	_, err = references.ConsumeReference(context.Background(), "tulus", ref.ID)
	require.True(t, model.IsKind(err, model.KindReferenceExpired))
}

func TestSweepExpired_RemovesOnlyExpiredUnconsumed(t *testing.T) {
	repo := newFakeReferenceRepo()
	references := usecase.NewReferenceUsecase(repo, 30*time.Minute)

	live, err := references.CreateReference(context.Background(), "tulus", &dto.CreateReferenceRequest{
		FileName:  "live.mp4",
		SizeBytes: 1024,
	})
	require.NoError(t, err)

	expired, err := references.CreateReference(context.Background(), "tulus", &dto.CreateReferenceRequest{
		FileName:  "expired.mp4",
		SizeBytes: 1024,
	})
	require.NoError(t, err)
	repo.mu.Lock()
	repo.refs[expired.ID].ExpiresAt = time.Now().UTC().Add(-time.Minute)
	repo.mu.Unlock()

	removed, err := references.SweepExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	_, err = references.GetReference(context.Background(), "tulus", live.ID)
	require.NoError(t, err)
	_, err = references.GetReference(context.Background(), "tulus", expired.ID)
	require.True(t, model.IsKind(err, model.KindNotFound))
}

func TestSweepExpired_KeepsReferencesHeldByActiveJobs(t *testing.T) {
	repo := newFakeReferenceRepo()
	jobs := newFakeJobRepo()
	references := usecase.NewReferenceUsecase(repo, 30*time.Minute).WithJobGuard(jobs)

	held, err := references.CreateReference(context.Background(), "tulus", &dto.CreateReferenceRequest{
		FileName:  "held.mp4",
		SizeBytes: 1024,
	})
	require.NoError(t, err)
	repo.mu.Lock()
	repo.refs[held.ID].ExpiresAt = time.Now().UTC().Add(-time.Minute)
	repo.mu.Unlock()

	require.NoError(t, jobs.Create(context.Background(), &model.UploadJob{
		ID:          "job-1",
		Owner:       "tulus",
		AccountID:   "chan-1",
		Platform:    "youtube",
		ReferenceID: held.ID,
		State:       model.JobStatePending,
		Version:     1,
	}))

	removed, err := references.SweepExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(0), removed)

	_, err = references.GetReference(context.Background(), "tulus", held.ID)
	require.NoError(t, err)
}
