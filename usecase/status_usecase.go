package usecase

import (
	"context"
	"time"

	"media-hub/domain/dto"
	"media-hub/domain/model"
	"media-hub/infrastructure/cache"
	"media-hub/infrastructure/configuration"
	"media-hub/infrastructure/logger"
)

// IStatusUsecase is the observer-facing side of status propagation. The push
// channel (SSE, Pub/Sub) is best effort; this usecase backs it with an
// authoritative pull answer and a bounded fallback polling loop. Snapshots
// carry versions and an older version never replaces a newer one.
type IStatusUsecase interface {
	GetStatus(ctx context.Context, owner, jobID string) (*dto.UploadStatusResponse, error)
	// WaitForTerminal polls until the job reaches a terminal state or the
	// observer wait budget elapses, then returns the last snapshot seen.
	WaitForTerminal(ctx context.Context, owner, jobID string) (*dto.UploadStatusResponse, error)
}

type statusUsecase struct {
	uploads     IUploadUsecase
	statusCache cache.IStatusCache
	cfg         configuration.Upload
}

func NewStatusUsecase(uploads IUploadUsecase, statusCache cache.IStatusCache, cfg configuration.Upload) IStatusUsecase {
	return &statusUsecase{uploads: uploads, statusCache: statusCache, cfg: cfg}
}

// GetStatus answers from the snapshot cache when it is at least as new as the
// stored job; otherwise it assembles a fresh snapshot from the database.
func (u *statusUsecase) GetStatus(ctx context.Context, owner, jobID string) (*dto.UploadStatusResponse, error) {
	job, err := u.uploads.GetJob(ctx, owner, jobID)
	if err != nil {
		return nil, err
	}
	if u.statusCache != nil {
		if snap, ok := u.statusCache.GetSnapshot(ctx, jobID); ok && snap.Version >= job.Version {
			return snap, nil
		}
	}
	snap, err := u.uploads.Snapshot(ctx, job)
	if err != nil {
		return nil, err
	}
	if u.statusCache != nil {
		u.statusCache.SetSnapshot(ctx, snap)
	}
	return snap, nil
}

func (u *statusUsecase) WaitForTerminal(ctx context.Context, owner, jobID string) (*dto.UploadStatusResponse, error) {
	interval := u.cfg.PollInterval()
	if interval <= 0 {
		interval = 3 * time.Second
	}
	maxWait := u.cfg.ObserverMaxWait()
	if maxWait <= 0 {
		maxWait = 15 * time.Minute
	}
	deadline := time.Now().Add(maxWait)

	var last *dto.UploadStatusResponse
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		snap, err := u.GetStatus(ctx, owner, jobID)
		if err != nil {
			return last, err
		}
		if last == nil || snap.Version > last.Version {
			last = snap
		}
		state := model.JobState(last.Status)
		if state.Terminal() {
			return last, nil
		}
		if time.Now().After(deadline) {
			logger.GetLogger().WithField("job_id", jobID).Warn("Observer wait budget exhausted before terminal state")
			return last, model.NewDomainError(model.KindTimeout, "job did not reach a terminal state within the wait budget")
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
