package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"media-hub/domain/dto"
	"media-hub/domain/model"
	"media-hub/domain/repository"
	"media-hub/infrastructure/cache"
	"media-hub/infrastructure/configuration"
	"media-hub/infrastructure/logger"
	"media-hub/infrastructure/pubsub"
)

// StatusBroadcaster pushes a snapshot to connected realtime subscribers.
type StatusBroadcaster interface {
	BroadcastStatus(snap *dto.UploadStatusResponse)
}

// MediaOpener resolves the stored payload behind a consumed reference.
type MediaOpener func(ref *model.FileReference) (io.ReadCloser, error)

// IUploadUsecase is the upload job manager. It owns the lifecycle state
// machine: pending -> uploading -> {completed|failed}, with monotonic
// progress and idempotent terminal transitions.
type IUploadUsecase interface {
	CreateJob(ctx context.Context, owner string, req *dto.CreateUploadRequest) (*model.UploadJob, error)
	// StartJob consumes the file reference, acquires a usable credential and
	// begins the platform upload in the background.
	StartJob(ctx context.Context, owner, jobID string) (*model.UploadJob, error)
	GetJob(ctx context.Context, owner, jobID string) (*model.UploadJob, error)
	ListActive(ctx context.Context, owner string) ([]*model.UploadJob, error)
	// Snapshot assembles the observer-facing status view for a job.
	Snapshot(ctx context.Context, job *model.UploadJob) (*dto.UploadStatusResponse, error)
	// CheckStalled fails uploading jobs whose progress has not moved within
	// the stall timeout.
	CheckStalled(ctx context.Context) error
	// WithMediaOpener overrides how the stored payload behind a reference is
	// resolved.
	WithMediaOpener(open MediaOpener) IUploadUsecase
}

type uploadUsecase struct {
	jobRepo       repository.IUploadJob
	accountRepo   repository.IAccount
	referenceRepo repository.IReference
	credentials   ICredentialUsecase
	platforms     map[string]repository.IPlatform
	statusCache   cache.IStatusCache
	publisher     pubsub.IStatusPublisher
	hub           StatusBroadcaster
	cfg           configuration.Upload
	openMedia     MediaOpener

	mu           sync.Mutex
	jobLocks     map[string]*sync.Mutex
	lastProgress map[string]time.Time
	cancels      map[string]context.CancelFunc
}

func NewUploadUsecase(
	jobRepo repository.IUploadJob,
	accountRepo repository.IAccount,
	referenceRepo repository.IReference,
	credentials ICredentialUsecase,
	platforms map[string]repository.IPlatform,
	statusCache cache.IStatusCache,
	publisher pubsub.IStatusPublisher,
	hub StatusBroadcaster,
	cfg configuration.Upload,
) IUploadUsecase {
	return &uploadUsecase{
		jobRepo:       jobRepo,
		accountRepo:   accountRepo,
		referenceRepo: referenceRepo,
		credentials:   credentials,
		platforms:     platforms,
		statusCache:   statusCache,
		publisher:     publisher,
		hub:           hub,
		cfg:           cfg,
		openMedia: func(ref *model.FileReference) (io.ReadCloser, error) {
			if ref.StoragePath == "" {
				return nil, model.NewDomainError(model.KindReferenceInvalid, "reference has no stored payload")
			}
			return os.Open(ref.StoragePath)
		},
		jobLocks:     make(map[string]*sync.Mutex),
		lastProgress: make(map[string]time.Time),
		cancels:      make(map[string]context.CancelFunc),
	}
}

func (u *uploadUsecase) WithMediaOpener(open MediaOpener) IUploadUsecase {
	u.openMedia = open
	return u
}

func (u *uploadUsecase) lockFor(jobID string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.jobLocks[jobID] == nil {
		u.jobLocks[jobID] = &sync.Mutex{}
	}
	return u.jobLocks[jobID]
}

func (u *uploadUsecase) CreateJob(ctx context.Context, owner string, req *dto.CreateUploadRequest) (*model.UploadJob, error) {
	if req.Metadata.Title == "" {
		return nil, model.NewDomainError(model.KindValidationError, "metadata.title required")
	}

	account, err := u.accountRepo.Get(ctx, owner, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.Usable() {
		return nil, model.NewDomainError(model.KindAccountNotUsable, "account is inactive or needs re-authorization")
	}

	ref, err := u.referenceRepo.Get(ctx, req.ReferenceID)
	if err != nil {
		return nil, err
	}
	if ref.Owner != owner || ref.Kind != model.ReferenceKindVideo {
		return nil, model.NewDomainError(model.KindReferenceInvalid, "reference is not a video owned by the caller")
	}
	now := time.Now().UTC()
	if ref.Consumed() {
		return nil, model.NewDomainError(model.KindReferenceInvalid, "reference already consumed")
	}
	if ref.Expired(now) {
		return nil, model.NewDomainError(model.KindReferenceExpired, "reference expired")
	}

	job := &model.UploadJob{
		ID:          newJobID(),
		Owner:       owner,
		AccountID:   account.ID,
		Platform:    account.Platform,
		ReferenceID: ref.ID,
		Metadata:    req.Metadata,
		State:       model.JobStatePending,
		Progress:    model.UploadProgress{TotalBytes: ref.SizeBytes},
		Version:     1,
		CreatedAt:   now,
	}
	if req.ThumbReferenceID != "" {
		thumb, err := u.referenceRepo.Get(ctx, req.ThumbReferenceID)
		if err != nil {
			return nil, err
		}
		if thumb.Owner != owner || thumb.Kind != model.ReferenceKindThumbnail {
			return nil, model.NewDomainError(model.KindReferenceInvalid, "thumbnail reference is not a thumbnail owned by the caller")
		}
		job.ThumbReferenceID = &thumb.ID
	}

	if err := u.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	u.publish(ctx, job, account, ref.FileName)
	return job, nil
}

func (u *uploadUsecase) StartJob(ctx context.Context, owner, jobID string) (*model.UploadJob, error) {
	lock := u.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := u.getOwned(ctx, owner, jobID)
	if err != nil {
		return nil, err
	}
	switch job.State {
	case model.JobStatePending:
	case model.JobStateUploading:
		// Start is idempotent while the upload is in flight.
		return job, nil
	default:
		return nil, model.NewDomainError(model.KindValidationError, "job already finished")
	}

	cred, account, err := u.credentials.GetUsableCredential(ctx, owner, job.AccountID)
	if err != nil {
		return nil, err
	}
	ref, err := u.referenceRepo.Get(ctx, job.ReferenceID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job.State = model.JobStateUploading
	job.StartedAt = &now
	job.StatusMessage = "Upload started"
	job.Version++
	if err := u.jobRepo.Update(ctx, job); err != nil {
		return nil, err
	}
	u.touchProgress(job.ID, now)
	u.publish(ctx, job, account, ref.FileName)

	// The consume CAS runs after the transition persists: an Update failure
	// leaves the job pending and the reference claimable by a later start,
	// while losing the CAS fails the job instead of wedging it in pending.
	consumed, err := u.referenceRepo.Consume(ctx, job.ReferenceID, time.Now().UTC())
	if err != nil {
		kind, ok := model.KindOf(err)
		if !ok {
			kind = model.KindReferenceInvalid
		}
		u.failJobLocked(ctx, job, account, ref.FileName, kind, err.Error())
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	u.mu.Lock()
	u.cancels[job.ID] = cancel
	u.mu.Unlock()
	go u.runUpload(runCtx, job, account, consumed, cred.AccessToken)
	return job, nil
}

// runUpload drives the platform upload with the local retry policy. Only
// failures classified retryable are attempted again, and only until the
// attempt budget runs out.
func (u *uploadUsecase) runUpload(ctx context.Context, job *model.UploadJob, account *model.PlatformAccount, ref *model.FileReference, accessToken string) {
	defer func() {
		u.mu.Lock()
		delete(u.cancels, job.ID)
		u.mu.Unlock()
	}()
	lg := logger.GetLogger().WithField("job_id", job.ID).WithField("account_id", job.AccountID)

	platform, ok := u.platforms[strings.ToLower(job.Platform)]
	if !ok {
		u.failJob(ctx, job, account, ref.FileName, model.KindValidationError, "unsupported platform: "+job.Platform)
		return
	}

	attempts := u.cfg.StartRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastKind model.ErrorKind
	var lastReason string
	for attempt := 1; attempt <= attempts; attempt++ {
		media, err := u.openMedia(ref)
		if err != nil {
			u.failJob(ctx, job, account, ref.FileName, model.KindReferenceInvalid, err.Error())
			return
		}
		outcome, err := platform.UploadVideo(ctx, accessToken, job, media, repository.UploadCallbacks{
			OnProgress: func(bytesUploaded, totalBytes int64) {
				u.recordProgress(context.Background(), job, account, ref.FileName, bytesUploaded, totalBytes)
			},
		})
		media.Close()

		if err == nil && outcome.Success {
			u.completeJob(ctx, job, account, ref.FileName, platform, outcome.PlatformObjectID)
			return
		}

		lastKind = outcome.FailureKind
		lastReason = outcome.Reason
		if lastKind == "" {
			if k, ok := model.KindOf(err); ok {
				lastKind = k
			} else {
				lastKind = model.KindTransientNetwork
			}
		}
		if lastReason == "" && err != nil {
			lastReason = err.Error()
		}
		lg.WithField("attempt", attempt).WithField("kind", string(lastKind)).WithField("error", lastReason).Warn("Upload attempt failed")

		if ctx.Err() != nil {
			u.failJob(ctx, job, account, ref.FileName, model.KindTimeout, "upload cancelled: no progress within stall timeout")
			return
		}
		if !lastKind.Retryable() || attempt == attempts {
			break
		}
		// Once the platform accepted bytes a restart would duplicate content;
		// the job fails and a new job must be created.
		if u.bytesCommitted(job) {
			lastReason = lastReason + " (partial upload accepted, not retried)"
			break
		}
		if lastKind == model.KindAuthExpired {
			// The credential store refreshes tokens inside the expiry margin,
			// so a fetch after a 401 yields fresh material.
			fresh, _, cerr := u.credentials.GetUsableCredential(ctx, job.Owner, job.AccountID)
			if cerr != nil {
				lastKind, _ = model.KindOf(cerr)
				lastReason = cerr.Error()
				break
			}
			accessToken = fresh.AccessToken
		}
	}

	if lastKind == model.KindAuthRevoked {
		if err := u.credentials.MarkReauthRequired(context.Background(), job.Owner, job.AccountID, lastReason); err != nil {
			lg.WithField("error", err).Error("Error while flagging account for re-authorization")
		}
	}
	u.failJob(ctx, job, account, ref.FileName, lastKind, lastReason)
}

func (u *uploadUsecase) bytesCommitted(job *model.UploadJob) bool {
	lock := u.lockFor(job.ID)
	lock.Lock()
	defer lock.Unlock()
	return job.Progress.BytesUploaded > 0
}

// recordProgress applies a progress callback. Progress is monotonic: byte
// counts that do not advance the high-water mark are dropped, and nothing is
// applied once the job is terminal.
func (u *uploadUsecase) recordProgress(ctx context.Context, job *model.UploadJob, account *model.PlatformAccount, fileName string, bytesUploaded, totalBytes int64) {
	lock := u.lockFor(job.ID)
	lock.Lock()
	defer lock.Unlock()

	if job.State.Terminal() {
		return
	}
	if totalBytes > 0 && totalBytes != job.Progress.TotalBytes {
		job.Progress.TotalBytes = totalBytes
	}
	if bytesUploaded > job.Progress.TotalBytes && job.Progress.TotalBytes > 0 {
		bytesUploaded = job.Progress.TotalBytes
	}
	if bytesUploaded <= job.Progress.BytesUploaded {
		return
	}
	job.Progress.BytesUploaded = bytesUploaded
	if job.Progress.TotalBytes > 0 {
		percent := int(bytesUploaded * 100 / job.Progress.TotalBytes)
		if percent > job.Progress.Percent {
			job.Progress.Percent = percent
		}
	}
	job.Version++
	if err := u.jobRepo.Update(ctx, job); err != nil {
		logger.GetLogger().WithField("job_id", job.ID).WithField("error", err).Error("Error while persisting progress")
		return
	}
	u.touchProgress(job.ID, time.Now().UTC())
	u.publish(ctx, job, account, fileName)
}

func (u *uploadUsecase) completeJob(ctx context.Context, job *model.UploadJob, account *model.PlatformAccount, fileName string, platform repository.IPlatform, platformObjectID string) {
	lock := u.lockFor(job.ID)
	lock.Lock()
	defer lock.Unlock()

	if job.State.Terminal() || u.terminalElsewhere(ctx, job) {
		return
	}
	now := time.Now().UTC()
	job.State = model.JobStateCompleted
	job.PlatformObjectID = &platformObjectID
	job.Progress.BytesUploaded = job.Progress.TotalBytes
	job.Progress.Percent = 100
	job.CompletedAt = &now
	job.StatusMessage = "Upload completed"
	if url := platform.ObjectURL(platformObjectID); url != "" {
		job.StatusMessage = url
	}
	job.Version++
	if err := u.jobRepo.Update(ctx, job); err != nil {
		logger.GetLogger().WithField("job_id", job.ID).WithField("error", err).Error("Error while persisting completed job")
	}
	u.publish(ctx, job, account, fileName)
	u.forgetProgress(job.ID)
}

func (u *uploadUsecase) failJob(ctx context.Context, job *model.UploadJob, account *model.PlatformAccount, fileName string, kind model.ErrorKind, reason string) {
	lock := u.lockFor(job.ID)
	lock.Lock()
	defer lock.Unlock()
	u.failJobLocked(ctx, job, account, fileName, kind, reason)
}

// failJobLocked requires the caller to hold the job lock.
func (u *uploadUsecase) failJobLocked(ctx context.Context, job *model.UploadJob, account *model.PlatformAccount, fileName string, kind model.ErrorKind, reason string) {
	if job.State.Terminal() || u.terminalElsewhere(ctx, job) {
		return
	}
	if kind == "" {
		kind = model.KindTransientNetwork
	}
	now := time.Now().UTC()
	job.State = model.JobStateFailed
	job.CompletedAt = &now
	job.StatusMessage = string(kind) + ": " + reason
	job.Version++
	if err := u.jobRepo.Update(ctx, job); err != nil {
		logger.GetLogger().WithField("job_id", job.ID).WithField("error", err).Error("Error while persisting failed job")
	}
	u.publish(ctx, job, account, fileName)
	u.forgetProgress(job.ID)
}

// terminalElsewhere guards the terminal transition against a concurrent
// writer (the stall watchdog and the upload goroutine hold distinct copies).
func (u *uploadUsecase) terminalElsewhere(ctx context.Context, job *model.UploadJob) bool {
	cur, err := u.jobRepo.Get(ctx, job.ID)
	if err != nil {
		return false
	}
	if cur.Version > job.Version {
		job.Version = cur.Version
	}
	return cur.State.Terminal()
}

func (u *uploadUsecase) GetJob(ctx context.Context, owner, jobID string) (*model.UploadJob, error) {
	return u.getOwned(ctx, owner, jobID)
}

func (u *uploadUsecase) ListActive(ctx context.Context, owner string) ([]*model.UploadJob, error) {
	return u.jobRepo.ListActive(ctx, owner)
}

func (u *uploadUsecase) getOwned(ctx context.Context, owner, jobID string) (*model.UploadJob, error) {
	job, err := u.jobRepo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Owner != owner {
		return nil, model.NewDomainError(model.KindNotFound, "job not found")
	}
	return job, nil
}

func (u *uploadUsecase) Snapshot(ctx context.Context, job *model.UploadJob) (*dto.UploadStatusResponse, error) {
	account, err := u.accountRepo.Get(ctx, job.Owner, job.AccountID)
	if err != nil {
		account = nil
	}
	fileName := ""
	if ref, err := u.referenceRepo.Get(ctx, job.ReferenceID); err == nil {
		fileName = ref.FileName
	}
	return dto.StatusSnapshot(job, account, fileName), nil
}

func (u *uploadUsecase) CheckStalled(ctx context.Context) error {
	jobs, err := u.jobRepo.ListActive(ctx, "")
	if err != nil {
		return err
	}
	stallAfter := u.cfg.StallTimeout()
	now := time.Now().UTC()
	for _, job := range jobs {
		if job.State != model.JobStateUploading {
			continue
		}
		last := u.lastProgressAt(job.ID)
		if last.IsZero() && job.StartedAt != nil {
			last = *job.StartedAt
		}
		if last.IsZero() || now.Sub(last) < stallAfter {
			continue
		}
		logger.GetLogger().WithField("job_id", job.ID).WithField("last_progress", last).Warn("Upload stalled, cancelling")
		u.mu.Lock()
		cancel := u.cancels[job.ID]
		u.mu.Unlock()
		if cancel != nil {
			cancel()
			continue
		}
		// No in-flight goroutine owns the job (for example after a restart),
		// so the watchdog terminates it directly.
		fileName := ""
		if ref, err := u.referenceRepo.Get(ctx, job.ReferenceID); err == nil {
			fileName = ref.FileName
		}
		account, _ := u.accountRepo.Get(ctx, job.Owner, job.AccountID)
		u.failJob(ctx, job, account, fileName, model.KindTimeout, "no progress within stall timeout")
	}
	return nil
}

func (u *uploadUsecase) publish(ctx context.Context, job *model.UploadJob, account *model.PlatformAccount, fileName string) {
	snap := dto.StatusSnapshot(job, account, fileName)
	if u.statusCache != nil {
		u.statusCache.SetSnapshot(ctx, snap)
	}
	if u.hub != nil {
		u.hub.BroadcastStatus(snap)
	}
	if u.publisher != nil {
		if err := u.publisher.PublishStatus(ctx, snap); err != nil {
			logger.GetLogger().WithField("job_id", job.ID).WithField("error", err).Warn("Error while publishing status snapshot")
		}
	}
}

func (u *uploadUsecase) touchProgress(jobID string, at time.Time) {
	u.mu.Lock()
	u.lastProgress[jobID] = at
	u.mu.Unlock()
}

func (u *uploadUsecase) lastProgressAt(jobID string) time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastProgress[jobID]
}

func (u *uploadUsecase) forgetProgress(jobID string) {
	u.mu.Lock()
	delete(u.lastProgress, jobID)
	u.mu.Unlock()
}

func newJobID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte(time.Now().UTC().Format("20060102150405.000000")))
	}
	return hex.EncodeToString(buf)
}
