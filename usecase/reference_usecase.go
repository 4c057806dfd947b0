package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"media-hub/domain/dto"
	"media-hub/domain/model"
	"media-hub/domain/repository"
	"media-hub/infrastructure/logger"
)

// IReferenceUsecase manages short-lived file references handed out after a
// payload is received and claimed exactly once by an upload job.
type IReferenceUsecase interface {
	CreateReference(ctx context.Context, owner string, req *dto.CreateReferenceRequest) (*model.FileReference, error)
	GetReference(ctx context.Context, owner, id string) (*model.FileReference, error)
	// ConsumeReference atomically claims the reference for a job. At most one
	// caller succeeds; late callers get ReferenceInvalid or ReferenceExpired.
	ConsumeReference(ctx context.Context, owner, id string) (*model.FileReference, error)
	// SweepExpired deletes unconsumed references whose TTL elapsed, except
	// those still claimed by a non-terminal upload job.
	SweepExpired(ctx context.Context) (int64, error)
	// WithJobGuard teaches the sweep which references active jobs still hold.
	WithJobGuard(jobRepo repository.IUploadJob) IReferenceUsecase
}

type referenceUsecase struct {
	referenceRepo repository.IReference
	jobRepo       repository.IUploadJob
	ttl           time.Duration
}

func NewReferenceUsecase(referenceRepo repository.IReference, ttl time.Duration) IReferenceUsecase {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &referenceUsecase{referenceRepo: referenceRepo, ttl: ttl}
}

func (u *referenceUsecase) WithJobGuard(jobRepo repository.IUploadJob) IReferenceUsecase {
	u.jobRepo = jobRepo
	return u
}

func (u *referenceUsecase) CreateReference(ctx context.Context, owner string, req *dto.CreateReferenceRequest) (*model.FileReference, error) {
	if req.FileName == "" || req.SizeBytes <= 0 {
		return nil, model.NewDomainError(model.KindValidationError, "file_name and positive size_bytes required")
	}
	kind := model.ReferenceKind(req.Kind)
	if kind == "" {
		kind = model.ReferenceKindVideo
	}
	if kind != model.ReferenceKindVideo && kind != model.ReferenceKindThumbnail {
		return nil, model.NewDomainError(model.KindValidationError, "unsupported reference kind: "+req.Kind)
	}

	now := time.Now().UTC()
	ref := &model.FileReference{
		ID:        newReferenceID(),
		Owner:     owner,
		FileName:  req.FileName,
		SizeBytes: req.SizeBytes,
		MimeType:  req.MimeType,
		Checksum:  req.Checksum,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(u.ttl),
	}
	if err := u.referenceRepo.Create(ctx, ref); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while creating file reference")
		return nil, err
	}
	return ref, nil
}

func (u *referenceUsecase) GetReference(ctx context.Context, owner, id string) (*model.FileReference, error) {
	ref, err := u.referenceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.Owner != owner {
		return nil, model.NewDomainError(model.KindNotFound, "reference not found")
	}
	return ref, nil
}

func (u *referenceUsecase) ConsumeReference(ctx context.Context, owner, id string) (*model.FileReference, error) {
	ref, err := u.referenceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.Owner != owner {
		return nil, model.NewDomainError(model.KindNotFound, "reference not found")
	}
	return u.referenceRepo.Consume(ctx, id, time.Now().UTC())
}

func (u *referenceUsecase) SweepExpired(ctx context.Context) (int64, error) {
	var keep []string
	if u.jobRepo != nil {
		jobs, err := u.jobRepo.ListActive(ctx, "")
		if err != nil {
			return 0, err
		}
		for _, job := range jobs {
			keep = append(keep, job.ReferenceID)
			if job.ThumbReferenceID != nil {
				keep = append(keep, *job.ThumbReferenceID)
			}
		}
	}
	removed, err := u.referenceRepo.DeleteExpired(ctx, time.Now().UTC(), keep)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.GetLogger().WithField("removed", removed).Info("Expired file references swept")
	}
	return removed, nil
}

// newReferenceID returns a 32-char hex handle; it is the only capability a
// client holds for the stored payload.
func newReferenceID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte(time.Now().UTC().Format("20060102150405.000")))
	}
	return hex.EncodeToString(buf)
}
