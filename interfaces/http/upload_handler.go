package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"media-hub/domain/dto"
	"media-hub/domain/model"
	"media-hub/infrastructure/logger"
	"media-hub/infrastructure/realtime"
	"media-hub/usecase"
)

type IUploadHandler interface {
	CreateReference(ctx *gin.Context)
	CreateUpload(ctx *gin.Context)
	StartUpload(ctx *gin.Context)
	GetUploadStatus(ctx *gin.Context)
	StreamUploadStatus(ctx *gin.Context)
	ListActiveUploads(ctx *gin.Context)
}

type UploadHandler struct {
	referenceUsecase usecase.IReferenceUsecase
	uploadUsecase    usecase.IUploadUsecase
	statusUsecase    usecase.IStatusUsecase
	hub              *realtime.StatusHub
}

func NewUploadHandler(referenceUsecase usecase.IReferenceUsecase, uploadUsecase usecase.IUploadUsecase, statusUsecase usecase.IStatusUsecase, hub *realtime.StatusHub) IUploadHandler {
	return &UploadHandler{
		referenceUsecase: referenceUsecase,
		uploadUsecase:    uploadUsecase,
		statusUsecase:    statusUsecase,
		hub:              hub,
	}
}

func (h *UploadHandler) CreateReference(ctx *gin.Context) {
	owner := ctx.GetString("user_id")
	if owner == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	var req dto.CreateReferenceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ref, err := h.referenceUsecase.CreateReference(ctx.Request.Context(), owner, &req)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"reference_id": ref.ID,
		"expires_at":   ref.ExpiresAt,
	})
}

func (h *UploadHandler) CreateUpload(ctx *gin.Context) {
	owner := ctx.GetString("user_id")
	if owner == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	var req dto.CreateUploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	job, err := h.uploadUsecase.CreateJob(ctx.Request.Context(), owner, &req)
	if err != nil {
		logger.GetLogger().WithField("owner", owner).WithField("error", err.Error()).Warn("create upload failed")
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"job_id": job.ID, "state": string(job.State), "version": job.Version})
}

func (h *UploadHandler) StartUpload(ctx *gin.Context) {
	owner := ctx.GetString("user_id")
	jobID := ctx.Param("jobId")
	job, err := h.uploadUsecase.StartJob(ctx.Request.Context(), owner, jobID)
	if err != nil {
		logger.GetLogger().WithField("job_id", jobID).WithField("error", err.Error()).Warn("start upload failed")
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"job_id": job.ID, "state": string(job.State.Normalize()), "version": job.Version})
}

// GetUploadStatus answers the pull channel. With ?wait=true it long-polls
// until the job is terminal or the observer wait budget runs out.
func (h *UploadHandler) GetUploadStatus(ctx *gin.Context) {
	owner := ctx.GetString("user_id")
	jobID := ctx.Param("jobId")

	var snap *dto.UploadStatusResponse
	var err error
	if ctx.Query("wait") == "true" {
		snap, err = h.statusUsecase.WaitForTerminal(ctx.Request.Context(), owner, jobID)
	} else {
		snap, err = h.statusUsecase.GetStatus(ctx.Request.Context(), owner, jobID)
	}
	if err != nil {
		if snap != nil && model.IsKind(err, model.KindTimeout) {
			// The wait budget ran out without a terminal state. Report the job
			// as stalled so the caller does not mistake it for a live upload.
			stalled := *snap
			stalled.Status = "unknown"
			stalled.Message = "stalled: no terminal state within the wait budget"
			ctx.JSON(http.StatusOK, &stalled)
			return
		}
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, snap)
}

// StreamUploadStatus is the push channel: an SSE stream of status snapshots.
func (h *UploadHandler) StreamUploadStatus(ctx *gin.Context) {
	owner := ctx.GetString("user_id")
	jobID := ctx.Param("jobId")
	snap, err := h.statusUsecase.GetStatus(ctx.Request.Context(), owner, jobID)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	h.hub.Serve(ctx, jobID, snap)
}

func (h *UploadHandler) ListActiveUploads(ctx *gin.Context) {
	owner := ctx.GetString("user_id")
	jobs, err := h.uploadUsecase.ListActive(ctx.Request.Context(), owner)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	if jobs == nil {
		jobs = []*model.UploadJob{}
	}
	ctx.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
