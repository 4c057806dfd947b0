package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"media-hub/domain/dto"
	"media-hub/domain/model"
	"media-hub/usecase"
)

type IAgentHandler interface {
	ListBindings(ctx *gin.Context)
	MergeBindings(ctx *gin.Context)
}

type AgentHandler struct {
	projectorUsecase usecase.IProjectorUsecase
}

func NewAgentHandler(projectorUsecase usecase.IProjectorUsecase) IAgentHandler {
	return &AgentHandler{projectorUsecase: projectorUsecase}
}

// ListBindings returns the stored bindings for an agent without runtime
// overrides applied.
func (h *AgentHandler) ListBindings(ctx *gin.Context) {
	agentID := ctx.Param("agentId")
	bindings, err := h.projectorUsecase.MergeBindings(ctx.Request.Context(), agentID, nil)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	if bindings == nil {
		bindings = []*model.AgentBinding{}
	}
	ctx.JSON(http.StatusOK, gin.H{"agent_id": agentID, "bindings": bindings})
}

// MergeBindings assembles the effective session bindings for an agent from
// stored configuration plus runtime selections.
func (h *AgentHandler) MergeBindings(ctx *gin.Context) {
	agentID := ctx.Param("agentId")
	var req dto.MergeBindingsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	bindings, err := h.projectorUsecase.MergeBindings(ctx.Request.Context(), agentID, req.Bindings)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"agent_id": agentID, "bindings": bindings})
}
