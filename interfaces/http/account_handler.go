package http

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"media-hub/infrastructure/logger"
	"media-hub/usecase"
)

type IAccountHandler interface {
	GetAuthURL(ctx *gin.Context)
	HandleCallback(ctx *gin.Context)
	ListAccounts(ctx *gin.Context)
	DisconnectAccount(ctx *gin.Context)
	RefreshProfile(ctx *gin.Context)
}

type AccountHandler struct {
	accountUsecase usecase.IAccountUsecase
}

func NewAccountHandler(accountUsecase usecase.IAccountUsecase) IAccountHandler {
	return &AccountHandler{accountUsecase: accountUsecase}
}

// GetAuthURL handles GET /auth/:platform
func (h *AccountHandler) GetAuthURL(ctx *gin.Context) {
	owner := ctx.GetString("user_id")
	if owner == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	platform := ctx.Param("platform")

	state := generateRandomState()
	ctx.SetCookie("oauth_state", state, 600, "/", "", false, true)
	ctx.SetCookie("oauth_owner", owner, 600, "/", "", false, true)

	authURL, err := h.accountUsecase.AuthURL(platform, state)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// HandleCallback handles GET /auth/:platform/callback
func (h *AccountHandler) HandleCallback(ctx *gin.Context) {
	platform := ctx.Param("platform")
	if errorParam := ctx.Query("error"); errorParam != "" {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":       "OAuth error: " + errorParam,
			"description": ctx.Query("error_description"),
		})
		return
	}

	state := ctx.Query("state")
	expected, err := ctx.Cookie("oauth_state")
	if state == "" || err != nil || state != expected {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":  "State parameter missing or mismatched",
			"action": "Visit /auth/" + platform + " to start over",
		})
		return
	}
	owner, err := ctx.Cookie("oauth_owner")
	if err != nil || owner == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Authorization session expired"})
		return
	}
	code := ctx.Query("code")
	if code == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Authorization code not found"})
		return
	}

	account, err := h.accountUsecase.CompleteAuth(ctx.Request.Context(), owner, platform, code)
	if err != nil {
		logger.GetLogger().WithField("platform", platform).WithField("error", err.Error()).Error("oauth callback failed")
		abortWithError(ctx, err)
		return
	}

	ctx.SetCookie("oauth_state", "", -1, "/", "", false, true)
	ctx.SetCookie("oauth_owner", "", -1, "/", "", false, true)
	ctx.JSON(http.StatusOK, gin.H{
		"success":    true,
		"account_id": account.ID,
		"name":       account.Name,
		"platform":   account.Platform,
	})
}

func (h *AccountHandler) ListAccounts(ctx *gin.Context) {
	owner := ctx.GetString("user_id")
	accounts, err := h.accountUsecase.ListAccounts(ctx.Request.Context(), owner)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *AccountHandler) DisconnectAccount(ctx *gin.Context) {
	owner := ctx.GetString("user_id")
	accountID := ctx.Param("accountId")
	if err := h.accountUsecase.DisconnectAccount(ctx.Request.Context(), owner, accountID); err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"disconnected": true, "account_id": accountID})
}

func (h *AccountHandler) RefreshProfile(ctx *gin.Context) {
	owner := ctx.GetString("user_id")
	accountID := ctx.Param("accountId")
	account, err := h.accountUsecase.RefreshProfile(ctx.Request.Context(), owner, accountID)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"account_id":       account.ID,
		"name":             account.Name,
		"handle":           account.Handle,
		"subscriber_count": account.SubscriberCount,
	})
}

// generateRandomState generates a random state parameter for OAuth2
func generateRandomState() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
