package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"media-hub/domain/model"
)

// statusForError maps the failure taxonomy onto HTTP status codes.
func statusForError(err error) int {
	kind, ok := model.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindValidationError, model.KindReferenceInvalid:
		return http.StatusBadRequest
	case model.KindReferenceExpired:
		return http.StatusGone
	case model.KindAccountNotUsable:
		return http.StatusConflict
	case model.KindAuthExpired, model.KindAuthRevoked:
		return http.StatusForbidden
	case model.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case model.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(ctx *gin.Context, err error) {
	ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
}
