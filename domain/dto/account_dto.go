package dto

import "media-hub/domain/model"

// AccountConnectedPayload is posted by the authorization flow completion.
type AccountConnectedPayload struct {
	Platform string                `json:"platform" binding:"required"`
	Account  model.PlatformAccount `json:"account" binding:"required"`
}

// AccountResponse hides credential material from API consumers.
type AccountResponse struct {
	ID              string `json:"id"`
	Platform        string `json:"platform"`
	Name            string `json:"name"`
	Handle          string `json:"handle"`
	AvatarURL       string `json:"avatar_url"`
	SubscriberCount int64  `json:"subscriber_count"`
	NeedsReauth     bool   `json:"needs_reauth"`
	IsActive        bool   `json:"is_active"`
}

// NewAccountResponse maps a PlatformAccount to its API shape.
func NewAccountResponse(a *model.PlatformAccount) AccountResponse {
	return AccountResponse{
		ID:              a.ID,
		Platform:        a.Platform,
		Name:            a.Name,
		Handle:          a.Handle,
		AvatarURL:       a.AvatarURL,
		SubscriberCount: a.SubscriberCount,
		NeedsReauth:     a.RefreshState.NeedsReauth,
		IsActive:        a.IsActive,
	}
}

// MergeBindingsRequest carries runtime-selected bindings to merge with the
// stored configuration when assembling an effective agent session.
type MergeBindingsRequest struct {
	Bindings []RuntimeBinding `json:"bindings"`
}

// RuntimeBinding is a runtime-supplied binding selection. For an identity
// already present in stored configuration it overrides enabled only.
type RuntimeBinding struct {
	Platform  string `json:"platform" binding:"required"`
	AccountID string `json:"account_id" binding:"required"`
	Enabled   bool   `json:"enabled"`
}
