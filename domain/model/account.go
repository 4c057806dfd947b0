package model

import "time"

// Credential holds OAuth token material for a platform account. Access and
// refresh tokens are stored encrypted at rest; the values on this struct are
// plaintext only after the credential store decrypted them.
type Credential struct {
	AccessToken    string     `json:"access_token"`
	RefreshToken   string     `json:"refresh_token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	Scopes         string     `json:"scopes"`
}

// RefreshState tracks credential refresh bookkeeping for an account.
type RefreshState struct {
	NeedsReauth                bool       `json:"needs_reauth"`
	LastRefreshSuccessAt       *time.Time `json:"last_refresh_success_at,omitempty"`
	LastRefreshErrorAt         *time.Time `json:"last_refresh_error_at,omitempty"`
	LastRefreshError           *string    `json:"last_refresh_error,omitempty"`
	ConsecutiveRefreshFailures int        `json:"consecutive_refresh_failures"`
}

// PlatformAccount is a connected third-party platform identity, unique per
// (id, owner). A credential flagged needs_reauth must never be handed to the
// upload job manager until a new authorization flow clears the flag.
type PlatformAccount struct {
	ID              string       `json:"id"`
	Owner           string       `json:"owner"`
	Platform        string       `json:"platform"`
	Name            string       `json:"name"`
	Handle          string       `json:"handle"`
	AvatarURL       string       `json:"avatar_url"`
	SubscriberCount int64        `json:"subscriber_count"`
	VideoCount      int64        `json:"video_count"`
	Credential      Credential   `json:"-"`
	RefreshState    RefreshState `json:"refresh_state"`
	IsActive        bool         `json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Usable reports whether the job manager may create work against this account.
func (a *PlatformAccount) Usable() bool {
	return a.IsActive && !a.RefreshState.NeedsReauth
}
