package youtube

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"media-hub/domain/model"
	"media-hub/domain/repository"
	"media-hub/infrastructure/configuration"
	"media-hub/infrastructure/logger"
)

// Client is the YouTube platform adapter.
type Client struct {
	oauthConfig *oauth2.Config
}

// NewYouTubeClient builds the adapter from resolved OAuth client settings.
func NewYouTubeClient(cfg *configuration.PlatformOAuthConfig) repository.IPlatform {
	return &Client{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				youtube.YoutubeScope,
				youtube.YoutubeUploadScope,
				youtube.YoutubeForceSslScope,
			},
			Endpoint: google.Endpoint,
		},
	}
}

// AuthCodeURL builds the consent URL for the authorization flow. Offline
// access and forced consent make sure a refresh token comes back.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades the authorization code for token material.
func (c *Client) Exchange(ctx context.Context, code string) (model.Credential, error) {
	token, err := c.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return model.Credential{}, model.WrapDomainError(classifyOAuthError(err), "authorization code exchange failed", err)
	}
	return credentialFromToken(token, ""), nil
}

func (c *Client) service(ctx context.Context, accessToken string) (*youtube.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return youtube.NewService(ctx, option.WithTokenSource(source))
}

// UploadVideo performs a resumable upload and blocks until the platform
// confirms or rejects it. Byte progress flows through cb.OnProgress.
func (c *Client) UploadVideo(ctx context.Context, accessToken string, job *model.UploadJob, media io.Reader, cb repository.UploadCallbacks) (model.UploadOutcome, error) {
	service, err := c.service(ctx, accessToken)
	if err != nil {
		return model.FailureOutcome(model.KindTransientNetwork, err.Error()), model.WrapDomainError(model.KindTransientNetwork, "failed to create YouTube service", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       job.Metadata.Title,
			Description: job.Metadata.Description,
			Tags:        job.Metadata.Tags,
			CategoryId:  job.Metadata.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           privacyOrDefault(job.Metadata.Privacy),
			SelfDeclaredMadeForKids: job.Metadata.MadeForKids,
		},
	}
	if job.Metadata.PublishAt != nil {
		video.Status.PrivacyStatus = "private"
		video.Status.PublishAt = job.Metadata.PublishAt.Format(time.RFC3339)
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video).
		Media(media, googleapi.ChunkSize(googleapi.DefaultUploadChunkSize)).
		NotifySubscribers(false)
	if cb.OnProgress != nil {
		total := job.Progress.TotalBytes
		call = call.ProgressUpdater(func(current, size int64) {
			if size <= 0 {
				size = total
			}
			cb.OnProgress(current, size)
		})
	}

	response, err := call.Context(ctx).Do()
	if err != nil {
		kind := classifyAPIError(err)
		logger.GetLogger().
			WithField("job_id", job.ID).
			WithField("kind", string(kind)).
			WithField("error", err).
			Error("YouTube upload failed")
		return model.FailureOutcome(kind, err.Error()), model.WrapDomainError(kind, "video upload failed", err)
	}
	return model.SuccessOutcome(response.Id), nil
}

// RefreshCredential exchanges the refresh token for a fresh access token. The
// platform may omit the refresh token in its response; the previous one is
// kept in that case.
func (c *Client) RefreshCredential(ctx context.Context, cred model.Credential) (model.Credential, error) {
	if cred.RefreshToken == "" {
		return model.Credential{}, model.NewDomainError(model.KindAuthRevoked, "no refresh token on record")
	}
	stale := &oauth2.Token{
		RefreshToken: cred.RefreshToken,
		Expiry:       time.Now().Add(-1 * time.Minute), // Force refresh
	}
	token, err := c.oauthConfig.TokenSource(ctx, stale).Token()
	if err != nil {
		return model.Credential{}, model.WrapDomainError(classifyOAuthError(err), "token refresh failed", err)
	}
	return credentialFromToken(token, cred.RefreshToken), nil
}

// FetchAccountProfile loads the authenticated user's channel metadata.
func (c *Client) FetchAccountProfile(ctx context.Context, accessToken string) (*model.PlatformAccount, error) {
	service, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, model.WrapDomainError(model.KindTransientNetwork, "failed to create YouTube service", err)
	}
	response, err := service.Channels.List([]string{"snippet", "statistics"}).Mine(true).Context(ctx).Do()
	if err != nil {
		kind := classifyAPIError(err)
		return nil, model.WrapDomainError(kind, "failed to get my channel", err)
	}
	if len(response.Items) == 0 {
		return nil, model.NewDomainError(model.KindNotFound, "no channel found for authenticated user")
	}

	channel := response.Items[0]
	account := &model.PlatformAccount{
		ID:       channel.Id,
		Platform: "youtube",
		Name:     channel.Snippet.Title,
		Handle:   channel.Snippet.CustomUrl,
		IsActive: true,
	}
	if channel.Snippet.Thumbnails != nil && channel.Snippet.Thumbnails.Default != nil {
		account.AvatarURL = channel.Snippet.Thumbnails.Default.Url
	}
	if channel.Statistics != nil {
		account.SubscriberCount = int64(channel.Statistics.SubscriberCount)
		account.VideoCount = int64(channel.Statistics.VideoCount)
	}
	return account, nil
}

func credentialFromToken(token *oauth2.Token, fallbackRefresh string) model.Credential {
	cred := model.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = fallbackRefresh
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		cred.TokenExpiresAt = &expiry
	}
	if scope, ok := token.Extra("scope").(string); ok {
		cred.Scopes = scope
	}
	return cred
}

func privacyOrDefault(privacy string) string {
	switch privacy {
	case "public", "unlisted", "private":
		return privacy
	default:
		return "private"
	}
}

// classifyAPIError maps a YouTube Data API failure onto the error taxonomy.
func classifyAPIError(err error) model.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.KindTimeout
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401:
			return model.KindAuthExpired
		case apiErr.Code == 403 && hasReason(apiErr, "quotaExceeded", "rateLimitExceeded", "uploadLimitExceeded"):
			return model.KindQuotaExceeded
		case apiErr.Code == 403:
			return model.KindAuthRevoked
		case apiErr.Code == 400 || apiErr.Code == 404:
			return model.KindValidationError
		case apiErr.Code >= 500:
			return model.KindTransientNetwork
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return model.KindTimeout
		}
		return model.KindTransientNetwork
	}
	return model.KindTransientNetwork
}

// classifyOAuthError maps a token endpoint failure. An invalid_grant means the
// refresh token is dead and the account needs a new authorization flow.
func classifyOAuthError(err error) model.ErrorKind {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		body := strings.ToLower(string(retrieveErr.Body))
		if strings.Contains(body, "invalid_grant") || strings.Contains(body, "unauthorized_client") {
			return model.KindAuthRevoked
		}
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500 {
			return model.KindTransientNetwork
		}
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 400 {
			return model.KindAuthRevoked
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.KindTimeout
	}
	return model.KindTransientNetwork
}

func hasReason(apiErr *googleapi.Error, reasons ...string) bool {
	for _, item := range apiErr.Errors {
		for _, reason := range reasons {
			if item.Reason == reason {
				return true
			}
		}
	}
	if apiErr.Message != "" {
		msg := strings.ToLower(apiErr.Message)
		for _, reason := range reasons {
			if strings.Contains(msg, strings.ToLower(reason)) {
				return true
			}
		}
	}
	return false
}
