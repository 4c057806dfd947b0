package usecase

import (
	"context"
	"strings"
	"time"

	"media-hub/domain/dto"
	"media-hub/domain/model"
	"media-hub/domain/repository"
	"media-hub/infrastructure/logger"
)

// OAuthFlow is the authorization-code web flow a platform adapter exposes.
type OAuthFlow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (model.Credential, error)
}

// IAccountUsecase manages connected platform accounts: the authorization
// flow, listing, and disconnection.
type IAccountUsecase interface {
	// AuthURL returns the consent URL to start connecting a platform account.
	AuthURL(platform, state string) (string, error)
	// CompleteAuth exchanges the code, loads the profile, stores the
	// encrypted credential and fans the account out to agents.
	CompleteAuth(ctx context.Context, owner, platform, code string) (*model.PlatformAccount, error)
	ListAccounts(ctx context.Context, owner string) ([]dto.AccountResponse, error)
	// DisconnectAccount deactivates the account and removes its bindings.
	DisconnectAccount(ctx context.Context, owner, accountID string) error
	// RefreshProfile re-reads display metadata from the platform and
	// propagates it to the bindings.
	RefreshProfile(ctx context.Context, owner, accountID string) (*model.PlatformAccount, error)
}

type accountUsecase struct {
	accountRepo repository.IAccount
	platforms   map[string]repository.IPlatform
	credentials ICredentialUsecase
	projector   IProjectorUsecase
}

func NewAccountUsecase(accountRepo repository.IAccount, platforms map[string]repository.IPlatform, credentials ICredentialUsecase, projector IProjectorUsecase) IAccountUsecase {
	return &accountUsecase{
		accountRepo: accountRepo,
		platforms:   platforms,
		credentials: credentials,
		projector:   projector,
	}
}

func (u *accountUsecase) flow(platform string) (OAuthFlow, repository.IPlatform, error) {
	adapter, ok := u.platforms[strings.ToLower(platform)]
	if !ok {
		return nil, nil, model.NewDomainError(model.KindValidationError, "unsupported platform: "+platform)
	}
	flow, ok := adapter.(OAuthFlow)
	if !ok {
		return nil, nil, model.NewDomainError(model.KindValidationError, "platform does not support the web authorization flow: "+platform)
	}
	return flow, adapter, nil
}

func (u *accountUsecase) AuthURL(platform, state string) (string, error) {
	flow, _, err := u.flow(platform)
	if err != nil {
		return "", err
	}
	return flow.AuthCodeURL(state), nil
}

func (u *accountUsecase) CompleteAuth(ctx context.Context, owner, platform, code string) (*model.PlatformAccount, error) {
	flow, adapter, err := u.flow(platform)
	if err != nil {
		return nil, err
	}
	cred, err := flow.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	account, err := adapter.FetchAccountProfile(ctx, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account.Owner = owner
	account.Credential = cred
	account.IsActive = true
	account.UpdatedAt = now
	if existing, gerr := u.accountRepo.Get(ctx, owner, account.ID); gerr == nil {
		account.CreatedAt = existing.CreatedAt
	} else {
		account.CreatedAt = now
	}

	// A completed authorization flow clears needs_reauth.
	if err := u.credentials.StoreCredential(ctx, account); err != nil {
		return nil, err
	}
	if u.projector != nil {
		if err := u.projector.OnAccountConnected(ctx, account); err != nil {
			logger.GetLogger().
				WithField("account_id", account.ID).
				WithField("error", err).
				Error("Error while projecting connected account")
		}
	}
	logger.GetLogger().
		WithField("owner", owner).
		WithField("platform", account.Platform).
		WithField("account_id", account.ID).
		Info("Platform account connected")
	return account, nil
}

func (u *accountUsecase) ListAccounts(ctx context.Context, owner string) ([]dto.AccountResponse, error) {
	accounts, err := u.accountRepo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	res := make([]dto.AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		res = append(res, dto.NewAccountResponse(a))
	}
	return res, nil
}

func (u *accountUsecase) DisconnectAccount(ctx context.Context, owner, accountID string) error {
	account, err := u.accountRepo.Get(ctx, owner, accountID)
	if err != nil {
		return err
	}
	if err := u.accountRepo.Deactivate(ctx, owner, accountID); err != nil {
		return err
	}
	if u.projector == nil {
		return nil
	}
	return u.projector.OnAccountRemoved(ctx, owner, account.Platform, accountID)
}

func (u *accountUsecase) RefreshProfile(ctx context.Context, owner, accountID string) (*model.PlatformAccount, error) {
	cred, account, err := u.credentials.GetUsableCredential(ctx, owner, accountID)
	if err != nil {
		return nil, err
	}
	adapter, ok := u.platforms[strings.ToLower(account.Platform)]
	if !ok {
		return nil, model.NewDomainError(model.KindValidationError, "unsupported platform: "+account.Platform)
	}
	profile, err := adapter.FetchAccountProfile(ctx, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	// Re-read the stored record so the upsert keeps the encrypted credential
	// columns instead of the plaintext copy handed out above.
	account, err = u.accountRepo.Get(ctx, owner, accountID)
	if err != nil {
		return nil, err
	}
	account.Name = profile.Name
	account.Handle = profile.Handle
	account.AvatarURL = profile.AvatarURL
	account.SubscriberCount = profile.SubscriberCount
	account.VideoCount = profile.VideoCount
	account.UpdatedAt = time.Now().UTC()
	if err := u.accountRepo.Upsert(ctx, account); err != nil {
		return nil, err
	}
	if u.projector != nil {
		if err := u.projector.OnAccountUpdated(ctx, account); err != nil {
			logger.GetLogger().WithField("account_id", account.ID).WithField("error", err).Warn("Error while projecting account update")
		}
	}
	return account, nil
}
