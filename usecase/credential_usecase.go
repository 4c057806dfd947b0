package usecase

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"media-hub/domain/model"
	"media-hub/domain/repository"
	"media-hub/infrastructure/logger"
	"media-hub/infrastructure/secrets"
)

// ICredentialUsecase is the credential store. It hands out decrypted, fresh
// token material and owns the refresh-before-expiry and failure bookkeeping.
// An account flagged needs_reauth is never handed to the job manager.
type ICredentialUsecase interface {
	// GetUsableCredential returns plaintext token material for a usable
	// account, refreshing first when expiry falls inside the margin.
	GetUsableCredential(ctx context.Context, owner, accountID string) (model.Credential, *model.PlatformAccount, error)
	// StoreCredential encrypts the plaintext credential on the account and
	// persists the whole record. Used when an authorization flow completes.
	StoreCredential(ctx context.Context, account *model.PlatformAccount) error
	// MarkReauthRequired flags the account after a non-recoverable auth
	// failure observed outside the refresh path.
	MarkReauthRequired(ctx context.Context, owner, accountID, reason string) error
}

type credentialUsecase struct {
	accountRepo repository.IAccount
	platforms   map[string]repository.IPlatform
	box         secrets.Encryptor
	margin      time.Duration
	threshold   int
	flight      singleflight.Group
}

func NewCredentialUsecase(accountRepo repository.IAccount, platforms map[string]repository.IPlatform, box secrets.Encryptor, margin time.Duration, threshold int) ICredentialUsecase {
	if margin <= 0 {
		margin = 5 * time.Minute
	}
	if threshold <= 0 {
		threshold = 3
	}
	return &credentialUsecase{
		accountRepo: accountRepo,
		platforms:   platforms,
		box:         box,
		margin:      margin,
		threshold:   threshold,
	}
}

func (u *credentialUsecase) GetUsableCredential(ctx context.Context, owner, accountID string) (model.Credential, *model.PlatformAccount, error) {
	account, err := u.accountRepo.Get(ctx, owner, accountID)
	if err != nil {
		return model.Credential{}, nil, err
	}
	if !account.Usable() {
		return model.Credential{}, nil, model.NewDomainError(model.KindAccountNotUsable, "account is inactive or needs re-authorization")
	}

	cred, err := u.decrypt(account.Credential)
	if err != nil {
		return model.Credential{}, nil, err
	}
	if !u.needsRefresh(cred) {
		account.Credential = cred
		return cred, account, nil
	}

	// Concurrent callers for the same account share one refresh. The refresh
	// runs detached from the initiating caller's context so its cancellation
	// does not fail the coalesced waiters.
	key := owner + "/" + accountID
	refreshCtx := context.WithoutCancel(ctx)
	result, err, _ := u.flight.Do(key, func() (interface{}, error) {
		return u.refresh(refreshCtx, account, cred)
	})
	if err != nil {
		return model.Credential{}, nil, err
	}
	fresh := result.(model.Credential)
	account.Credential = fresh
	return fresh, account, nil
}

func (u *credentialUsecase) needsRefresh(cred model.Credential) bool {
	if cred.AccessToken == "" {
		return true
	}
	if cred.TokenExpiresAt == nil {
		return false
	}
	return time.Until(*cred.TokenExpiresAt) < u.margin
}

// refresh exchanges the refresh token, persists the outcome, and applies the
// failure threshold. Runs inside the singleflight group.
func (u *credentialUsecase) refresh(ctx context.Context, account *model.PlatformAccount, cred model.Credential) (model.Credential, error) {
	lg := logger.GetLogger().WithField("owner", account.Owner).WithField("account_id", account.ID)

	platform, ok := u.platforms[strings.ToLower(account.Platform)]
	if !ok {
		return model.Credential{}, model.NewDomainError(model.KindValidationError, "unsupported platform: "+account.Platform)
	}

	fresh, err := platform.RefreshCredential(ctx, cred)
	now := time.Now().UTC()
	if err != nil {
		state := account.RefreshState
		state.ConsecutiveRefreshFailures++
		state.LastRefreshErrorAt = &now
		msg := err.Error()
		state.LastRefreshError = &msg

		kind, _ := model.KindOf(err)
		if kind == model.KindAuthRevoked || state.ConsecutiveRefreshFailures >= u.threshold {
			state.NeedsReauth = true
		}
		if uerr := u.accountRepo.UpdateRefreshState(ctx, account.Owner, account.ID, state); uerr != nil {
			lg.WithField("error", uerr).Error("Error while persisting refresh failure state")
		}
		account.RefreshState = state
		lg.WithField("error", err).
			WithField("consecutive_failures", state.ConsecutiveRefreshFailures).
			WithField("needs_reauth", state.NeedsReauth).
			Warn("Credential refresh failed")
		if state.NeedsReauth {
			return model.Credential{}, model.WrapDomainError(model.KindAccountNotUsable, "account needs re-authorization", err)
		}
		return model.Credential{}, err
	}

	state := model.RefreshState{LastRefreshSuccessAt: &now}
	sealed, err := u.encrypt(fresh)
	if err != nil {
		return model.Credential{}, err
	}
	if err := u.accountRepo.UpdateCredential(ctx, account.Owner, account.ID, sealed, state); err != nil {
		lg.WithField("error", err).Error("Error while persisting refreshed credential")
		return model.Credential{}, err
	}
	account.RefreshState = state
	lg.Info("Credential refreshed")
	return fresh, nil
}

func (u *credentialUsecase) StoreCredential(ctx context.Context, account *model.PlatformAccount) error {
	sealed, err := u.encrypt(account.Credential)
	if err != nil {
		return err
	}
	stored := *account
	stored.Credential = sealed
	stored.RefreshState = model.RefreshState{}
	if err := u.accountRepo.Upsert(ctx, &stored); err != nil {
		return err
	}
	account.RefreshState = stored.RefreshState
	return nil
}

func (u *credentialUsecase) MarkReauthRequired(ctx context.Context, owner, accountID, reason string) error {
	account, err := u.accountRepo.Get(ctx, owner, accountID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	state := account.RefreshState
	state.NeedsReauth = true
	state.LastRefreshErrorAt = &now
	state.LastRefreshError = &reason
	return u.accountRepo.UpdateRefreshState(ctx, owner, accountID, state)
}

func (u *credentialUsecase) encrypt(cred model.Credential) (model.Credential, error) {
	access, err := u.box.Encrypt(cred.AccessToken)
	if err != nil {
		return model.Credential{}, err
	}
	refresh, err := u.box.Encrypt(cred.RefreshToken)
	if err != nil {
		return model.Credential{}, err
	}
	cred.AccessToken = access
	cred.RefreshToken = refresh
	return cred, nil
}

func (u *credentialUsecase) decrypt(cred model.Credential) (model.Credential, error) {
	access, err := u.box.Decrypt(cred.AccessToken)
	if err != nil {
		return model.Credential{}, err
	}
	refresh, err := u.box.Decrypt(cred.RefreshToken)
	if err != nil {
		return model.Credential{}, err
	}
	cred.AccessToken = access
	cred.RefreshToken = refresh
	return cred, nil
}
