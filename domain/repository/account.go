package repository

import (
	"context"

	"media-hub/domain/model"
)

// IAccount persists connected platform accounts and their credential state.
// Credential token columns hold ciphertext; encryption happens in the
// credential store, not here.
type IAccount interface {
	Upsert(ctx context.Context, account *model.PlatformAccount) error
	Get(ctx context.Context, owner, accountID string) (*model.PlatformAccount, error)
	ListByOwner(ctx context.Context, owner string) ([]*model.PlatformAccount, error)
	UpdateCredential(ctx context.Context, owner, accountID string, cred model.Credential, state model.RefreshState) error
	UpdateRefreshState(ctx context.Context, owner, accountID string, state model.RefreshState) error
	Deactivate(ctx context.Context, owner, accountID string) error
}
