package persistence

import (
	"context"
	"database/sql"
	"time"

	"media-hub/domain/model"
)

// AccountRepository implements platform account persistence on PostgreSQL.
// Token columns hold ciphertext produced by the credential store.
type AccountRepository struct{ db *sql.DB }

func NewAccountRepository(db *sql.DB) *AccountRepository { return &AccountRepository{db: db} }

const accountColumns = `id, owner, platform, name, handle, avatar_url, subscriber_count, video_count,
	access_token, refresh_token, token_expires_at, scopes,
	needs_reauth, last_refresh_success_at, last_refresh_error_at, last_refresh_error, consecutive_refresh_failures,
	is_active, created_at, updated_at`

func (r *AccountRepository) Upsert(ctx context.Context, a *model.PlatformAccount) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	q := `INSERT INTO platform_accounts (` + accountColumns + `)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		  ON CONFLICT (id, owner) DO UPDATE SET
			name=EXCLUDED.name,
			handle=EXCLUDED.handle,
			avatar_url=EXCLUDED.avatar_url,
			subscriber_count=EXCLUDED.subscriber_count,
			video_count=EXCLUDED.video_count,
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			token_expires_at=EXCLUDED.token_expires_at,
			scopes=EXCLUDED.scopes,
			needs_reauth=EXCLUDED.needs_reauth,
			last_refresh_success_at=EXCLUDED.last_refresh_success_at,
			last_refresh_error_at=EXCLUDED.last_refresh_error_at,
			last_refresh_error=EXCLUDED.last_refresh_error,
			consecutive_refresh_failures=EXCLUDED.consecutive_refresh_failures,
			is_active=EXCLUDED.is_active,
			updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.Owner, a.Platform, a.Name, a.Handle, a.AvatarURL, a.SubscriberCount, a.VideoCount,
		a.Credential.AccessToken, a.Credential.RefreshToken, a.Credential.TokenExpiresAt, a.Credential.Scopes,
		a.RefreshState.NeedsReauth, a.RefreshState.LastRefreshSuccessAt, a.RefreshState.LastRefreshErrorAt,
		a.RefreshState.LastRefreshError, a.RefreshState.ConsecutiveRefreshFailures,
		a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (r *AccountRepository) Get(ctx context.Context, owner, accountID string) (*model.PlatformAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM platform_accounts WHERE id=$1 AND owner=$2`, accountID, owner)
	return scanAccount(row)
}

func (r *AccountRepository) ListByOwner(ctx context.Context, owner string) ([]*model.PlatformAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM platform_accounts WHERE owner=$1 AND is_active=TRUE ORDER BY created_at ASC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.PlatformAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *AccountRepository) UpdateCredential(ctx context.Context, owner, accountID string, cred model.Credential, state model.RefreshState) error {
	q := `UPDATE platform_accounts SET
			access_token=$1, refresh_token=$2, token_expires_at=$3, scopes=$4,
			needs_reauth=$5, last_refresh_success_at=$6, last_refresh_error_at=$7,
			last_refresh_error=$8, consecutive_refresh_failures=$9, updated_at=$10
		  WHERE id=$11 AND owner=$12`
	_, err := r.db.ExecContext(ctx, q,
		cred.AccessToken, cred.RefreshToken, cred.TokenExpiresAt, cred.Scopes,
		state.NeedsReauth, state.LastRefreshSuccessAt, state.LastRefreshErrorAt,
		state.LastRefreshError, state.ConsecutiveRefreshFailures, time.Now().UTC(),
		accountID, owner,
	)
	return err
}

func (r *AccountRepository) UpdateRefreshState(ctx context.Context, owner, accountID string, state model.RefreshState) error {
	q := `UPDATE platform_accounts SET
			needs_reauth=$1, last_refresh_success_at=$2, last_refresh_error_at=$3,
			last_refresh_error=$4, consecutive_refresh_failures=$5, updated_at=$6
		  WHERE id=$7 AND owner=$8`
	_, err := r.db.ExecContext(ctx, q,
		state.NeedsReauth, state.LastRefreshSuccessAt, state.LastRefreshErrorAt,
		state.LastRefreshError, state.ConsecutiveRefreshFailures, time.Now().UTC(),
		accountID, owner,
	)
	return err
}

func (r *AccountRepository) Deactivate(ctx context.Context, owner, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE platform_accounts SET is_active=FALSE, updated_at=$1 WHERE id=$2 AND owner=$3`,
		time.Now().UTC(), accountID, owner)
	return err
}

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanAccount(row rowScanner) (*model.PlatformAccount, error) {
	a := &model.PlatformAccount{}
	var tokenExp, lastOK, lastErrAt sql.NullTime
	var lastErr sql.NullString
	err := row.Scan(
		&a.ID, &a.Owner, &a.Platform, &a.Name, &a.Handle, &a.AvatarURL, &a.SubscriberCount, &a.VideoCount,
		&a.Credential.AccessToken, &a.Credential.RefreshToken, &tokenExp, &a.Credential.Scopes,
		&a.RefreshState.NeedsReauth, &lastOK, &lastErrAt, &lastErr, &a.RefreshState.ConsecutiveRefreshFailures,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.NewDomainError(model.KindNotFound, "account not found")
		}
		return nil, err
	}
	if tokenExp.Valid {
		a.Credential.TokenExpiresAt = &tokenExp.Time
	}
	if lastOK.Valid {
		a.RefreshState.LastRefreshSuccessAt = &lastOK.Time
	}
	if lastErrAt.Valid {
		a.RefreshState.LastRefreshErrorAt = &lastErrAt.Time
	}
	if lastErr.Valid {
		v := lastErr.String
		a.RefreshState.LastRefreshError = &v
	}
	return a, nil
}
