package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"media-hub/domain/model"
)

// AccountRepositoryMSSQL is the SQL Server variant used in production.
type AccountRepositoryMSSQL struct{ db *sql.DB }

func NewAccountRepositoryMSSQL(db *sql.DB) *AccountRepositoryMSSQL {
	return &AccountRepositoryMSSQL{db: db}
}

// EnsureAccountSchemaMSSQL creates the platform_accounts table for SQL Server if it does not exist.
func EnsureAccountSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.platform_accounts') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[platform_accounts] (
        id NVARCHAR(128) NOT NULL,
        owner NVARCHAR(128) NOT NULL,
        platform NVARCHAR(32) NOT NULL,
        name NVARCHAR(255) NOT NULL DEFAULT '',
        handle NVARCHAR(255) NOT NULL DEFAULT '',
        avatar_url NVARCHAR(MAX) NOT NULL DEFAULT '',
        subscriber_count BIGINT NOT NULL DEFAULT 0,
        video_count BIGINT NOT NULL DEFAULT 0,
        access_token NVARCHAR(MAX) NOT NULL DEFAULT '',
        refresh_token NVARCHAR(MAX) NOT NULL DEFAULT '',
        token_expires_at DATETIME2 NULL,
        scopes NVARCHAR(MAX) NOT NULL DEFAULT '',
        needs_reauth BIT NOT NULL DEFAULT 0,
        last_refresh_success_at DATETIME2 NULL,
        last_refresh_error_at DATETIME2 NULL,
        last_refresh_error NVARCHAR(MAX) NULL,
        consecutive_refresh_failures INT NOT NULL DEFAULT 0,
        is_active BIT NOT NULL DEFAULT 1,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL,
        CONSTRAINT PK_platform_accounts PRIMARY KEY (id, owner)
    );
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create platform_accounts (mssql): %w", err)
	}
	return nil
}

func (r *AccountRepositoryMSSQL) Upsert(ctx context.Context, a *model.PlatformAccount) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	q := `MERGE dbo.[platform_accounts] AS target
USING (VALUES (@p1, @p2)) AS src(id, owner)
ON target.id = src.id AND target.owner = src.owner
WHEN MATCHED THEN UPDATE SET
    name=@p4, handle=@p5, avatar_url=@p6, subscriber_count=@p7, video_count=@p8,
    access_token=@p9, refresh_token=@p10, token_expires_at=@p11, scopes=@p12,
    needs_reauth=@p13, last_refresh_success_at=@p14, last_refresh_error_at=@p15,
    last_refresh_error=@p16, consecutive_refresh_failures=@p17,
    is_active=@p18, updated_at=@p20
WHEN NOT MATCHED THEN
    INSERT (id, owner, platform, name, handle, avatar_url, subscriber_count, video_count,
            access_token, refresh_token, token_expires_at, scopes,
            needs_reauth, last_refresh_success_at, last_refresh_error_at, last_refresh_error,
            consecutive_refresh_failures, is_active, created_at, updated_at)
    VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10,@p11,@p12,@p13,@p14,@p15,@p16,@p17,@p18,@p19,@p20);`
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.Owner, a.Platform, a.Name, a.Handle, a.AvatarURL, a.SubscriberCount, a.VideoCount,
		a.Credential.AccessToken, a.Credential.RefreshToken, nullTime(a.Credential.TokenExpiresAt), a.Credential.Scopes,
		a.RefreshState.NeedsReauth, nullTime(a.RefreshState.LastRefreshSuccessAt), nullTime(a.RefreshState.LastRefreshErrorAt),
		nullString(a.RefreshState.LastRefreshError), a.RefreshState.ConsecutiveRefreshFailures,
		a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (r *AccountRepositoryMSSQL) Get(ctx context.Context, owner, accountID string) (*model.PlatformAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM dbo.[platform_accounts] WHERE id=@p1 AND owner=@p2`, accountID, owner)
	return scanAccount(row)
}

func (r *AccountRepositoryMSSQL) ListByOwner(ctx context.Context, owner string) ([]*model.PlatformAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM dbo.[platform_accounts] WHERE owner=@p1 AND is_active=1 ORDER BY created_at ASC`, owner)
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

func (r *AccountRepositoryMSSQL) UpdateCredential(ctx context.Context, owner, accountID string, cred model.Credential, state model.RefreshState) error {
	q := `UPDATE dbo.[platform_accounts] SET
			access_token=@p1, refresh_token=@p2, token_expires_at=@p3, scopes=@p4,
			needs_reauth=@p5, last_refresh_success_at=@p6, last_refresh_error_at=@p7,
			last_refresh_error=@p8, consecutive_refresh_failures=@p9, updated_at=@p10
		  WHERE id=@p11 AND owner=@p12`
	_, err := r.db.ExecContext(ctx, q,
		cred.AccessToken, cred.RefreshToken, nullTime(cred.TokenExpiresAt), cred.Scopes,
		state.NeedsReauth, nullTime(state.LastRefreshSuccessAt), nullTime(state.LastRefreshErrorAt),
		nullString(state.LastRefreshError), state.ConsecutiveRefreshFailures, time.Now().UTC(),
		accountID, owner,
	)
	return err
}

func (r *AccountRepositoryMSSQL) UpdateRefreshState(ctx context.Context, owner, accountID string, state model.RefreshState) error {
	q := `UPDATE dbo.[platform_accounts] SET
			needs_reauth=@p1, last_refresh_success_at=@p2, last_refresh_error_at=@p3,
			last_refresh_error=@p4, consecutive_refresh_failures=@p5, updated_at=@p6
		  WHERE id=@p7 AND owner=@p8`
	_, err := r.db.ExecContext(ctx, q,
		state.NeedsReauth, nullTime(state.LastRefreshSuccessAt), nullTime(state.LastRefreshErrorAt),
		nullString(state.LastRefreshError), state.ConsecutiveRefreshFailures, time.Now().UTC(),
		accountID, owner,
	)
	return err
}

func (r *AccountRepositoryMSSQL) Deactivate(ctx context.Context, owner, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[platform_accounts] SET is_active=0, updated_at=@p1 WHERE id=@p2 AND owner=@p3`,
		time.Now().UTC(), accountID, owner)
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Valid: true, Time: *t}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{Valid: true, String: *s}
}
