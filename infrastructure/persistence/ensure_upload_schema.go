package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureUploadSchema creates the upload lifecycle tables if missing and adds
// newer columns to older installations. Safe to call at startup.
func EnsureUploadSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ddls := []string{
		`CREATE TABLE IF NOT EXISTS platform_accounts (
			id TEXT NOT NULL,
			owner TEXT NOT NULL,
			platform TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			handle TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			subscriber_count BIGINT NOT NULL DEFAULT 0,
			video_count BIGINT NOT NULL DEFAULT 0,
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			token_expires_at TIMESTAMPTZ,
			scopes TEXT NOT NULL DEFAULT '',
			needs_reauth BOOLEAN NOT NULL DEFAULT FALSE,
			last_refresh_success_at TIMESTAMPTZ,
			last_refresh_error_at TIMESTAMPTZ,
			last_refresh_error TEXT,
			consecutive_refresh_failures INT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (id, owner)
		)`,
		`CREATE TABLE IF NOT EXISTS upload_jobs (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			account_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			reference_id TEXT NOT NULL,
			thumb_reference_id TEXT,
			metadata TEXT NOT NULL DEFAULT '{}',
			state TEXT NOT NULL,
			bytes_uploaded BIGINT NOT NULL DEFAULT 0,
			total_bytes BIGINT NOT NULL DEFAULT 0,
			percent INT NOT NULL DEFAULT 0,
			platform_object_id TEXT,
			status_message TEXT NOT NULL DEFAULT '',
			version BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_upload_jobs_owner_state ON upload_jobs(owner, state)`,
	}
	for _, ddl := range ddls {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensuring upload schema failed: %w", err)
		}
	}

	// Columns added after the initial release.
	checks := []struct {
		table  string
		column string
		ddl    string
	}{
		{"upload_jobs", "thumb_reference_id", "ALTER TABLE upload_jobs ADD COLUMN thumb_reference_id TEXT"},
		{"platform_accounts", "video_count", "ALTER TABLE platform_accounts ADD COLUMN video_count BIGINT NOT NULL DEFAULT 0"},
	}
	for _, c := range checks {
		exists, err := columnExists(ctx, db, c.table, c.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := db.ExecContext(ctx, c.ddl); err != nil {
				return fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
