package perms

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// TempBan is a row in the temporary_bans table. Rows are deleted by the
// reaper on or after EndsAt.
type TempBan struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Mod       string    `db:"mod"`
	Subreddit string    `db:"subreddit"`
	CreatedAt time.Time `db:"created_at"`
	EndsAt    time.Time `db:"ends_at"`
}

// InsertTempBan records a temporary ban ending after the given duration.
func InsertTempBan(ctx context.Context, db *sqlx.DB, userID int64, mod, subreddit string, duration time.Duration) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO temporary_bans (user_id, mod, subreddit, ends_at)
		 VALUES ($1, $2, $3, NOW() + $4 * INTERVAL '1 second')`,
		userID, mod, subreddit, int64(duration.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("insert temporary ban: %w", err)
	}
	return nil
}

// DeleteTempBans removes any temporary-ban rows for the user on the
// subreddit, e.g. when the ban changed or was lifted.
func DeleteTempBans(ctx context.Context, db *sqlx.DB, userID int64, subreddit string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM temporary_bans WHERE user_id = $1 AND subreddit = $2`,
		userID, subreddit,
	)
	if err != nil {
		return fmt.Errorf("delete temporary bans: %w", err)
	}
	return nil
}

// ExpiringTempBans returns up to limit temporary bans ending within the
// next minute (or already ended), joined with the banned user's handle.
func ExpiringTempBans(ctx context.Context, db *sqlx.DB, limit int) ([]TempBan, error) {
	var bans []TempBan
	err := db.SelectContext(ctx, &bans, `
		SELECT temporary_bans.id,
		       users.username,
		       temporary_bans.mod,
		       temporary_bans.subreddit,
		       temporary_bans.created_at,
		       temporary_bans.ends_at
		FROM temporary_bans
		JOIN users ON users.id = temporary_bans.user_id
		WHERE temporary_bans.ends_at < NOW() + INTERVAL '1 minute'
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select expiring temporary bans: %w", err)
	}
	return bans, nil
}

// DeleteTempBansByID removes the given rows.
func DeleteTempBansByID(ctx context.Context, db *sqlx.DB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM temporary_bans WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return fmt.Errorf("delete temporary bans: %w", err)
	}
	return nil
}
