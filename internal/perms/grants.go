package perms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/LoansBot/loansbot/pkg/database"
)

// Audit event types recorded in password_authentication_events.
const (
	eventPermissionGranted = "permission-granted"
	eventPermissionRevoked = "permission-revoked"
)

// HumanAuthID returns the id of the user's non-deleted human password
// authentication, or 0 when the account has not been claimed.
func HumanAuthID(ctx context.Context, q sqlx.QueryerContext, userID int64) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, `
		SELECT id FROM password_authentications
		WHERE user_id = $1 AND human = TRUE AND deleted = FALSE`,
		userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find human authentication: %w", err)
	}
	return id, nil
}

// FindOrCreatePermission resolves a permission name to its id, creating
// the row with the given description on first reference.
func FindOrCreatePermission(ctx context.Context, tx *sqlx.Tx, name, description string) (int64, error) {
	return database.FindOrCreate(ctx, tx,
		`SELECT id FROM permissions WHERE name = $1`, []interface{}{name},
		`INSERT INTO permissions (name, description) VALUES ($1, $2) RETURNING id`,
		[]interface{}{name, description},
	)
}

// HasPermission reports whether the authentication method holds the named
// permission.
func HasPermission(ctx context.Context, q sqlx.QueryerContext, authID int64, name string) (bool, error) {
	var one int
	err := sqlx.GetContext(ctx, q, &one, `
		SELECT 1 FROM password_auth_permissions
		JOIN permissions ON permissions.id = password_auth_permissions.permission_id
		WHERE password_auth_permissions.password_authentication_id = $1
		  AND permissions.name = $2`,
		authID, name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check permission: %w", err)
	}
	return true, nil
}

// GrantPermissions grants the permissions to the authentication method and
// records one audit event per grant. The permissions must not already be on
// the method.
func GrantPermissions(ctx context.Context, tx *sqlx.Tx, userID int64, reason string, authID int64, permissionIDs []int64) error {
	for _, permID := range permissionIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO password_auth_permissions (password_authentication_id, permission_id)
			VALUES ($1, $2)`,
			authID, permID,
		)
		if err != nil {
			return fmt.Errorf("grant permission %d: %w", permID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO password_authentication_events
			  (password_authentication_id, type, reason, user_id, permission_id)
			VALUES ($1, $2, $3, $4, $5)`,
			authID, eventPermissionGranted, reason, userID, permID,
		)
		if err != nil {
			return fmt.Errorf("record grant of %d: %w", permID, err)
		}
	}
	return nil
}

// RevokePermissions removes the permissions from the authentication method,
// records one audit event per revoke, and logs the user out everywhere.
func RevokePermissions(ctx context.Context, tx *sqlx.Tx, userID int64, reason string, authID int64, permissionIDs []int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`
		DELETE FROM password_auth_permissions
		WHERE password_authentication_id = ? AND permission_id IN (?)`,
		authID, permissionIDs,
	)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return fmt.Errorf("revoke permissions: %w", err)
	}

	for _, permID := range permissionIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO password_authentication_events
			  (password_authentication_id, type, reason, user_id, permission_id)
			VALUES ($1, $2, $3, $4, $5)`,
			authID, eventPermissionRevoked, reason, userID, permID,
		)
		if err != nil {
			return fmt.Errorf("record revoke of %d: %w", permID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM authtokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("logout sessions: %w", err)
	}
	return nil
}

// PermissionIDsByName resolves permission names to ids, skipping names
// that do not exist.
func PermissionIDsByName(ctx context.Context, q sqlx.QueryerContext, names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM permissions WHERE name IN (?)`, names)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := sqlx.SelectContext(ctx, q, &ids, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}
	return ids, nil
}

// PermissionIDsExcept returns the ids of the permissions held by the
// authentication method whose name is not in keep. Used when offboarding
// strips a moderator down to the defaults.
func PermissionIDsExcept(ctx context.Context, q sqlx.QueryerContext, authID int64, keep []string) ([]int64, error) {
	if len(keep) == 0 {
		keep = []string{""}
	}
	query, args, err := sqlx.In(`
		SELECT permissions.id FROM password_auth_permissions
		JOIN permissions ON permissions.id = password_auth_permissions.permission_id
		WHERE password_auth_permissions.password_authentication_id = ?
		  AND permissions.name NOT IN (?)`,
		authID, keep,
	)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := sqlx.SelectContext(ctx, q, &ids, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return nil, fmt.Errorf("list revocable permissions: %w", err)
	}
	return ids, nil
}

// MissingPermissionIDs returns ids of the named permissions the
// authentication method does not already hold, creating missing permission
// rows with an empty description.
func MissingPermissionIDs(ctx context.Context, tx *sqlx.Tx, authID int64, names []string) ([]int64, error) {
	var ids []int64
	for _, name := range names {
		permID, err := FindOrCreatePermission(ctx, tx, name, "")
		if err != nil {
			return nil, err
		}
		held, err := HasPermission(ctx, tx, authID, name)
		if err != nil {
			return nil, err
		}
		if !held {
			ids = append(ids, permID)
		}
	}
	return ids, nil
}
