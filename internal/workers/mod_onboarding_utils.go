package workers

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/LoansBot/loansbot/internal/perms"
)

// storeLetterMessage records that an onboarding letter named
// "<letter>_title"/"<letter>_body" was sent to the user.
func storeLetterMessage(ctx context.Context, tx *sqlx.Tx, userID int64, letterName string) error {
	titleName := letterName + "_title"
	bodyName := letterName + "_body"

	var rows []struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	err := tx.SelectContext(ctx, &rows,
		`SELECT id, name FROM responses WHERE name IN ($1, $2)`,
		bodyName, titleName,
	)
	if err != nil {
		return fmt.Errorf("load letter responses: %w", err)
	}
	if len(rows) != 2 {
		return fmt.Errorf("expected 2 responses for letter %s, got %d", letterName, len(rows))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	bodyID, titleID := rows[0].ID, rows[1].ID

	return storeLetterMessageWithIDs(ctx, tx, userID, titleID, titleName, bodyID, bodyName)
}

func storeLetterMessageWithIDs(ctx context.Context, tx *sqlx.Tx, userID, titleID int64, titleName string, bodyID int64, bodyName string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO mod_onboarding_msg_history
		  (user_id, title_response_id, title_response_name, body_response_id, body_response_name)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, titleID, titleName, bodyID, bodyName,
	)
	if err != nil {
		return fmt.Errorf("record letter message: %w", err)
	}
	return nil
}

// grantModPermissions grants the user's authentication method every
// permission it does not already hold, with the audit trail updated.
func grantModPermissions(ctx context.Context, tx *sqlx.Tx, userID, authID int64) error {
	var missing []int64
	err := tx.SelectContext(ctx, &missing, `
		SELECT permissions.id FROM permissions
		WHERE NOT EXISTS (
		  SELECT 1 FROM password_auth_permissions
		  WHERE password_auth_permissions.permission_id = permissions.id
		    AND password_auth_permissions.password_authentication_id = $1
		)`,
		authID,
	)
	if err != nil {
		return fmt.Errorf("list missing mod permissions: %w", err)
	}
	if len(missing) == 0 {
		return nil
	}
	return perms.GrantPermissions(ctx, tx, userID, "Moderator onboarding", authID, missing)
}

// revokeModPermissions strips the user's authentication method down to the
// configured default permissions and logs out all sessions.
func revokeModPermissions(ctx context.Context, tx *sqlx.Tx, userID int64, defaults []string) error {
	authID, err := perms.HumanAuthID(ctx, tx, userID)
	if err != nil {
		return err
	}
	if authID == 0 {
		return nil
	}
	revocable, err := perms.PermissionIDsExcept(ctx, tx, authID, defaults)
	if err != nil {
		return err
	}
	return perms.RevokePermissions(ctx, tx, userID, "Moderator offboarding", authID, revocable)
}
