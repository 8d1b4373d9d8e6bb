package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = pq.ErrorCode("23505")

// FindOrCreate runs findQuery and returns the id if a row exists. Otherwise
// it runs insertQuery (which must RETURNING the id) inside a savepoint; if
// the insert hits a unique violation the savepoint is rolled back and the
// find is re-run. The outer transaction survives a benign race this way.
func FindOrCreate(ctx context.Context, tx *sqlx.Tx, findQuery string, findArgs []interface{}, insertQuery string, insertArgs []interface{}) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, findQuery, findArgs...)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("find: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT find_or_create"); err != nil {
		return 0, fmt.Errorf("savepoint: %w", err)
	}

	err = tx.GetContext(ctx, &id, insertQuery, insertArgs...)
	if err == nil {
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT find_or_create"); err != nil {
			return 0, fmt.Errorf("release savepoint: %w", err)
		}
		return id, nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return 0, fmt.Errorf("insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT find_or_create"); err != nil {
		return 0, fmt.Errorf("rollback savepoint: %w", err)
	}

	err = tx.GetContext(ctx, &id, findQuery, findArgs...)
	if err != nil {
		return 0, fmt.Errorf("find after unique violation: %w", err)
	}
	return id, nil
}
