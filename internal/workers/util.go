package workers

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// lowercased normalizes a username the way the users table stores them.
func lowercased(username string) string {
	return strings.ToLower(username)
}

// sqlxIn expands an IN (?) query and rebinds it for postgres.
func sqlxIn(query string, args ...interface{}) (string, []interface{}, error) {
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(sqlx.DOLLAR, expanded), expandedArgs, nil
}
