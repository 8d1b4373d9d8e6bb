package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/LoansBot/loansbot/internal/money"
	"github.com/LoansBot/loansbot/pkg/database"
)

// Converter resolves minor-unit conversion rates between currencies.
type Converter interface {
	Convert(ctx context.Context, source, target string) (float64, error)
}

// Ledger provides the loan bookkeeping operations on top of the shared
// database and the currency converter.
type Ledger struct {
	db *sqlx.DB
	fx Converter
}

// New builds a Ledger
func New(db *sqlx.DB, fx Converter) *Ledger {
	return &Ledger{db: db, fx: fx}
}

// DB exposes the underlying handle for callers that compose their own
// transactions around ledger operations.
func (l *Ledger) DB() *sqlx.DB {
	return l.db
}

// Converter exposes the currency converter for callers that need their own
// rate lookups.
func (l *Ledger) Converter() Converter {
	return l.fx
}

// FindOrCreateUser returns the id for the lowercased handle, creating the
// user row on first reference.
func FindOrCreateUser(ctx context.Context, tx *sqlx.Tx, username string) (int64, error) {
	lowered := strings.ToLower(username)
	return database.FindOrCreate(ctx, tx,
		`SELECT id FROM users WHERE username = $1`, []interface{}{lowered},
		`INSERT INTO users (username) VALUES ($1) RETURNING id`, []interface{}{lowered},
	)
}

// FindUserID returns the id for the lowercased handle, or 0 when the user
// has never been referenced.
func FindUserID(ctx context.Context, db sqlx.QueryerContext, username string) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, db, &id,
		`SELECT id FROM users WHERE username = $1`, strings.ToLower(username))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find user: %w", err)
	}
	return id, nil
}

// FindUsername returns the handle for a user id.
func FindUsername(ctx context.Context, db sqlx.QueryerContext, userID int64) (string, error) {
	var username string
	err := sqlx.GetContext(ctx, db, &username,
		`SELECT username FROM users WHERE id = $1`, userID)
	if err != nil {
		return "", fmt.Errorf("find username: %w", err)
	}
	return username, nil
}

// FindOrCreateCurrency returns the currency row for the code, creating it
// with the display defaults on first reference.
func FindOrCreateCurrency(ctx context.Context, tx *sqlx.Tx, code string) (Currency, error) {
	exp, ok := money.ISOCodesToExp[code]
	if !ok {
		exp = 2
	}
	symbol, onLeft := money.SymbolFor(code)
	if symbol == "" {
		symbol = " " + code
		onLeft = false
	}

	id, err := database.FindOrCreate(ctx, tx,
		`SELECT id FROM currencies WHERE code = $1`, []interface{}{code},
		`INSERT INTO currencies (code, symbol, symbol_on_left, exponent)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		[]interface{}{code, symbol, onLeft, exp},
	)
	if err != nil {
		return Currency{}, err
	}

	var currency Currency
	err = tx.GetContext(ctx, &currency,
		`SELECT id, code, symbol, symbol_on_left, exponent FROM currencies WHERE id = $1`, id)
	if err != nil {
		return Currency{}, fmt.Errorf("load currency: %w", err)
	}
	return currency, nil
}

// InsertMoney appends a money row and returns its id.
func InsertMoney(ctx context.Context, tx *sqlx.Tx, currencyID, amountMinor, amountUSDCents int64) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id,
		`INSERT INTO moneys (currency_id, amount, amount_usd_cents)
		 VALUES ($1, $2, $3) RETURNING id`,
		currencyID, amountMinor, amountUSDCents,
	)
	if err != nil {
		return 0, fmt.Errorf("insert money: %w", err)
	}
	return id, nil
}
