// Package ledger owns the loan bookkeeping: users, currencies, money rows,
// loans, repayments, delinquency and the derived per-user summaries.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LoansBot/loansbot/internal/money"
)

// Domain invariant failures. These never corrupt ledger state; handlers
// surface them to the user via templated replies.
var (
	ErrLoanNotFound      = errors.New("ledger: loan does not exist")
	ErrLoanAlreadyRepaid = errors.New("ledger: loan is already repaid")
	ErrNonPositiveAmount = errors.New("ledger: only positive amounts can be applied")
)

// CreationInfoComment marks a loan whose creation info originated from a
// comment.
const CreationInfoComment = 0

// User is a row in the users table. Users are created lazily on first
// reference and never deleted.
type User struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
}

// Currency is a row in the currencies table.
type Currency struct {
	ID           int64  `db:"id"`
	Code         string `db:"code"`
	Symbol       string `db:"symbol"`
	SymbolOnLeft bool   `db:"symbol_on_left"`
	Exponent     int    `db:"exponent"`
}

// MoneyRow is a row in the moneys table. AmountUSDCents is the USD
// equivalent at the exchange rate chosen when the row was created; it never
// changes afterward.
type MoneyRow struct {
	ID             int64 `db:"id"`
	CurrencyID     int64 `db:"currency_id"`
	Amount         int64 `db:"amount"`
	AmountUSDCents int64 `db:"amount_usd_cents"`
}

// Loan is a row in the loans table.
type Loan struct {
	ID                   int64        `db:"id"`
	LenderID             int64        `db:"lender_id"`
	BorrowerID           int64        `db:"borrower_id"`
	PrincipalID          int64        `db:"principal_id"`
	PrincipalRepaymentID int64        `db:"principal_repayment_id"`
	CreatedAt            time.Time    `db:"created_at"`
	RepaidAt             sql.NullTime `db:"repaid_at"`
	UnpaidAt             sql.NullTime `db:"unpaid_at"`
	DeletedAt            sql.NullTime `db:"deleted_at"`
}

// LoanRecord is a loan joined with everything useful for display.
type LoanRecord struct {
	ID              int64
	Lender          string
	Borrower        string
	Principal       money.Money
	PrincipalUSD    int64
	PrincipalRepaid money.Money
	Permalink       string
	CreatedAt       time.Time
	RepaidAt        *time.Time
	UnpaidAt        *time.Time
}

// loanRecordRow is the scan target for the joined loan query.
type loanRecordRow struct {
	ID                int64          `db:"id"`
	Lender            string         `db:"lender"`
	Borrower          string         `db:"borrower"`
	CurrencyCode      string         `db:"currency_code"`
	CurrencyExp       int            `db:"currency_exp"`
	CurrencySymbol    string         `db:"currency_symbol"`
	CurrencySymLeft   bool           `db:"currency_symbol_on_left"`
	PrincipalMinor    int64          `db:"principal_minor"`
	PrincipalUSDCents int64          `db:"principal_usd_cents"`
	RepaidMinor       int64          `db:"repaid_minor"`
	CreatedAt         time.Time      `db:"created_at"`
	RepaidAt          sql.NullTime   `db:"repaid_at"`
	UnpaidAt          sql.NullTime   `db:"unpaid_at"`
	CreationType      sql.NullInt64  `db:"creation_type"`
	CreationParent    sql.NullString `db:"creation_parent_fullname"`
	CreationComment   sql.NullString `db:"creation_comment_fullname"`
}

func (r loanRecordRow) toRecord() LoanRecord {
	record := LoanRecord{
		ID:       r.ID,
		Lender:   r.Lender,
		Borrower: r.Borrower,
		Principal: money.Money{
			Minor:        r.PrincipalMinor,
			Currency:     r.CurrencyCode,
			Exp:          r.CurrencyExp,
			Symbol:       r.CurrencySymbol,
			SymbolOnLeft: r.CurrencySymLeft,
		},
		PrincipalUSD: r.PrincipalUSDCents,
		PrincipalRepaid: money.Money{
			Minor:        r.RepaidMinor,
			Currency:     r.CurrencyCode,
			Exp:          r.CurrencyExp,
			Symbol:       r.CurrencySymbol,
			SymbolOnLeft: r.CurrencySymLeft,
		},
		CreatedAt: r.CreatedAt,
	}
	if r.RepaidAt.Valid {
		t := r.RepaidAt.Time
		record.RepaidAt = &t
	}
	if r.UnpaidAt.Valid {
		t := r.UnpaidAt.Time
		record.UnpaidAt = &t
	}
	if r.CreationType.Valid && r.CreationType.Int64 == CreationInfoComment &&
		r.CreationParent.Valid && r.CreationComment.Valid {
		record.Permalink = Permalink(r.CreationParent.String, r.CreationComment.String)
	}
	return record
}

// Permalink reconstructs a deep link to the comment that produced a loan
// from the link and comment fullnames.
func Permalink(linkFullname, commentFullname string) string {
	return fmt.Sprintf(
		"https://www.reddit.com/comments/%s/redditloans/%s",
		trimKind(linkFullname), trimKind(commentFullname),
	)
}

// trimKind strips the "t3_"-style kind prefix from a fullname.
func trimKind(fullname string) string {
	if len(fullname) > 3 {
		return fullname[3:]
	}
	return fullname
}
