package ledger

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/LoansBot/loansbot/internal/money"
)

// CreateLoanParams are the inputs for creating a loan from a comment.
type CreateLoanParams struct {
	LenderUsername   string
	BorrowerUsername string
	// Amount is the requested amount, in any supported currency
	Amount money.Money
	// StoreCurrency overrides the currency the loan is tracked in; empty
	// means the requested currency
	StoreCurrency string
	// CreatedAt is the creation time of the comment that produced the loan
	CreatedAt time.Time
	// LinkFullname and CommentFullname identify the producing comment
	LinkFullname    string
	CommentFullname string
}

// CreatedLoan describes the loan that was just inserted.
type CreatedLoan struct {
	LoanID     int64
	LenderID   int64
	BorrowerID int64
	// Principal is the stored amount with display attributes resolved
	Principal money.Money
	// PrincipalUSD is the frozen USD reference, in USD minor units
	PrincipalUSD int64
	Permalink    string
}

// CreateLoan finds or creates both users and the stored currency, converts
// the requested amount into the store currency and into the frozen USD
// reference, and inserts the principal, zero-repaid, loan and creation-info
// rows. All writes happen in the supplied transaction; the caller commits
// and publishes the loans.create event afterward.
//
// The USD rate is fetched as 1/convert(USD, store) where possible so the
// rate-source cache key is shared across users.
func (l *Ledger) CreateLoan(ctx context.Context, tx *sqlx.Tx, params CreateLoanParams) (*CreatedLoan, error) {
	storeCurrency := params.StoreCurrency
	if storeCurrency == "" {
		storeCurrency = params.Amount.Currency
	}

	storeMinor := params.Amount.Minor
	if params.Amount.Currency != storeCurrency {
		rate, err := l.fx.Convert(ctx, params.Amount.Currency, storeCurrency)
		if err != nil {
			return nil, err
		}
		storeMinor = int64(float64(params.Amount.Minor) * rate)
	}

	usdMinor := storeMinor
	if storeCurrency != "USD" {
		usdToStore, err := l.fx.Convert(ctx, "USD", storeCurrency)
		if err != nil {
			return nil, err
		}
		usdMinor = int64(float64(storeMinor) * (1 / usdToStore))
	}

	lenderID, err := FindOrCreateUser(ctx, tx, params.LenderUsername)
	if err != nil {
		return nil, err
	}
	borrowerID, err := FindOrCreateUser(ctx, tx, params.BorrowerUsername)
	if err != nil {
		return nil, err
	}
	currency, err := FindOrCreateCurrency(ctx, tx, storeCurrency)
	if err != nil {
		return nil, err
	}

	principalID, err := InsertMoney(ctx, tx, currency.ID, storeMinor, usdMinor)
	if err != nil {
		return nil, err
	}
	repaidID, err := InsertMoney(ctx, tx, currency.ID, 0, 0)
	if err != nil {
		return nil, err
	}

	var loanID int64
	err = tx.GetContext(ctx, &loanID,
		`INSERT INTO loans
		   (lender_id, borrower_id, principal_id, principal_repayment_id,
		    created_at, repaid_at, unpaid_at, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, NULL, NULL, NULL)
		 RETURNING id`,
		lenderID, borrowerID, principalID, repaidID, params.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO loan_creation_infos (loan_id, type, parent_fullname, comment_fullname)
		 VALUES ($1, $2, $3, $4)`,
		loanID, CreationInfoComment, params.LinkFullname, params.CommentFullname,
	)
	if err != nil {
		return nil, err
	}

	return &CreatedLoan{
		LoanID:     loanID,
		LenderID:   lenderID,
		BorrowerID: borrowerID,
		Principal: money.Money{
			Minor:        storeMinor,
			Currency:     currency.Code,
			Exp:          currency.Exponent,
			Symbol:       currency.Symbol,
			SymbolOnLeft: currency.SymbolOnLeft,
		},
		PrincipalUSD: usdMinor,
		Permalink:    Permalink(params.LinkFullname, params.CommentFullname),
	}, nil
}
