// Package events defines the routing keys and JSON payloads carried on the
// events topic exchange. Payloads are fixed records per topic.
package events

import (
	"github.com/LoansBot/loansbot/internal/money"
	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/internal/request"
)

// Routing keys
const (
	LoansCreate  = "loans.create"
	LoansPaid    = "loans.paid"
	LoansUnpaid  = "loans.unpaid"
	LoansRequest = "loans.request"
	UserSignup   = "user.signup"
	ModsAdded    = "mods.added"
	ModsRemoved  = "mods.removed"
	ModlogPrefix = "modlog."
)

// UserRef identifies one party of a loan.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// CommentRef identifies the comment that produced a loan.
type CommentRef struct {
	LinkFullname string `json:"link_fullname"`
	Fullname     string `json:"fullname"`
	Subreddit    string `json:"subreddit,omitempty"`
}

// LoanCreate is the payload of loans.create.
type LoanCreate struct {
	LoanID    int64       `json:"loan_id"`
	Comment   CommentRef  `json:"comment"`
	Lender    UserRef     `json:"lender"`
	Borrower  UserRef     `json:"borrower"`
	Amount    money.Money `json:"amount"`
	Permalink string      `json:"permalink"`
}

// LoanPaid is the payload of loans.paid.
type LoanPaid struct {
	LoanID    int64       `json:"loan_id"`
	Lender    UserRef     `json:"lender"`
	Borrower  UserRef     `json:"borrower"`
	Amount    money.Money `json:"amount"`
	WasUnpaid bool        `json:"was_unpaid"`
}

// LoanUnpaid is the payload of loans.unpaid.
type LoanUnpaid struct {
	LoanUnpaidEventID int64 `json:"loan_unpaid_event_id"`
}

// LoanRequestEvent is the payload of loans.request.
type LoanRequestEvent struct {
	Post    redditproxy.Post    `json:"post"`
	Request request.LoanRequest `json:"request"`
}

// UserSignupEvent is the payload of user.signup.
type UserSignupEvent struct {
	UserID int64 `json:"user_id"`
}

// ModChange is the payload of mods.added and mods.removed.
type ModChange struct {
	Username string `json:"username"`
	UserID   int64  `json:"user_id"`
}
