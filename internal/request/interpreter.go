// Package request interprets the titles of request threads.
package request

import (
	"regexp"
	"strings"

	"github.com/LoansBot/loansbot/internal/money"
)

var blobRe = regexp.MustCompile(`\(([^\)]+)\)`)

var termsDigitSlashRe = regexp.MustCompile(`\A\d/`)

// processors are the payment processors we recognize in titles.
var processors = []string{
	"venmo", "paypal", "bank", "cashapp", "zelle", "chime",
}

// LoanRequest describes a request for a loan as interpreted from a thread
// title. Location, terms and processor stay empty when no blob matched;
// every uninterpreted blob lands in Notes.
type LoanRequest struct {
	Title     string   `json:"title"`
	Location  string   `json:"location,omitempty"`
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Country   string   `json:"country,omitempty"`
	Terms     string   `json:"terms,omitempty"`
	Processor string   `json:"processor,omitempty"`
	Notes     []string `json:"notes"`
}

// Interpret classifies the parenthesized blobs of a request-thread title.
// The first #-prefixed blob is the location (split on comma into
// city/state/country when it has exactly three parts); the first blob that
// looks money-related is the terms; the first blob naming a known payment
// processor is the processor; the rest are notes.
func Interpret(title string) LoanRequest {
	result := LoanRequest{Title: title, Notes: []string{}}

	for _, groups := range blobRe.FindAllStringSubmatch(title, -1) {
		blob := groups[1]

		if result.Location == "" && strings.HasPrefix(blob, "#") {
			loc := blob[1:]
			result.Location = loc
			if parts := strings.Split(loc, ","); len(parts) == 3 {
				result.City = strings.TrimSpace(parts[0])
				result.State = strings.TrimSpace(parts[1])
				result.Country = strings.TrimSpace(parts[2])
			}
			continue
		}

		if result.Terms == "" && looksLikeTerms(blob) {
			result.Terms = blob
			continue
		}

		if result.Processor == "" && looksLikeProcessor(blob) {
			result.Processor = blob
			continue
		}

		result.Notes = append(result.Notes, blob)
	}

	return result
}

func looksLikeTerms(blob string) bool {
	if termsDigitSlashRe.MatchString(blob) {
		return true
	}
	for symbol := range money.CurrencySymbols {
		if strings.Contains(blob, symbol) {
			return true
		}
	}
	lowered := strings.ToLower(blob)
	for code := range money.ISOCodesToExp {
		if strings.Contains(lowered, strings.ToLower(code)) {
			return true
		}
	}
	return false
}

func looksLikeProcessor(blob string) bool {
	lowered := strings.ToLower(blob)
	for _, processor := range processors {
		if strings.Contains(lowered, processor) {
			return true
		}
	}
	return false
}
