package parsing

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/LoansBot/loansbot/internal/money"
)

const usernamePattern = `[\w-]+`

const amountPattern = `[0-9]+(?:\.[0-9]{0,4})?`

func isoAlternation() string {
	codes := make([]string, 0, len(money.ISOCodesToExp))
	for code := range money.ISOCodesToExp {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return strings.Join(codes, "|")
}

func symbolAlternation() string {
	symbols := make([]string, 0, len(money.CurrencySymbols))
	for symbol := range money.CurrencySymbols {
		symbols = append(symbols, regexp.QuoteMeta(symbol))
	}
	sort.Strings(symbols)
	return strings.Join(symbols, "|")
}

// NewUserToken creates a token for identifying a user. This can be a
// username prefixed by /u/ or u/, or a markdown link to a user account
// whose text is the username (optionally with the /u/ prefix) and whose
// href targets the same username. Query parameters and fragments in links
// are ignored.
func NewUserToken() Token {
	link := NewRegexToken(
		`\s*\[(?:/?u/)?(?P<text>`+usernamePattern+`)\]`+
			`\(https?://reddit\.com/u(?:ser)?/(?P<href>`+usernamePattern+`)`+
			`(?:\?[^\)]*)?(?:#[^\)]*)?\)\s*`,
		-1,
	)
	return NewFallbackToken(
		NewRegexToken(`\s*/?u/(`+usernamePattern+`)\s*`, 1),
		// RE2 has no backreferences, so the link form matches both names
		// and checks they agree afterward.
		NewTransformedToken(link, func(v interface{}) interface{} {
			match := v.(*Match)
			if match.Named("text") != match.Named("href") {
				return nil
			}
			return match.Named("text")
		}),
	)
}

// NewMoneyToken creates a token for identifying a money quantity. The value
// of the token is a money.Money.
//
// Examples: $10, $10.12 CAD, USD 10$, £15, 5.50, JPY 32
//
// Some currencies have different minor currency exponents; e.g. JPY has no
// decimal place. A fractional part whose length differs from the currency's
// exponent rejects the token.
func NewMoneyToken() Token {
	isoCodes := isoAlternation()
	symbols := symbolAlternation()

	transform := func(v interface{}) interface{} {
		match := v.(*Match)

		iso := match.Named("iso")
		if iso == "" {
			if sym := match.Named("sym"); sym != "" {
				iso = money.CurrencySymbols[sym]
			} else {
				iso = "USD"
			}
		}

		exp := money.ISOCodesToExp[iso]
		amt := match.Named("amt")

		amountRe := `\A[0-9]+\z`
		if exp != 0 {
			amountRe = `\A[0-9]+(?:\.[0-9]{` + strconv.Itoa(exp) + `})?\z`
		}
		if !regexp.MustCompile(amountRe).MatchString(amt) {
			return nil
		}

		// The number is manipulated as a string to avoid floating point
		// rounding issues.
		var minor int64
		if strings.Contains(amt, ".") {
			minor, _ = strconv.ParseInt(strings.Replace(amt, ".", "", 1), 10, 64)
		} else {
			minor, _ = strconv.ParseInt(amt+strings.Repeat("0", exp), 10, 64)
		}
		return money.New(minor, iso)
	}

	return NewTransformedToken(
		NewFallbackToken(
			NewRegexToken(
				`\s*(?P<iso>`+isoCodes+`)\s+(?:`+symbols+`)?`+
					`(?P<amt>`+amountPattern+`)(?:`+symbols+`)?\s*`, -1),
			NewRegexToken(
				`\s*(?:`+symbols+`)?(?P<amt>`+amountPattern+`)`+
					`(?:`+symbols+`)?\s+(?P<iso>`+isoCodes+`)\s*`, -1),
			NewRegexToken(`\s*(?P<sym>`+symbols+`)(?P<amt>`+amountPattern+`)\s*`, -1),
			NewRegexToken(`\s*(?P<amt>`+amountPattern+`)(?P<sym>`+symbols+`)\s*`, -1),
			NewRegexToken(`\s*(?P<amt>`+amountPattern+`)\s*`, -1),
		),
		transform,
	)
}

// NewAsCurrencyToken creates a token for identifying a change-of-currency
// for a transaction; e.g. a loan made in EUR but tracked in JPY can be done
// with `$loan 5 EUR AS JPY`. The value is the ISO 4217 code.
func NewAsCurrencyToken() Token {
	return NewRegexToken(`\s*[aA][sS]\s+(`+isoAlternation()+`)\s*`, 1)
}

// NewUintToken creates a token for identifying a nonnegative integer. The
// value is an int64.
func NewUintToken() Token {
	return NewTransformedToken(
		NewRegexToken(`\s*([0-9]+)\s*`, 1),
		func(v interface{}) interface{} {
			n, err := strconv.ParseInt(v.(string), 10, 64)
			if err != nil {
				return nil
			}
			return n
		},
	)
}
