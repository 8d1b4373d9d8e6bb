// Package responses looks up reply templates from the responses table and
// substitutes their named parameters. The table itself is owned by the
// website; this side only reads it.
package responses

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Get fetches the named template and substitutes the parameters into its
// {placeholder} slots. Unknown placeholders are left untouched.
func Get(ctx context.Context, q sqlx.QueryerContext, name string, params map[string]interface{}) (string, error) {
	var body string
	err := sqlx.GetContext(ctx, q, &body,
		`SELECT response_body FROM responses WHERE name = $1`, name)
	if err != nil {
		return "", fmt.Errorf("load response %s: %w", name, err)
	}
	return Substitute(body, params), nil
}

// GetLetter fetches the "<name>_title" and "<name>_body" templates and
// substitutes the parameters into both.
func GetLetter(ctx context.Context, q sqlx.QueryerContext, name string, params map[string]interface{}) (subject, body string, err error) {
	subject, err = Get(ctx, q, name+"_title", params)
	if err != nil {
		return "", "", err
	}
	body, err = Get(ctx, q, name+"_body", params)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

// Substitute replaces every {placeholder} with its parameter value.
func Substitute(format string, params map[string]interface{}) string {
	return placeholderRe.ReplaceAllStringFunc(format, func(raw string) string {
		key := strings.Trim(raw, "{}")
		value, ok := params[key]
		if !ok {
			return raw
		}
		return fmt.Sprintf("%v", value)
	})
}
