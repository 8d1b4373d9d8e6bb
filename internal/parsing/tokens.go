// Package parsing implements the anchored token grammar used to recognize
// commands in comment bodies. A parser is an anchor set plus an ordered list
// of tokens; tokens are polymorphic over a single consume capability.
//
// The parser is always greedy; it attempts optional tokens before moving on
// and attempts all fallbacks in order.
package parsing

import "regexp"

// Token is the base interface for all parsing tokens. A token takes the
// complete text and an offset and reports how many characters it consumed
// along with the parsed value, or ok=false when it does not match there.
type Token interface {
	Consume(text string, offset int) (consumed int, value interface{}, ok bool)
}

// Match is the value produced by a RegexToken with no capture group
// selected. It exposes the named and numbered groups of the match.
type Match struct {
	re     *regexp.Regexp
	groups []string
}

// Group returns the numbered capture group (0 is the whole match).
func (m *Match) Group(i int) string {
	if i < 0 || i >= len(m.groups) {
		return ""
	}
	return m.groups[i]
}

// Named returns the named capture group, or "" if absent or unmatched.
func (m *Match) Named(name string) string {
	for i, groupName := range m.re.SubexpNames() {
		if groupName == name {
			return m.groups[i]
		}
	}
	return ""
}

// RegexToken matches a regular expression anchored at the offset. When
// capture is >= 0 the value is that capture group; otherwise the value is
// the *Match itself.
type RegexToken struct {
	re      *regexp.Regexp
	capture int
}

// NewRegexToken compiles the pattern, which is matched only at the token's
// start offset.
func NewRegexToken(pattern string, capture int) *RegexToken {
	return &RegexToken{re: regexp.MustCompile(`\A` + pattern), capture: capture}
}

// Consume implements Token
func (t *RegexToken) Consume(text string, offset int) (int, interface{}, bool) {
	groups := t.re.FindStringSubmatch(text[offset:])
	if groups == nil {
		return 0, nil, false
	}
	if t.capture >= 0 {
		return len(groups[0]), groups[t.capture], true
	}
	return len(groups[0]), &Match{re: t.re, groups: groups}, true
}

// FallbackToken attempts its children in order, succeeding as soon as the
// first one succeeds.
type FallbackToken struct {
	children []Token
}

// NewFallbackToken builds a FallbackToken over the given children
func NewFallbackToken(children ...Token) *FallbackToken {
	return &FallbackToken{children: children}
}

// Consume implements Token
func (t *FallbackToken) Consume(text string, offset int) (int, interface{}, bool) {
	for _, child := range t.children {
		if consumed, value, ok := child.Consume(text, offset); ok {
			return consumed, value, true
		}
	}
	return 0, nil, false
}

// TransformedToken runs an inner token and applies a pure function to its
// value. A nil result from the transform is treated as a failure to match.
type TransformedToken struct {
	child     Token
	transform func(interface{}) interface{}
}

// NewTransformedToken builds a TransformedToken
func NewTransformedToken(child Token, transform func(interface{}) interface{}) *TransformedToken {
	return &TransformedToken{child: child, transform: transform}
}

// Consume implements Token
func (t *TransformedToken) Consume(text string, offset int) (int, interface{}, bool) {
	consumed, value, ok := t.child.Consume(text, offset)
	if !ok {
		return 0, nil, false
	}
	transformed := t.transform(value)
	if transformed == nil {
		return 0, nil, false
	}
	return consumed, transformed, true
}
