package parsing

import "strings"

// TokenSpec pairs a token with whether it may be omitted. An omitted
// optional token is recorded as a nil value without advancing.
type TokenSpec struct {
	Token    Token
	Optional bool
}

// Parser locates one of its anchors in free-form text and then consumes its
// tokens in order starting just past the anchor.
type Parser struct {
	anchors []string
	tokens  []TokenSpec
}

// NewParser builds a parser. Anchors are attempted from lower to higher
// first-occurrence index; at least one anchor must be provided.
func NewParser(anchors []string, tokens []TokenSpec) *Parser {
	if len(anchors) == 0 {
		panic("parsing: at least one anchor must be specified")
	}
	return &Parser{anchors: anchors, tokens: tokens}
}

// Parse attempts to parse the text. If an anchor is found and all
// non-optional tokens match in order, it returns the value of each token
// (nil for omitted optional tokens) and true. Otherwise it returns nil and
// false, after resuming the anchor search past each failed anchor match.
func (p *Parser) Parse(text string) ([]interface{}, bool) {
	startIndex := -1
	for {
		bestAnchor := ""
		bestStartIndex := -1
		for _, anchor := range p.anchors {
			idx := indexFrom(text, anchor, startIndex+1)
			if idx < 0 {
				continue
			}
			if bestStartIndex < 0 || idx < bestStartIndex {
				bestAnchor = anchor
				bestStartIndex = idx
			}
		}

		if bestStartIndex < 0 {
			return nil, false
		}
		startIndex = bestStartIndex

		tokenIndex := startIndex + len(bestAnchor)
		result := make([]interface{}, 0, len(p.tokens))
		for _, spec := range p.tokens {
			var consumed int
			var value interface{}
			var ok bool
			if tokenIndex < len(text) {
				consumed, value, ok = spec.Token.Consume(text, tokenIndex)
			}

			if !ok {
				if !spec.Optional {
					break
				}
				result = append(result, nil)
			} else {
				result = append(result, value)
				tokenIndex += consumed
			}
		}

		if len(result) == len(p.tokens) {
			return result, true
		}
	}
}

func indexFrom(text, substr string, from int) int {
	if from >= len(text) {
		return -1
	}
	idx := strings.Index(text[from:], substr)
	if idx < 0 {
		return -1
	}
	return from + idx
}
