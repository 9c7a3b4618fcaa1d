package query

import (
	"strconv"
	"strings"
	"unicode"
)

// tokenType classifies lexed tokens.
type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokString
	tokNumber
	tokStar
	tokComma
	tokLParen
	tokRParen
	tokOp // comparison operator
)

// token is one lexed unit with its byte offset in the input.
type token struct {
	typ tokenType
	val string
	num float64
	pos int
}

// isKeyword reports whether the token is an identifier spelled like
// the given keyword, case-insensitively.
func (t token) isKeyword(kw string) bool {
	return t.typ == tokIdent && strings.EqualFold(t.val, kw)
}

// identRune reports whether r may appear inside a bare identifier or
// reference. References carry node-id and git-ref punctuation
// (fn:a:Foo.bar, pkg/auth, HEAD~1, v1.0^) so those characters lex as
// part of the token.
func identRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		strings.ContainsRune("_.:/~^-", r)
}

// lex tokenizes the query text. The only lexical error is an
// unterminated string or an entirely unexpected character.
func lex(input string) ([]token, *ParseError) {
	var toks []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '*':
			toks = append(toks, token{typ: tokStar, val: "*", pos: i})
			i++
		case r == ',':
			toks = append(toks, token{typ: tokComma, val: ",", pos: i})
			i++
		case r == '(':
			toks = append(toks, token{typ: tokLParen, val: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{typ: tokRParen, val: ")", pos: i})
			i++
		case r == '\'' || r == '"':
			quote := r
			start := i
			i++
			var sb strings.Builder
			for i < len(runes) && runes[i] != quote {
				sb.WriteRune(runes[i])
				i++
			}
			if i >= len(runes) {
				return nil, &ParseError{Position: start, Message: "unterminated string literal"}
			}
			i++ // closing quote
			toks = append(toks, token{typ: tokString, val: sb.String(), pos: start})
		case r == '=' || r == '!' || r == '<' || r == '>':
			start := i
			op, n := lexOperator(runes[i:])
			if op == "" {
				return nil, &ParseError{Position: start, Message: "unexpected character " + strconv.QuoteRune(r)}
			}
			toks = append(toks, token{typ: tokOp, val: op, pos: start})
			i += n
		case identRune(r):
			start := i
			for i < len(runes) && identRune(runes[i]) {
				i++
			}
			text := string(runes[start:i])
			if num, err := strconv.ParseFloat(text, 64); err == nil {
				toks = append(toks, token{typ: tokNumber, val: text, num: num, pos: start})
			} else {
				toks = append(toks, token{typ: tokIdent, val: text, pos: start})
			}
		default:
			return nil, &ParseError{Position: i, Message: "unexpected character " + strconv.QuoteRune(r)}
		}
	}
	toks = append(toks, token{typ: tokEOF, pos: len(runes)})
	return toks, nil
}

// lexOperator consumes a comparison operator, normalizing == to = and
// <> to !=. Returns the operator and the rune count consumed.
func lexOperator(rest []rune) (string, int) {
	two := ""
	if len(rest) >= 2 {
		two = string(rest[:2])
	}
	switch two {
	case "==":
		return "=", 2
	case "!=":
		return "!=", 2
	case "<>":
		return "!=", 2
	case "<=":
		return "<=", 2
	case ">=":
		return ">=", 2
	}
	switch rest[0] {
	case '=':
		return "=", 1
	case '<':
		return "<", 1
	case '>':
		return ">", 1
	}
	return "", 0
}
