package cond

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenTrue
	tokenFalse
	tokenAnd    // &&
	tokenOr     // ||
	tokenNot    // !
	tokenEQ     // ==
	tokenNEQ    // !=
	tokenGT     // >
	tokenGTE    // >=
	tokenLT     // <
	tokenLTE    // <=
	tokenLParen // (
	tokenRParen // )
)

type token struct {
	typ  tokenType
	text string
	num  float64
	pos  int
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// lex tokenizes an expression. It is strict: stray single '&', '|' or '='
// characters are reported as errors rather than guessed at.
func lex(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{typ: tokenLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{typ: tokenRParen, text: ")", pos: i})
			i++
		case r == '&':
			if i+1 >= len(runes) || runes[i+1] != '&' {
				return nil, fmt.Errorf("expected '&&' at position %d", i)
			}
			tokens = append(tokens, token{typ: tokenAnd, text: "&&", pos: i})
			i += 2
		case r == '|':
			if i+1 >= len(runes) || runes[i+1] != '|' {
				return nil, fmt.Errorf("expected '||' at position %d", i)
			}
			tokens = append(tokens, token{typ: tokenOr, text: "||", pos: i})
			i += 2
		case r == '=':
			if i+1 >= len(runes) || runes[i+1] != '=' {
				return nil, fmt.Errorf("expected '==' at position %d", i)
			}
			tokens = append(tokens, token{typ: tokenEQ, text: "==", pos: i})
			i += 2
		case r == '!':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{typ: tokenNEQ, text: "!=", pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{typ: tokenNot, text: "!", pos: i})
				i++
			}
		case r == '>':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{typ: tokenGTE, text: ">=", pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{typ: tokenGT, text: ">", pos: i})
				i++
			}
		case r == '<':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{typ: tokenLTE, text: "<=", pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{typ: tokenLT, text: "<", pos: i})
				i++
			}
		case r == '"' || r == '\'':
			quote := r
			j := i + 1
			var sb strings.Builder
			for j < len(runes) && runes[j] != quote {
				sb.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string starting at position %d", i)
			}
			tokens = append(tokens, token{typ: tokenString, text: sb.String(), pos: i})
			i = j + 1
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			text := string(runes[i:j])
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", text, i)
			}
			tokens = append(tokens, token{typ: tokenNumber, text: text, num: n, pos: i})
			i = j
		case isIdentStart(r):
			j := i + 1
			for j < len(runes) && isIdentPart(runes[j]) {
				j++
			}
			text := string(runes[i:j])
			switch text {
			case "true":
				tokens = append(tokens, token{typ: tokenTrue, text: text, pos: i})
			case "false":
				tokens = append(tokens, token{typ: tokenFalse, text: text, pos: i})
			default:
				tokens = append(tokens, token{typ: tokenIdent, text: text, pos: i})
			}
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", string(r), i)
		}
	}
	tokens = append(tokens, token{typ: tokenEOF, pos: len(runes)})
	return tokens, nil
}
