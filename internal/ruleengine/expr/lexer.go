package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokColon
	tokCompare
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokColon:
		return "':'"
	case tokCompare:
		return "comparison operator"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	}
	return "unknown token"
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits src into tokens. Keywords are case-insensitive and have symbolic
// aliases: && for AND, || for OR, ! for NOT.
func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case r == ':':
			toks = append(toks, token{tokColon, ":", i})
			i++
		case r == '&' || r == '|':
			if i+1 >= len(rs) || rs[i+1] != r {
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("expected %c%c", r, r)}
			}
			kind := tokAnd
			if r == '|' {
				kind = tokOr
			}
			toks = append(toks, token{kind, string([]rune{r, r}), i})
			i += 2
		case r == '!' && (i+1 >= len(rs) || rs[i+1] != '='):
			toks = append(toks, token{tokNot, "!", i})
			i++
		case strings.ContainsRune("<>=!", r):
			start := i
			i++
			if i < len(rs) && rs[i] == '=' {
				i++
			}
			op := string(rs[start:i])
			if op == "!" {
				return nil, &SyntaxError{Pos: start, Msg: "dangling '!'"}
			}
			toks = append(toks, token{tokCompare, op, start})
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			start := i
			i++
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			toks = append(toks, token{tokNumber, string(rs[start:i]), start})
		case isIdentRune(r):
			start := i
			for i < len(rs) && (isIdentRune(rs[i]) || unicode.IsDigit(rs[i])) {
				i++
			}
			word := string(rs[start:i])
			switch strings.ToUpper(word) {
			case "AND":
				toks = append(toks, token{tokAnd, word, start})
			case "OR":
				toks = append(toks, token{tokOr, word, start})
			case "NOT":
				toks = append(toks, token{tokNot, word, start})
			default:
				toks = append(toks, token{tokIdent, word, start})
			}
		default:
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	return append(toks, token{tokEOF, "", len(rs)}), nil
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '-' || r == '.'
}
