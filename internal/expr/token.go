// Package expr implements the safe expression language of §4.1: a bounded
// subset of a property/path/operator language with collection projection,
// selection, and null-safe navigation. Compilation is AST-based, grounded
// in the compile-once/evaluate-many shape the teacher's transform nodes
// use around expr-lang (Compile -> Program, then vm.Run per message), but
// the grammar itself is hand-written to match the spec's own syntax.
package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokVariable // #name
	tokInt
	tokFloat
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src   string
	pos   int
	toks  []token
}

func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.toks = append(l.toks, token{kind: tokEOF, pos: l.pos})
			return l.toks, nil
		}
		start := l.pos
		r, sz := utf8.DecodeRuneInString(l.src[l.pos:])

		switch {
		case r == '#':
			l.pos += sz
			id := l.readIdent()
			if id == "" {
				return nil, apexerr.New(apexerr.KindParseError, "lex", "expected identifier after #")
			}
			l.toks = append(l.toks, token{kind: tokVariable, text: id, pos: start})
		case unicode.IsLetter(r) || r == '_':
			id := l.readIdent()
			l.toks = append(l.toks, token{kind: tokIdent, text: id, pos: start})
		case unicode.IsDigit(r):
			num, isFloat := l.readNumber()
			k := tokInt
			if isFloat {
				k = tokFloat
			}
			l.toks = append(l.toks, token{kind: k, text: num, pos: start})
		case r == '"' || r == '\'':
			s, err := l.readString(r)
			if err != nil {
				return nil, err
			}
			l.toks = append(l.toks, token{kind: tokString, text: s, pos: start})
		default:
			p, ok := l.readPunct()
			if !ok {
				return nil, apexerr.New(apexerr.KindParseError, "lex", fmt.Sprintf("unexpected character %q at %d", r, start))
			}
			l.toks = append(l.toks, token{kind: tokPunct, text: p, pos: start})
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, sz := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += sz
	}
}

func (l *lexer) readIdent() string {
	start := l.pos
	for l.pos < len(l.src) {
		r, sz := utf8.DecodeRuneInString(l.src[l.pos:])
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			break
		}
		l.pos += sz
	}
	return l.src[start:l.pos]
}

func (l *lexer) readNumber() (string, bool) {
	start := l.pos
	isFloat := false
	for l.pos < len(l.src) {
		r, sz := utf8.DecodeRuneInString(l.src[l.pos:])
		if unicode.IsDigit(r) {
			l.pos += sz
			continue
		}
		if r == '.' && l.pos+1 < len(l.src) {
			nr, _ := utf8.DecodeRuneInString(l.src[l.pos+1:])
			if unicode.IsDigit(nr) && !isFloat {
				isFloat = true
				l.pos += sz
				continue
			}
		}
		break
	}
	return l.src[start:l.pos], isFloat
}

func (l *lexer) readString(quote rune) (string, error) {
	l.pos++ // skip opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		r, sz := utf8.DecodeRuneInString(l.src[l.pos:])
		if r == quote {
			l.pos += sz
			return b.String(), nil
		}
		if r == '\\' && l.pos+sz < len(l.src) {
			l.pos += sz
			nr, nsz := utf8.DecodeRuneInString(l.src[l.pos:])
			switch nr {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteRune(nr)
			}
			l.pos += nsz
			continue
		}
		b.WriteRune(r)
		l.pos += sz
	}
	return "", apexerr.New(apexerr.KindParseError, "lex", "unterminated string literal")
}

var threeCharPuncts = []string{"...", ".?[", ".![", ".^[", ".$["}
var twoCharPuncts = []string{"==", "!=", "<=", ">=", "&&", "||", "?.", "?:"}

func (l *lexer) readPunct() (string, bool) {
	rest := l.src[l.pos:]
	for _, p := range threeCharPuncts {
		if strings.HasPrefix(rest, p) {
			l.pos += len(p)
			return p, true
		}
	}
	for _, p := range twoCharPuncts {
		if strings.HasPrefix(rest, p) {
			l.pos += len(p)
			return p, true
		}
	}
	single := "+-*/%()[]{}.,<>!?:'\"="
	r, sz := utf8.DecodeRuneInString(rest)
	if strings.ContainsRune(single, r) {
		l.pos += sz
		return string(r), true
	}
	return "", false
}
