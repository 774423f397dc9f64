package decompose

import (
	"errors"
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokWord   tokenKind = iota // keyword or bare identifier
	tokString                  // '...'
	tokQuoted                  // "..." or `...`
	tokLParen
	tokRParen
	tokComma
	tokSemicolon
	tokOther // operators, numbers, placeholders
)

// token is a lexeme with its byte span in the source.
type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

func (t token) is(word string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, word)
}

var (
	errUnterminatedString  = errors.New("unterminated string literal")
	errUnterminatedComment = errors.New("unterminated block comment")
	errUnbalancedParens    = errors.New("unbalanced parentheses")
)

type lexer struct {
	input string
	pos   int
}

// tokenize splits input into tokens, skipping whitespace and comments.
// Placeholders such as #{name}, :name, @name and $name survive as tokOther
// or tokWord runs; their text is never rewritten.
func tokenize(input string) ([]token, error) {
	l := &lexer{input: input}
	var toks []token
	for {
		if err := l.skipWhitespaceAndComments(); err != nil {
			return nil, err
		}
		if l.pos >= len(l.input) {
			return toks, nil
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
}

func (l *lexer) peek(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) skipWhitespaceAndComments() error {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			l.pos++
		case ch == '-' && l.peek(1) == '-':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		case ch == '/' && l.peek(1) == '*':
			end := strings.Index(l.input[l.pos+2:], "*/")
			if end < 0 {
				return fmt.Errorf("%w at offset %d", errUnterminatedComment, l.pos)
			}
			l.pos += end + 4
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() (token, error) {
	start := l.pos
	ch := l.input[l.pos]
	switch {
	case ch == '(':
		l.pos++
		return l.emit(tokLParen, start), nil
	case ch == ')':
		l.pos++
		return l.emit(tokRParen, start), nil
	case ch == ',':
		l.pos++
		return l.emit(tokComma, start), nil
	case ch == ';':
		l.pos++
		return l.emit(tokSemicolon, start), nil
	case ch == '\'':
		if err := l.readQuoted('\''); err != nil {
			return token{}, err
		}
		return l.emit(tokString, start), nil
	case ch == '"' || ch == '`':
		if err := l.readQuoted(ch); err != nil {
			return token{}, err
		}
		return l.emit(tokQuoted, start), nil
	case ch == '#' && l.peek(1) == '{':
		// MyBatis placeholder, kept whole so the brace never reads as a group.
		end := strings.IndexByte(l.input[l.pos:], '}')
		if end < 0 {
			l.pos = len(l.input)
		} else {
			l.pos += end + 1
		}
		return l.emit(tokOther, start), nil
	case isWordStart(ch):
		for l.pos < len(l.input) && isWordPart(l.input[l.pos]) {
			l.pos++
		}
		return l.emit(tokWord, start), nil
	default:
		l.pos++
		return l.emit(tokOther, start), nil
	}
}

// readQuoted consumes a quoted run; a doubled quote escapes itself.
func (l *lexer) readQuoted(q byte) error {
	start := l.pos
	l.pos++
	for l.pos < len(l.input) {
		if l.input[l.pos] == q {
			if l.peek(1) == q {
				l.pos += 2
				continue
			}
			l.pos++
			return nil
		}
		l.pos++
	}
	if q == '\'' {
		return fmt.Errorf("%w at offset %d", errUnterminatedString, start)
	}
	return fmt.Errorf("unterminated quoted identifier at offset %d", start)
}

func (l *lexer) emit(kind tokenKind, start int) token {
	return token{kind: kind, text: l.input[start:l.pos], start: start, end: l.pos}
}

func isWordStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isWordPart(ch byte) bool {
	return isWordStart(ch) || (ch >= '0' && ch <= '9') || ch == '$'
}

// matchParens returns, for every '(' token index, the index of its ')'.
func matchParens(toks []token) (map[int]int, error) {
	match := make(map[int]int)
	var stack []int
	for i, t := range toks {
		switch t.kind {
		case tokLParen:
			stack = append(stack, i)
		case tokRParen:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unexpected ')' at offset %d", errUnbalancedParens, t.start)
			}
			match[stack[len(stack)-1]] = i
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: '(' at offset %d is never closed", errUnbalancedParens, toks[stack[len(stack)-1]].start)
	}
	return match, nil
}
