// Package config implements the met configuration language: a lexer, a
// reducer that builds typed launch descriptors, a registry of declared names,
// and the validation pass that produces an immutable ConfigSet.
package config

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexer token.
type TokenType int

const (
	TokenLBrace     TokenType = iota // {
	TokenRBrace                      // }
	TokenLBracket                    // [
	TokenRBracket                    // ]
	TokenSemicolon                   // ;
	TokenEquals                      // =
	TokenComma                       // ,
	TokenIdentifier                  // unquoted word
	TokenKeyword                     // statement keyword
	TokenString                      // "quoted string"
	TokenNumber                      // 12, -3.5, 1e9
	TokenEOF
)

func (t TokenType) String() string {
	switch t {
	case TokenLBrace:
		return "'{'"
	case TokenRBrace:
		return "'}'"
	case TokenLBracket:
		return "'['"
	case TokenRBracket:
		return "']'"
	case TokenSemicolon:
		return "';'"
	case TokenEquals:
		return "'='"
	case TokenComma:
		return "','"
	case TokenIdentifier:
		return "identifier"
	case TokenKeyword:
		return "keyword"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenEOF:
		return "EOF"
	default:
		return "unknown"
	}
}

// IsPunct reports whether t is a punctuation token.
func (t TokenType) IsPunct() bool {
	return t <= TokenComma
}

// Pos is a location in the configuration text. Line and Column are 1-based,
// Offset is the 0-based byte offset.
type Pos struct {
	Line   int
	Column int
	Offset int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a single lexer token.
type Token struct {
	Type  TokenType
	Value string
	Pos   Pos
}

func (t Token) String() string {
	switch t.Type {
	case TokenIdentifier, TokenKeyword, TokenString, TokenNumber:
		return fmt.Sprintf("%s(%q)", t.Type, t.Value)
	}
	return t.Type.String()
}

// keywords are the words that open a statement.
var keywords = map[string]bool{
	"daemon":           true,
	"process":          true,
	"visi":             true,
	"tunable":          true,
	"tunable_constant": true,
}

// LexErrorKind classifies a lexer failure.
type LexErrorKind int

const (
	LexUnterminatedString LexErrorKind = iota
	LexInvalidNumber
	LexUnexpectedCharacter
	LexUnterminatedComment
)

func (k LexErrorKind) String() string {
	switch k {
	case LexUnterminatedString:
		return "unterminated string"
	case LexInvalidNumber:
		return "invalid number"
	case LexUnexpectedCharacter:
		return "unexpected character"
	case LexUnterminatedComment:
		return "unterminated comment"
	default:
		return "lex error"
	}
}

// LexError is returned for malformed tokens.
type LexError struct {
	Kind LexErrorKind
	Pos  Pos
	Text string
}

func (e *LexError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %q", e.Pos, e.Kind, e.Text)
}

// Lexer tokenizes met configuration text. It holds no state beyond its
// cursor, so Reset restarts the token stream from the beginning.
type Lexer struct {
	input  string
	pos    int
	line   int
	column int
}

// NewLexer creates a new Lexer for the given input string.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		line:   1,
		column: 1,
	}
}

// Reset rewinds the lexer to the start of its input.
func (l *Lexer) Reset() {
	l.pos = 0
	l.line = 1
	l.column = 1
}

// Next returns the next token, advancing the position. After the end of input
// it keeps returning TokenEOF.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}

	p := l.here()
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: p}, nil
	}

	ch := l.input[l.pos]
	switch ch {
	case '{':
		return l.punct(TokenLBrace, p), nil
	case '}':
		return l.punct(TokenRBrace, p), nil
	case '[':
		return l.punct(TokenLBracket, p), nil
	case ']':
		return l.punct(TokenRBracket, p), nil
	case ';':
		return l.punct(TokenSemicolon, p), nil
	case '=':
		return l.punct(TokenEquals, p), nil
	case ',':
		return l.punct(TokenComma, p), nil
	case '"':
		return l.readString(p)
	}

	if numberStart(l.input[l.pos:]) {
		return l.readNumber(p)
	}
	if isIdentStart(ch) {
		return l.readIdentifier(p), nil
	}
	l.advance()
	return Token{}, &LexError{Kind: LexUnexpectedCharacter, Pos: p, Text: string(ch)}
}

// Peek returns the next token without advancing.
func (l *Lexer) Peek() (Token, error) {
	savedPos := l.pos
	savedLine := l.line
	savedCol := l.column
	tok, err := l.Next()
	l.pos = savedPos
	l.line = savedLine
	l.column = savedCol
	return tok, err
}

// Tokens lexes the whole input from the start, including the final TokenEOF.
// The lexer is left positioned at the end of input.
func (l *Lexer) Tokens() ([]Token, error) {
	l.Reset()
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return toks, err
		}
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks, nil
		}
	}
}

func (l *Lexer) here() Pos {
	return Pos{Line: l.line, Column: l.column, Offset: l.pos}
}

func (l *Lexer) punct(typ TokenType, p Pos) Token {
	v := l.input[l.pos : l.pos+1]
	l.advance()
	return Token{Type: typ, Value: v, Pos: p}
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.pos++
	}
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			l.advance()
			continue
		}

		// Line comment: # ... \n
		if ch == '#' {
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance()
			}
			continue
		}

		// Block comment: /* ... */
		if ch == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '*' {
			start := l.here()
			l.advance() // /
			l.advance() // *
			closed := false
			for l.pos < len(l.input) {
				if l.input[l.pos] == '*' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '/' {
					l.advance() // *
					l.advance() // /
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return &LexError{Kind: LexUnterminatedComment, Pos: start, Text: "/*"}
			}
			continue
		}

		// Line comment: // ... \n
		if ch == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '/' {
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance()
			}
			continue
		}

		break
	}
	return nil
}

func (l *Lexer) readString(p Pos) (Token, error) {
	l.advance() // opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.advance()
			switch l.input[l.pos] {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte('\\')
				b.WriteByte(l.input[l.pos])
			}
			l.advance()
			continue
		}
		if ch == '"' {
			l.advance()
			return Token{Type: TokenString, Value: b.String(), Pos: p}, nil
		}
		b.WriteByte(ch)
		l.advance()
	}
	return Token{}, &LexError{Kind: LexUnterminatedString, Pos: p}
}

// readNumber consumes a run that starts like a number. Only a run that is a
// number as a whole is a TokenNumber; host names and addresses such as
// 10.0.0.1 or 3com.example.org are bare words. A bare word cannot start with
// '+', so a '+' run that is not a number is an error.
func (l *Lexer) readNumber(p Pos) (Token, error) {
	start := l.pos
	l.advance()
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.advance()
	}
	text := l.input[start:l.pos]
	switch {
	case isNumber(text):
		return Token{Type: TokenNumber, Value: text, Pos: p}, nil
	case text[0] == '+':
		return Token{}, &LexError{Kind: LexInvalidNumber, Pos: p, Text: text}
	}
	return Token{Type: TokenIdentifier, Value: text, Pos: p}, nil
}

func (l *Lexer) readIdentifier(p Pos) Token {
	start := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
		l.column++
	}
	word := l.input[start:l.pos]
	if keywords[word] {
		return Token{Type: TokenKeyword, Value: word, Pos: p}
	}
	return Token{Type: TokenIdentifier, Value: word, Pos: p}
}

// numberStart reports whether s begins with a digit, or with a sign or '.'
// followed by one.
func numberStart(s string) bool {
	if s == "" {
		return false
	}
	if isDigit(s[0]) {
		return true
	}
	return (s[0] == '-' || s[0] == '+' || s[0] == '.') && len(s) > 1 && startsNumber(s[1:])
}

// isNumber reports whether s is an optionally signed decimal with an optional
// fraction and exponent. Underscores, hex and named values are not numbers.
func isNumber(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '-' || s[i] == '+') {
			i++
		}
		exp := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

func startsNumber(s string) bool {
	if isDigit(s[0]) {
		return true
	}
	return s[0] == '.' && len(s) > 1 && isDigit(s[1])
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		ch == '_' || ch == '/' || ch == '.' || ch == '-'
}

// isIdentChar returns true if ch is valid inside a bare word. Host names
// (node1.cs.wisc.edu), paths (/usr/bin/paradynd) and flags (-n) are bare
// words.
func isIdentChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_' || ch == '.' ||
		ch == '/' || ch == ':' || ch == '+'
}
