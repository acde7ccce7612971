package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseErrorKind classifies a grammar failure.
type ParseErrorKind int

const (
	ParseUnexpectedToken ParseErrorKind = iota
	ParseUnknownStatement
	ParseUnknownField
	ParseDuplicateField
	ParseMissingField
	ParseTypeMismatch
	ParseUnterminatedDeclaration
	ParseInvalidNumber
	ParseUnknownArchitecture
)

func (k ParseErrorKind) String() string {
	switch k {
	case ParseUnexpectedToken:
		return "unexpected token"
	case ParseUnknownStatement:
		return "unknown statement"
	case ParseUnknownField:
		return "unknown field"
	case ParseDuplicateField:
		return "duplicate field"
	case ParseMissingField:
		return "missing field"
	case ParseTypeMismatch:
		return "type mismatch"
	case ParseUnterminatedDeclaration:
		return "unterminated declaration"
	case ParseInvalidNumber:
		return "invalid number"
	case ParseUnknownArchitecture:
		return "unknown architecture"
	}
	return "parse error"
}

// ParseError is a grammar failure at a position. Builder failures are
// wrapped and reachable through errors.As.
type ParseError struct {
	Kind   ParseErrorKind
	Pos    Pos
	Record RecordKind
	Name   string
	Field  string
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type parseState int

const (
	stateStatement   parseState = iota // expecting a statement keyword
	stateDeclaration                   // inside a declaration, expecting a clause or its end
	stateClauseValue                   // after "field [=]", expecting the value
)

var statementKinds = map[string]RecordKind{
	"daemon":           KindDaemon,
	"process":          KindProcess,
	"visi":             KindVisi,
	"tunable":          KindTunable,
	"tunable_constant": KindTunable,
}

// declaration is the open statement being reduced.
type declaration struct {
	kind    RecordKind
	name    string
	pos     Pos // statement keyword
	braced  bool
	needSep bool // braced form: a clause ended, expecting ';' or '}'

	field    fieldSpec
	fieldPos Pos
}

// Parser reduces met configuration text into a ConfigSet. A Parser owns its
// lexer, value stack and registry; separate Parsers share nothing.
type Parser struct {
	lex   *Lexer
	stack Stack
	reg   *Registry
	state parseState
	decl  declaration
}

// NewParser creates a new Parser for the given input string.
func NewParser(input string) *Parser {
	return &Parser{lex: NewLexer(input)}
}

// Parse lexes and reduces the whole input, registers every declaration and
// validates the result. The first error of any stage is returned and no
// ConfigSet is produced. Parse may be called again and starts from scratch.
func (p *Parser) Parse() (*ConfigSet, error) {
	p.lex.Reset()
	p.stack.Clear()
	p.reg = NewRegistry()
	p.state = stateStatement
	p.decl = declaration{}

	if err := p.run(); err != nil {
		p.stack.Clear()
		p.reg = nil
		return nil, err
	}
	cs, err := Validate(p.reg)
	p.reg = nil
	return cs, err
}

func (p *Parser) run() error {
	for {
		tok, err := p.lex.Next()
		if err != nil {
			return err
		}
		if tok.Type == TokenEOF {
			if p.state != stateStatement {
				return p.unterminated(tok)
			}
			return nil
		}

		switch p.state {
		case stateStatement:
			err = p.statement(tok)
		case stateDeclaration:
			err = p.declaration(tok)
		case stateClauseValue:
			err = p.clauseValue(tok)
		}
		if err != nil {
			return err
		}
	}
}

func (p *Parser) statement(tok Token) error {
	switch tok.Type {
	case TokenSemicolon:
		return nil
	case TokenKeyword:
	case TokenIdentifier:
		return &ParseError{Kind: ParseUnknownStatement, Pos: tok.Pos,
			Msg: fmt.Sprintf("unknown statement %q, expected daemon, process, visi or tunable", tok.Value)}
	default:
		return p.unexpected(tok, "statement keyword")
	}

	kind := statementKinds[tok.Value]
	nameTok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.decl = declaration{kind: kind, pos: tok.Pos}
	switch nameTok.Type {
	case TokenIdentifier, TokenString, TokenKeyword:
	case TokenEOF:
		return p.unterminated(nameTok)
	default:
		return p.unexpected(nameTok, kind.String()+" name")
	}
	p.decl.name = nameTok.Value

	b := NewBuilder(kind, nameTok.Value, nameTok.Pos)
	if err := p.stack.Push(BuilderValue(b, nameTok.Pos)); err != nil {
		return err
	}

	next, err := p.lex.Peek()
	if err != nil {
		return err
	}
	if next.Type == TokenLBrace {
		p.lex.Next()
		p.decl.braced = true
	}
	p.state = stateDeclaration
	return nil
}

func (p *Parser) declaration(tok Token) error {
	if p.decl.braced {
		switch tok.Type {
		case TokenRBrace:
			if err := p.closeDeclaration(); err != nil {
				return err
			}
			// optional ';' after the closing brace
			if next, err := p.lex.Peek(); err == nil && next.Type == TokenSemicolon {
				p.lex.Next()
			}
			return nil
		case TokenSemicolon:
			p.decl.needSep = false
			return nil
		}
		if p.decl.needSep {
			if tok.Type == TokenKeyword {
				if _, ok := lookupField(p.decl.kind, tok.Value); !ok {
					return p.unterminated(tok)
				}
			}
			return p.unexpected(tok, fmt.Sprintf("';' or '}' after %s", p.decl.field.name))
		}
	} else if tok.Type == TokenSemicolon {
		return p.closeDeclaration()
	}

	if tok.Type == TokenIdentifier && p.decl.kind == KindTunable && numberStart(tok.Value) {
		// "tunable t 3x;" is a malformed value, not a field name
		p.decl.field, _ = lookupField(KindTunable, "value")
		p.decl.fieldPos = tok.Pos
		return p.clauseValue(tok)
	}
	switch tok.Type {
	case TokenIdentifier, TokenKeyword:
		return p.beginClause(tok)
	case TokenNumber, TokenEquals:
		// tunable NAME NUMBER; and tunable NAME = NUMBER;
		if p.decl.kind == KindTunable {
			p.decl.field, _ = lookupField(KindTunable, "value")
			p.decl.fieldPos = tok.Pos
			if tok.Type == TokenEquals {
				p.state = stateClauseValue
				return nil
			}
			return p.clauseValue(tok)
		}
	}
	if p.decl.braced {
		return p.unexpected(tok, "field name or '}'")
	}
	return p.unexpected(tok, "field name or ';'")
}

func (p *Parser) beginClause(tok Token) error {
	spec, ok := lookupField(p.decl.kind, tok.Value)
	if !ok {
		if tok.Type == TokenKeyword {
			// "process p ... visi v": the previous statement was never closed
			return p.unterminated(tok)
		}
		return &ParseError{Kind: ParseUnknownField, Pos: tok.Pos, Record: p.decl.kind, Name: p.decl.name, Field: tok.Value,
			Msg: fmt.Sprintf("%s %q: unknown field %q", p.decl.kind, p.decl.name, tok.Value)}
	}
	p.decl.field = spec
	p.decl.fieldPos = tok.Pos

	next, err := p.lex.Peek()
	if err != nil {
		return err
	}
	if next.Type == TokenEquals {
		p.lex.Next()
	}
	p.state = stateClauseValue
	return nil
}

func (p *Parser) clauseValue(tok Token) error {
	var (
		v       Value
		err     error
		pending *Token // delimiter consumed while reading a bare list
	)
	switch p.decl.field.typ {
	case fieldList:
		v, pending, err = p.listValue(tok)
	case fieldArch:
		v, err = p.archValue(tok)
	case fieldNumber:
		v, err = p.numericValue(tok)
	default:
		v, err = p.scalarValue(tok)
	}
	if err != nil {
		return err
	}

	if err := p.stack.Push(v); err != nil {
		return err
	}
	if err := p.stack.Reduce(p.decl.field.name); err != nil {
		return p.builderError(err, p.decl.fieldPos)
	}

	p.state = stateDeclaration
	p.decl.needSep = p.decl.braced
	if pending != nil {
		p.decl.needSep = false
		return p.declaration(*pending)
	}
	return nil
}

func (p *Parser) scalarValue(tok Token) (Value, error) {
	switch tok.Type {
	case TokenString, TokenIdentifier, TokenKeyword, TokenNumber:
		return StringValue(tok.Value, tok.Pos), nil
	}
	return Value{}, p.missingValue(tok)
}

func (p *Parser) archValue(tok Token) (Value, error) {
	switch tok.Type {
	case TokenString, TokenIdentifier:
		a, ok := ParseArch(tok.Value)
		if !ok {
			return Value{}, &ParseError{Kind: ParseUnknownArchitecture, Pos: tok.Pos, Record: p.decl.kind, Name: p.decl.name, Field: p.decl.field.name,
				Msg: fmt.Sprintf("%s %q: unknown architecture %q (known: %s)", p.decl.kind, p.decl.name, tok.Value, strings.Join(Archs(), ", "))}
		}
		return ArchValue(a, tok.Pos), nil
	case TokenNumber:
		return p.numberToken(tok)
	}
	return Value{}, p.missingValue(tok)
}

func (p *Parser) numericValue(tok Token) (Value, error) {
	switch tok.Type {
	case TokenNumber:
		return p.numberToken(tok)
	case TokenString:
		text := strings.TrimSpace(tok.Value)
		if !isNumber(text) {
			return Value{}, p.invalidNumber(tok)
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsInf(f, 0) {
			return Value{}, p.invalidNumber(tok)
		}
		return FloatValue(f, tok.Pos), nil
	case TokenIdentifier, TokenKeyword:
		return Value{}, p.invalidNumber(tok)
	}
	return Value{}, p.missingValue(tok)
}

// numberToken converts a number token to an integer value when it has no
// fraction or exponent, else to a float value.
func (p *Parser) numberToken(tok Token) (Value, error) {
	if i, err := strconv.ParseInt(tok.Value, 10, 64); err == nil {
		return IntValue(i, tok.Pos), nil
	}
	f, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return Value{}, p.invalidNumber(tok)
	}
	return FloatValue(f, tok.Pos), nil
}

// listValue reads either a bracketed list or a bare sequence of items ending
// at the next ';' or '}'. For the bare form the delimiter has already been
// read when the list ends and is handed back to the caller.
func (p *Parser) listValue(tok Token) (Value, *Token, error) {
	items := []string{}
	if tok.Type == TokenLBracket {
		for {
			t, err := p.lex.Next()
			if err != nil {
				return Value{}, nil, err
			}
			switch t.Type {
			case TokenRBracket:
				return ListValue(items, tok.Pos), nil, nil
			case TokenComma:
			case TokenString, TokenIdentifier, TokenKeyword, TokenNumber:
				items = append(items, t.Value)
			case TokenEOF:
				return Value{}, nil, p.unterminated(t)
			default:
				return Value{}, nil, p.unexpected(t, "list item or ']'")
			}
		}
	}

	t := tok
	for {
		switch t.Type {
		case TokenSemicolon, TokenRBrace:
			return ListValue(items, tok.Pos), &t, nil
		case TokenString, TokenIdentifier, TokenKeyword, TokenNumber:
			items = append(items, t.Value)
		case TokenEOF:
			return Value{}, nil, p.unterminated(t)
		default:
			return Value{}, nil, p.unexpected(t, "list item, ';' or '}'")
		}
		next, err := p.lex.Next()
		if err != nil {
			return Value{}, nil, err
		}
		t = next
	}
}

func (p *Parser) closeDeclaration() error {
	d, err := p.stack.Close()
	if err != nil {
		return p.builderError(err, p.decl.pos)
	}
	if err := p.reg.Register(d); err != nil {
		return err
	}
	p.state = stateStatement
	p.decl = declaration{}
	return nil
}

func (p *Parser) builderError(err error, pos Pos) error {
	var be *BuilderError
	if !errors.As(err, &be) {
		return err
	}
	pe := &ParseError{Pos: pos, Record: be.Record, Name: be.Name, Field: be.Field, Msg: be.Error(), Err: be}
	switch be.Kind {
	case BuilderDuplicateField:
		pe.Kind = ParseDuplicateField
	case BuilderTypeMismatch:
		pe.Kind = ParseTypeMismatch
	case BuilderMissingField:
		pe.Kind = ParseMissingField
	case BuilderUnknownField:
		pe.Kind = ParseUnknownField
	}
	return pe
}

func (p *Parser) unterminated(tok Token) error {
	return &ParseError{Kind: ParseUnterminatedDeclaration, Pos: p.decl.pos, Record: p.decl.kind, Name: p.decl.name,
		Msg: fmt.Sprintf("%s %q is not terminated before %s at %s", p.decl.kind, p.decl.name, tok, tok.Pos)}
}

func (p *Parser) unexpected(tok Token, want string) error {
	pe := &ParseError{Kind: ParseUnexpectedToken, Pos: tok.Pos, Msg: fmt.Sprintf("unexpected %s, expected %s", tok, want)}
	if p.state != stateStatement {
		pe.Record, pe.Name = p.decl.kind, p.decl.name
	}
	return pe
}

func (p *Parser) missingValue(tok Token) error {
	return &ParseError{Kind: ParseUnexpectedToken, Pos: tok.Pos, Record: p.decl.kind, Name: p.decl.name, Field: p.decl.field.name,
		Msg: fmt.Sprintf("%s %q: expected value for %s, got %s", p.decl.kind, p.decl.name, p.decl.field.name, tok)}
}

func (p *Parser) invalidNumber(tok Token) error {
	return &ParseError{Kind: ParseInvalidNumber, Pos: tok.Pos, Record: p.decl.kind, Name: p.decl.name, Field: p.decl.field.name,
		Msg: fmt.Sprintf("%s %q: invalid number %q for %s", p.decl.kind, p.decl.name, tok.Value, p.decl.field.name)}
}
