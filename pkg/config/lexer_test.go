package config

import (
	"errors"
	"testing"
)

func TestLexer(t *testing.T) {
	input := `daemon d1 {
    command = "pd";
    flavor x86;
}
process p1 { args = ["--verbose", 1, -2.5e3] }`
	lex := NewLexer(input)
	expected := []struct {
		typ TokenType
		val string
	}{
		{TokenKeyword, "daemon"},
		{TokenIdentifier, "d1"},
		{TokenLBrace, "{"},
		{TokenIdentifier, "command"},
		{TokenEquals, "="},
		{TokenString, "pd"},
		{TokenSemicolon, ";"},
		{TokenIdentifier, "flavor"},
		{TokenIdentifier, "x86"},
		{TokenSemicolon, ";"},
		{TokenRBrace, "}"},
		{TokenKeyword, "process"},
		{TokenIdentifier, "p1"},
		{TokenLBrace, "{"},
		{TokenIdentifier, "args"},
		{TokenEquals, "="},
		{TokenLBracket, "["},
		{TokenString, "--verbose"},
		{TokenComma, ","},
		{TokenNumber, "1"},
		{TokenComma, ","},
		{TokenNumber, "-2.5e3"},
		{TokenRBracket, "]"},
		{TokenRBrace, "}"},
		{TokenEOF, ""},
	}

	for i, exp := range expected {
		tok, err := lex.Next()
		if err != nil {
			t.Fatalf("token %d: unexpected error: %v", i, err)
		}
		if tok.Type != exp.typ {
			t.Errorf("token %d: expected type %s, got %s (value=%q)", i, exp.typ, tok.Type, tok.Value)
		}
		if exp.val != "" && tok.Value != exp.val {
			t.Errorf("token %d: expected value %q, got %q", i, exp.val, tok.Value)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := `# this is a comment
/* block
   comment */
// line comment
tunable t1 3.5;`
	lex := NewLexer(input)
	tok, err := lex.Next()
	if err != nil {
		t.Fatal(err)
	}
	if tok.Type != TokenKeyword || tok.Value != "tunable" {
		t.Errorf("expected 'tunable', got %s %q", tok.Type, tok.Value)
	}
	if tok.Pos.Line != 5 || tok.Pos.Column != 1 {
		t.Errorf("expected position 5:1, got %s", tok.Pos)
	}
}

func TestLexerPositions(t *testing.T) {
	lex := NewLexer("visi v\n  host \"h\";")
	toks, err := lex.Tokens()
	if err != nil {
		t.Fatal(err)
	}
	want := []Pos{
		{Line: 1, Column: 1, Offset: 0},
		{Line: 1, Column: 6, Offset: 5},
		{Line: 2, Column: 3, Offset: 9},
		{Line: 2, Column: 8, Offset: 14},
		{Line: 2, Column: 11, Offset: 17},
		{Line: 2, Column: 12, Offset: 18},
	}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(toks), toks)
	}
	for i, p := range want {
		if toks[i].Pos != p {
			t.Errorf("token %d (%s): expected %+v, got %+v", i, toks[i], p, toks[i].Pos)
		}
	}
}

func TestLexerStringEscapes(t *testing.T) {
	lex := NewLexer(`"a \"b\" c\\d\ne\tf\q"`)
	tok, err := lex.Next()
	if err != nil {
		t.Fatal(err)
	}
	want := "a \"b\" c\\d\ne\tf\\q"
	if tok.Value != want {
		t.Errorf("expected %q, got %q", want, tok.Value)
	}
}

func TestLexerHostsAndPaths(t *testing.T) {
	lex := NewLexer(`node1.cs.wisc.edu /usr/local/bin/paradynd ./run.sh .5 --verbose -3 10.0.0.1 3com.example.org 1e 2x -1e+5`)
	toks, err := lex.Tokens()
	if err != nil {
		t.Fatal(err)
	}
	want := []Token{
		{Type: TokenIdentifier, Value: "node1.cs.wisc.edu"},
		{Type: TokenIdentifier, Value: "/usr/local/bin/paradynd"},
		{Type: TokenIdentifier, Value: "./run.sh"},
		{Type: TokenNumber, Value: ".5"},
		{Type: TokenIdentifier, Value: "--verbose"},
		{Type: TokenNumber, Value: "-3"},
		{Type: TokenIdentifier, Value: "10.0.0.1"},
		{Type: TokenIdentifier, Value: "3com.example.org"},
		{Type: TokenIdentifier, Value: "1e"},
		{Type: TokenIdentifier, Value: "2x"},
		{Type: TokenNumber, Value: "-1e+5"},
	}
	for i, w := range want {
		if toks[i].Type != w.Type || toks[i].Value != w.Value {
			t.Errorf("token %d: expected %s, got %s", i, w, toks[i])
		}
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  LexErrorKind
		line  int
		col   int
	}{
		{"unterminated string", "daemon d {\n command \"pd;\n}", LexUnterminatedString, 2, 10},
		{"signed number glued to word", "tunable t +3x;", LexInvalidNumber, 1, 11},
		{"signed dotted run", "tunable t +1.2.3;", LexInvalidNumber, 1, 11},
		{"unterminated comment", "daemon d { command pd; host h; flavor x86 }\n/* never closed\ntunable t 1;", LexUnterminatedComment, 2, 1},
		{"unexpected character", "daemon d { host @h }", LexUnexpectedCharacter, 1, 17},
		{"dollar", "visi v { args $x }", LexUnexpectedCharacter, 1, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLexer(tt.input).Tokens()
			var le *LexError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LexError, got %v", err)
			}
			if le.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, le.Kind)
			}
			if le.Pos.Line != tt.line || le.Pos.Column != tt.col {
				t.Errorf("expected %d:%d, got %s", tt.line, tt.col, le.Pos)
			}
		})
	}
}

func TestLexerPeekAndReset(t *testing.T) {
	lex := NewLexer("tunable t 1;")
	peeked, _ := lex.Peek()
	next, _ := lex.Next()
	if peeked != next {
		t.Errorf("peek %s differs from next %s", peeked, next)
	}
	lex.Next()
	lex.Reset()
	again, _ := lex.Next()
	if again != next {
		t.Errorf("after reset expected %s, got %s", next, again)
	}
}

func TestLexerEOFRepeats(t *testing.T) {
	lex := NewLexer("  ")
	for i := 0; i < 3; i++ {
		tok, err := lex.Next()
		if err != nil || tok.Type != TokenEOF {
			t.Fatalf("call %d: expected EOF, got %s %v", i, tok, err)
		}
	}
}
