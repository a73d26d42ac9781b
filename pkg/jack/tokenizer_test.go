package jack_test

import (
	"testing"

	"n2t.dev/toolchain/pkg/jack"
)

func TestTokenizerBasicTokens(t *testing.T) {
	source := `class Main { field int x; method void run() { return; } }`

	tokens, err := jack.NewTokenizer(source).Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	want := []jack.Token{
		{Type: jack.TokenKeyword, Value: "class"},
		{Type: jack.TokenIdent, Value: "Main"},
		{Type: jack.TokenSymbol, Value: "{"},
		{Type: jack.TokenKeyword, Value: "field"},
		{Type: jack.TokenKeyword, Value: "int"},
		{Type: jack.TokenIdent, Value: "x"},
		{Type: jack.TokenSymbol, Value: ";"},
		{Type: jack.TokenKeyword, Value: "method"},
		{Type: jack.TokenKeyword, Value: "void"},
		{Type: jack.TokenIdent, Value: "run"},
		{Type: jack.TokenSymbol, Value: "("},
		{Type: jack.TokenSymbol, Value: ")"},
		{Type: jack.TokenSymbol, Value: "{"},
		{Type: jack.TokenKeyword, Value: "return"},
		{Type: jack.TokenSymbol, Value: ";"},
		{Type: jack.TokenSymbol, Value: "}"},
		{Type: jack.TokenSymbol, Value: "}"},
	}

	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %+v", len(want), len(tokens), tokens)
	}
	for i, tok := range tokens {
		if tok != want[i] {
			t.Errorf("token %d: expected %+v, got %+v", i, want[i], tok)
		}
	}
}

func TestTokenizerStringLiteral(t *testing.T) {
	tokens, err := jack.NewTokenizer(`"hello world"`).Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(tokens) != 1 || tokens[0].Type != jack.TokenString || tokens[0].Value != "hello world" {
		t.Fatalf("expected a single stringConstant token, got %+v", tokens)
	}
}

func TestTokenizerUnterminatedStringFails(t *testing.T) {
	_, err := jack.NewTokenizer(`"unterminated`).Tokenize()
	if err == nil {
		t.Fatalf("expected an error for an unterminated string literal")
	}
}

func TestTokenizerShiftOperators(t *testing.T) {
	tokens, err := jack.NewTokenizer(`^x #y`).Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := []string{"^", "x", "#", "y"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %+v", len(want), len(tokens), tokens)
	}
	for i, tok := range tokens {
		if tok.Value != want[i] {
			t.Errorf("token %d: expected value %q, got %q", i, want[i], tok.Value)
		}
	}
}

func TestTokenizerSkipsComments(t *testing.T) {
	source := `
		// line comment
		int /* inline block */ x;
	`
	tokens, err := jack.NewTokenizer(source).Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := []string{"int", "x", ";"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %+v", len(want), len(tokens), tokens)
	}
	for i, tok := range tokens {
		if tok.Value != want[i] {
			t.Errorf("token %d: expected value %q, got %q", i, want[i], tok.Value)
		}
	}
}

func TestTokenizerRejectsUnrecognizedCharacter(t *testing.T) {
	_, err := jack.NewTokenizer("int x @ y;").Tokenize()
	if err == nil {
		t.Fatalf("expected an error for an unrecognized character")
	}
}
