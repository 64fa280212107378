package lexer

import (
	"reflect"
	"testing"

	"fluid/token"
)

func scanAll(t *testing.T, input string) []token.Token {
	t.Helper()
	toks, err := New(input).Scan()
	if err != nil {
		t.Fatalf("Scan(%q) raised an error: %v", input, err)
	}
	return toks
}

func types(toks []token.Token) []token.TokenType {
	out := make([]token.TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.TokenType
	}
	return out
}

func TestOperators(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []token.TokenType
	}{
		{"comparisons", "== != < <= > >=", []token.TokenType{
			token.EQUAL_EQUAL, token.NOT_EQUAL, token.LESS, token.LESS_EQUAL, token.LARGER, token.LARGER_EQUAL, token.EOF,
		}},
		{"compound assign", "+= -= *= /= %= ..=", []token.TokenType{
			token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.STAR_ASSIGN, token.SLASH_ASSIGN, token.PERCENT_ASSIGN, token.CONCAT_ASSIGN, token.EOF,
		}},
		{"bitwise", "& | ~ << >>", []token.TokenType{
			token.AMP, token.PIPE, token.TILDE, token.SHL, token.SHR, token.EOF,
		}},
		{"coalesce family", "? ?? ??=", []token.TokenType{
			token.QUESTION, token.QUESTION_Q, token.COALESCE_ASSIGN, token.EOF,
		}},
		{"dot family", ". .. ...", []token.TokenType{
			token.DOT, token.CONCAT, token.DOTDOTDOT, token.EOF,
		}},
		{"increment/decrement", "++ --", []token.TokenType{
			token.PLUS_PLUS, token.MINUS_MINUS, token.EOF,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := types(scanAll(t, tt.input))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("types = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeywords(t *testing.T) {
	got := types(scanAll(t, "local fn if elif else while repeat until for in defer break continue do end return true false null"))
	want := []token.TokenType{
		token.LOCAL, token.FUNC, token.IF, token.ELIF, token.ELSE, token.WHILE, token.REPEAT, token.UNTIL,
		token.FOR, token.IN, token.DEFER, token.BREAK, token.CONTINUE, token.DO, token.END, token.RETURN,
		token.TRUE, token.FALSE, token.NULL, token.EOF,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("types = %v, want %v", got, want)
	}
}

func TestNumberLiteral(t *testing.T) {
	toks := scanAll(t, "42 3.14")
	if toks[0].TokenType != token.INT || toks[0].Literal != int64(42) {
		t.Errorf("toks[0] = %v", toks[0])
	}
	if toks[1].TokenType != token.FLOAT || toks[1].Literal != float64(3.14) {
		t.Errorf("toks[1] = %v", toks[1])
	}
}

func TestStringLiteral(t *testing.T) {
	toks := scanAll(t, `"hello"`)
	if toks[0].TokenType != token.STRING || toks[0].Literal != "hello" {
		t.Errorf("toks[0] = %v", toks[0])
	}
}

func TestStringLiteralUnclosed(t *testing.T) {
	_, err := New(`"hello`).Scan()
	if err == nil {
		t.Fatal("expected an error for an unclosed string literal")
	}
}

func TestConcatNotConfusedWithNumber(t *testing.T) {
	got := types(scanAll(t, "1 .. 2"))
	want := []token.TokenType{token.INT, token.CONCAT, token.INT, token.EOF}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("types = %v, want %v", got, want)
	}
}

func TestIdentifierWithDigits(t *testing.T) {
	toks := scanAll(t, "x1 _foo2bar")
	if toks[0].TokenType != token.IDENTIFIER || toks[0].Lexeme != "x1" {
		t.Errorf("toks[0] = %v", toks[0])
	}
	if toks[1].TokenType != token.IDENTIFIER || toks[1].Lexeme != "_foo2bar" {
		t.Errorf("toks[1] = %v", toks[1])
	}
}
