package driver

import (
	"bytes"
	"testing"

	"github.com/distr1/ccdriver/internal/frontend"
)

func sampleTokenStream() *frontend.TokenStream {
	return &frontend.TokenStream{
		Tokens: []frontend.Token{
			{Kind: frontend.Other, Lexeme: "int", File: "a.c", Line: 1},
			{Kind: frontend.Other, Lexeme: "main", File: "a.c", Line: 1},
			{Kind: frontend.StringLiteral, Lexeme: `"hi"`, File: "a.c", Line: 2},
			{Kind: frontend.WideStringLiteral, Lexeme: `L"wide"`, File: "b.c", Line: 1},
		},
	}
}

// TestTokenDumpIdempotent: two dumps of the same finalized token stream
// must produce byte-identical output.
func TestTokenDumpIdempotent(t *testing.T) {
	ts := sampleTokenStream()
	var a, b bytes.Buffer
	writeTokenDump(&a, ts)
	writeTokenDump(&b, ts)
	if a.String() != b.String() {
		t.Errorf("token dump not idempotent:\n--- a ---\n%s\n--- b ---\n%s", a.String(), b.String())
	}
}

func TestTokenDumpFileChangeEmitsLineDirective(t *testing.T) {
	ts := sampleTokenStream()
	var buf bytes.Buffer
	writeTokenDump(&buf, ts)
	out := buf.String()
	if !bytes.Contains([]byte(out), []byte(`#line 1 "a.c"`)) {
		t.Errorf("expected a #line directive for a.c, got:\n%s", out)
	}
	if !bytes.Contains([]byte(out), []byte(`#line 1 "b.c"`)) {
		t.Errorf("expected a #line directive for the file change to b.c, got:\n%s", out)
	}
}

func TestTokenDumpWideLiteralPrefixed(t *testing.T) {
	ts := sampleTokenStream()
	var buf bytes.Buffer
	writeTokenDump(&buf, ts)
	if !bytes.Contains(buf.Bytes(), []byte(`L L"wide"`)) {
		t.Errorf(`expected "L" prefix before a wide string literal's lexeme, got:\n%s`, buf.String())
	}
}

func TestEscapeFilenameDoublesBackslashes(t *testing.T) {
	got := escapeFilename(`C:\src\a.c`)
	want := `C:\\src\\a.c`
	if got != want {
		t.Errorf("escapeFilename(%q) = %q, want %q", `C:\src\a.c`, got, want)
	}
}
