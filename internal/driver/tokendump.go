package driver

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/distr1/ccdriver/internal/frontend"
)

// escapeFilename doubles every backslash in name, the only escaping the
// #line directive's filename receives.
func escapeFilename(name string) string {
	return strings.ReplaceAll(name, `\`, `\\`)
}

// dumpTokens writes tokens in the token dump format (see the external
// interfaces section): a #line directive on every file change, a line
// comment on every line change within the same file, and each token's raw
// lexeme (L-prefixed for wide string/char literals) separated by a single
// space. The stream is terminated with a trailing newline. Two dumps of
// the same finalized token stream produce byte-identical output, since the
// routine only reads tokens.File/Line/Kind/Lexeme.
func dumpTokens(rc *runCtx, ts *frontend.TokenStream) {
	rc.logMu.writeLockedTo(os.Stdout, func(w io.Writer) {
		writeTokenDump(w, ts)
	})
}

func writeTokenDump(w io.Writer, ts *frontend.TokenStream) {
	var curFile string
	var curLine int
	first := true
	for _, t := range ts.Tokens {
		if first || t.File != curFile {
			fmt.Fprintf(w, "\n#line %d \"%s\"\t", t.Line, escapeFilename(t.File))
			curFile = t.File
			curLine = t.Line
		} else if t.Line != curLine {
			fmt.Fprintf(w, "\n/* line %3d */\t", t.Line)
			curLine = t.Line
		}
		first = false
		if t.Kind.IsWide() {
			io.WriteString(w, "L")
		}
		io.WriteString(w, t.Lexeme)
		io.WriteString(w, " ")
	}
	io.WriteString(w, "\n")
}

// dumpAST prints every translation unit currently registered in cu (the
// -ast early-exit mode). With no LD parent (cu == nil), it dumps just tu.
func dumpAST(rc *runCtx, cu *CompilationUnit, tu *frontend.TranslationUnit) {
	var tus []*frontend.TranslationUnit
	if cu != nil {
		tus = cu.TranslationUnits()
	} else {
		tus = []*frontend.TranslationUnit{tu}
	}
	rc.logMu.writeLockedTo(os.Stdout, func(w io.Writer) {
		for _, u := range tus {
			fmt.Fprintf(w, "// translation unit: %s\n", u.SourcePath)
			for _, decl := range u.TopLevel {
				fmt.Fprintf(w, "  %v %s\n", decl.Kind, decl.Name)
			}
		}
	})
}
