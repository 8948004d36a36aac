// Package testfrontend provides a deterministic, in-memory implementation
// of every interface in internal/frontend. It exists so internal/driver's
// tests can exercise the full CC/LD step bodies without a real
// preprocessor, parser, semantic checker, or code generator linked in, and
// so cmd/ccdriver has something to run against before a real front end is
// wired in. None of this package's "compiler" behavior is meant to be
// faithful C; it only has to be deterministic and fast.
//
// Source text is a tiny line-oriented format, one declaration per line:
//
//	func NAME       top-level function
//	global NAME     top-level global variable
//	typedef NAME    typedef (skipped during fan-out)
//	unused NAME     unused declaration (skipped during fan-out)
//	pragma lib NAME #pragma comment(lib, "NAME") import
//	parse-error     forces a parse error on this TU
//	sema-error      forces a semantic-analysis error on this TU
//	preprocess-error forces a preprocessor error on this TU
//
// A function literally named main sets the TU's entrypoint to Main; one
// named WinMain sets it to WinMain, the same inference IR fan-out uses to
// default the subsystem.
package testfrontend

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/distr1/ccdriver/internal/frontend"
)

// New builds a driver.Frontend-shaped bundle of deterministic fakes. The
// caller assembles it into a *driver.Frontend (this package does not import
// internal/driver to avoid a dependency cycle with driver's own tests).
type Bundle struct {
	FS             *MemFS
	Locator        frontend.FileLocator
	NewIRModule    func(t frontend.Target, jit bool) frontend.IRModule
	NewIRArena     func() frontend.IRArena
	NewParseArena  func() frontend.ParseArena
	Parser         frontend.Parser
	Sema           frontend.SemaChecker
	Optimizer      *Optimizer
	Codegen        *Codegen
	InternalLinker *InternalLinker
	Linker         *RecordingLinker
}

// New returns a fresh Bundle; every field is ready to use immediately.
func New() *Bundle {
	fs := NewMemFS()
	return &Bundle{
		FS:             fs,
		Locator:        passthroughLocator{},
		NewIRModule:    func(t frontend.Target, jit bool) frontend.IRModule { return newModule(t, jit) },
		NewIRArena:     func() frontend.IRArena { return &arena{} },
		NewParseArena:  func() frontend.ParseArena { return &arena{} },
		Parser:         parser{},
		Sema:           sema{},
		Optimizer:      &Optimizer{},
		Codegen:        &Codegen{},
		InternalLinker: &InternalLinker{},
		Linker:         &RecordingLinker{},
	}
}

// Preprocessor builds a fresh preprocessor closed over the bundle's file
// system. Callers wire it into driver.Frontend.NewPreprocessor themselves
// (this package does not import internal/driver, to keep driver's own
// tests free to import testfrontend without an import cycle):
//
//	fe := &driver.Frontend{
//		NewPreprocessor: func(*driver.DriverArgs) frontend.Preprocessor { return b.Preprocessor() },
//		...
//	}
func (b *Bundle) Preprocessor() frontend.Preprocessor {
	return &preprocessor{fs: b.FS}
}

// NewDiagnosticSink returns a fresh in-memory diagnostic sink.
func (b *Bundle) NewDiagnosticSink() frontend.DiagnosticSink {
	return &diagSink{}
}

// MemFS is an in-memory FileSystem keyed by path.
type MemFS struct {
	mu    sync.Mutex
	files map[string]string
}

func NewMemFS() *MemFS { return &MemFS{files: make(map[string]string)} }

// Put registers text as the contents of path.
func (fs *MemFS) Put(path, text string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = text
}

// ReadFile returns a registered in-memory file's contents if present,
// falling back to the real file system so the CLI can run this fake front
// end against actual files on disk (in the toy line-oriented source format)
// until a real preprocessor is linked in.
func (fs *MemFS) ReadFile(path string) ([]byte, error) {
	fs.mu.Lock()
	text, ok := fs.files[path]
	fs.mu.Unlock()
	if ok {
		return []byte(text), nil
	}
	return os.ReadFile(path)
}

type passthroughLocator struct{}

func (passthroughLocator) Locate(name string, quoted bool, includeDirs []string) (string, bool) {
	return name, true
}

type diagSink struct {
	mu    sync.Mutex
	diags []frontend.Diagnostic
}

func (d *diagSink) Add(diag frontend.Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.diags = append(d.diags, diag)
}

func (d *diagSink) Flush(w io.Writer) (errorCount int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, diag := range d.diags {
		fmt.Fprintf(w, "%s:%d: %s\n", diag.File, diag.Line, diag.Message)
		if diag.Severity == frontend.Error {
			errorCount++
		}
	}
	d.diags = nil
	return errorCount
}

func (d *diagSink) ErrorCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, diag := range d.diags {
		if diag.Severity == frontend.Error {
			n++
		}
	}
	return n
}

// preprocessor tokenizes the line-oriented source format described in the
// package doc into a frontend.TokenStream, one token per declaration line
// (the fake doesn't need sub-line tokens; the driver's token dump only
// cares about File/Line/Kind/Lexeme).
type preprocessor struct {
	fs *MemFS
}

func (p *preprocessor) Run(ctx context.Context, src frontend.Source, opts frontend.PreprocessorOptions) (*frontend.TokenStream, error) {
	text := src.Text
	if text == "" && src.Path != "" {
		b, err := p.fs.ReadFile(src.Path)
		if err != nil {
			opts.Diagnostics.Add(frontend.Diagnostic{Severity: frontend.Error, Message: err.Error(), File: src.Path})
			return nil, err
		}
		text = string(b)
	}
	path := src.Path
	if path == "" {
		path = "<memory>"
	}

	ts := &frontend.TokenStream{}
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lineNo := i + 1
		if line == "preprocess-error" {
			opts.Diagnostics.Add(frontend.Diagnostic{Severity: frontend.Error, Message: "forced preprocess error", File: path, Line: lineNo})
			return nil, fmt.Errorf("testfrontend: preprocess error at %s:%d", path, lineNo)
		}
		kind := frontend.Other
		lexeme := line
		if strings.HasPrefix(line, `L"`) || strings.HasPrefix(line, "L'") {
			kind = frontend.WideStringLiteral
			lexeme = line[1:]
		}
		ts.Tokens = append(ts.Tokens, frontend.Token{Kind: kind, Lexeme: lexeme, File: path, Line: lineNo})
	}
	return ts, nil
}

func (p *preprocessor) Finalize() {}

// parser turns the token stream back into declarations by re-parsing each
// token's lexeme (each token is one whole source line, per the fake
// preprocessor above).
type parser struct{}

func (parser) Parse(ctx context.Context, pa frontend.ParseArena, tokens *frontend.TokenStream, version frontend.LangVersion) (*frontend.TranslationUnit, error) {
	tu := &frontend.TranslationUnit{}
	for _, tok := range tokens.Tokens {
		fields := strings.Fields(tok.Lexeme)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "parse-error":
			tu.ParseErrors++
		case "sema-error":
			tu.SemaErrors++
		case "func":
			if len(fields) < 2 {
				continue
			}
			name := fields[1]
			tu.TopLevel = append(tu.TopLevel, frontend.TopLevelDecl{Kind: frontend.TopLevelFunction, Name: name})
			switch name {
			case "main":
				tu.Entrypoint = frontend.EntrypointMain
			case "WinMain":
				tu.Entrypoint = frontend.EntrypointWinMain
			}
		case "global":
			if len(fields) < 2 {
				continue
			}
			tu.TopLevel = append(tu.TopLevel, frontend.TopLevelDecl{Kind: frontend.TopLevelGlobal, Name: fields[1]})
		case "typedef":
			if len(fields) < 2 {
				continue
			}
			tu.TopLevel = append(tu.TopLevel, frontend.TopLevelDecl{Kind: frontend.TopLevelTypedef, Name: fields[1]})
		case "unused":
			if len(fields) < 2 {
				continue
			}
			tu.TopLevel = append(tu.TopLevel, frontend.TopLevelDecl{Kind: frontend.TopLevelUnused, Name: fields[1]})
		case "pragma":
			if len(fields) < 3 || fields[1] != "lib" {
				continue
			}
			tu.PragmaLibs = append(tu.PragmaLibs, frontend.PragmaLib{Name: fields[2]})
		}
	}
	if tu.ParseErrors > 0 {
		return tu, fmt.Errorf("testfrontend: %d parse error(s)", tu.ParseErrors)
	}
	return tu, nil
}

// sema is a no-op check beyond the TU's precomputed SemaErrors count (set
// by the fake parser from "sema-error" lines), since in this fake the two
// phases share one tokenization pass.
type sema struct{}

func (sema) Check(ctx context.Context, tu *frontend.TranslationUnit) error {
	if tu.SemaErrors > 0 {
		return fmt.Errorf("testfrontend: %d sema error(s)", tu.SemaErrors)
	}
	return nil
}

// arena is a shared fake for both ParseArena and IRArena: both only need
// Release/Clear to be no-ops that can still be asserted against in tests.
type arena struct {
	mu      sync.Mutex
	cleared int
}

func (a *arena) Release() {}

func (a *arena) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleared++
}

// module is the fake IRModule: a thread-safe append-only symbol table,
// safe for concurrent callers partitioned by disjoint TUs, like a real IR
// module's.
type module struct {
	target frontend.Target
	jit    bool

	mu         sync.Mutex
	symbols    []frontend.IRSymbol
	functions  []frontend.IRFunction
	allocated  int
	entrypoint string
	subsystem  frontend.Subsystem
	destroyed  bool
}

func newModule(t frontend.Target, jit bool) *module {
	return &module{target: t, jit: jit}
}

func (m *module) AllocateIR(ctx context.Context, tu *frontend.TranslationUnit, parallel bool, debug bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocated += len(tu.TopLevel)
	return nil
}

func (m *module) TopLevelCodegen(ctx context.Context, tu *frontend.TranslationUnit, arena frontend.IRArena, decl frontend.TopLevelDecl) (frontend.IRSymbol, error) {
	sym := frontend.IRSymbol{Name: decl.Name, IsFunction: decl.Kind == frontend.TopLevelFunction}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols = append(m.symbols, sym)
	if sym.IsFunction {
		m.functions = append(m.functions, frontend.IRFunction{Symbol: sym})
	}
	return sym, nil
}

func (m *module) Functions() []frontend.IRFunction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]frontend.IRFunction, len(m.functions))
	copy(out, m.functions)
	return out
}

func (m *module) SetEntrypoint(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entrypoint = name
}

func (m *module) SetSubsystem(s frontend.Subsystem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subsystem = s
}

func (m *module) Export(format frontend.ObjectFormat, debug frontend.DebugFormat) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return []byte(fmt.Sprintf("OBJ fmt=%d debug=%d symbols=%d", format, debug, len(m.symbols))), nil
}

func (m *module) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
}

// Optimizer counts how many functions it was asked to optimize, so tests
// can tell whether the deferred per-function pass actually ran.
type Optimizer struct {
	mu   sync.Mutex
	runs int
}

func (o *Optimizer) Run(ctx context.Context, fn frontend.IRFunction) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
	return nil
}

// Runs reports how many functions have been optimized so far.
func (o *Optimizer) Runs() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs
}

// Codegen counts invocations the same way Optimizer does.
type Codegen struct {
	mu   sync.Mutex
	runs int
}

func (c *Codegen) Generate(ctx context.Context, fn frontend.IRFunction, emitAssembly bool) (frontend.CodegenOutput, error) {
	c.mu.Lock()
	c.runs++
	c.mu.Unlock()
	if !emitAssembly {
		return frontend.CodegenOutput{}, nil
	}
	return frontend.CodegenOutput{Assembly: fmt.Sprintf("; %s\n", fn.Symbol.Name)}, nil
}

// Runs reports how many functions have been through codegen so far.
func (c *Codegen) Runs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

// InternalLinker resolves libraries from an in-memory map rather than the
// file system, so tests can exercise the missing-library error path
// without touching disk.
type InternalLinker struct {
	mu   sync.Mutex
	libs map[string][]byte
}

// PutLibrary registers name as resolvable with contents blob.
func (il *InternalLinker) PutLibrary(name string, blob []byte) {
	il.mu.Lock()
	defer il.mu.Unlock()
	if il.libs == nil {
		il.libs = make(map[string][]byte)
	}
	il.libs[name] = blob
}

func (il *InternalLinker) Supports(t frontend.Target) bool {
	return t.OS == frontend.OSWindows || t.OS == frontend.OSLinux
}

func (il *InternalLinker) ResolveLibrary(name string, libPaths []string) ([]byte, bool) {
	il.mu.Lock()
	defer il.mu.Unlock()
	blob, ok := il.libs[name]
	return blob, ok
}

func (il *InternalLinker) Link(mod frontend.IRModule, libraries [][]byte, target frontend.Target, entrypoint string, subsystem frontend.Subsystem) ([]byte, error) {
	obj, err := mod.Export(frontend.ObjectELF, frontend.DebugNone)
	if err != nil {
		return nil, err
	}
	return append(obj, []byte(fmt.Sprintf(" entry=%s libs=%d", entrypoint, len(libraries)))...), nil
}

// RecordingLinker records every invocation instead of shelling out, so
// driver tests can assert on the link line without a real toolchain linker
// present.
type RecordingLinker struct {
	mu    sync.Mutex
	Calls []LinkCall
}

type LinkCall struct {
	ObjectPath string
	OutputPath string
	LibPaths   []string
	Libraries  []string
}

func (l *RecordingLinker) Link(objectPath, outputPath string, libPaths, libraries []string, tc frontend.Toolchain) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, LinkCall{ObjectPath: objectPath, OutputPath: outputPath, LibPaths: append([]string{}, libPaths...), Libraries: append([]string{}, libraries...)})
	return nil
}
