// Package frontend declares the narrow contracts the build driver consumes
// from the compiler front end and back end: preprocessor, parser, semantic
// checker, IR module, optimizer, codegen, and the system toolchain. None of
// these are implemented here — this package only pins down the shapes the
// driver depends on, the way a build orchestrator depends on "a compiler"
// without being one.
package frontend

import (
	"context"
	"io"
)

// LangVersion identifies the C dialect a translation unit is parsed as.
type LangVersion int

const (
	C89 LangVersion = iota
	C99
	C11
	C17
	C23
)

// TokenKind classifies a single preprocessed token for dump purposes (see
// the token dump format). Only the distinctions the driver's dump routine
// cares about are named; the rest collapse into Other.
type TokenKind int

const (
	Other TokenKind = iota
	StringLiteral
	WideStringLiteral
	CharLiteral
	WideCharLiteral
)

// IsWide reports whether a token kind denotes a wide (L-prefixed) literal.
func (k TokenKind) IsWide() bool {
	return k == WideStringLiteral || k == WideCharLiteral
}

// Token is one entry in a finalized token stream.
type Token struct {
	Kind   TokenKind
	Lexeme string // raw source text, unescaped; a wide literal's L prefix is not included (Kind carries it)
	File   string
	Line   int
}

// TokenStream is the finalized output of preprocessing: an ordered token
// sequence plus any diagnostics accumulated while producing it.
type TokenStream struct {
	Tokens      []Token
	Diagnostics []Diagnostic
}

// Diagnostic is one preprocessor/parser/sema message.
type Diagnostic struct {
	Severity Severity
	Message  string
	File     string
	Line     int
}

type Severity int

const (
	Note Severity = iota
	Warning
	Error
)

// DiagnosticSink receives diagnostics as they are produced and later flushes
// them to w. The driver holds its shared logging mutex across Flush so a
// multi-line diagnostic dump is never interleaved with other output.
type DiagnosticSink interface {
	Add(Diagnostic)
	// Flush writes every diagnostic added since the last flush to w and
	// clears the buffer. Returns the number of Error-severity diagnostics
	// among those it wrote.
	Flush(w io.Writer) (errorCount int)
	// ErrorCount reports the Error-severity count of the unflushed
	// diagnostics without flushing.
	ErrorCount() int
}

// FileLocator resolves an #include spelling to a file system path, trying
// include directories in order.
type FileLocator interface {
	Locate(name string, quoted bool, includeDirs []string) (path string, ok bool)
}

// FileSystem abstracts source/header reads so the preprocessor can be fed
// from disk or from memory.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// PreprocessorOptions is the descriptor the driver builds from DriverArgs
// for each CC step before running the preprocessor.
type PreprocessorOptions struct {
	Version       LangVersion
	CaseSensitive bool
	Includes      []string
	Defines       []string
	Locator       FileLocator
	FS            FileSystem
	Diagnostics   DiagnosticSink
}

// Source names the input to the preprocessor: exactly one of Path, Text is
// set, matching the driver operations' three preprocessor entry points
// (file path, in-memory string, or C-string — indistinguishable in Go).
type Source struct {
	Path string
	Text string
}

// Preprocessor runs a preprocessing pass over Source and produces the final
// token stream. Implementations own their own context object lifetime;
// Finalize is called once Run has produced a result, successful or not.
type Preprocessor interface {
	Run(ctx context.Context, src Source, opts PreprocessorOptions) (*TokenStream, error)
	Finalize()
}

// PragmaLib is one `#pragma comment(lib, "...")` import collected while
// parsing a translation unit.
type PragmaLib struct {
	Name string
}

// TopLevelKind classifies a declaration for fan-out purposes.
type TopLevelKind int

const (
	TopLevelFunction TopLevelKind = iota
	TopLevelGlobal
	TopLevelTypedef
	TopLevelUnused
)

func (k TopLevelKind) String() string {
	switch k {
	case TopLevelFunction:
		return "function"
	case TopLevelGlobal:
		return "global"
	case TopLevelTypedef:
		return "typedef"
	case TopLevelUnused:
		return "unused"
	default:
		return "decl"
	}
}

// TopLevelDecl is one top-level declaration inside a translation unit, the
// unit the IR fan-out partitions into worker batches.
type TopLevelDecl struct {
	Kind TopLevelKind
	Name string
}

// Entrypoint names a translation unit's detected program entrypoint, if
// any, used to infer the subsystem (see IR fan-out side effect).
type Entrypoint int

const (
	EntrypointNone Entrypoint = iota
	EntrypointMain
	EntrypointWinMain
)

// TranslationUnit is the parsed, semantically-checked representation of one
// source file.
type TranslationUnit struct {
	SourcePath  string
	TopLevel    []TopLevelDecl
	PragmaLibs  []PragmaLib
	Entrypoint  Entrypoint
	ParseErrors int
	SemaErrors  int
}

// ParseArena is a per-CC-step arena backing one translation unit's parse
// tree. Implementations are expected to be cheap to create and release.
type ParseArena interface {
	Release()
}

// Parser parses a finalized token stream into a translation unit against a
// fresh parse arena.
type Parser interface {
	Parse(ctx context.Context, arena ParseArena, tokens *TokenStream, version LangVersion) (*TranslationUnit, error)
}

// NewParseArena constructs a fresh parse arena. Declared as a function
// value (rather than a constructor method on Parser) so test front ends can
// swap it independently of parsing behavior.
type ParseArenaFactory func() ParseArena

// SemaChecker performs semantic analysis over an already-parsed
// translation unit, mutating it in place (e.g. resolving types) and
// reporting an error count.
type SemaChecker interface {
	Check(ctx context.Context, tu *TranslationUnit) error
}

// IRArena is a thread-local scratch arena used for per-function codegen. It
// is bound to at most one worker goroutine at a time and is cleared, not
// destroyed, between batches.
type IRArena interface {
	Clear()
}

// IRSymbol is the result of compiling one top-level declaration to IR.
type IRSymbol struct {
	Name       string
	IsFunction bool
}

// IRFunction is a function-shaped IR symbol ready for optimization/codegen.
type IRFunction struct {
	Symbol IRSymbol
}

// IRModule is the shared intermediate-representation module a compilation
// unit's translation units all contribute symbols into. Implementations
// must make symbol registration safe for concurrent callers partitioned by
// disjoint translation units.
type IRModule interface {
	// AllocateIR reserves the module-side storage for tu's symbols ahead of
	// fan-out. parallel reports whether a worker pool is driving the build
	// (implementations may shard their allocation accordingly); debug
	// requests the bookkeeping needed to attach debug info later.
	AllocateIR(ctx context.Context, tu *TranslationUnit, parallel bool, debug bool) error
	// TopLevelCodegen lowers one top-level declaration to IR, returning the
	// produced symbol (the zero IRSymbol if the declaration produced none,
	// e.g. it was skipped).
	TopLevelCodegen(ctx context.Context, tu *TranslationUnit, arena IRArena, decl TopLevelDecl) (IRSymbol, error)
	// Functions returns every function symbol registered so far, used by
	// the deferred per-function pass.
	Functions() []IRFunction
	// SetEntrypoint / SetSubsystem configure the module's emitted artifact.
	SetEntrypoint(name string)
	SetSubsystem(s Subsystem)
	// Export serializes the module as an object file with the given debug
	// format, or links it internally depending on the caller.
	Export(format ObjectFormat, debug DebugFormat) ([]byte, error)
	// Destroy releases the module's resources. Safe to call once.
	Destroy()
}

// ObjectFormat is the platform default object container.
type ObjectFormat int

const (
	ObjectELF ObjectFormat = iota
	ObjectPE
	ObjectMachO
)

// DebugFormat selects the debug info emitted alongside an object.
type DebugFormat int

const (
	DebugNone DebugFormat = iota
	DebugCodeView
)

// Subsystem is the Windows subsystem an executable targets.
type Subsystem int

const (
	SubsystemUnset Subsystem = iota
	SubsystemConsole
	SubsystemWindows
)

// Optimizer runs optimization passes over one IR function.
type Optimizer interface {
	Run(ctx context.Context, fn IRFunction) error
}

// CodegenOutput is the textual or binary result of compiling one function.
type CodegenOutput struct {
	Assembly string
}

// Codegen lowers one optimized IR function to machine code (or, in -S mode,
// to printable assembly).
type Codegen interface {
	Generate(ctx context.Context, fn IRFunction, emitAssembly bool) (CodegenOutput, error)
}
