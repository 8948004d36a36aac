package driver_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/distr1/ccdriver/internal/driver"
	"github.com/distr1/ccdriver/internal/frontend"
	"github.com/distr1/ccdriver/internal/frontend/testfrontend"
)

func newFrontend(b *testfrontend.Bundle) *driver.Frontend {
	return &driver.Frontend{
		NewPreprocessor:   func(*driver.DriverArgs) frontend.Preprocessor { return b.Preprocessor() },
		NewDiagnosticSink: b.NewDiagnosticSink,
		Locator:           b.Locator,
		FS:                b.FS,
		Parser:            b.Parser,
		NewParseArena:     b.NewParseArena,
		Sema:              b.Sema,
		NewIRModule:       b.NewIRModule,
		NewIRArena:        b.NewIRArena,
		Optimizer:         b.Optimizer,
		Codegen:           b.Codegen,
		InternalLinker:    b.InternalLinker,
		Linker:            b.Linker,
	}
}

func baseArgs(t *testing.T, outputName string) *driver.DriverArgs {
	t.Helper()
	return &driver.DriverArgs{
		Sources:     []string{"a.c"},
		Target:      frontend.Target{OS: frontend.OSLinux, Arch: frontend.ArchX86_64},
		ThreadCount: 2,
		OutputName:  outputName,
	}
}

// spyPool counts every Submit call and runs the task synchronously, so
// assertions can tell whether a step was actually dispatched to the pool
// without needing real concurrency to observe the difference.
type spyPool struct {
	submits int32
}

func (p *spyPool) Submit(fn func()) {
	atomic.AddInt32(&p.submits, 1)
	fn()
}

func TestLDZeroDepsInvokesBodyImmediately(t *testing.T) {
	fe := newFrontend(testfrontend.New())
	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "out"))
	args.Sources = nil
	args.Flavor = driver.FlavorObject

	ld := driver.NewLD(args, fe, nil)
	ok := driver.Run(context.Background(), ld, nil, fe, nil)
	if !ok {
		t.Fatal("Run returned false for an empty LD step")
	}
	if _, err := os.Stat(filepath.Join(dir, "out.o")); err != nil {
		t.Errorf("expected object file to be written: %v", err)
	}
}

func TestLDOneDepDoesNotHopThroughPool(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	// Declaration-free on purpose: IR fan-out batches also go through
	// Submit, and this test only measures step-level dispatch.
	b.FS.Put("a.c", "")

	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "out.o"))
	args.Flavor = driver.FlavorObject

	cc := driver.NewCC(args, "a.c")
	ld := driver.NewLD(args, fe, []*driver.BuildStep{cc})

	pool := &spyPool{}
	ok := driver.Run(context.Background(), ld, pool, fe, nil)
	if !ok {
		t.Fatal("Run returned false")
	}
	if pool.submits != 0 {
		t.Errorf("an only child should run inline, but Submit was called %d time(s)", pool.submits)
	}
}

func TestLDMultipleDepsDispatchToPool(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	// Declaration-free sources, as above: only step-level dispatch should
	// reach the spy pool.
	b.FS.Put("a.c", "")
	b.FS.Put("b.c", "")

	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "out.o"))
	args.Sources = []string{"a.c", "b.c"}
	args.Flavor = driver.FlavorObject

	ccA := driver.NewCC(args, "a.c")
	ccB := driver.NewCC(args, "b.c")
	ld := driver.NewLD(args, fe, []*driver.BuildStep{ccA, ccB})

	pool := &spyPool{}
	ok := driver.Run(context.Background(), ld, pool, fe, nil)
	if !ok {
		t.Fatal("Run returned false")
	}
	if pool.submits != 2 {
		t.Errorf("two siblings should each be dispatched to the pool, got %d Submit call(s)", pool.submits)
	}
}

// TestOrdinalsStableRegardlessOfCompletionOrder: CC ordinals must match
// dep-list order inside the compilation unit even when a pool reorders
// completion.
func TestOrdinalsStableRegardlessOfCompletionOrder(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	b.FS.Put("u0.c", "func f0\n")
	b.FS.Put("u1.c", "func f1\n")
	b.FS.Put("u2.c", "func f2\n")

	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "out.o"))
	args.Sources = []string{"u0.c", "u1.c", "u2.c"}
	args.Flavor = driver.FlavorObject
	args.PreserveAST = true

	sources := []string{"u0.c", "u1.c", "u2.c"}
	deps := make([]*driver.BuildStep, len(sources))
	for i, src := range sources {
		deps[i] = driver.NewCC(args, src)
	}
	ld := driver.NewLD(args, fe, deps)

	pool := driver.NewPool(2)
	ok := driver.Run(context.Background(), ld, pool, fe, nil)
	if !ok {
		t.Fatal("Run returned false")
	}

	cu := driver.GetCU(ld)
	tus := cu.TranslationUnits()
	if len(tus) != len(sources) {
		t.Fatalf("got %d TUs, want %d", len(tus), len(sources))
	}
	for i, tu := range tus {
		if tu.SourcePath != sources[i] {
			t.Errorf("TU at ordinal %d has source %q, want %q", i, tu.SourcePath, sources[i])
		}
	}
}

func TestPragmaLibAppendsToLibraries(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	b.FS.Put("a.c", "func main\npragma lib mylib\n")

	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "out.o"))
	args.Flavor = driver.FlavorObject

	cc := driver.NewCC(args, "a.c")
	ld := driver.NewLD(args, fe, []*driver.BuildStep{cc})
	if !driver.Run(context.Background(), ld, nil, fe, nil) {
		t.Fatal("Run returned false")
	}

	found := false
	for _, lib := range args.Libraries {
		if lib == "mylib" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected #pragma comment(lib, \"mylib\") to append to args.Libraries, got %v", args.Libraries)
	}
}

func TestMissingLibraryFailsInternalLinkerPath(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	b.FS.Put("u.c", "func main\n")

	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "a.exe"))
	args.Based = true
	args.Libraries = []string{"nope"}

	cc := driver.NewCC(args, "u.c")
	ld := driver.NewLD(args, fe, []*driver.BuildStep{cc})
	if driver.Run(context.Background(), ld, nil, fe, nil) {
		t.Fatal("Run returned true despite an unresolvable library")
	}
}

func TestPreprocessOnlySucceedsWithoutParsing(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	b.FS.Put("broken.c", "func main\nparse-error\n")

	args := baseArgs(t, "")
	args.Preprocess = true

	cc := driver.NewCC(args, "broken.c")
	if !driver.Run(context.Background(), cc, nil, fe, nil) {
		t.Fatal("Run returned false for a -E-only build of an otherwise-broken source")
	}
}

func TestSysStepNonZeroExitErrors(t *testing.T) {
	args := baseArgs(t, "")
	s := driver.NewSys(args, "exit 1")
	fe := newFrontend(testfrontend.New())
	if driver.Run(context.Background(), s, nil, fe, nil) {
		t.Fatal("Run returned true for a command that exits 1")
	}
}

func TestSysStepSuccess(t *testing.T) {
	args := baseArgs(t, "")
	s := driver.NewSys(args, "true")
	fe := newFrontend(testfrontend.New())
	if !driver.Run(context.Background(), s, nil, fe, nil) {
		t.Fatal("Run returned false for a command that exits 0")
	}
}

func TestDoesCodegenIsNorOfEarlyExitFlags(t *testing.T) {
	cases := []struct {
		name string
		args driver.DriverArgs
		want bool
	}{
		{"none set", driver.DriverArgs{}, true},
		{"emit-ir", driver.DriverArgs{EmitIR: true}, false},
		{"test-preproc", driver.DriverArgs{TestPreproc: true}, false},
		{"preprocess", driver.DriverArgs{Preprocess: true}, false},
		{"syntax-only", driver.DriverArgs{SyntaxOnly: true}, false},
		{"ast", driver.DriverArgs{AST: true}, false},
		{"several", driver.DriverArgs{AST: true, Preprocess: true}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := driver.DoesCodegen(&c.args); got != c.want {
				t.Errorf("DoesCodegen(%+v) = %v, want %v", c.args, got, c.want)
			}
		})
	}
}

func TestRunWithErrorPropagatesToRoot(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	b.FS.Put("bad.c", "sema-error\n")

	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "out.o"))
	args.Flavor = driver.FlavorObject

	cc := driver.NewCC(args, "bad.c")
	ld := driver.NewLD(args, fe, []*driver.BuildStep{cc})
	if driver.Run(context.Background(), ld, nil, fe, nil) {
		t.Fatal("Run returned true despite a sema error in the only CC dep")
	}
	if _, err := os.Stat(filepath.Join(dir, "out.o")); err == nil {
		t.Error("expected no object file to be written when the only CC dep errors")
	}
}

// TestObjectPathDerivedFromFirstSource: with no -o, the external-linker
// path writes <basename>.o next to the first source before handing the
// object to the system linker targeting a.out.
func TestObjectPathDerivedFromFirstSource(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	dir := t.TempDir()
	src := filepath.Join(dir, "hello.c")
	b.FS.Put(src, "func main\n")

	args := baseArgs(t, "")
	args.Sources = []string{src}

	cc := driver.NewCC(args, src)
	ld := driver.NewLD(args, fe, []*driver.BuildStep{cc})
	if !driver.Run(context.Background(), ld, nil, fe, nil) {
		t.Fatal("Run returned false")
	}

	objPath := filepath.Join(dir, "hello.o")
	if _, err := os.Stat(objPath); err != nil {
		t.Errorf("expected %s to be written: %v", objPath, err)
	}
	if len(b.Linker.Calls) != 1 {
		t.Fatalf("got %d system linker invocations, want 1", len(b.Linker.Calls))
	}
	call := b.Linker.Calls[0]
	if call.ObjectPath != objPath {
		t.Errorf("linker got object %q, want %q", call.ObjectPath, objPath)
	}
	if call.OutputPath != "a.out" {
		t.Errorf("linker got output %q, want a.out", call.OutputPath)
	}
}

// TestObjectFlavorSkipsSystemLinker: -c with an explicit -o writes
// exactly that object and never invokes the system linker.
func TestObjectFlavorSkipsSystemLinker(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	b.FS.Put("a.c", "func fa\n")
	b.FS.Put("b.c", "func fb\n")

	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "x.o"))
	args.Sources = []string{"a.c", "b.c"}
	args.Flavor = driver.FlavorObject

	ccA := driver.NewCC(args, "a.c")
	ccB := driver.NewCC(args, "b.c")
	ld := driver.NewLD(args, fe, []*driver.BuildStep{ccA, ccB})
	if !driver.Run(context.Background(), ld, nil, fe, nil) {
		t.Fatal("Run returned false")
	}
	if _, err := os.Stat(filepath.Join(dir, "x.o")); err != nil {
		t.Errorf("expected x.o to be written: %v", err)
	}
	if len(b.Linker.Calls) != 0 {
		t.Errorf("system linker invoked %d time(s) for -c, want 0", len(b.Linker.Calls))
	}
}

func TestWindowsOutputNameGetsExeExtension(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	b.FS.Put("w.c", "func WinMain\n")

	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "prog"))
	args.Sources = []string{"w.c"}
	args.Target = frontend.Target{OS: frontend.OSWindows, Arch: frontend.ArchX86_64}

	cc := driver.NewCC(args, "w.c")
	ld := driver.NewLD(args, fe, []*driver.BuildStep{cc})
	if !driver.Run(context.Background(), ld, nil, fe, nil) {
		t.Fatal("Run returned false")
	}
	if len(b.Linker.Calls) != 1 {
		t.Fatalf("got %d system linker invocations, want 1", len(b.Linker.Calls))
	}
	want := filepath.Join(dir, "prog.exe")
	if got := b.Linker.Calls[0].OutputPath; got != want {
		t.Errorf("linker got output %q, want %q (extensionless -o on Windows appends .exe)", got, want)
	}
}

// TestRunModeFailsLoudly: -run has no JIT behind it and must fail the
// build rather than silently producing a static binary.
func TestRunModeFailsLoudly(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	b.FS.Put("a.c", "func main\n")

	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "out"))
	args.Run = true

	cc := driver.NewCC(args, "a.c")
	ld := driver.NewLD(args, fe, []*driver.BuildStep{cc})
	if driver.Run(context.Background(), ld, nil, fe, nil) {
		t.Fatal("Run returned true for -run, which has no JIT implementation")
	}
}

// TestDeferredPerFunctionPass checks that optimized builds run the
// per-function pass over every function after fan-out (the immediate path
// only covers opt_level 0 without -emit-ir/-S).
func TestDeferredPerFunctionPass(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	b.FS.Put("a.c", "func f\nfunc g\nfunc main\n")

	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "out.o"))
	args.Flavor = driver.FlavorObject
	args.OptLevel = 1

	cc := driver.NewCC(args, "a.c")
	ld := driver.NewLD(args, fe, []*driver.BuildStep{cc})
	if !driver.Run(context.Background(), ld, nil, fe, nil) {
		t.Fatal("Run returned false")
	}
	if got := b.Optimizer.Runs(); got != 3 {
		t.Errorf("optimizer ran over %d function(s), want 3", got)
	}
	if got := b.Codegen.Runs(); got != 3 {
		t.Errorf("codegen ran over %d function(s), want 3", got)
	}
}

// TestFanoutLowersEachFunctionOnce: concurrent CC steps share one
// compilation unit and each runs the fan-out, so the claimed TU slices
// must stay disjoint or functions get lowered (and compiled) twice.
func TestFanoutLowersEachFunctionOnce(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	b.FS.Put("u0.c", "func f0\n")
	b.FS.Put("u1.c", "func f1\n")
	b.FS.Put("u2.c", "func f2\n")

	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "out.o"))
	args.Sources = []string{"u0.c", "u1.c", "u2.c"}
	args.Flavor = driver.FlavorObject

	deps := make([]*driver.BuildStep, len(args.Sources))
	for i, src := range args.Sources {
		deps[i] = driver.NewCC(args, src)
	}
	ld := driver.NewLD(args, fe, deps)

	pool := driver.NewPool(2)
	if !driver.Run(context.Background(), ld, pool, fe, nil) {
		t.Fatal("Run returned false")
	}
	if got := b.Codegen.Runs(); got != 3 {
		t.Errorf("codegen ran %d time(s) for 3 functions, want exactly 3", got)
	}
}

func TestPreprocessEntryPoints(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	b.FS.Put("p.c", "func main\nglobal g\n")

	args := baseArgs(t, "")

	fromFile, err := driver.Preprocess(context.Background(), fe, args, "p.c", true)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if len(fromFile.Tokens) != 2 {
		t.Errorf("got %d tokens from the file entry point, want 2", len(fromFile.Tokens))
	}

	fromString, err := driver.PreprocessString(context.Background(), fe, args, "func main\nglobal g\n", true)
	if err != nil {
		t.Fatalf("PreprocessString: %v", err)
	}
	if len(fromString.Tokens) != len(fromFile.Tokens) {
		t.Errorf("string entry point produced %d tokens, file entry point %d", len(fromString.Tokens), len(fromFile.Tokens))
	}

	if _, err := driver.Preprocess(context.Background(), fe, args, "absent.c", true); err == nil {
		t.Error("expected an error preprocessing a missing file")
	}
}

func TestFreeReleasesTreePostOrder(t *testing.T) {
	b := testfrontend.New()
	fe := newFrontend(b)
	b.FS.Put("a.c", "func fa\n")
	b.FS.Put("b.c", "func fb\n")

	dir := t.TempDir()
	args := baseArgs(t, filepath.Join(dir, "out.o"))
	args.Sources = []string{"a.c", "b.c"}
	args.Flavor = driver.FlavorObject
	args.PreserveAST = true

	ccA := driver.NewCC(args, "a.c")
	ccB := driver.NewCC(args, "b.c")
	ld := driver.NewLD(args, fe, []*driver.BuildStep{ccA, ccB})
	if !driver.Run(context.Background(), ld, nil, fe, nil) {
		t.Fatal("Run returned false")
	}

	driver.Free(ld)
	if tu := driver.GetTU(ccA); tu != nil {
		t.Error("Free left a translation unit reachable from its CC step")
	}
}

func TestResubmittingAStepPanics(t *testing.T) {
	fe := newFrontend(testfrontend.New())
	args := baseArgs(t, "")
	s := driver.NewSys(args, "true")
	if !driver.Run(context.Background(), s, nil, fe, nil) {
		t.Fatal("first Run returned false")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic submitting an already-visited step")
		}
	}()
	driver.Run(context.Background(), s, nil, fe, nil)
}

func TestGetTUPanicsOnNonCCStep(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected GetTU to panic on a non-CC step")
		}
	}()
	s := driver.NewSys(baseArgs(t, ""), "true")
	driver.GetTU(s)
}

func TestGetCUPanicsOnNonLDStep(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected GetCU to panic on a non-LD step")
		}
	}()
	s := driver.NewSys(baseArgs(t, ""), "true")
	driver.GetCU(s)
}
