package driver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/orcaman/writerseeker"
	"golang.org/x/xerrors"

	"github.com/distr1/ccdriver/internal/frontend"
	"github.com/distr1/ccdriver/internal/trace"
)

// NewLD creates an LD step over deps (every Sys/CC child contributing to
// the link), wiring a fresh compilation unit and shared IR module. deps'
// anti-dep back-references are assigned during submission (see submit in
// executor.go), not here.
func NewLD(args *DriverArgs, fe *Frontend, deps []*BuildStep) *BuildStep {
	var module frontend.IRModule
	if fe != nil && fe.NewIRModule != nil {
		module = fe.NewIRModule(args.Target, args.Run)
	}
	cu := NewCompilationUnit(module, len(deps))
	s := &BuildStep{
		kind: LD,
		args: args,
		deps: deps,
		ld:   &ldPayload{cu: cu},
	}
	return s
}

// defaultOutputName picks a.exe/a.out depending on target OS when no -o
// is given.
func defaultOutputName(t frontend.Target) string {
	if t.OS == frontend.OSWindows {
		return "a.exe"
	}
	return "a.out"
}

// objectExt picks the object-file extension for the external-linker path.
func objectExt(t frontend.Target) string {
	if t.OS == frontend.OSWindows {
		return ".obj"
	}
	return ".o"
}

// resolveOutputPath applies the output-name rules: a.exe/a.out when no -o
// was given, an appended .exe for an extensionless name on Windows
// targets, the name verbatim otherwise.
func resolveOutputPath(args *DriverArgs) string {
	if args.OutputName == "" {
		return defaultOutputName(args.Target)
	}
	if args.Target.OS == frontend.OSWindows && filepath.Ext(filepath.Base(args.OutputName)) == "" {
		return args.OutputName + ".exe"
	}
	return args.OutputName
}

// replaceExt swaps path's extension (or appends, if it has none) for ext.
func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// objectPathFor derives the external-linker path's intermediate object
// file name: from the first source when no -o was given, else from the
// resolved output path.
func objectPathFor(args *DriverArgs, outputPath string) string {
	if args.OutputName == "" && len(args.Sources) > 0 {
		return replaceExt(args.Sources[0], objectExt(args.Target))
	}
	return replaceExt(outputPath, objectExt(args.Target))
}

// runLD drives the LD step body: release translation units (keeping the
// module alive), skip entirely if this configuration does no codegen,
// resolve the output path, abort loudly if a JIT run was requested (no JIT
// is implemented), then branch on the internal-vs-external linker path.
func runLD(s *BuildStep, rc *runCtx) {
	args := s.args
	cu := s.ld.cu

	// 1. The ASTs have already been fully lowered into the shared module by
	// every CC child; release them now unless asked to keep them around.
	if !args.PreserveAST {
		cu.DestroyTUs()
	}

	// 2. A build that never reaches codegen (e.g. -ast, -emit-ir from a
	// Sys-only root) has nothing left to link.
	if !DoesCodegen(args) {
		stepDone(s)
		return
	}

	outputName := resolveOutputPath(args)

	// 3. A requested JIT run has no implementation here; rather than
	// silently producing a static binary instead, fail loudly.
	if args.Run {
		rc.logMu.writeLocked(func(w io.Writer) {
			fmt.Fprintln(w, "ccdriver: C JIT not ready")
		})
		cu.DestroyModule()
		stepError(s)
		stepDone(s)
		return
	}

	var linkEv *trace.Event
	if args.Timings {
		linkEv = trace.Start("link")
		defer func() {
			rc.logMu.writeLocked(func(w io.Writer) { linkEv.Done(w, outputName) })
		}()
	}

	if args.Based && args.Flavor != FlavorObject {
		runInternalLink(s, rc, outputName)
		return
	}
	runExternalLink(s, rc, outputName)
}

// runInternalLink emits a PE/ELF executable directly from the IR module
// via rc.fe.InternalLinker, with no external linker invocation. stepError
// is reserved for genuine failures; a successful export never takes the
// error path.
func runInternalLink(s *BuildStep, rc *runCtx, outputName string) {
	args := s.args
	cu := s.ld.cu
	module := cu.Module()

	il := rc.fe.InternalLinker
	if il == nil || module == nil || !il.Supports(args.Target) {
		rc.log.Printf("ccdriver: ld: internal linker unavailable for target")
		cu.DestroyModule()
		stepError(s)
		stepDone(s)
		return
	}

	searchPaths, libNames := linkInputs(args)
	var libs [][]byte
	var missing []string
	for _, name := range libNames {
		blob, ok := il.ResolveLibrary(name, searchPaths)
		if !ok {
			missing = append(missing, name)
			continue
		}
		libs = append(libs, blob)
	}
	if len(missing) > 0 {
		rc.logMu.writeLocked(func(w io.Writer) {
			for _, name := range missing {
				fmt.Fprintf(w, "could not find library: %s\n", name)
			}
			fmt.Fprintln(w, "library search paths:")
			for _, p := range searchPaths {
				fmt.Fprintf(w, "  %s\n", p)
			}
		})
		cu.DestroyModule()
		stepError(s)
		stepDone(s)
		return
	}

	if args.Entrypoint != "" {
		module.SetEntrypoint(args.Entrypoint)
	}
	if args.Subsystem != frontend.SubsystemUnset {
		module.SetSubsystem(args.Subsystem)
	}

	image, err := il.Link(module, libs, args.Target, args.Entrypoint, args.Subsystem)
	cu.DestroyModule()
	if err != nil {
		rc.log.Print(xerrors.Errorf("ld: internal link: %w", err))
		stepError(s)
		stepDone(s)
		return
	}

	if err := writeFileAtomic(outputName, image, true); err != nil {
		rc.log.Print(xerrors.Errorf("ld: write %s: %w", outputName, err))
		stepError(s)
		stepDone(s)
		return
	}
	stepDone(s)
}

// runExternalLink exports the module as a relocatable object and, unless
// the requested flavor is Object, invokes the system toolchain's linker to
// produce the final artifact.
func runExternalLink(s *BuildStep, rc *runCtx, outputName string) {
	args := s.args
	cu := s.ld.cu
	module := cu.Module()
	if module == nil {
		stepError(s)
		stepDone(s)
		return
	}

	debug := frontend.DebugNone
	if args.DebugInfo {
		debug = frontend.DebugCodeView
	}

	object, err := module.Export(defaultObjectFormat(args.Target), debug)
	cu.DestroyModule()
	if err != nil {
		rc.log.Print(xerrors.Errorf("ld: export object: %w", err))
		stepError(s)
		stepDone(s)
		return
	}
	// The exported object is copied through an in-memory writerseeker
	// buffer (no temp file) and read back before the atomic write; nothing
	// here seeks within or patches the buffered bytes.
	var sink writerseeker.WriterSeeker
	if _, err := sink.Write(object); err != nil {
		rc.log.Print(xerrors.Errorf("ld: buffer object: %w", err))
		stepError(s)
		stepDone(s)
		return
	}
	buffered, err := io.ReadAll(sink.Reader())
	if err != nil {
		rc.log.Print(xerrors.Errorf("ld: read buffered object: %w", err))
		stepError(s)
		stepDone(s)
		return
	}
	object = buffered

	objectPath := objectPathFor(args, outputName)
	if err := writeFileAtomic(objectPath, object, false); err != nil {
		rc.log.Print(xerrors.Errorf("ld: write %s: %w", objectPath, err))
		stepError(s)
		stepDone(s)
		return
	}

	if args.Flavor == FlavorObject {
		stepDone(s)
		return
	}

	libPaths, libraries := linkInputs(args)

	if rc.fe.Linker == nil {
		rc.log.Printf("ccdriver: ld: no system linker configured")
		stepError(s)
		stepDone(s)
		return
	}
	if err := rc.fe.Linker.Link(objectPath, outputName, libPaths, libraries, args.Toolchain); err != nil {
		rc.log.Print(xerrors.Errorf("ld: system link: %w", err))
		stepError(s)
		stepDone(s)
		return
	}
	stepDone(s)
}

// linkInputs assembles the link line's search paths and library names:
// toolchain-provided defaults first (unless -nocrt), then the user's
// -L/-l entries in command-line order, plus the standard Windows CRT set
// when linking for Windows with the CRT enabled.
func linkInputs(args *DriverArgs) (libPaths, libraries []string) {
	if !args.NoCRT {
		libPaths = append(libPaths, args.Toolchain.SysLibDirs...)
	}
	libPaths = append(libPaths, args.LibPaths...)
	libraries = append(libraries, args.Libraries...)
	if !args.NoCRT && args.Target.OS == frontend.OSWindows {
		libraries = append(libraries, args.Toolchain.DefaultCRTLibs...)
	}
	return libPaths, libraries
}

func defaultObjectFormat(t frontend.Target) frontend.ObjectFormat {
	switch t.OS {
	case frontend.OSWindows:
		return frontend.ObjectPE
	case frontend.OSDarwin:
		return frontend.ObjectMachO
	default:
		return frontend.ObjectELF
	}
}

// writeFileAtomic writes data to path via renameio, so a concurrent reader
// (or a crash mid-write) never observes a partially-written artifact.
// Executables are written with the executable bit set.
func writeFileAtomic(path string, data []byte, executable bool) error {
	mode := os.FileMode(0644)
	if executable {
		mode = 0755
	}
	t, err := renameio.TempFile("", path)
	if err != nil {
		return err
	}
	defer t.Cleanup()
	if err := t.Chmod(mode); err != nil {
		return err
	}
	if _, err := t.Write(data); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}

