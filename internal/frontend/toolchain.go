package frontend

// OS is the target operating system of a build.
type OS int

const (
	OSUnknown OS = iota
	OSLinux
	OSWindows
	OSDarwin
)

// Arch is the target instruction set architecture.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchX86_64
	ArchAArch64
)

// Target names a (OS, Arch) pair a compilation unit's IR module is built
// for.
type Target struct {
	OS   OS
	Arch Arch
}

// Toolchain describes the external compiler/linker suite the driver shells
// out to for the external-linker path: system include/lib search paths and
// the command used to invoke the system linker. Descriptors come from
// internal/toolchainprobe: the CLI selects one from the target OS
// (toolchainprobe.For); toolchainprobe.Host holds the one for the OS the
// binary was built for. Nothing is probed on disk.
type Toolchain struct {
	Name            string // e.g. "msvc", "gnu", "darwin", "" if unknown
	SysIncludeDirs  []string
	SysLibDirs      []string
	LinkerCommand   string
	DefaultCRTLibs  []string // e.g. {kernel32, ucrt, msvcrt, vcruntime} on Windows
}

// Linker is the system linker invocation used by the external-linker path
// (LD step). Implementations shell out to the toolchain's linker command.
type Linker interface {
	Link(objectPath string, outputPath string, libPaths, libraries []string, tc Toolchain) error
}

// InternalLinker emits a PE or ELF executable directly from an IR module,
// without invoking any external linker. The set of supported targets is
// narrower than the external path (see the LD step's internal-linker
// branch).
type InternalLinker interface {
	// Supports reports whether this linker can target t.
	Supports(t Target) bool
	// ResolveLibrary searches libPaths for name and returns its bytes, or
	// ok=false if not found.
	ResolveLibrary(name string, libPaths []string) (blob []byte, ok bool)
	// Link appends the module and resolved libraries, applies entrypoint
	// and subsystem, and exports the final image.
	Link(mod IRModule, libraries [][]byte, target Target, entrypoint string, subsystem Subsystem) ([]byte, error)
}
