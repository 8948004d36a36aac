// Package toolchainprobe selects toolchain descriptors by OS: MSVC on
// Windows, Darwin on macOS, GNU on Linux, else empty. Host is the
// descriptor for the OS the binary was built for, a package-level value
// inspectable without spinning up a build; For selects one for an explicit
// target OS.
package toolchainprobe

import (
	"runtime"

	"github.com/distr1/ccdriver/internal/frontend"
)

// Host is the toolchain descriptor selected for the process's GOOS,
// computed once at package init.
var Host = probe()

func probe() frontend.Toolchain {
	switch runtime.GOOS {
	case "windows":
		return frontend.Toolchain{
			Name:           "msvc",
			SysIncludeDirs: []string{`C:\Program Files\Microsoft Visual Studio\VC\include`},
			SysLibDirs:     []string{`C:\Program Files\Microsoft Visual Studio\VC\lib`},
			LinkerCommand:  "link.exe",
			DefaultCRTLibs: []string{"kernel32", "ucrt", "msvcrt", "vcruntime"},
		}
	case "darwin":
		return frontend.Toolchain{
			Name:           "darwin",
			SysIncludeDirs: []string{"/usr/include", "/usr/local/include"},
			SysLibDirs:     []string{"/usr/lib", "/usr/local/lib"},
			LinkerCommand:  "ld",
		}
	case "linux":
		return frontend.Toolchain{
			Name:           "gnu",
			SysIncludeDirs: []string{"/usr/include"},
			SysLibDirs:     []string{"/usr/lib", "/usr/lib64"},
			LinkerCommand:  "ld",
		}
	default:
		return frontend.Toolchain{}
	}
}

// For selects the toolchain descriptor for an explicit target OS, falling
// back to the empty descriptor for any OS the host probe does not name.
// The CLI uses it for every build, with the build's target OS. Unlike
// Host, its descriptors carry no system include or library directories.
func For(os frontend.OS) frontend.Toolchain {
	switch os {
	case frontend.OSWindows:
		return frontend.Toolchain{
			Name:           "msvc",
			LinkerCommand:  "link.exe",
			DefaultCRTLibs: []string{"kernel32", "ucrt", "msvcrt", "vcruntime"},
		}
	case frontend.OSDarwin:
		return frontend.Toolchain{Name: "darwin", LinkerCommand: "ld"}
	case frontend.OSLinux:
		return frontend.Toolchain{Name: "gnu", LinkerCommand: "ld"}
	default:
		return frontend.Toolchain{}
	}
}
