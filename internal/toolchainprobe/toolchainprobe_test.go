package toolchainprobe

import (
	"runtime"
	"testing"

	"github.com/distr1/ccdriver/internal/frontend"
)

func TestForSelectsMSVCForWindows(t *testing.T) {
	tc := For(frontend.OSWindows)
	if tc.Name != "msvc" {
		t.Errorf("For(OSWindows).Name = %q, want msvc", tc.Name)
	}
	if len(tc.DefaultCRTLibs) == 0 {
		t.Errorf("expected default CRT libraries for Windows, got none")
	}
}

func TestForSelectsGNUForLinux(t *testing.T) {
	if got := For(frontend.OSLinux).Name; got != "gnu" {
		t.Errorf("For(OSLinux).Name = %q, want gnu", got)
	}
}

func TestForSelectsDarwinForMacOS(t *testing.T) {
	if got := For(frontend.OSDarwin).Name; got != "darwin" {
		t.Errorf("For(OSDarwin).Name = %q, want darwin", got)
	}
}

func TestForReturnsEmptyForUnknownOS(t *testing.T) {
	if got := For(frontend.OSUnknown).Name; got != "" {
		t.Errorf("For(OSUnknown).Name = %q, want empty", got)
	}
}

func TestHostIsPopulated(t *testing.T) {
	// Host is computed once at package init from runtime.GOOS; on the three
	// platforms the probe names it must carry a toolchain name.
	switch runtime.GOOS {
	case "windows", "darwin", "linux":
		if Host.Name == "" {
			t.Errorf("Host.Name is empty on %s, want a named toolchain", runtime.GOOS)
		}
	}
}
