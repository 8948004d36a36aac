package driver

import (
	"testing"

	"github.com/distr1/ccdriver/internal/frontend"
)

var (
	linuxTarget = frontend.Target{OS: frontend.OSLinux, Arch: frontend.ArchX86_64}
	winTarget   = frontend.Target{OS: frontend.OSWindows, Arch: frontend.ArchX86_64}
)

func TestResolveOutputPath(t *testing.T) {
	cases := []struct {
		name string
		args DriverArgs
		want string
	}{
		{"default linux", DriverArgs{Target: linuxTarget}, "a.out"},
		{"default windows", DriverArgs{Target: winTarget}, "a.exe"},
		{"extensionless on windows", DriverArgs{Target: winTarget, OutputName: "prog"}, "prog.exe"},
		{"extension kept on windows", DriverArgs{Target: winTarget, OutputName: "prog.bin"}, "prog.bin"},
		{"verbatim on linux", DriverArgs{Target: linuxTarget, OutputName: "prog"}, "prog"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := resolveOutputPath(&c.args); got != c.want {
				t.Errorf("resolveOutputPath(%+v) = %q, want %q", c.args, got, c.want)
			}
		})
	}
}

func TestObjectPathFor(t *testing.T) {
	cases := []struct {
		name string
		args DriverArgs
		want string
	}{
		{"from first source", DriverArgs{Target: linuxTarget, Sources: []string{"hello.c"}}, "hello.o"},
		{"from output name", DriverArgs{Target: linuxTarget, Sources: []string{"hello.c"}, OutputName: "x"}, "x.o"},
		{"no sources no output name", DriverArgs{Target: linuxTarget}, "a.o"},
		{"windows extension", DriverArgs{Target: winTarget, Sources: []string{"hello.c"}}, "hello.obj"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := resolveOutputPath(&c.args)
			if got := objectPathFor(&c.args, out); got != c.want {
				t.Errorf("objectPathFor(%+v, %q) = %q, want %q", c.args, out, got, c.want)
			}
		})
	}
}

func TestLinkInputsOrderAndCRT(t *testing.T) {
	args := &DriverArgs{
		Target:    winTarget,
		LibPaths:  []string{"user/libs"},
		Libraries: []string{"mine"},
		Toolchain: frontend.Toolchain{
			SysLibDirs:     []string{"sys/libs"},
			DefaultCRTLibs: []string{"kernel32", "ucrt", "msvcrt", "vcruntime"},
		},
	}

	paths, libs := linkInputs(args)
	wantPaths := []string{"sys/libs", "user/libs"}
	wantLibs := []string{"mine", "kernel32", "ucrt", "msvcrt", "vcruntime"}
	if len(paths) != len(wantPaths) || paths[0] != wantPaths[0] || paths[1] != wantPaths[1] {
		t.Errorf("linkInputs paths = %v, want %v", paths, wantPaths)
	}
	if len(libs) != len(wantLibs) {
		t.Fatalf("linkInputs libs = %v, want %v", libs, wantLibs)
	}
	for i := range wantLibs {
		if libs[i] != wantLibs[i] {
			t.Errorf("linkInputs libs[%d] = %q, want %q", i, libs[i], wantLibs[i])
		}
	}

	args.NoCRT = true
	paths, libs = linkInputs(args)
	if len(paths) != 1 || paths[0] != "user/libs" {
		t.Errorf("with -nocrt, linkInputs paths = %v, want only user/libs", paths)
	}
	if len(libs) != 1 || libs[0] != "mine" {
		t.Errorf("with -nocrt, linkInputs libs = %v, want only mine", libs)
	}
}
