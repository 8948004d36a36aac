package driver

import (
	"os/exec"

	"golang.org/x/xerrors"
)

// NewSys creates a Sys step. cmd is copied into the step's payload (the
// caller's string may be reused or discarded afterward).
func NewSys(args *DriverArgs, cmd string) *BuildStep {
	return &BuildStep{
		kind: Sys,
		args: args,
		sys:  &sysPayload{command: cmd},
	}
}

// runSys executes the shell command synchronously and maps a non-zero exit
// to a step error. Output is not captured; there is no retry.
func runSys(s *BuildStep, rc *runCtx) {
	cmd := exec.Command("/bin/sh", "-c", s.sys.command)
	if err := cmd.Run(); err != nil {
		rc.log.Print(xerrors.Errorf("sys %q: %w", s.sys.command, err))
		stepError(s)
		stepDone(s)
		return
	}
	stepDone(s)
}
