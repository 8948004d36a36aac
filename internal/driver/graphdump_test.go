package driver_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/distr1/ccdriver/internal/driver"
	"github.com/distr1/ccdriver/internal/frontend/testfrontend"
)

func TestDumpGraphListsEveryStep(t *testing.T) {
	args := baseArgs(t, "out")
	ccA := driver.NewCC(args, "a.c")
	ccB := driver.NewCC(args, "b.c")
	sys := driver.NewSys(args, "true")
	ld := driver.NewLD(args, newFrontend(testfrontend.New()), []*driver.BuildStep{ccA, ccB, sys})

	var buf bytes.Buffer
	if err := driver.DumpGraph(&buf, ld); err != nil {
		t.Fatalf("DumpGraph returned an error for a tree-shaped DAG: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"a.c", "b.c", `"true"`} {
		if !strings.Contains(out, want) {
			t.Errorf("DumpGraph output missing %q:\n%s", want, out)
		}
	}
}
