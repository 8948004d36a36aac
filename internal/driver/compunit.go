package driver

import (
	"sync"

	"github.com/distr1/ccdriver/internal/frontend"
)

// CompilationUnit owns the shared IR module an LD step's CC children all
// contribute to, plus the ordered set of translation units feeding it. All
// mutation goes through the single mutex described in the concurrency
// model, except for IR-module symbol registration, which the module itself
// makes safe for callers partitioned by disjoint translation units.
type CompilationUnit struct {
	mu      sync.Mutex
	module  frontend.IRModule
	tus     []*frontend.TranslationUnit // indexed by ordinal, may contain gaps while a build is in flight
	lowered map[*frontend.TranslationUnit]bool
}

// NewCompilationUnit wraps module, sized for n translation units.
func NewCompilationUnit(module frontend.IRModule, n int) *CompilationUnit {
	return &CompilationUnit{
		module:  module,
		tus:     make([]*frontend.TranslationUnit, n),
		lowered: make(map[*frontend.TranslationUnit]bool),
	}
}

// Module returns the shared IR module.
func (cu *CompilationUnit) Module() frontend.IRModule {
	return cu.module
}

// InsertTU registers tu at ordinal under the compilation-unit lock.
// ordinal must be stable and unique within this compilation unit's
// lifetime.
func (cu *CompilationUnit) InsertTU(ordinal int, tu *frontend.TranslationUnit) {
	cu.mu.Lock()
	defer cu.mu.Unlock()
	if ordinal >= len(cu.tus) {
		grown := make([]*frontend.TranslationUnit, ordinal+1)
		copy(grown, cu.tus)
		cu.tus = grown
	}
	cu.tus[ordinal] = tu
}

// AppendLibraries appends lib names to args.Libraries under the
// compilation-unit lock, used for `#pragma comment(lib, ...)` imports
// discovered while parsing a TU (CC step phase 4).
func (cu *CompilationUnit) AppendLibraries(args *DriverArgs, libs []frontend.PragmaLib) {
	cu.mu.Lock()
	defer cu.mu.Unlock()
	for _, lib := range libs {
		args.Libraries = append(args.Libraries, lib.Name)
	}
}

// TranslationUnits returns every registered TU in ordinal order, skipping
// unset slots (a TU whose CC step errored before registering).
func (cu *CompilationUnit) TranslationUnits() []*frontend.TranslationUnit {
	cu.mu.Lock()
	defer cu.mu.Unlock()
	out := make([]*frontend.TranslationUnit, 0, len(cu.tus))
	for _, tu := range cu.tus {
		if tu != nil {
			out = append(out, tu)
		}
	}
	return out
}

// InferSubsystem defaults args.Subsystem to Windows, under the lock, when
// tu declares a WinMain entrypoint and no subsystem was configured.
// Concurrent fan-outs all funnel through here, so the check-then-set never
// races.
func (cu *CompilationUnit) InferSubsystem(args *DriverArgs, tu *frontend.TranslationUnit) {
	cu.mu.Lock()
	defer cu.mu.Unlock()
	if tu.Entrypoint == frontend.EntrypointWinMain && args.Subsystem == frontend.SubsystemUnset {
		args.Subsystem = frontend.SubsystemWindows
	}
}

// claimUnlowered marks every registered-but-not-yet-lowered TU as claimed
// by the caller and returns them in ordinal order. Fan-out workers from
// different CC steps share one compilation unit; claiming under the lock
// keeps their TU slices disjoint, so no declaration is lowered twice.
func (cu *CompilationUnit) claimUnlowered() []*frontend.TranslationUnit {
	cu.mu.Lock()
	defer cu.mu.Unlock()
	var out []*frontend.TranslationUnit
	for _, tu := range cu.tus {
		if tu == nil || cu.lowered[tu] {
			continue
		}
		cu.lowered[tu] = true
		out = append(out, tu)
	}
	return out
}

// DestroyTUs releases the compilation unit's translation units (ASTs) but
// keeps the IR module alive: by the time an LD step runs, every
// contributing CC step has already lowered its declarations into the
// shared module, so the ASTs are no longer needed but the module is (it
// still has to be exported or linked).
func (cu *CompilationUnit) DestroyTUs() {
	cu.mu.Lock()
	defer cu.mu.Unlock()
	cu.tus = nil
}

// DestroyModule releases the IR module itself. Called once the LD step is
// done exporting or linking it.
func (cu *CompilationUnit) DestroyModule() {
	cu.mu.Lock()
	defer cu.mu.Unlock()
	if cu.module != nil {
		cu.module.Destroy()
		cu.module = nil
	}
}
