package driver

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// stepNode adapts a *BuildStep to gonum's graph.Node so the DAG can be run
// through gonum's generic graph algorithms for the debug dump.
type stepNode struct {
	id int64
	s  *BuildStep
}

func (n stepNode) ID() int64 { return n.id }

// DumpGraph renders root's DAG as a gonum simple.DirectedGraph and writes a
// topologically-sorted, indented listing to w. This is a defensive
// diagnostic only: a well-formed BuildStep DAG is always a tree (each step
// has at most one anti-dep), so topo.Sort cannot fail on one. A reported
// cycle means the caller built a malformed graph (a step that is, directly
// or through other steps, its own dependency), and DumpGraph returns that
// error instead of silently proceeding. A step shared by two parents forms
// no cycle and is listed under each of them.
func DumpGraph(w io.Writer, root *BuildStep) error {
	g := simple.NewDirectedGraph()

	ids := make(map[*BuildStep]int64)
	var assign func(s *BuildStep)
	var next int64
	assign = func(s *BuildStep) {
		if _, ok := ids[s]; ok {
			return
		}
		ids[s] = next
		next++
		g.AddNode(stepNode{id: ids[s], s: s})
		for _, dep := range s.deps {
			assign(dep)
		}
	}
	assign(root)

	linked := make(map[*BuildStep]bool)
	var link func(s *BuildStep)
	link = func(s *BuildStep) {
		if linked[s] {
			return
		}
		linked[s] = true
		for _, dep := range s.deps {
			g.SetEdge(g.NewEdge(stepNode{id: ids[s]}, stepNode{id: ids[dep]}))
			link(dep)
		}
	}
	link(root)

	if _, err := topo.Sort(g); err != nil {
		if _, ok := err.(topo.Unorderable); ok {
			return fmt.Errorf("driver: build step DAG is not a tree (cyclic dependency detected): %w", err)
		}
		return err
	}

	var walk func(s *BuildStep, depth int)
	walk = func(s *BuildStep, depth int) {
		fmt.Fprintf(w, "%*s%s", depth*2, "", describeStep(s))
		for _, dep := range s.deps {
			walk(dep, depth+1)
		}
	}
	walk(root, 0)
	return nil
}

func describeStep(s *BuildStep) string {
	switch s.kind {
	case Sys:
		return fmt.Sprintf("sys %q\n", s.sys.command)
	case CC:
		return fmt.Sprintf("cc %q (ordinal %d)\n", s.cc.sourcePath, s.ordinal)
	case LD:
		return fmt.Sprintf("ld (%d deps)\n", len(s.deps))
	default:
		return "?\n"
	}
}

var _ graph.Node = stepNode{}
