package sodium

import "golang.org/x/sync/errgroup"

// Scheduler controls how update_node visits a node's dependencies. The
// only mode required for correctness is Sequential; Parallel is an
// optional, opt-in convenience for graphs wide enough that fan-out visits
// are worth spreading across goroutines.
type Scheduler interface {
	VisitDependencies(deps []*Node, visit func(*Node))
}

// Sequential visits each dependency in order on the calling goroutine.
// This is the default and the only scheduler exercised by the engine's own
// correctness tests.
type Sequential struct{}

func (Sequential) VisitDependencies(deps []*Node, visit func(*Node)) {
	for _, d := range deps {
		visit(d)
	}
}

// Parallel visits dependencies concurrently using an errgroup. Each visit
// still acquires the node-level locks update_node itself relies on, so
// Parallel changes only how many goroutines cooperate, never what gets
// computed or the final result of a transaction. It is not required by the
// spec and exists as the pluggable "thread mode" allowance around dependency
// fan-out.
type Parallel struct{}

func (Parallel) VisitDependencies(deps []*Node, visit func(*Node)) {
	var g errgroup.Group
	for _, d := range deps {
		d := d
		g.Go(func() error {
			visit(d)
			return nil
		})
	}
	_ = g.Wait()
}

func schedulerForMode(mode string) Scheduler {
	if mode == "parallel" {
		return Parallel{}
	}
	return Sequential{}
}
