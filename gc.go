package sodium

import "sync"

// Color is a Bacon-Rajan trial-deletion color.
type Color int

const (
	ColorBlack Color = iota
	ColorGray
	ColorWhite
	ColorPurple
)

// Tracer is invoked by a GcNode's trace function once per outgoing strong
// GC reference.
type Tracer func(child *GcNode)

// GcNode is a reference-counted handle wrapping a node of the reactive
// graph. It never adjusts the graph's propagation edges itself; it only
// tracks the strong ownership graph needed to reclaim cycles.
type GcNode struct {
	mu            sync.Mutex
	refCount      int
	color         Color
	buffered      bool
	deconstructor func()
	trace         func(Tracer)
}

// NewGcNode wraps a deconstructor (run exactly once, when the node is
// proven dead) and a trace function (enumerates this node's outgoing
// strong GC references) in a freshly black, unbuffered, ref-count-1 handle.
func NewGcNode(deconstructor func(), trace func(Tracer)) *GcNode {
	if deconstructor == nil {
		deconstructor = func() {}
	}
	if trace == nil {
		trace = func(Tracer) {}
	}
	return &GcNode{
		refCount:      1,
		color:         ColorBlack,
		deconstructor: deconstructor,
		trace:         trace,
	}
}

func (n *GcNode) withData(k func(*GcNode)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	k(n)
}

// IncRef bumps the strong reference count.
func (n *GcNode) IncRef() {
	n.withData(func(n *GcNode) { n.refCount++ })
}

// DecRef drops the strong reference count. If it reaches zero and the node
// is not currently buffered as a possible cycle root, it is freed
// immediately; otherwise it is left for the collector to resolve.
func (n *GcNode) DecRef(gc *GcCtx) {
	var refCount int
	var buffered bool
	n.withData(func(n *GcNode) {
		n.refCount--
		refCount = n.refCount
		buffered = n.buffered
	})
	if refCount < 0 {
		panic(&ContractViolationError{Op: "GcNode.DecRef", Message: "reference count went negative"})
	}
	if refCount == 0 {
		if !buffered {
			n.free()
		}
		return
	}
	if gc != nil {
		gc.possibleRoot(n)
	}
}

// free runs the deconstructor exactly once. It blanks out trace and
// deconstructor first so that a half-freed node's neighbors, if re-entered
// through a dangling reference during teardown, observe empty callbacks
// rather than touching freed state.
func (n *GcNode) free() {
	var run func()
	n.withData(func(n *GcNode) {
		run = n.deconstructor
		n.deconstructor = func() {}
		n.trace = func(Tracer) {}
		n.color = ColorBlack
	})
	run()
}

// Trace invokes the node's trace function with the given tracer.
func (n *GcNode) Trace(t Tracer) {
	var fn func(Tracer)
	n.withData(func(n *GcNode) { fn = n.trace })
	fn(t)
}

func (n *GcNode) getColor() Color {
	var c Color
	n.withData(func(n *GcNode) { c = n.color })
	return c
}

func (n *GcNode) setColor(c Color) {
	n.withData(func(n *GcNode) { n.color = c })
}

func (n *GcNode) getRefCount() int {
	var c int
	n.withData(func(n *GcNode) { c = n.refCount })
	return c
}

// GcCtx owns the buffer of possible cycle roots and runs the Bacon-Rajan
// trial-deletion algorithm over them.
type GcCtx struct {
	mu       sync.Mutex
	roots    []*GcNode
	scratch  *ScratchPool
	collecting bool
}

// NewGcCtx returns a collector with its own scratch pool for the roots
// buffer it reuses across collection cycles.
func NewGcCtx() *GcCtx {
	return &GcCtx{scratch: NewScratchPool()}
}

func (gc *GcCtx) possibleRoot(n *GcNode) {
	shouldBuffer := false
	n.withData(func(n *GcNode) {
		if n.color != ColorPurple {
			n.color = ColorPurple
			if !n.buffered {
				n.buffered = true
				shouldBuffer = true
			}
		} else if !n.buffered {
			n.buffered = true
			shouldBuffer = true
		}
	})
	if shouldBuffer {
		gc.mu.Lock()
		gc.roots = append(gc.roots, n)
		gc.mu.Unlock()
	}
}

// CollectStats summarizes one CollectCycles invocation.
type CollectStats struct {
	RootsScanned int
	NodesFreed   int
}

// CollectCycles runs mark_roots/scan_roots/collect_roots to exhaustion,
// looping because freeing a node may make one of its (formerly held)
// children a new root candidate. Reentrant calls (collecting while already
// collecting) are no-ops, since collection only ever runs between
// transactions on a single goroutine.
func (gc *GcCtx) CollectCycles() CollectStats {
	gc.mu.Lock()
	if gc.collecting {
		gc.mu.Unlock()
		return CollectStats{}
	}
	gc.collecting = true
	gc.mu.Unlock()
	defer func() {
		gc.mu.Lock()
		gc.collecting = false
		gc.mu.Unlock()
	}()

	stats := CollectStats{}
	for {
		gc.mu.Lock()
		roots := gc.roots
		gc.roots = gc.scratch.AcquireRoots()
		gc.mu.Unlock()

		if len(roots) == 0 {
			gc.scratch.ReleaseRoots(roots)
			return stats
		}
		stats.RootsScanned += len(roots)

		for _, n := range roots {
			n.withData(func(n *GcNode) { n.buffered = false })
		}
		for _, n := range roots {
			markRoots(n)
		}
		for _, n := range roots {
			scanRoots(n)
		}
		stats.NodesFreed += collectRoots(roots)

		gc.scratch.ReleaseRoots(roots)
	}
}

func markRoots(n *GcNode) {
	switch n.getColor() {
	case ColorPurple:
		markGray(n)
	case ColorBlack:
		if n.getRefCount() == 0 {
			// scheduled for freeing in collectRoots via its White pass;
			// mark it White so collectRoots picks it up.
			n.setColor(ColorWhite)
		}
	}
}

func markGray(n *GcNode) {
	if n.getColor() == ColorGray {
		return
	}
	n.setColor(ColorGray)
	n.Trace(func(child *GcNode) {
		child.withData(func(child *GcNode) { child.refCount-- })
		markGray(child)
	})
}

func scanRoots(n *GcNode) {
	scan(n)
}

func scan(n *GcNode) {
	if n.getColor() != ColorGray {
		return
	}
	if n.getRefCount() > 0 {
		scanBlack(n)
		return
	}
	n.setColor(ColorWhite)
	n.Trace(func(child *GcNode) {
		scan(child)
	})
}

func scanBlack(n *GcNode) {
	n.setColor(ColorBlack)
	n.Trace(func(child *GcNode) {
		child.withData(func(child *GcNode) { child.refCount++ })
		if child.getColor() != ColorBlack {
			scanBlack(child)
		}
	})
}

func collectRoots(roots []*GcNode) int {
	freed := 0
	for _, n := range roots {
		freed += collectWhite(n)
	}
	return freed
}

func collectWhite(n *GcNode) int {
	if n.getColor() != ColorWhite {
		return 0
	}
	buffered := false
	n.withData(func(n *GcNode) { buffered = n.buffered })
	if buffered {
		return 0
	}
	n.setColor(ColorBlack)
	freed := 1
	var children []*GcNode
	n.Trace(func(child *GcNode) { children = append(children, child) })
	n.free()
	for _, child := range children {
		freed += collectWhite(child)
	}
	return freed
}
