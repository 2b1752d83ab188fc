package sodium

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var nodeIDSeq atomic.Uint64

// Node is a vertex of the reactive propagation graph. It owns an update
// closure invoked when any of its dependencies changed during the current
// transaction, a strong ownership edge to each dependency, and weak
// back-edges to its dependents so a dependent's death never keeps a
// producer alive through the backlink.
type Node struct {
	mu sync.Mutex

	id   uint64
	name string

	gcNode *GcNode

	update func()

	dependencies       []*Node     // strong: this node owns its inputs
	dependents         []*WeakNode // weak: back-edges, not owned
	updateDependencies []*Node     // strong, GC-only: traced, never traversed
	keepAlive          []*GcNode   // strong, GC-only auxiliary owners

	changed bool
	visited bool

	dead bool
}

// NewNode constructs a node with the given update closure and initial
// dependency list, registering the weak back-edge on each dependency.
func NewNode(update func(), dependencies []*Node) *Node {
	if update == nil {
		update = func() {}
	}
	n := &Node{
		id:           nodeIDSeq.Add(1),
		update:       update,
		dependencies: append([]*Node(nil), dependencies...),
	}
	n.gcNode = NewGcNode(n.deconstruct, n.trace)
	for _, dep := range dependencies {
		dep.gcNode.IncRef()
		dep.addDependent(n)
	}
	return n
}

func (n *Node) debugName() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.name != "" {
		return n.name
	}
	return fmt.Sprintf("N%d", n.id)
}

// SetName attaches a debug name, surfaced in panics and graph-debug dumps.
func (n *Node) SetName(name string) {
	n.mu.Lock()
	n.name = name
	n.mu.Unlock()
}

// Name returns the node's debug name, or a generated placeholder if none
// was set via SetName.
func (n *Node) Name() string { return n.debugName() }

func (n *Node) withData(k func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	k()
}

// GcNode returns the handle the cycle collector tracks for this node.
func (n *Node) GcNode() *GcNode { return n.gcNode }

// Downgrade returns a weak reference to n.
func (n *Node) Downgrade() *WeakNode { return &WeakNode{node: n} }

func (n *Node) addDependent(dependent *Node) {
	n.withData(func() {
		n.dependents = append(n.dependents, dependent.Downgrade())
	})
}

func (n *Node) removeDependent(dependent *Node) {
	n.withData(func() {
		out := n.dependents[:0]
		for _, w := range n.dependents {
			if w.node != dependent {
				out = append(out, w)
			}
		}
		n.dependents = out
	})
}

// AddDependency adds dep as a strong input of n, mirroring the back-edge on
// dep's dependents (invariant I1).
func (n *Node) AddDependency(dep *Node) {
	dep.gcNode.IncRef()
	n.withData(func() {
		n.dependencies = append(n.dependencies, dep)
	})
	dep.addDependent(n)
}

// RemoveDependency removes dep from n's dependencies and the matching
// back-edge from dep's dependents, decrementing dep's reference count.
func (n *Node) RemoveDependency(dep *Node) {
	removed := false
	n.withData(func() {
		out := n.dependencies[:0]
		for _, d := range n.dependencies {
			if d == dep && !removed {
				removed = true
				continue
			}
			out = append(out, d)
		}
		n.dependencies = out
	})
	if removed {
		dep.removeDependent(n)
		dep.gcNode.DecRef(nil)
	}
}

// Dependencies returns a snapshot of n's current dependencies.
func (n *Node) Dependencies() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*Node(nil), n.dependencies...)
}

// Dependents returns a snapshot of n's current weak dependents.
func (n *Node) Dependents() []*WeakNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*WeakNode(nil), n.dependents...)
}

// AddUpdateDependency adds a GC-only strong edge: traced by the collector,
// never traversed during propagation. Used for values an update closure
// captures (e.g. a snapshotted cell) without making that cell re-fire this
// node on its own.
func (n *Node) AddUpdateDependency(dep *Node) {
	dep.gcNode.IncRef()
	n.withData(func() {
		n.updateDependencies = append(n.updateDependencies, dep)
	})
}

// AddKeepAlive retains a GcNode strongly for as long as n is alive, without
// it being a dependency or dependent. Used by switch_s/switch_c to keep
// their paired node alive.
func (n *Node) AddKeepAlive(g *GcNode) {
	g.IncRef()
	n.withData(func() {
		n.keepAlive = append(n.keepAlive, g)
	})
}

func (n *Node) isVisited() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visited
}

func (n *Node) setVisited(v bool) {
	n.withData(func() { n.visited = v })
}

func (n *Node) isChanged() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.changed
}

func (n *Node) setChanged(v bool) {
	n.withData(func() { n.changed = v })
}

// runUpdate temporarily removes the update closure, runs the saved
// closure, and restores it — matching the original
// implementation's pattern of not holding the node's lock while running
// user code.
func (n *Node) runUpdate() {
	var fn func()
	n.withData(func() {
		fn = n.update
		n.update = func() {}
	})
	fn()
	n.withData(func() {
		n.update = fn
	})
}

// ReplaceUpdate swaps in a new update closure, returning the old one.
func (n *Node) ReplaceUpdate(update func()) func() {
	var old func()
	n.withData(func() {
		old = n.update
		n.update = update
	})
	return old
}

func (n *Node) trace(t Tracer) {
	n.mu.Lock()
	deps := append([]*Node(nil), n.dependencies...)
	updeps := append([]*Node(nil), n.updateDependencies...)
	keep := append([]*GcNode(nil), n.keepAlive...)
	n.mu.Unlock()
	for _, d := range deps {
		t(d.gcNode)
	}
	for _, d := range updeps {
		t(d.gcNode)
	}
	for _, g := range keep {
		t(g)
	}
}

func (n *Node) deconstruct() {
	n.mu.Lock()
	if n.dead {
		n.mu.Unlock()
		return
	}
	n.dead = true
	deps := n.dependencies
	updeps := n.updateDependencies
	keep := n.keepAlive
	n.dependencies = nil
	n.updateDependencies = nil
	n.keepAlive = nil
	n.dependents = nil
	n.update = func() {}
	n.mu.Unlock()

	for _, d := range deps {
		d.removeDependent(n)
		d.gcNode.DecRef(nil)
	}
	for _, d := range updeps {
		d.gcNode.DecRef(nil)
	}
	for _, g := range keep {
		g.DecRef(nil)
	}
}

// WeakNode is a non-owning reference to a Node: holding one never keeps the
// node alive, and Upgrade reports whether it still is.
type WeakNode struct {
	node *Node
}

// Upgrade returns the referenced node and true if it is still alive. Unlike
// the original's WeakNode::upgrade, this does not bump the node's GcNode
// reference count: callers here (AddDependentsToChangedNodes, updateNode's
// dependent walk) only ever borrow the node for the duration of one
// propagation step and never stash the returned pointer past that, so there
// is no owning reference to balance with a DecRef. Go's own garbage
// collector keeps the Node struct itself alive for as long as w.node is
// reachable; gcNode's refCount is purely the engine's own bookkeeping for
// when to run a node's deconstructor, and incrementing it here without a
// matching decrement would permanently inflate the count of every node that
// has ever had a live dependent.
func (w *WeakNode) Upgrade() (*Node, bool) {
	if w == nil || w.node == nil {
		return nil, false
	}
	w.node.mu.Lock()
	dead := w.node.dead
	w.node.mu.Unlock()
	if dead {
		return nil, false
	}
	return w.node, true
}
