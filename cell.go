package sodium

import "sync"

// Cell is a continuous value: unlike Stream it always has a current value,
// readable by Sample outside of a transaction and by Snapshot/Lift
// combinators as a dependency's value during one. A value sent to a cell's
// underlying stream commits between transactions: Sample called inside the
// same transaction that produced the new value still returns the old one,
// which is what keeps Snapshot's readings glitch-free. Lift2 instead reads
// an input's pending value when it has one, so a lifted cell reflects the
// changes of the transaction that caused them.
type Cell[A any] struct {
	ctx  *SodiumCtx
	node *Node

	mu       sync.Mutex
	value    A
	nextVal  A
	hasNext  bool
	valueCap *Stream[A] // backing "updates" stream, nil for a pure constant cell

	sampleGuard func() // if set, called at the start of every Sample
}

// NewCellConst creates a Cell that never changes.
func NewCellConst[A any](ctx *SodiumCtx, value A) *Cell[A] {
	node := NewNode(func() {}, nil)
	return &Cell[A]{ctx: ctx, node: node, value: value}
}

// newCellFromStream builds the Cell backing Stream.Hold/HoldLazy: its node
// fires whenever the underlying stream fires, and a post callback commits
// the pending value so samples taken later in the same transaction still
// see the pre-firing value.
func newCellFromStream[A any](s *Stream[A], initial *Lazy[A]) *Cell[A] {
	c := &Cell[A]{ctx: s.ctx, valueCap: s}
	node := NewNode(func() {
		if v, ok := s.currentValue(); ok {
			c.mu.Lock()
			c.nextVal = v
			c.hasNext = true
			c.mu.Unlock()
			c.node.setChanged(true)
			s.ctx.PrePost(func() { c.node.setChanged(false) })
			s.ctx.Post(func() { c.commit() })
		}
	}, []*Node{s.node})
	c.node = newSelfRefNode(node)
	c.value = initial.Run()
	return c
}

func (c *Cell[A]) commit() {
	c.mu.Lock()
	if c.hasNext {
		c.value = c.nextVal
		var zero A
		c.nextVal = zero
		c.hasNext = false
	}
	c.mu.Unlock()
}

// Node returns the backing propagation-graph node.
func (c *Cell[A]) Node() *Node { return c.node }

// Sample reads c's current value. Safe to call at any time, including
// inside a combinator's update closure, where it returns the value as it
// stood before this transaction's sends commit.
func (c *Cell[A]) Sample() A {
	if c.sampleGuard != nil {
		c.sampleGuard()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// SampleLazy returns a Lazy that, when run, samples c. Needed by
// constructs (like CellLoop's initial value) that must describe "read this
// cell" before the transaction they will run in is known.
func (c *Cell[A]) SampleLazy() *Lazy[A] {
	return NewLazy(func() A { return c.Sample() })
}

// Updates returns a Stream that fires with c's new value every time c
// changes — the mirror image of Hold. For a constant cell this stream
// never fires.
func (c *Cell[A]) Updates() *Stream[A] {
	if c.valueCap != nil {
		return c.valueCap
	}
	return NewStream[A](c.ctx, NewNode(func() {}, nil))
}

// Value returns a Stream that fires with c's current value exactly once,
// at the moment of subscription (via a post-callback "spark" fired inside
// the transaction Value is called in, or the next transaction if called
// outside of one), and on every subsequent change thereafter — giving a
// listener the same "fire on subscribe, then on every update" view Cell
// itself provides via Listen.
func (c *Cell[A]) Value() *Stream[A] {
	var out *Stream[A]
	c.ctx.Transaction(func() {
		spark := NewStreamSink[A](c.ctx)
		a := c.Sample()
		c.ctx.Post(func() { spark.Send(a) })
		out = c.Updates().OrElse(spark.Stream())
	})
	return out
}

// Listen subscribes fn to c's current value and every subsequent change.
// Value and Listen must run inside the same transaction: Value's spark
// fires through a post callback that runs as soon as its own transaction
// closes, so if Value closed its transaction before returning here, the
// spark would already have fired into a stream nothing is listening to
// yet. Wrapping both calls in one outer transaction defers the post
// callback until after the listener is wired in.
func (c *Cell[A]) Listen(fn func(A)) *Listener {
	var l *Listener
	c.ctx.Transaction(func() { l = c.Value().Listen(fn) })
	return l
}

// ListenWeak is Listen without retaining c.
func (c *Cell[A]) ListenWeak(fn func(A)) *Listener {
	var l *Listener
	c.ctx.Transaction(func() { l = c.Value().ListenWeak(fn) })
	return l
}

// CellMap derives a Cell holding f(sample(c)), recomputed whenever c
// changes. As with Stream's Map, the new-type-parameter restriction on
// methods means this lives as a free function with a same-type method
// wrapper below.
func CellMap[A, B any](c *Cell[A], f func(A) B) *Cell[B] {
	out := Map(c.Updates(), func(a A) B { return f(a) }).Hold(f(c.Sample()))
	out.node.AddUpdateDependency(c.node)
	return out
}

// Map is the same-type convenience form of the package-level CellMap.
func (c *Cell[A]) Map(f func(A) A) *Cell[A] { return CellMap(c, f) }

// Lift2 derives a Cell holding f(sample(ca), sample(cb)), recomputed
// whenever either input changes. Each recomputation reads an input's
// pending value from the current transaction when it has one, so changes to
// both inputs in one transaction produce a single update computed from both
// new values.
func Lift2[A, B, C any](ca *Cell[A], cb *Cell[B], f func(A, B) C) *Cell[C] {
	compute := func() C {
		a, b := ca.Sample(), cb.Sample()
		ca.mu.Lock()
		if ca.hasNext {
			a = ca.nextVal
		}
		ca.mu.Unlock()
		cb.mu.Lock()
		if cb.hasNext {
			b = cb.nextVal
		}
		cb.mu.Unlock()
		return f(a, b)
	}
	node := newSelfRefNode(NewNode(nil, []*Node{ca.node, cb.node}))
	updates := NewStream[C](ca.ctx, NewNode(func() {}, []*Node{node}))
	out := &Cell[C]{ctx: ca.ctx, node: node, value: compute(), valueCap: updates}
	node.ReplaceUpdate(func() {
		v := compute()
		out.mu.Lock()
		out.nextVal = v
		out.hasNext = true
		out.mu.Unlock()
		node.setChanged(true)
		updates.send(v)
		ca.ctx.AddDependentsToChangedNodes(node)
		ca.ctx.Post(func() { out.commit() })
	})
	return out
}

// SwitchS flattens a Cell of Streams into the Stream currently held,
// re-subscribing every time the cell's value changes. A firing of the
// stream active when SwitchS was constructed, or active at the moment the
// cell changes within the same transaction, is delivered exactly once.
//
// This uses the dual inner/outer node construction called for by the
// engine's switch semantics rather than the simpler composition some
// reference implementations use: the node whose update closure actually
// runs (the inner node, rewired on every cell change) is not the node
// whose changed flag downstream combinators observe (the outer node), so
// Stream.send's unconditional dependent-enqueue is what keeps the two in
// sync within one transaction.
//
// The outer node depends structurally on cca.Updates()'s backing stream,
// not on cca's own node: a cell's node only commits its new value in a
// post callback (see commit), so mid-transaction cca.Sample() still
// returns the value from before this change. cca.Updates() fires with the
// new stream during propagation itself, which is what rewiring on every
// switch actually needs; cca.node is retained as a GC-only update
// dependency instead, the same pattern Snapshot and Gate use to keep a
// sampled cell alive without making it a propagation dependency.
func SwitchS[A any](cca *Cell[*Stream[A]]) *Stream[A] {
	var out *Stream[A]
	var innerListener *Listener

	updates := cca.Updates()
	outerNode := NewNode(func() {}, []*Node{updates.node})
	outerNode.AddUpdateDependency(cca.node)
	out = NewStream[A](cca.ctx, outerNode)

	rewire := func(s *Stream[A]) {
		if innerListener != nil {
			innerListener.Unlisten()
		}
		innerListener = s.ListenWeak(func(a A) { out.send(a) })
		outerNode.AddKeepAlive(innerListener.node.GcNode())
	}

	// outerNode's own update rewires to the cell's new stream whenever
	// updates fires; it is registered as a dependency so the normal
	// propagation walk runs it before forwarding to out's dependents.
	outerNode.ReplaceUpdate(func() {
		if s, ok := updates.currentValue(); ok {
			rewire(s)
		}
	})

	cca.ctx.Transaction(func() { rewire(cca.Sample()) })

	return out
}

// SwitchC flattens a Cell of Cells into the Cell currently held, switching
// which inner cell's updates it tracks every time the outer cell changes.
//
// As with SwitchS, the outer node depends structurally on cca.Updates()
// rather than cca's own node, since cca.Sample() mid-transaction still
// reads the pre-switch value; cca.node is kept alive only as a GC-only
// update dependency.
func SwitchC[A any](cca *Cell[*Cell[A]]) *Cell[A] {
	initial := cca.Sample()
	updates := cca.Updates()
	outerNode := newSelfRefNode(NewNode(nil, []*Node{updates.node}))
	outerNode.AddUpdateDependency(cca.node)
	out := &Cell[A]{ctx: cca.ctx, node: outerNode, value: initial.Sample()}
	out.valueCap = NewStream[A](cca.ctx, NewNode(func() {}, []*Node{outerNode}))

	var innerListener *Listener
	rewire := func(inner *Cell[A]) {
		if innerListener != nil {
			innerListener.Unlisten()
			innerListener = nil
		}
		innerListener = inner.Updates().ListenWeak(func(a A) {
			out.mu.Lock()
			out.nextVal = a
			out.hasNext = true
			out.mu.Unlock()
			out.valueCap.send(a)
			outerNode.setChanged(true)
			cca.ctx.AddDependentsToChangedNodes(outerNode)
			cca.ctx.Post(func() { out.commit() })
		})
		outerNode.AddKeepAlive(innerListener.node.GcNode())
	}

	outerNode.ReplaceUpdate(func() {
		next, ok := updates.currentValue()
		if !ok {
			return
		}
		rewire(next)
		v := next.Sample()
		out.mu.Lock()
		out.nextVal = v
		out.hasNext = true
		out.mu.Unlock()
		out.valueCap.send(v)
		outerNode.setChanged(true)
		cca.ctx.AddDependentsToChangedNodes(outerNode)
		cca.ctx.Post(func() { out.commit() })
	})

	cca.ctx.Transaction(func() { rewire(initial) })

	return out
}

// CellSink is an externally-fed Cell: Send commits a new value effective
// in the transaction after the one Send is called in, same as sending to
// the stream behind a held cell.
type CellSink[A any] struct {
	cell *Cell[A]
	sink *StreamSink[A]
}

// NewCellSink creates a sink-backed cell starting at initial.
func NewCellSink[A any](ctx *SodiumCtx, initial A) *CellSink[A] {
	sink := NewStreamSinkWithCoalescer(ctx, func(left, right A) A { return right })
	cell := sink.Stream().HoldLazy(LazyOfValue(initial))
	return &CellSink[A]{cell: cell, sink: sink}
}

// Cell returns c viewed as a read-only Cell, for composing with the rest
// of the combinator API without exposing Send to downstream code.
func (c *CellSink[A]) Cell() *Cell[A] { return c.cell }

// Send pushes a new value into the cell.
func (c *CellSink[A]) Send(a A) { c.sink.Send(a) }
