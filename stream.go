package sodium

import "sync"

// Stream is a discrete event source: a sequence of firings, each carrying a
// value of type A, each occurring within exactly one transaction. Stream
// never holds a "current" value between firings; Cell does.
type Stream[A any] struct {
	ctx  *SodiumCtx
	node *Node

	mu     sync.Mutex
	firing bool
	value  A
	hasVal bool
}

// newSelfRefNode mirrors the original implementation's recurring pattern of
// a stream node recording itself as its own GC-only update dependency: the
// node's update closure usually closes over the Stream struct holding the
// node's own GcNode, and without this edge the collector would never see
// that self-capture and could free the node out from under a still-running
// transaction.
func newSelfRefNode(n *Node) *Node {
	n.AddUpdateDependency(n)
	return n
}

// NewStream constructs a Stream backed by a caller-supplied node, used by
// every combinator that produces a stream whose update closure is already
// fully defined (Map, Filter, Merge, ...).
func NewStream[A any](ctx *SodiumCtx, node *Node) *Stream[A] {
	return &Stream[A]{ctx: ctx, node: newSelfRefNode(node)}
}

// newStreamWithNode builds a Stream in two phases: the node is constructed
// first with a placeholder update, then rewired once the Stream itself
// exists so the closure can reference it (e.g. to call s.send). This
// mirrors the original's pattern of passing sodium_ctx.null_node() as a
// stand-in dependency list while the real node is assembled.
func newStreamWithNode[A any](ctx *SodiumCtx, dependencies []*Node, build func(s *Stream[A]) func()) *Stream[A] {
	s := &Stream[A]{ctx: ctx}
	n := NewNode(func() {}, dependencies)
	s.node = newSelfRefNode(n)
	n.ReplaceUpdate(build(s))
	return s
}

// Node returns the backing propagation-graph node, exposed for extensions
// and graph-debug tooling.
func (s *Stream[A]) Node() *Node { return s.node }

func (s *Stream[A]) currentValue() (A, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.hasVal
}

// send records a in s's per-transaction firing slot and schedules its
// dependents for update. Per the engine's propagation rule, a stream's
// dependents must be enqueued unconditionally on every send: combinators
// like SwitchS run their *outer* node's update while observing the
// *wrapped* stream's changed flag, so the enqueue cannot be left to the
// caller alone.
func (s *Stream[A]) send(a A) {
	s.mu.Lock()
	alreadyFiring := s.firing
	s.firing = true
	s.value = a
	s.hasVal = true
	s.mu.Unlock()

	s.node.setChanged(true)
	if !alreadyFiring {
		s.ctx.PrePost(func() { s.clearFiring() })
	}
	s.ctx.AddDependentsToChangedNodes(s.node)
}

func (s *Stream[A]) clearFiring() {
	s.mu.Lock()
	s.firing = false
	s.hasVal = false
	var zero A
	s.value = zero
	s.mu.Unlock()
	s.node.setChanged(false)
}

// Listen subscribes fn to every future firing of s, returning a Listener
// that keeps the subscription (and everything it depends on) alive until
// Unlisten is called.
func (s *Stream[A]) Listen(fn func(A)) *Listener {
	return s.listen(fn, true)
}

// ListenWeak subscribes fn without retaining s: once nothing else keeps s
// (or its upstream) alive, the subscription is silently dropped.
func (s *Stream[A]) ListenWeak(fn func(A)) *Listener {
	return s.listen(fn, false)
}

func (s *Stream[A]) listen(fn func(A), strong bool) *Listener {
	var lis *Listener
	node := NewNode(func() {
		if v, ok := s.currentValue(); ok {
			fn(v)
		}
	}, []*Node{s.node})
	lis = newListener(s.ctx, node, strong)
	return lis
}

// Map derives a stream of f(a) for every firing a of s. Map cannot be a
// method parametrized over a second type in Go (methods may not introduce
// new type parameters), so the ergonomic same-type method below wraps this
// free function.
func Map[A, B any](s *Stream[A], f func(A) B) *Stream[B] {
	return newStreamWithNode(s.ctx, []*Node{s.node}, func(out *Stream[B]) func() {
		return func() {
			if v, ok := s.currentValue(); ok {
				out.send(f(v))
			}
		}
	})
}

// Map is the same-type convenience form of the package-level Map.
func (s *Stream[A]) Map(f func(A) A) *Stream[A] { return Map(s, f) }

// Filter derives a stream containing only the firings of s for which pred
// returns true.
func (s *Stream[A]) Filter(pred func(A) bool) *Stream[A] {
	return newStreamWithNode(s.ctx, []*Node{s.node}, func(out *Stream[A]) func() {
		return func() {
			if v, ok := s.currentValue(); ok && pred(v) {
				out.send(v)
			}
		}
	})
}

// Merge combines s and other. When both fire in the same transaction,
// coalesce resolves the simultaneous pair (s's value as left, other's as
// right) into a single output value; OrElse is the form whose coalescer
// keeps the left operand.
func Merge[A any](s, other *Stream[A], coalesce func(left, right A) A) *Stream[A] {
	return newStreamWithNode(s.ctx, []*Node{s.node, other.node}, func(out *Stream[A]) func() {
		return func() {
			lv, lok := s.currentValue()
			rv, rok := other.currentValue()
			switch {
			case lok && rok:
				out.send(coalesce(lv, rv))
			case lok:
				out.send(lv)
			case rok:
				out.send(rv)
			}
		}
	})
}

// OrElse merges s and other, preferring s's value whenever both fire in the
// same transaction.
func (s *Stream[A]) OrElse(other *Stream[A]) *Stream[A] {
	return Merge(s, other, func(left, right A) A { return left })
}

// Snapshot derives a stream that fires whenever s fires, carrying
// f(a, sample(c)) where sample(c) reads c's value as it stood immediately
// before this transaction's changes commit (sampled at propagation time,
// not the value c is updating to in this same transaction).
func Snapshot[A, B, C any](s *Stream[A], c *Cell[B], f func(A, B) C) *Stream[C] {
	out := newStreamWithNode(s.ctx, []*Node{s.node}, func(out *Stream[C]) func() {
		return func() {
			if v, ok := s.currentValue(); ok {
				out.send(f(v, c.Sample()))
			}
		}
	})
	out.node.AddUpdateDependency(c.node)
	return out
}

// Snapshot1 is Snapshot specialized to just sampling c, discarding s's
// value.
func Snapshot1[A, B any](s *Stream[A], c *Cell[B]) *Stream[B] {
	return Snapshot(s, c, func(_ A, b B) B { return b })
}

// Gate derives a stream containing only the firings of s for which
// predicate's current value is true, sampled at propagation time (not at
// construction time) just like Snapshot.
func Gate[A any](s *Stream[A], predicate *Cell[bool]) *Stream[A] {
	out := newStreamWithNode(s.ctx, []*Node{s.node}, func(out *Stream[A]) func() {
		return func() {
			if v, ok := s.currentValue(); ok && predicate.Sample() {
				out.send(v)
			}
		}
	})
	out.node.AddUpdateDependency(predicate.node)
	return out
}

// Gate is the method form of the package-level Gate.
func (s *Stream[A]) Gate(predicate *Cell[bool]) *Stream[A] { return Gate(s, predicate) }

// Hold derives a Cell whose value starts at initial and changes to each
// value s fires, visible to samplers starting in the transaction after the
// firing (see Cell for the exact "commits between transactions" rule).
func (s *Stream[A]) Hold(initial A) *Cell[A] {
	return s.HoldLazy(LazyOfValue(initial))
}

// HoldLazy is Hold with a lazily computed initial value, used by loops
// whose initial value depends on something not yet constructed.
func (s *Stream[A]) HoldLazy(initial *Lazy[A]) *Cell[A] {
	var c *Cell[A]
	s.ctx.Transaction(func() {
		c = newCellFromStream(s, initial)
	})
	return c
}

// Once derives a stream containing only the first firing of s.
func (s *Stream[A]) Once() *Stream[A] {
	var lis *Listener
	fired := false
	var mu sync.Mutex
	out := newStreamWithNode(s.ctx, nil, func(out *Stream[A]) func() {
		return func() {}
	})
	lis = s.ListenWeak(func(a A) {
		mu.Lock()
		already := fired
		fired = true
		mu.Unlock()
		if already {
			return
		}
		out.send(a)
		if lis != nil {
			lis.Unlisten()
		}
	})
	out.node.AddKeepAlive(lis.node.GcNode())
	return out
}

// Defer derives a stream that repeats every firing of s, delivered in a new
// transaction opened from a post callback of the one s fired in: combinators
// built on top of the deferred stream never observe a value from s that is
// still mid-computation on its own firing path.
func (s *Stream[A]) Defer() *Stream[A] {
	out := newStreamWithNode(s.ctx, nil, func(out *Stream[A]) func() {
		return func() {}
	})
	lis := s.ListenWeak(func(a A) {
		s.ctx.Post(func() {
			s.ctx.Transaction(func() { out.send(a) })
		})
	})
	out.node.AddUpdateDependency(s.node)
	out.node.AddKeepAlive(lis.node.GcNode())
	return out
}

// CollectLazy derives a stream of outputs carrying a running fold over s's
// firings, seeded with a lazily computed initial state. Each firing of s
// calls f(a, state) and both sends f's first result and adopts its second
// as the next state.
func CollectLazy[A, S, B any](s *Stream[A], initState *Lazy[S], f func(A, S) (B, S)) *Stream[B] {
	state := &stateBox[S]{}
	out := newStreamWithNode(s.ctx, []*Node{s.node}, func(out *Stream[B]) func() {
		return func() {
			if v, ok := s.currentValue(); ok {
				if !state.initialized {
					state.value = initState.Run()
					state.initialized = true
				}
				b, next := f(v, state.value)
				state.value = next
				out.send(b)
			}
		}
	})
	return out
}

type stateBox[S any] struct {
	value       S
	initialized bool
}

// AccumLazy derives a Cell holding the running fold over s's firings,
// seeded with a lazily computed initial value: equivalent to
// CollectLazy(s, init, func(a, s) (S, S) { r := f(a, s); return r, r }).Hold(init).
func AccumLazy[A, S any](s *Stream[A], initState *Lazy[S], f func(A, S) S) *Cell[S] {
	collected := CollectLazy(s, initState, func(a A, state S) (S, S) {
		next := f(a, state)
		return next, next
	})
	return collected.HoldLazy(initState)
}

// StreamSink is an externally-fed Stream: Send pushes a value into the
// reactive graph, starting a transaction if none is already open.
type StreamSink[A any] struct {
	stream   *Stream[A]
	coalesce func(left, right A) A
}

// NewStreamSink creates a sink with no coalescer: per I5, sending more than
// once within the same transaction keeps the first value and silently
// drops the rest ("first wins"). Callers that need every value folded
// together should use NewStreamSinkWithCoalescer instead.
func NewStreamSink[A any](ctx *SodiumCtx) *StreamSink[A] {
	return NewStreamSinkWithCoalescer(ctx, func(left, right A) A { return left })
}

// NewStreamSinkWithCoalescer creates a sink that, when sent to more than
// once within the same transaction, combines the pending and new values
// with coalesce instead of firing twice.
func NewStreamSinkWithCoalescer[A any](ctx *SodiumCtx, coalesce func(left, right A) A) *StreamSink[A] {
	// Each sink gets its own dedicated node rather than sharing ctx's
	// NullNode: a shared node would cross-contaminate the firing/changed
	// bookkeeping of every coalesced sink built this way.
	node := NewNode(func() {}, nil)
	s := &StreamSink[A]{
		stream:   &Stream[A]{ctx: ctx, node: newSelfRefNode(node)},
		coalesce: coalesce,
	}
	return s
}

// Send pushes a into the graph. If this is not the first send to s within
// the currently open transaction, the pending and new values are combined
// with s's coalescer.
func (s *StreamSink[A]) Send(a A) {
	s.stream.ctx.Transaction(func() {
		if v, ok := s.stream.currentValue(); ok {
			a = s.coalesce(v, a)
		}
		s.stream.send(a)
	})
}

// Stream returns s viewed as a read-only Stream, for composing with the
// rest of the combinator API without exposing Send to downstream code.
func (s *StreamSink[A]) Stream() *Stream[A] { return s.stream }
