package sodium

// StreamLoop lets a stream be referenced before the stream that actually
// feeds it is constructed, resolving forward references in graphs like "a
// cell whose value depends on a stream derived from that same cell".
// Loop must be called exactly once, within the same transaction the loop
// was created in, before the loop's stream is sampled or listened to for
// real output.
type StreamLoop[A any] struct {
	ctx    *SodiumCtx
	stream *Stream[A]
	looped bool
}

// NewStreamLoop constructs an unresolved stream loop. It must be created
// and looped within the same outermost transaction.
func NewStreamLoop[A any](ctx *SodiumCtx) *StreamLoop[A] {
	node := NewNode(func() {}, nil)
	return &StreamLoop[A]{ctx: ctx, stream: NewStream[A](ctx, node)}
}

// Stream returns the forward-referenceable stream; it fires exactly when
// the stream later passed to Loop fires, once Loop has been called.
func (l *StreamLoop[A]) Stream() *Stream[A] { return l.stream }

// Loop resolves the loop: every future firing of out is forwarded as a
// firing of l.Stream(). Calling Loop twice on the same loop is a contract
// violation.
func (l *StreamLoop[A]) Loop(out *Stream[A]) {
	if l.looped {
		panic(&ContractViolationError{
			Op:      "StreamLoop.Loop",
			Message: "loop already resolved",
		})
	}
	l.looped = true
	l.stream.node.AddDependency(out.node)
	l.stream.node.ReplaceUpdate(func() {
		if v, ok := out.currentValue(); ok {
			l.stream.send(v)
		}
	})
}

// CellLoop is StreamLoop's continuous-value counterpart: sampling the loop
// before Loop resolves it is a contract violation, matching the original's
// "CellLoop sampled before looped" panic.
type CellLoop[A any] struct {
	ctx    *SodiumCtx
	cell   *Cell[A]
	looped bool
}

// NewCellLoop constructs an unresolved cell loop.
func NewCellLoop[A any](ctx *SodiumCtx) *CellLoop[A] {
	l := &CellLoop[A]{ctx: ctx}
	node := newSelfRefNode(NewNode(func() {}, nil))
	l.cell = &Cell[A]{ctx: ctx, node: node}
	l.cell.valueCap = NewStream[A](ctx, NewNode(func() {}, []*Node{node}))
	l.cell.sampleGuard = func() {
		if !l.looped {
			panic(&ContractViolationError{
				Op:      "CellLoop.Sample",
				Message: "sampled before looped",
			})
		}
	}
	return l
}

// Cell returns the forward-referenceable cell. Sampling it before Loop has
// been called panics with a ContractViolationError.
func (l *CellLoop[A]) Cell() *Cell[A] { return l.cell }

// Loop resolves the loop: c becomes the cell's real update source. Must be
// called within the same transaction the loop was created in.
func (l *CellLoop[A]) Loop(c *Cell[A]) {
	if l.looped {
		panic(&ContractViolationError{
			Op:      "CellLoop.Loop",
			Message: "loop already resolved",
		})
	}
	l.looped = true
	l.cell.value = c.Sample()
	l.cell.node.AddDependency(c.node)
	l.cell.node.ReplaceUpdate(func() {
		v := c.Sample()
		c.mu.Lock()
		if c.hasNext {
			v = c.nextVal
		}
		c.mu.Unlock()
		l.cell.mu.Lock()
		l.cell.nextVal = v
		l.cell.hasNext = true
		l.cell.mu.Unlock()
		l.cell.valueCap.send(v)
		l.cell.node.setChanged(true)
		l.ctx.AddDependentsToChangedNodes(l.cell.node)
		l.ctx.Post(func() { l.cell.commit() })
	})
}
