package sodium

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// SodiumCtx is the transaction controller: it owns the changed-nodes
// queue, the pre-post and post callback queues, the cycle collector, and
// the registered extensions wrapping transaction and collection
// boundaries.
type SodiumCtx struct {
	mu sync.Mutex

	id     uuid.UUID
	cfg    *Config
	logger *slog.Logger

	extensions []Extension

	gc        *GcCtx
	scratch   *ScratchPool
	scheduler Scheduler

	nullNodeOnce sync.Once
	nullNode     *Node

	changedNodes     []*Node
	transactionDepth int
	prePost          []func()
	post             []func()

	keepAlive []*Listener

	allowCollectCounter      int
	transactionsSinceCollect int
}

// Option configures a SodiumCtx at construction time.
type Option func(*SodiumCtx)

// WithConfig installs a Config, overriding the scheduler mode and GC
// cadence defaults.
func WithConfig(cfg *Config) Option {
	return func(ctx *SodiumCtx) { ctx.cfg = cfg }
}

// WithExtension registers an Extension, sorted into place by Order().
func WithExtension(ext Extension) Option {
	return func(ctx *SodiumCtx) { ctx.UseExtension(ext) }
}

// WithLogger installs a *slog.Logger, otherwise slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(ctx *SodiumCtx) { ctx.logger = l }
}

// NewSodiumCtx constructs an empty transaction controller.
func NewSodiumCtx(opts ...Option) *SodiumCtx {
	ctx := &SodiumCtx{
		id:      uuid.New(),
		cfg:     Default(),
		gc:      NewGcCtx(),
		scratch: NewScratchPool(),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	if ctx.logger == nil {
		ctx.logger = slog.Default()
	}
	ctx.scheduler = schedulerForMode(ctx.cfg.Scheduler.Mode)
	ctx.changedNodes = ctx.scratch.AcquireChanged()
	ctx.prePost = ctx.scratch.AcquireCallbacks()
	ctx.post = ctx.scratch.AcquireCallbacks()
	return ctx
}

// ID returns the context's unique identifier, useful for distinguishing
// multiple runtimes in one process on log records and telemetry spans.
func (ctx *SodiumCtx) ID() uuid.UUID { return ctx.id }

// Config returns the context's configuration.
func (ctx *SodiumCtx) Config() *Config { return ctx.cfg }

// Logger returns the context's logger.
func (ctx *SodiumCtx) Logger() *slog.Logger { return ctx.logger }

// GC returns the context's cycle collector, mainly for tests and
// telemetry that want to inspect collection stats directly.
func (ctx *SodiumCtx) GC() *GcCtx { return ctx.gc }

// UseExtension registers an extension, keeping the slice sorted by Order.
func (ctx *SodiumCtx) UseExtension(ext Extension) {
	ctx.mu.Lock()
	ctx.extensions = append(ctx.extensions, ext)
	sort.Slice(ctx.extensions, func(i, j int) bool {
		return ctx.extensions[i].Order() < ctx.extensions[j].Order()
	})
	ctx.mu.Unlock()
}

func (ctx *SodiumCtx) extensionsSnapshot() []Extension {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return append([]Extension(nil), ctx.extensions...)
}

// Dispose releases every registered extension. It does not tear down the
// graph itself; callers are expected to have dropped their own references.
func (ctx *SodiumCtx) Dispose() {
	for _, ext := range ctx.extensionsSnapshot() {
		ext.Dispose()
	}
}

func (ctx *SodiumCtx) wrap(op *Operation, next func() error) error {
	exts := ctx.extensionsSnapshot()
	fn := next
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		inner := fn
		fn = func() error { return ext.Wrap(context.Background(), inner, op) }
	}
	return fn()
}

// NullNode returns a shared no-op node, created on first use. No combinator
// in this package uses it; each builds its own node.
func (ctx *SodiumCtx) NullNode() *Node {
	ctx.nullNodeOnce.Do(func() {
		ctx.nullNode = NewNode(func() {}, nil)
	})
	return ctx.nullNode
}

// AddDependentsToChangedNodes upgrades every weak dependent of node and
// enqueues the live ones as changed, used by sinks to seed propagation.
func (ctx *SodiumCtx) AddDependentsToChangedNodes(node *Node) {
	for _, w := range node.Dependents() {
		if d, ok := w.Upgrade(); ok {
			ctx.enqueueChanged(d)
		}
	}
}

func (ctx *SodiumCtx) enqueueChanged(node *Node) {
	ctx.mu.Lock()
	ctx.changedNodes = append(ctx.changedNodes, node)
	ctx.mu.Unlock()
}

// PrePost registers a callback run immediately after propagation drains,
// before any post callback of the same transaction.
func (ctx *SodiumCtx) PrePost(cb func()) {
	ctx.mu.Lock()
	ctx.prePost = append(ctx.prePost, cb)
	ctx.mu.Unlock()
}

// Post registers a callback run after every pre-post callback of the same
// transaction, used to commit cell values and deliver deferred sends.
func (ctx *SodiumCtx) Post(cb func()) {
	ctx.mu.Lock()
	ctx.post = append(ctx.post, cb)
	ctx.mu.Unlock()
}

func (ctx *SodiumCtx) addKeepAliveListener(l *Listener) {
	ctx.mu.Lock()
	ctx.keepAlive = append(ctx.keepAlive, l)
	ctx.mu.Unlock()
}

func (ctx *SodiumCtx) removeKeepAliveListener(l *Listener) {
	ctx.mu.Lock()
	out := ctx.keepAlive[:0]
	for _, k := range ctx.keepAlive {
		if k != l {
			out = append(out, k)
		}
	}
	ctx.keepAlive = out
	ctx.mu.Unlock()
}

// Transaction runs body; if no transaction is already open it drives a
// full propagation step (end_of_transaction) once body returns.
func (ctx *SodiumCtx) Transaction(body func()) {
	ctx.mu.Lock()
	wasOutermost := ctx.transactionDepth == 0
	ctx.transactionDepth++
	ctx.mu.Unlock()

	run := func() {
		body()
		ctx.mu.Lock()
		ctx.transactionDepth--
		depth := ctx.transactionDepth
		ctx.mu.Unlock()
		if depth == 0 {
			ctx.endOfTransaction()
		}
	}

	if wasOutermost {
		op := &Operation{Kind: OpTransaction, Ctx: ctx}
		_ = ctx.wrap(op, func() error {
			run()
			return nil
		})
	} else {
		run()
	}
}

func (ctx *SodiumCtx) endOfTransaction() {
	ctx.mu.Lock()
	ctx.transactionDepth++
	ctx.allowCollectCounter++
	ctx.mu.Unlock()

	var panicErr *PropagationError
	func() {
		defer func() {
			if r := recover(); r != nil {
				if pe, ok := r.(*PropagationError); ok {
					panicErr = pe
				} else {
					panicErr = &PropagationError{Cause: r, Stack: debug.Stack()}
				}
			}
		}()
		for {
			ctx.mu.Lock()
			changed := ctx.changedNodes
			ctx.changedNodes = ctx.scratch.AcquireChanged()
			ctx.mu.Unlock()
			if len(changed) == 0 {
				ctx.scratch.ReleaseChanged(changed)
				break
			}
			for _, node := range changed {
				ctx.updateNode(node)
			}
			ctx.scratch.ReleaseChanged(changed)
		}
	}()

	ctx.mu.Lock()
	ctx.transactionDepth--
	ctx.mu.Unlock()

	ctx.mu.Lock()
	prePost := ctx.prePost
	ctx.prePost = ctx.scratch.AcquireCallbacks()
	ctx.mu.Unlock()
	for _, cb := range prePost {
		cb()
	}
	ctx.scratch.ReleaseCallbacks(prePost)

	if panicErr != nil {
		op := &Operation{Kind: OpTransaction, Ctx: ctx}
		for _, ext := range ctx.extensionsSnapshot() {
			ext.OnTransactionError(panicErr, op)
		}
		ctx.mu.Lock()
		ctx.allowCollectCounter--
		ctx.mu.Unlock()
		panic(panicErr)
	}

	ctx.mu.Lock()
	post := ctx.post
	ctx.post = ctx.scratch.AcquireCallbacks()
	ctx.mu.Unlock()
	for _, cb := range post {
		cb()
	}
	ctx.scratch.ReleaseCallbacks(post)

	ctx.mu.Lock()
	ctx.allowCollectCounter--
	shouldCollect := ctx.allowCollectCounter == 0
	ctx.mu.Unlock()

	if !shouldCollect {
		ctx.mu.Lock()
		ctx.transactionsSinceCollect++
		n := ctx.transactionsSinceCollect
		forceEvery := ctx.cfg.GC.ForceCollectEveryNTransactions
		ctx.mu.Unlock()
		if forceEvery > 0 && n >= forceEvery {
			shouldCollect = true
		}
	}

	// Config.GC.ForceCollectEveryNTransactions lets a long-running graph
	// that never reaches allowCollectCounter==0 on its own (nested
	// transactions opened faster than they close) still get swept
	// periodically, instead of only ever collecting at the natural gate.
	if shouldCollect {
		stats := ctx.gc.CollectCycles()
		ctx.mu.Lock()
		ctx.transactionsSinceCollect = 0
		ctx.mu.Unlock()
		op := &Operation{Kind: OpCollectCycles, Ctx: ctx}
		for _, ext := range ctx.extensionsSnapshot() {
			ext.OnCyclesCollected(stats, op)
		}
	}
}

// updateNode is the glitch-free depth-first propagation walk: a node's
// update runs at most once per transaction and only after every dependency
// of it has already been visited.
func (ctx *SodiumCtx) updateNode(n *Node) {
	if n.isVisited() {
		return
	}
	n.setVisited(true)
	ctx.PrePost(func() { n.setVisited(false) })

	deps := n.Dependencies()
	ctx.scheduler.VisitDependencies(deps, func(d *Node) {
		if !d.isVisited() {
			ctx.updateNode(d)
		}
	})

	anyChanged := false
	for _, d := range deps {
		if d.isChanged() {
			anyChanged = true
			break
		}
	}
	if anyChanged {
		ctx.runNodeUpdate(n)
	}

	if n.isChanged() {
		for _, w := range n.Dependents() {
			if dep, ok := w.Upgrade(); ok {
				ctx.updateNode(dep)
			}
		}
	}
}

func (ctx *SodiumCtx) runNodeUpdate(n *Node) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(*PropagationError); ok {
				panic(pe)
			}
			panic(&PropagationError{Node: n, Cause: r, Stack: debug.Stack()})
		}
	}()
	n.runUpdate()
}
