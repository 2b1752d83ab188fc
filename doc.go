// Package sodium provides a transactional functional-reactive runtime for Go.
//
// # Overview
//
// Sodium organizes code around three core concepts:
//
//  1. SodiumCtx: the transaction controller that drives propagation
//  2. Stream[A]: a discrete event source that fires at most once per transaction
//  3. Cell[A]: a time-varying value sampled outside of transactions and
//     updated between them
//
// # Basic Usage
//
// Create a context, a sink, and wire up a dataflow graph:
//
//	ctx := sodium.NewSodiumCtx()
//
//	sink := sodium.NewStreamSink[int](ctx)
//	doubled := sink.Stream().Map(func(a int) int { return a * 2 })
//
//	var seen []int
//	l := doubled.Listen(func(a int) { seen = append(seen, a) })
//	defer l.Unlisten()
//
//	sink.Send(1) // seen == [2]
//	sink.Send(2) // seen == [2 4]
//
// # Cells
//
// A Cell holds a value that changes over time. `Hold` turns a stream of
// updates into a cell; `Updates` recovers the underlying stream; `Sample`
// reads the current value outside of a transaction:
//
//	cs := sodium.NewCellSink(ctx, 0)
//	c := cs.Cell()
//	doubled := c.Map(func(a int) int { return a * 2 })
//
//	cs.Send(5)
//	fmt.Println(doubled.Sample()) // 10
//
// # Transactions
//
// Multiple sends coalesce into a single propagation step when wrapped in a
// transaction:
//
//	ctx.Transaction(func() {
//	    ss1.Send(10)
//	    ss2.Send(20)
//	})
//
// Every exported operation that sends into the graph opens an implicit
// transaction if one is not already open; nested transactions only run
// propagation once the outermost one closes.
//
// # Loops
//
// StreamLoop and CellLoop let a combinator reference a stream or cell that
// is defined later in the same scope, used for feedback graphs:
//
//	loop := sodium.NewStreamLoop[int](ctx)
//	out := loop.Stream().Map(func(a int) int { return a + 1 })
//	loop.Loop(someLaterStream)
//
// `Loop` may be called at most once per loop; calling it twice is a
// programming error and panics with a ContractViolationError.
//
// # Switching
//
// `SwitchS` and `SwitchC` follow the stream or cell currently held
// by a cell-of-streams or cell-of-cells, rewiring the output each time the
// outer cell fires:
//
//	out := sodium.SwitchS(cellOfStreams)
//	outCell := sodium.SwitchC(cellOfCells)
//
// # Memory Management
//
// The graph of Stream/Cell/Node values forms reference cycles by
// construction (a cell's update closure captures the cell itself). Sodium
// resolves these with a synchronous Bacon-Rajan cycle collector
// (GcCtx.CollectCycles), run automatically between transactions. Nodes not
// part of a cycle are freed the moment their ordinary reference count hits
// zero; nodes that are part of a cycle are freed the next time cycle
// collection runs.
//
// # Extensions
//
// Extensions provide cross-cutting concerns around transaction and
// cycle-collection boundaries:
//
//	type LoggingExtension struct {
//	    sodium.BaseExtension
//	}
//
//	func (e *LoggingExtension) Wrap(ctx context.Context, next func() error, op *sodium.Operation) error {
//	    log.Printf("starting %s", op.Kind)
//	    err := next()
//	    log.Printf("finished %s: %v", op.Kind, err)
//	    return err
//	}
//
//	ctx := sodium.NewSodiumCtx(
//	    sodium.WithExtension(&LoggingExtension{BaseExtension: sodium.NewBaseExtension("logging")}),
//	)
//
// # Configuration
//
// A small, optional yaml-backed Config controls the GC's forced-collection
// cadence and the node-visiting scheduler. Its Telemetry.Enabled flag is
// loaded but not read by the engine; telemetry is emitted only by a
// registered telemetry extension:
//
//	cfg, err := sodium.Load("sodium.yaml")
//	ctx := sodium.NewSodiumCtx(sodium.WithConfig(cfg))
//
// # Thread Safety
//
// A SodiumCtx is safe to share across goroutines, but propagation itself is
// single-threaded and cooperative: a call to Transaction (or any operation
// that implicitly opens one) runs to completion on the calling goroutine
// before returning. The optional parallel scheduler only parallelizes
// independent dependency visits within one propagation step; it never
// changes what gets computed, only how many goroutines compute it.
package sodium
