package sodium

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestScenarioMapDoublesEachFiring is core spec scenario 1.
func TestScenarioMapDoublesEachFiring(t *testing.T) {
	ctx := NewSodiumCtx()
	ss := NewStreamSink[int](ctx)
	s := ss.Stream().Map(func(x int) int { return x * 2 })
	var log []int
	s.Listen(func(a int) { log = append(log, a) })

	ss.Send(1)
	ss.Send(2)

	if diff := cmp.Diff([]int{2, 4}, log); diff != "" {
		t.Fatalf("unexpected log (-want +got):\n%s", diff)
	}
}

// TestScenarioFilterKeepsEvens is core spec scenario 2.
func TestScenarioFilterKeepsEvens(t *testing.T) {
	ctx := NewSodiumCtx()
	ss := NewStreamSink[int](ctx)
	s := ss.Stream().Filter(func(x int) bool { return x&1 == 0 })
	var log []int
	s.Listen(func(a int) { log = append(log, a) })

	for _, v := range []int{1, 2, 3, 4} {
		ss.Send(v)
	}

	if diff := cmp.Diff([]int{2, 4}, log); diff != "" {
		t.Fatalf("unexpected log (-want +got):\n%s", diff)
	}
}

// TestScenarioMergeSumsSimultaneousFirings is core spec scenario 3.
func TestScenarioMergeSumsSimultaneousFirings(t *testing.T) {
	ctx := NewSodiumCtx()
	ss1 := NewStreamSink[int](ctx)
	ss2 := NewStreamSink[int](ctx)
	s := Merge(ss1.Stream(), ss2.Stream(), func(a, b int) int { return a + b })
	var log []int
	s.Listen(func(a int) { log = append(log, a) })

	ss1.Send(1)
	ss2.Send(2)
	ctx.Transaction(func() {
		ss1.Send(10)
		ss2.Send(20)
	})

	if len(log) != 3 || log[0] != 1 || log[1] != 2 || log[2] != 30 {
		t.Fatalf("expected [1 2 30], got %v", log)
	}
}

// TestScenarioCellSinkDeliversInitialThenEveryChange is core spec scenario 4.
func TestScenarioCellSinkDeliversInitialThenEveryChange(t *testing.T) {
	ctx := NewSodiumCtx()
	cs := NewCellSink(ctx, 0)
	c := cs.Cell()
	var log []int
	c.Listen(func(a int) { log = append(log, a) })

	cs.Send(2)
	cs.Send(3)

	if len(log) != 3 || log[0] != 0 || log[1] != 2 || log[2] != 3 {
		t.Fatalf("expected [0 2 3], got %v", log)
	}
}

// TestScenarioSwitchSFollowsCurrentlyHeldStream is core spec scenario 5.
func TestScenarioSwitchSFollowsCurrentlyHeldStream(t *testing.T) {
	ctx := NewSodiumCtx()
	ssA := NewStreamSink[int](ctx)
	ssB := NewStreamSink[int](ctx)
	css := NewCellSink[*Stream[int]](ctx, ssA.Stream())
	out := SwitchS[int](css.Cell())
	var log []int
	out.Listen(func(a int) { log = append(log, a) })

	ssA.Send(1)
	css.Send(ssB.Stream())
	ssA.Send(99)
	ssB.Send(2)

	if len(log) != 2 || log[0] != 1 || log[1] != 2 {
		t.Fatalf("expected [1 2], got %v", log)
	}
}

// TestScenarioCollectCyclesReclaimsADroppedThousandNodeCycle is core spec
// scenario 6.
func TestScenarioCollectCyclesReclaimsADroppedThousandNodeCycle(t *testing.T) {
	const size = 1000
	gc := NewGcCtx()

	nodes := make([]*GcNode, size)
	freedCount := 0
	for i := 0; i < size; i++ {
		i := i
		nodes[i] = NewGcNode(func() { freedCount++ }, func(tr Tracer) { tr(nodes[(i+1)%size]) })
	}
	for i := 0; i < size; i++ {
		nodes[i].IncRef() // the next node in the ring holds this one
	}
	// Drop every node's own initial owning reference, leaving only the
	// ring's internal cycle of references; DecRef registers each survivor
	// as a possible cycle root itself.
	for i := 0; i < size; i++ {
		nodes[i].DecRef(gc)
	}

	gc.CollectCycles()

	if freedCount != size {
		t.Fatalf("expected all %d cyclic nodes to be reclaimed, got %d", size, freedCount)
	}
}

// TestLawMapIdentityFiresSameValue is law L1.
func TestLawMapIdentityFiresSameValue(t *testing.T) {
	ctx := NewSodiumCtx()
	ss := NewStreamSink[int](ctx)
	identity := ss.Stream().Map(func(x int) int { return x })
	var log []int
	identity.Listen(func(a int) { log = append(log, a) })

	ss.Send(5)
	ss.Send(6)

	if len(log) != 2 || log[0] != 5 || log[1] != 6 {
		t.Fatalf("expected [5 6], got %v", log)
	}
}

// TestLawMapFusion is law L2.
func TestLawMapFusion(t *testing.T) {
	ctx := NewSodiumCtx()
	ssA := NewStreamSink[int](ctx)
	ssB := NewStreamSink[int](ctx)
	f := func(x int) int { return x + 1 }
	g := func(x int) int { return x * 3 }

	chained := ssA.Stream().Map(f).Map(g)
	fused := ssB.Stream().Map(func(x int) int { return g(f(x)) })

	var logChained, logFused []int
	chained.Listen(func(a int) { logChained = append(logChained, a) })
	fused.Listen(func(a int) { logFused = append(logFused, a) })

	for _, v := range []int{1, 2, 3} {
		ssA.Send(v)
		ssB.Send(v)
	}

	if diff := cmp.Diff(logFused, logChained); diff != "" {
		t.Fatalf("expected map(f).map(g) == map(g∘f) (-fused +chained):\n%s", diff)
	}
}

// TestLawMergeCommutativityWithSymmetricFunction is law L3.
func TestLawMergeCommutativityWithSymmetricFunction(t *testing.T) {
	ctx := NewSodiumCtx()
	s1a := NewStreamSink[int](ctx)
	s2a := NewStreamSink[int](ctx)
	s1b := NewStreamSink[int](ctx)
	s2b := NewStreamSink[int](ctx)

	sum := func(a, b int) int { return a + b }
	forward := Merge(s1a.Stream(), s2a.Stream(), sum)
	reversed := Merge(s2b.Stream(), s1b.Stream(), func(b, a int) int { return sum(a, b) })

	var logForward, logReversed []int
	forward.Listen(func(a int) { logForward = append(logForward, a) })
	reversed.Listen(func(a int) { logReversed = append(logReversed, a) })

	ctx.Transaction(func() {
		s1a.Send(4)
		s2a.Send(7)
		s1b.Send(4)
		s2b.Send(7)
	})

	if len(logForward) != 1 || len(logReversed) != 1 || logForward[0] != logReversed[0] {
		t.Fatalf("expected symmetric merge to agree: %v vs %v", logForward, logReversed)
	}
}

// TestLawHoldUpdatesRoundTrip is law L4.
func TestLawHoldUpdatesRoundTrip(t *testing.T) {
	ctx := NewSodiumCtx()
	ss := NewStreamSink[int](ctx)
	c := ss.Stream().Hold(100)

	if c.Sample() != 100 {
		t.Fatalf("expected sample 100 before any firing, got %d", c.Sample())
	}

	var updates []int
	c.Updates().Listen(func(a int) { updates = append(updates, a) })

	ss.Send(1)
	if c.Sample() != 1 {
		t.Fatalf("expected sample to reflect the most recent firing, got %d", c.Sample())
	}
	ss.Send(2)
	if c.Sample() != 2 {
		t.Fatalf("expected sample to reflect the most recent firing, got %d", c.Sample())
	}

	if len(updates) != 2 || updates[0] != 1 || updates[1] != 2 {
		t.Fatalf("expected updates() to fire exactly the post-hold firings [1 2], got %v", updates)
	}
}

// TestLawSnapshotGlitchFreedom is law L5.
func TestLawSnapshotGlitchFreedom(t *testing.T) {
	ctx := NewSodiumCtx()
	cs := NewCellSink(ctx, "old")
	ss := NewStreamSink[int](ctx)
	snap := Snapshot(ss.Stream(), cs.Cell(), func(n int, s string) string { return s })

	var got []string
	snap.Listen(func(s string) { got = append(got, s) })

	ctx.Transaction(func() {
		cs.Send("new")
		ss.Send(1)
	})

	if len(got) != 1 || got[0] != "old" {
		t.Fatalf("expected snapshot to observe the pre-transaction value 'old', got %v", got)
	}
}

// TestLawOnceFiresAtMostOnce is law L6.
func TestLawOnceFiresAtMostOnce(t *testing.T) {
	ctx := NewSodiumCtx()
	ss := NewStreamSink[int](ctx)
	once := ss.Stream().Once()
	count := 0
	once.Listen(func(int) { count++ })

	for i := 0; i < 5; i++ {
		ss.Send(i)
	}

	if count != 1 {
		t.Fatalf("expected once() to fire exactly once, fired %d times", count)
	}
}

// TestInvariantNodeFlagsResetBetweenTransactions is invariant P1.
func TestInvariantNodeFlagsResetBetweenTransactions(t *testing.T) {
	ctx := NewSodiumCtx()
	ss := NewStreamSink[int](ctx)
	mapped := ss.Stream().Map(func(x int) int { return x })
	mapped.Listen(func(int) {})

	ss.Send(1)

	if mapped.node.isChanged() {
		t.Fatalf("expected node.changed to reset to false once the transaction closes")
	}
	if mapped.node.isVisited() {
		t.Fatalf("expected node.visited to reset to false once the transaction closes")
	}
}

// TestInvariantStreamFiringClearsBetweenTransactions is invariant P2.
func TestInvariantStreamFiringClearsBetweenTransactions(t *testing.T) {
	ctx := NewSodiumCtx()
	ss := NewStreamSink[int](ctx)
	ss.Stream().Listen(func(int) {})

	ss.Send(1)

	if _, ok := ss.Stream().currentValue(); ok {
		t.Fatalf("expected the stream's firing slot to clear once the transaction closes")
	}
}

// TestInvariantCellNextValueClearsAfterCommit is invariant P3.
func TestInvariantCellNextValueClearsAfterCommit(t *testing.T) {
	ctx := NewSodiumCtx()
	cs := NewCellSink(ctx, 0)
	c := cs.Cell()
	c.Listen(func(int) {})

	cs.Send(1)

	c.mu.Lock()
	hasNext := c.hasNext
	c.mu.Unlock()
	if hasNext {
		t.Fatalf("expected the cell's pending-value slot to clear once committed")
	}
}
