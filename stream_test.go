package sodium

import "testing"

func TestStreamSendDeliversToListener(t *testing.T) {
	ctx := NewSodiumCtx()
	sink := NewStreamSink[int](ctx)
	var got []int
	sink.Stream().Listen(func(a int) { got = append(got, a) })

	sink.Send(1)
	sink.Send(2)

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected [1 2], got %v", got)
	}
}

func TestStreamSinkWithoutCoalescerKeepsFirstSendInTransaction(t *testing.T) {
	ctx := NewSodiumCtx()
	sink := NewStreamSink[int](ctx)
	var got []int
	sink.Stream().Listen(func(a int) { got = append(got, a) })

	ctx.Transaction(func() {
		sink.Send(1)
		sink.Send(2)
	})

	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected first-wins firing of [1], got %v", got)
	}
}

func TestStreamSinkWithCoalescerCombinesSimultaneousSends(t *testing.T) {
	ctx := NewSodiumCtx()
	sink := NewStreamSinkWithCoalescer(ctx, func(left, right int) int { return left + right })
	var got []int
	sink.Stream().Listen(func(a int) { got = append(got, a) })

	ctx.Transaction(func() {
		sink.Send(1)
		sink.Send(2)
		sink.Send(3)
	})

	if len(got) != 1 || got[0] != 6 {
		t.Fatalf("expected a single coalesced firing of 6, got %v", got)
	}
}

func TestStreamMap(t *testing.T) {
	ctx := NewSodiumCtx()
	sink := NewStreamSink[int](ctx)
	mapped := Map(sink.Stream(), func(a int) string {
		if a%2 == 0 {
			return "even"
		}
		return "odd"
	})
	var got []string
	mapped.Listen(func(s string) { got = append(got, s) })

	sink.Send(1)
	sink.Send(2)

	if len(got) != 2 || got[0] != "odd" || got[1] != "even" {
		t.Fatalf("unexpected mapped output: %v", got)
	}
}

func TestStreamMapMethodSameType(t *testing.T) {
	ctx := NewSodiumCtx()
	sink := NewStreamSink[int](ctx)
	doubled := sink.Stream().Map(func(a int) int { return a * 2 })
	var got int
	doubled.Listen(func(a int) { got = a })

	sink.Send(21)

	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestStreamFilter(t *testing.T) {
	ctx := NewSodiumCtx()
	sink := NewStreamSink[int](ctx)
	evens := sink.Stream().Filter(func(a int) bool { return a%2 == 0 })
	var got []int
	evens.Listen(func(a int) { got = append(got, a) })

	for i := 1; i <= 4; i++ {
		sink.Send(i)
	}

	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Fatalf("expected [2 4], got %v", got)
	}
}

func TestStreamOrElsePrefersLeftOnSimultaneousFiring(t *testing.T) {
	ctx := NewSodiumCtx()
	left := NewStreamSink[string](ctx)
	right := NewStreamSink[string](ctx)
	merged := left.Stream().OrElse(right.Stream())
	var got []string
	merged.Listen(func(s string) { got = append(got, s) })

	ctx.Transaction(func() {
		left.Send("left")
		right.Send("right")
	})

	if len(got) != 1 || got[0] != "left" {
		t.Fatalf("expected simultaneous firing to resolve to left's value, got %v", got)
	}
}

func TestMergeCoalescesSimultaneousFirings(t *testing.T) {
	ctx := NewSodiumCtx()
	a := NewStreamSink[int](ctx)
	b := NewStreamSink[int](ctx)
	merged := Merge(a.Stream(), b.Stream(), func(l, r int) int { return l + r })
	var got []int
	merged.Listen(func(v int) { got = append(got, v) })

	ctx.Transaction(func() {
		a.Send(10)
		b.Send(5)
	})
	a.Send(1)

	if len(got) != 2 || got[0] != 15 || got[1] != 1 {
		t.Fatalf("expected [15 1], got %v", got)
	}
}

func TestSnapshotReadsCellValueBeforeThisTransactionCommits(t *testing.T) {
	ctx := NewSodiumCtx()
	cellSink := NewCellSink(ctx, 100)
	streamSink := NewStreamSink[string](ctx)
	snap := Snapshot(streamSink.Stream(), cellSink.Cell(), func(s string, n int) int {
		return n
	})
	var got []int
	snap.Listen(func(n int) { got = append(got, n) })

	ctx.Transaction(func() {
		cellSink.Send(200)
		streamSink.Send("fired")
	})

	if len(got) != 1 || got[0] != 100 {
		t.Fatalf("expected snapshot to fire once with the pre-transaction value [100], got %v", got)
	}
}

func TestGateOnlyPassesWhenPredicateTrue(t *testing.T) {
	ctx := NewSodiumCtx()
	predicate := NewCellSink(ctx, true)
	sink := NewStreamSink[int](ctx)
	gated := sink.Stream().Gate(predicate.Cell())
	var got []int
	gated.Listen(func(a int) { got = append(got, a) })

	sink.Send(1)
	predicate.Send(false)
	sink.Send(2)
	predicate.Send(true)
	sink.Send(3)

	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("expected [1 3], got %v", got)
	}
}

func TestHoldStartsAtInitialAndUpdatesAfterFiring(t *testing.T) {
	ctx := NewSodiumCtx()
	sink := NewStreamSink[int](ctx)
	c := sink.Stream().Hold(0)

	if c.Sample() != 0 {
		t.Fatalf("expected initial sample 0, got %d", c.Sample())
	}
	sink.Send(42)
	if c.Sample() != 42 {
		t.Fatalf("expected sample 42 after send, got %d", c.Sample())
	}
}

func TestOnceOnlyFiresOnFirstEvent(t *testing.T) {
	ctx := NewSodiumCtx()
	sink := NewStreamSink[int](ctx)
	once := sink.Stream().Once()
	var got []int
	once.Listen(func(a int) { got = append(got, a) })

	sink.Send(1)
	sink.Send(2)
	sink.Send(3)

	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected only the first firing to be delivered, got %v", got)
	}
}

func TestDeferDeliversInALaterTransaction(t *testing.T) {
	ctx := NewSodiumCtx()
	sink := NewStreamSink[int](ctx)
	deferred := sink.Stream().Defer()

	var immediate, delayed []int
	sink.Stream().Listen(func(a int) { immediate = append(immediate, a) })
	deferred.Listen(func(a int) { delayed = append(delayed, a) })

	sink.Send(7)

	if len(immediate) != 1 || immediate[0] != 7 {
		t.Fatalf("expected immediate stream to fire with 7, got %v", immediate)
	}
	if len(delayed) != 1 || delayed[0] != 7 {
		t.Fatalf("expected deferred stream to eventually fire with 7, got %v", delayed)
	}
}

func TestCollectLazyFoldsOverFirings(t *testing.T) {
	ctx := NewSodiumCtx()
	sink := NewStreamSink[int](ctx)
	sums := CollectLazy(sink.Stream(), LazyOfValue(0), func(a, state int) (int, int) {
		next := state + a
		return next, next
	})
	var got []int
	sums.Listen(func(v int) { got = append(got, v) })

	sink.Send(1)
	sink.Send(2)
	sink.Send(3)

	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 6 {
		t.Fatalf("expected running sums [1 3 6], got %v", got)
	}
}

func TestAccumLazyHoldsRunningFold(t *testing.T) {
	ctx := NewSodiumCtx()
	sink := NewStreamSink[int](ctx)
	total := AccumLazy(sink.Stream(), LazyOfValue(0), func(a, state int) int { return state + a })

	sink.Send(5)
	sink.Send(10)

	if total.Sample() != 15 {
		t.Fatalf("expected accumulated total 15, got %d", total.Sample())
	}
}
