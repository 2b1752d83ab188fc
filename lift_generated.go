package sodium

// Lift3 derives a Cell holding f applied to the three inputs' current
// values, recomputed whenever any of them changes. Implemented by nesting
// Lift2 over an intermediate tuple cell, mirroring the original
// implementation's lift3..lift6 composition.
func Lift3[A, B, C, D any](ca *Cell[A], cb *Cell[B], cc *Cell[C], f func(A, B, C) D) *Cell[D] {
	ab := Lift2(ca, cb, func(a A, b B) tuple2[A, B] { return tuple2[A, B]{a, b} })
	return Lift2(ab, cc, func(t tuple2[A, B], c C) D { return f(t.First, t.Second, c) })
}

// Lift4 derives a Cell holding f applied to four inputs' current values.
func Lift4[A, B, C, D, E any](ca *Cell[A], cb *Cell[B], cc *Cell[C], cd *Cell[D], f func(A, B, C, D) E) *Cell[E] {
	abc := Lift3(ca, cb, cc, func(a A, b B, c C) tuple3[A, B, C] { return tuple3[A, B, C]{a, b, c} })
	return Lift2(abc, cd, func(t tuple3[A, B, C], d D) E { return f(t.First, t.Second, t.Third, d) })
}

// Lift5 derives a Cell holding f applied to five inputs' current values.
func Lift5[A, B, C, D, E, F any](ca *Cell[A], cb *Cell[B], cc *Cell[C], cd *Cell[D], ce *Cell[E], f func(A, B, C, D, E) F) *Cell[F] {
	abcd := Lift4(ca, cb, cc, cd, func(a A, b B, c C, d D) tuple4[A, B, C, D] { return tuple4[A, B, C, D]{a, b, c, d} })
	return Lift2(abcd, ce, func(t tuple4[A, B, C, D], e E) F { return f(t.First, t.Second, t.Third, t.Fourth, e) })
}

// Lift6 derives a Cell holding f applied to six inputs' current values.
func Lift6[A, B, C, D, E, F, G any](ca *Cell[A], cb *Cell[B], cc *Cell[C], cd *Cell[D], ce *Cell[E], cf *Cell[F], f func(A, B, C, D, E, F) G) *Cell[G] {
	abcde := Lift5(ca, cb, cc, cd, ce, func(a A, b B, c C, d D, e E) tuple2[tuple4[A, B, C, D], E] {
		return tuple2[tuple4[A, B, C, D], E]{tuple4[A, B, C, D]{a, b, c, d}, e}
	})
	return Lift2(abcde, cf, func(t tuple2[tuple4[A, B, C, D], E], fv F) G {
		inner := t.First
		return f(inner.First, inner.Second, inner.Third, inner.Fourth, t.Second, fv)
	})
}
