package sodium

// tuple2 through tuple4 are internal carriers used to reduce lift3..lift6
// to lift2, mirroring the original
// implementation's nested-tuple composition (cell.rs's lift3..lift6).
type tuple2[A, B any] struct {
	First  A
	Second B
}

type tuple3[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

type tuple4[A, B, C, D any] struct {
	First  A
	Second B
	Third  C
	Fourth D
}
