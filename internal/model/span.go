package model

// Span is a half-open byte range [Start, End) into one specific source
// string. Spans are invalidated whenever that source changes and must never
// be compared across source versions.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Empty reports whether the span covers no bytes.
func (s Span) Empty() bool { return s.End <= s.Start }

// Contains reports whether the byte offset falls inside the span.
func (s Span) Contains(off int) bool { return off >= s.Start && off < s.End }

// Within reports whether s is fully contained in outer.
func (s Span) Within(outer Span) bool {
	return s.Start >= outer.Start && s.End <= outer.End
}

// Shift returns the span translated by delta bytes.
func (s Span) Shift(delta int) Span {
	return Span{Start: s.Start + delta, End: s.End + delta}
}

// Overlaps reports whether two spans share at least one byte. Empty spans
// (insertion points) never overlap anything; they only touch boundaries.
func (s Span) Overlaps(o Span) bool {
	if s.Empty() || o.Empty() {
		return false
	}

	return s.Start < o.End && o.Start < s.End
}
