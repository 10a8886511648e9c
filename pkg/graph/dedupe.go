package graph

import (
	"cmp"
)

// Pair is an ordered pair of tokens.
type Pair[T cmp.Ordered] struct {
	A T
	B T
}

// Canonical returns the pair with the smaller token first, so (3,1) and
// (1,3) share one canonical form.
func (p Pair[T]) Canonical() Pair[T] {
	if cmp.Less(p.B, p.A) {
		return Pair[T]{A: p.B, B: p.A}
	}
	return p
}

// Permutations returns every ordered pair of distinct positions in items.
// For n items that is n*(n-1) pairs.
func Permutations[T cmp.Ordered](items []T) []Pair[T] {
	if len(items) < 2 {
		return nil
	}
	out := make([]Pair[T], 0, len(items)*(len(items)-1))
	for i, a := range items {
		for j, b := range items {
			if i == j {
				continue
			}
			out = append(out, Pair[T]{A: a, B: b})
		}
	}
	return out
}

// DedupePairs collapses pairs that are equal up to ordering, e.g.
// [(1,3) (1,4) (3,1) (3,4) (4,3)] -> [(1,3) (1,4) (3,4)].
// Results are canonical and in the order their canonical form was first seen.
func DedupePairs[T cmp.Ordered](pairs []Pair[T]) []Pair[T] {
	seen := make(map[Pair[T]]struct{}, len(pairs))
	out := make([]Pair[T], 0, len(pairs))
	for _, p := range pairs {
		c := p.Canonical()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
