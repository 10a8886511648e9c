package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupePairs_CanonicalSet(t *testing.T) {
	in := []Pair[int]{{1, 3}, {1, 4}, {3, 1}, {3, 4}, {4, 3}}

	got := DedupePairs(in)

	assert.ElementsMatch(t, []Pair[int]{{1, 3}, {1, 4}, {3, 4}}, got)
}

func TestDedupePairs_Strings(t *testing.T) {
	in := []Pair[string]{{"b", "a"}, {"a", "b"}, {"a", "c"}}

	got := DedupePairs(in)

	assert.Equal(t, []Pair[string]{{"a", "b"}, {"a", "c"}}, got)
}

func TestDedupePairs_Empty(t *testing.T) {
	assert.Empty(t, DedupePairs[int](nil))
}

func TestPermutations(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want int
	}{
		{"None", nil, 0},
		{"One", []int{7}, 0},
		{"Two", []int{1, 2}, 2},
		{"Four", []int{1, 2, 3, 4}, 12},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Permutations(tc.in)
			assert.Len(t, got, tc.want)
			for _, p := range got {
				assert.NotEqual(t, p.A, p.B)
			}
		})
	}
}

func TestDedupePermutations_CountIsNChooseTwo(t *testing.T) {
	for n := 0; n <= 12; n++ {
		ids := make([]int, n)
		for i := range ids {
			ids[i] = i + 1
		}

		got := DedupePairs(Permutations(ids))

		assert.Len(t, got, n*(n-1)/2, "n=%d", n)
		seen := map[Pair[int]]bool{}
		for _, p := range got {
			assert.Less(t, p.A, p.B)
			assert.False(t, seen[p], "duplicate pair %v", p)
			seen[p] = true
		}
	}
}
