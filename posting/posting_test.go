// Copyright 2026 The rwdqueryservice Authors
// This file is part of rwdqueryservice.
//
// rwdqueryservice is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// rwdqueryservice is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with rwdqueryservice. If not, see <http://www.gnu.org/licenses/>.

package posting_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliasaz/rwdqueryservice/posting"
)

func ids(xs ...uint32) []posting.PersonID {
	out := make([]posting.PersonID, len(xs))
	for i, x := range xs {
		out[i] = posting.PersonID(x)
	}
	return out
}

// small forces the array representation; big lets the caller's universe
// size decide, so a small universe yields a bitmap.
func small(xs ...uint32) posting.Posting { return posting.FromSorted(ids(xs...), 1_000_000) }
func big(universe uint32, xs ...uint32) posting.Posting {
	return posting.FromSorted(ids(xs...), universe)
}

func TestFactorySelectsByDensityAndCardinality(t *testing.T) {
	sparse := posting.FromSorted(ids(1, 2, 3), 1_000_000)
	require.False(t, posting.IsBitmap(sparse))

	// 3% of a 100-element universe crosses the 2% density threshold.
	dense := posting.FromSorted(ids(1, 2, 3), 100)
	require.True(t, posting.IsBitmap(dense))

	large := make([]posting.PersonID, 5000)
	for i := range large {
		large[i] = posting.PersonID(i)
	}
	byCardinality := posting.FromSorted(large, 10_000_000)
	require.True(t, posting.IsBitmap(byCardinality))
}

func TestIntersectCommutativeAndCorrect(t *testing.T) {
	a := small(1, 2, 3, 4, 5)
	b := small(3, 4, 5, 6, 7)

	ab := a.Intersect(b)
	ba := b.Intersect(a)
	require.Equal(t, ab.ToSlice(), ba.ToSlice())
	require.Equal(t, ids(3, 4, 5), ab.ToSlice())
}

func TestUnionCommutativeAndCorrect(t *testing.T) {
	a := small(1, 2, 3)
	b := small(3, 4, 5)
	ab := a.Union(b)
	ba := b.Union(a)
	require.Equal(t, ab.ToSlice(), ba.ToSlice())
	require.Equal(t, ids(1, 2, 3, 4, 5), ab.ToSlice())
}

func TestSubtract(t *testing.T) {
	a := small(1, 2, 3, 4, 5)
	b := small(2, 4)
	require.Equal(t, ids(1, 3, 5), a.Subtract(b).ToSlice())
}

func TestIdempotence(t *testing.T) {
	a := small(1, 2, 3)
	require.Equal(t, a.ToSlice(), a.Intersect(a).ToSlice())
	require.Equal(t, a.ToSlice(), a.Union(a).ToSlice())
	require.Empty(t, a.Subtract(a).ToSlice())
}

func TestEmptyIdentities(t *testing.T) {
	a := small(1, 2, 3)
	empty := posting.Empty(1_000_000)

	require.Empty(t, a.Intersect(empty).ToSlice())
	require.Equal(t, a.ToSlice(), a.Union(empty).ToSlice())
	require.Equal(t, a.ToSlice(), a.Subtract(empty).ToSlice())
	require.Empty(t, empty.Subtract(a).ToSlice())
}

func TestBitmapArrayEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	setA := randomSortedSet(rng, 200, 5000)
	setB := randomSortedSet(rng, 200, 5000)

	arrA := posting.NewArray(append([]posting.PersonID(nil), setA...), 5000)
	arrB := posting.NewArray(append([]posting.PersonID(nil), setB...), 5000)
	bmA := posting.FromSorted(setA, 10) // force bitmap via tiny universe -> high density
	bmB := posting.FromSorted(setB, 10)

	require.True(t, posting.IsBitmap(bmA))

	require.Equal(t, arrA.Intersect(arrB).ToSlice(), bmA.Intersect(bmB).ToSlice())
	require.Equal(t, arrA.Union(arrB).ToSlice(), bmA.Union(bmB).ToSlice())
	require.Equal(t, arrA.Subtract(arrB).ToSlice(), bmA.Subtract(bmB).ToSlice())

	// mixed: array vs bitmap must agree with array vs array.
	require.Equal(t, arrA.Intersect(arrB).ToSlice(), arrA.Intersect(bmB).ToSlice())
	require.Equal(t, arrA.Union(arrB).ToSlice(), arrA.Union(bmB).ToSlice())
	require.Equal(t, arrA.Subtract(arrB).ToSlice(), arrA.Subtract(bmB).ToSlice())
	require.Equal(t, arrA.Intersect(arrB).ToSlice(), bmA.Intersect(arrB).ToSlice())
}

func TestGallopingIntersectAgreesWithLinear(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	// Deliberately skewed sizes (>16x) to exercise the galloping path.
	large := randomSortedSet(rng, 20000, 1_000_000)
	smallSet := randomSortedSet(rng, 50, 1_000_000)

	a := posting.NewArray(append([]posting.PersonID(nil), large...), 1_000_000)
	b := posting.NewArray(append([]posting.PersonID(nil), smallSet...), 1_000_000)

	got := a.Intersect(b).ToSlice()

	want := bruteIntersect(large, smallSet)
	require.Equal(t, want, got)
}

func TestToSliceAscendingAndCardinalityAgrees(t *testing.T) {
	p := posting.FromUnsorted(ids(5, 1, 3, 2, 4), 1_000_000) // FromUnsorted sorts; FromSorted would not
	s := p.ToSlice()
	for i := 1; i < len(s); i++ {
		require.Less(t, s[i-1], s[i])
	}
	require.Equal(t, p.Count(), len(s))
}

func randomSortedSet(rng *rand.Rand, n int, universe int) []posting.PersonID {
	seen := make(map[uint32]struct{}, n)
	for len(seen) < n {
		seen[uint32(rng.Intn(universe))] = struct{}{}
	}
	out := make([]posting.PersonID, 0, n)
	for v := range seen {
		out = append(out, posting.PersonID(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func bruteIntersect(a, b []posting.PersonID) []posting.PersonID {
	set := make(map[posting.PersonID]struct{}, len(b))
	for _, x := range b {
		set[x] = struct{}{}
	}
	var out []posting.PersonID
	for _, x := range a {
		if _, ok := set[x]; ok {
			out = append(out, x)
		}
	}
	return out
}
