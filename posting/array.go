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

package posting

import "sort"

// arrayPosting stores a sorted-unique PersonID vector (§4.2 "Array
// representation").
type arrayPosting struct {
	ids          []PersonID
	universeSize uint32
}

func (p *arrayPosting) Count() int { return len(p.ids) }

func (p *arrayPosting) Contains(id PersonID) bool {
	i := sort.Search(len(p.ids), func(i int) bool { return p.ids[i] >= id })
	return i < len(p.ids) && p.ids[i] == id
}

func (p *arrayPosting) ToSlice() []PersonID { return p.ids }

func (p *arrayPosting) Close() { p.ids = nil }

func (p *arrayPosting) Intersect(other Posting) Posting {
	switch o := other.(type) {
	case *arrayPosting:
		return &arrayPosting{ids: intersectArrays(p.ids, o.ids), universeSize: p.universeSize}
	case *bitmapPosting:
		return &arrayPosting{ids: filterByBitmap(p.ids, o.bm, true), universeSize: p.universeSize}
	default:
		return &arrayPosting{ids: intersectArrays(p.ids, other.ToSlice()), universeSize: p.universeSize}
	}
}

func (p *arrayPosting) Union(other Posting) Posting {
	switch o := other.(type) {
	case *arrayPosting:
		merged := unionArrays(p.ids, o.ids)
		return FromSorted(merged, p.universeSize)
	case *bitmapPosting:
		bm := o.bm.Clone()
		for _, id := range p.ids {
			bm.Add(uint32(id))
		}
		bm.RunOptimize()
		return &bitmapPosting{bm: bm}
	default:
		merged := unionArrays(p.ids, other.ToSlice())
		return FromSorted(merged, p.universeSize)
	}
}

func (p *arrayPosting) Subtract(other Posting) Posting {
	switch o := other.(type) {
	case *arrayPosting:
		return &arrayPosting{ids: subtractArrays(p.ids, o.ids), universeSize: p.universeSize}
	case *bitmapPosting:
		return &arrayPosting{ids: filterByBitmap(p.ids, o.bm, false), universeSize: p.universeSize}
	default:
		return &arrayPosting{ids: subtractArrays(p.ids, other.ToSlice()), universeSize: p.universeSize}
	}
}

// filterByBitmap returns the elements of ids that are (wantContains=true)
// or are not (wantContains=false) members of bm. O(len(ids)) regardless
// of bm's cardinality — the cheap path for an array/bitmap mix (§4.2
// "Mixed-backend policy").
func filterByBitmap(ids []PersonID, bm interface{ Contains(uint32) bool }, wantContains bool) []PersonID {
	out := make([]PersonID, 0, len(ids))
	for _, id := range ids {
		if bm.Contains(uint32(id)) == wantContains {
			out = append(out, id)
		}
	}
	return out
}

// gallopThreshold is the size-skew ratio above which intersectArrays
// switches from a linear two-pointer merge to galloping search (§4.2).
const gallopThreshold = 16

// intersectArrays computes the sorted intersection of two sorted-unique
// slices. When one side is at least gallopThreshold times larger than
// the other, it gallops: for each element of the smaller side, it
// exponentially probes the larger side and then binary-searches the
// probed window, giving O(|small| * log(|large|/|small|)) instead of
// O(|small| + |large|).
func intersectArrays(a, b []PersonID) []PersonID {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	if len(large) >= gallopThreshold*len(small) {
		return gallopIntersect(small, large)
	}
	return linearIntersect(a, b)
}

func linearIntersect(a, b []PersonID) []PersonID {
	out := make([]PersonID, 0, minInt(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func gallopIntersect(small, large []PersonID) []PersonID {
	out := make([]PersonID, 0, len(small))
	lo := 0
	for _, v := range small {
		if lo >= len(large) {
			break
		}
		// Exponential probe from lo for the first index with large[idx] >= v.
		step := 1
		hi := lo
		for hi < len(large) && large[hi] < v {
			lo = hi + 1
			hi += step
			step *= 2
		}
		if hi > len(large) {
			hi = len(large)
		}
		// Binary search the probed window [lo, hi) for v.
		idx := lo + sort.Search(hi-lo, func(k int) bool { return large[lo+k] >= v })
		if idx < len(large) && large[idx] == v {
			out = append(out, v)
			lo = idx + 1
		} else {
			lo = idx
		}
	}
	return out
}

func unionArrays(a, b []PersonID) []PersonID {
	out := make([]PersonID, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func subtractArrays(a, b []PersonID) []PersonID {
	out := make([]PersonID, 0, len(a))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			j++
		default:
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
