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

// Package posting implements the patient-id set abstraction at the heart
// of the index: an ordered set of PersonID with intersect/union/subtract,
// backed by one of two representations chosen by density (§4.2).
//
// The representation is a flat, exhaustively-matched tagged variant
// (arrayPosting / bitmapPosting implementing the same Posting interface)
// rather than a deeper dispatch hierarchy, per §9's preference for
// inlining and SIMD opportunities in the bitmap path over dynamic
// dispatch depth.
package posting

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/iliasaz/rwdqueryservice/dictionary"
)

// PersonID is re-exported for callers that only import posting.
type PersonID = dictionary.PersonID

// Posting is an ordered set of PersonID.
type Posting interface {
	// Count returns the cardinality of the set.
	Count() int
	// Contains reports whether id is a member.
	Contains(id PersonID) bool
	// ToSlice returns the members as a strictly ascending slice. Callers
	// must not mutate the result in place if they intend to keep using
	// the Posting (bitmap-backed postings return a freshly materialized
	// copy; array-backed postings may return their internal storage).
	ToSlice() []PersonID
	// Intersect, Union and Subtract return a new Posting; neither operand
	// is mutated.
	Intersect(other Posting) Posting
	Union(other Posting) Posting
	Subtract(other Posting) Posting
	// Close releases any resources eagerly. Array postings are plain Go
	// slices with nothing to release; roaring.Bitmap in this
	// implementation is pure Go too, so Close is a best-effort hint
	// (drops the internal reference so the GC can reclaim it sooner)
	// rather than a hard native-resource release.
	Close()
}

const (
	// densityThreshold is the fraction of the universe above which a
	// bitmap representation is chosen (§4.2 "density >= 2%").
	densityThreshold = 0.02
	// cardinalityThreshold is the absolute count above which a bitmap is
	// chosen regardless of density (§4.2 "cardinality >= 4096").
	cardinalityThreshold = 4096
)

// FromSorted is the PostingFactory of §4.2: given a sorted-unique id
// slice and the universe size, it picks the array or bitmap
// representation by the density/cardinality rule, and — for bitmaps —
// runs the run-length optimization pass before returning.
//
// ids must already be sorted ascending with no duplicates; callers that
// cannot guarantee this should use FromUnsorted instead.
func FromSorted(ids []PersonID, universeSize uint32) Posting {
	if useBitmap(len(ids), universeSize) {
		return newBitmapPostingFromSorted(ids)
	}
	cp := make([]PersonID, len(ids))
	copy(cp, ids)
	return &arrayPosting{ids: cp, universeSize: universeSize}
}

// FromUnsorted sorts and dedupes ids in place, then delegates to
// FromSorted. For callers that hold ids in arrival order; PeopleIndex.Seal
// does its own sort and dedupe and calls FromSorted directly.
func FromUnsorted(ids []PersonID, universeSize uint32) Posting {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ids = dedupeSorted(ids)
	return FromSorted(ids, universeSize)
}

func dedupeSorted(ids []PersonID) []PersonID {
	if len(ids) < 2 {
		return ids
	}
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

func useBitmap(cardinality int, universeSize uint32) bool {
	if cardinality >= cardinalityThreshold {
		return true
	}
	if universeSize == 0 {
		return false
	}
	return float64(cardinality)/float64(universeSize) >= densityThreshold
}

// AsRoaring returns a native roaring.Bitmap view of p: the bitmap itself
// if p is already bitmap-backed (no copy), or a freshly built bitmap
// otherwise. Used by profiling (§4.5 "Profiling uses bitmap-level
// intersections for speed") to avoid repeated array<->bitmap conversions
// when the same cohort is intersected against many value postings.
func AsRoaring(p Posting) *roaring.Bitmap {
	if bp, ok := p.(*bitmapPosting); ok {
		return bp.bm
	}
	bm := roaring.New()
	for _, id := range p.ToSlice() {
		bm.Add(uint32(id))
	}
	bm.RunOptimize()
	return bm
}

// Empty returns the empty Posting for a universe of the given size.
func Empty(universeSize uint32) Posting {
	return &arrayPosting{universeSize: universeSize}
}

// NewArray wraps an already sorted-unique id slice as an array-backed
// Posting without running it through the density-based factory
// selection. Used by the IndexStore loader, which must honor the
// per-entry codec tag recorded at save time (§4.4) rather than
// re-deriving a representation.
func NewArray(ids []PersonID, universeSize uint32) Posting {
	return &arrayPosting{ids: ids, universeSize: universeSize}
}

// NewBitmapFromBytes decodes a roaring-serialized byte blob (as produced
// by Bytes) into a bitmap-backed Posting.
func NewBitmapFromBytes(b []byte) (Posting, error) {
	return fromRoaringBytes(b)
}

// Bytes serializes p's native bitmap encoding if p is bitmap-backed, and
// reports ok=false otherwise (the caller should use the array codec
// instead).
func Bytes(p Posting) (data []byte, ok bool, err error) {
	bp, isBitmap := p.(*bitmapPosting)
	if !isBitmap {
		return nil, false, nil
	}
	data, err = bp.Bytes()
	return data, true, err
}

// IsBitmap reports whether p is bitmap-backed. The IndexStore writer
// picks the per-entry codec tag (§4.4: codec=1 array, codec=2 bitmap)
// from the ok result of Bytes rather than from this function.
func IsBitmap(p Posting) bool {
	_, ok := p.(*bitmapPosting)
	return ok
}
