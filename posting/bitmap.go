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

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// bitmapPosting stores a Roaring compressed bitmap of PersonID (§4.2
// "Bitmap representation"). Cardinality is O(1); intersect/union/andnot
// are native roaring operations.
type bitmapPosting struct {
	bm *roaring.Bitmap
	// universeSize mirrors arrayPosting's field; no constructor in this
	// package sets it and no operation reads it.
	universeSize uint32
}

func newBitmapPostingFromSorted(ids []PersonID) *bitmapPosting {
	bm := roaring.New()
	buf := make([]uint32, len(ids))
	for i, id := range ids {
		buf[i] = uint32(id)
	}
	bm.AddMany(buf)
	bm.RunOptimize()
	return &bitmapPosting{bm: bm}
}

func (p *bitmapPosting) Count() int { return int(p.bm.GetCardinality()) }

func (p *bitmapPosting) Contains(id PersonID) bool { return p.bm.Contains(uint32(id)) }

func (p *bitmapPosting) ToSlice() []PersonID {
	card := p.bm.GetCardinality()
	out := make([]PersonID, 0, card)
	it := p.bm.Iterator()
	for it.HasNext() {
		out = append(out, PersonID(it.Next()))
	}
	return out
}

func (p *bitmapPosting) Close() { p.bm = nil }

func (p *bitmapPosting) Intersect(other Posting) Posting {
	switch o := other.(type) {
	case *bitmapPosting:
		result := roaring.And(p.bm, o.bm)
		return &bitmapPosting{bm: result}
	case *arrayPosting:
		return &arrayPosting{ids: filterByBitmap(o.ids, p.bm, true), universeSize: o.universeSize}
	default:
		return p.Intersect(newBitmapPostingFromSorted(other.ToSlice()))
	}
}

func (p *bitmapPosting) Union(other Posting) Posting {
	switch o := other.(type) {
	case *bitmapPosting:
		result := roaring.Or(p.bm, o.bm)
		return &bitmapPosting{bm: result}
	case *arrayPosting:
		return o.Union(p)
	default:
		return p.Union(newBitmapPostingFromSorted(other.ToSlice()))
	}
}

func (p *bitmapPosting) Subtract(other Posting) Posting {
	switch o := other.(type) {
	case *bitmapPosting:
		result := roaring.AndNot(p.bm, o.bm)
		return &bitmapPosting{bm: result}
	case *arrayPosting:
		bm := p.bm.Clone()
		for _, id := range o.ids {
			bm.Remove(uint32(id))
		}
		bm.RunOptimize()
		return &bitmapPosting{bm: bm}
	default:
		return p.Subtract(newBitmapPostingFromSorted(other.ToSlice()))
	}
}

// Bytes serializes the bitmap using roaring's native container format
// (§4.4 "Posting bitmap codec" body).
func (p *bitmapPosting) Bytes() ([]byte, error) {
	return p.bm.ToBytes()
}

// fromRoaringBytes decodes a roaring-serialized byte slice into a
// bitmapPosting (the inverse of Bytes).
func fromRoaringBytes(b []byte) (*bitmapPosting, error) {
	bm := roaring.New()
	if err := bm.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return &bitmapPosting{bm: bm}, nil
}
