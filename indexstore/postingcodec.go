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

package indexstore

import (
	"bytes"
	"fmt"

	"github.com/iliasaz/rwdqueryservice/posting"
	"github.com/iliasaz/rwdqueryservice/rwderrors"
)

// encodePosting appends a posting's codec tag and body to buf (§4.4
// "Posting array codec" / "Posting bitmap codec").
func encodePosting(buf *bytes.Buffer, p posting.Posting) error {
	if data, ok, err := posting.Bytes(p); err != nil {
		return err
	} else if ok {
		putVarint(buf, codecBitmap)
		putVarint(buf, uint64(len(data)))
		buf.Write(data)
		return nil
	}

	ids := p.ToSlice()
	putVarint(buf, codecArray)
	putVarint(buf, uint64(len(ids)))
	var prev posting.PersonID
	for i, id := range ids {
		var gap uint64
		if i == 0 {
			gap = uint64(id)
		} else {
			gap = uint64(id - prev)
		}
		putVarint(buf, gap)
		prev = id
	}
	return nil
}

// decodePosting reads one posting entry's codec tag and body starting at
// b[off], returning the decoded Posting and the offset just past it.
func decodePosting(b []byte, off int, universeSize uint32) (posting.Posting, int, error) {
	codec, off, err := readVarint(b, off)
	if err != nil {
		return nil, 0, err
	}
	switch codec {
	case codecArray:
		count, next, err := readVarint(b, off)
		if err != nil {
			return nil, 0, err
		}
		off = next
		ids := make([]posting.PersonID, count)
		var prev posting.PersonID
		for i := uint64(0); i < count; i++ {
			gap, next, err := readVarint(b, off)
			if err != nil {
				return nil, 0, err
			}
			off = next
			id := posting.PersonID(gap)
			if i > 0 {
				id = prev + posting.PersonID(gap)
			}
			ids[i] = id
			prev = id
		}
		return posting.NewArray(ids, universeSize), off, nil
	case codecBitmap:
		n, next, err := readVarint(b, off)
		if err != nil {
			return nil, 0, err
		}
		off = next
		end := off + int(n)
		if end < off || end > len(b) {
			return nil, 0, fmt.Errorf("bitmap posting at offset %d: length %d exceeds buffer: %w", off, n, rwderrors.ErrCorruptFile)
		}
		p, err := posting.NewBitmapFromBytes(b[off:end])
		if err != nil {
			return nil, 0, fmt.Errorf("bitmap posting at offset %d: %w", off, err)
		}
		return p, end, nil
	default:
		return nil, 0, fmt.Errorf("posting codec %d at offset %d: %w", codec, off, rwderrors.ErrCorruptFile)
	}
}
