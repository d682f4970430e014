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
	"encoding/binary"
	"fmt"

	"github.com/iliasaz/rwdqueryservice/dictionary"
	"github.com/iliasaz/rwdqueryservice/peopleindex"
	"github.com/iliasaz/rwdqueryservice/posting"
	"github.com/iliasaz/rwdqueryservice/rwderrors"
)

// buildDictSection encodes the Dict section payload (§6 "kind=1 Dict
// payload"): attrCount, then per attribute a name and its value table,
// then a v2-compatible personCount and guid table.
func buildDictSection(snap dictionary.Snapshot) []byte {
	var buf bytes.Buffer
	putUint32(&buf, uint32(len(snap.AttrNames)))
	for i, name := range snap.AttrNames {
		putString(&buf, name)
		values := snap.ValueTables[i]
		putUint32(&buf, uint32(len(values)))
		for _, v := range values {
			putString(&buf, v)
		}
	}
	putUint32(&buf, uint32(len(snap.PersonGUIDs)))
	for _, g := range snap.PersonGUIDs {
		putString(&buf, g)
	}
	return buf.Bytes()
}

// decodeDictSection is the inverse of buildDictSection. personCount /
// the guid table are permitted to be absent for a v1 writer (§6 "present
// in v2-compatible writers; absent permitted for v1") — if the section
// is exhausted right after the attribute tables, PersonGUIDs is left nil.
func decodeDictSection(b []byte) (dictionary.Snapshot, error) {
	var snap dictionary.Snapshot
	off := 0
	attrCount, next, err := readUint32(b, off)
	if err != nil {
		return snap, err
	}
	off = next
	snap.AttrNames = make([]string, attrCount)
	snap.ValueTables = make([][]string, attrCount)
	for i := 0; i < int(attrCount); i++ {
		name, next, err := readString(b, off)
		if err != nil {
			return snap, err
		}
		off = next
		valueCount, next, err := readUint32(b, off)
		if err != nil {
			return snap, err
		}
		off = next
		values := make([]string, valueCount)
		for j := 0; j < int(valueCount); j++ {
			v, next, err := readString(b, off)
			if err != nil {
				return snap, err
			}
			off = next
			values[j] = v
		}
		snap.AttrNames[i] = name
		snap.ValueTables[i] = values
	}
	if off >= len(b) {
		return snap, nil
	}
	personCount, next, err := readUint32(b, off)
	if err != nil {
		return snap, err
	}
	off = next
	snap.PersonGUIDs = make([]string, personCount)
	for i := 0; i < int(personCount); i++ {
		g, next, err := readString(b, off)
		if err != nil {
			return snap, err
		}
		off = next
		snap.PersonGUIDs[i] = g
	}
	return snap, nil
}

// metaPayload mirrors §6 "kind=2 Meta payload".
type metaPayload struct {
	UniverseSize      uint64
	ValuePostingCount uint32
	YearPostingCount  uint32
}

func buildMetaSection(m metaPayload) []byte {
	var buf bytes.Buffer
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], m.UniverseSize)
	buf.Write(tmp[:])
	putUint32(&buf, m.ValuePostingCount)
	putUint32(&buf, m.YearPostingCount)
	return buf.Bytes()
}

func decodeMetaSection(b []byte) (metaPayload, error) {
	var m metaPayload
	if len(b) < 16 {
		return m, fmt.Errorf("meta section: %d bytes, want >= 16: %w", len(b), rwderrors.ErrCorruptFile)
	}
	m.UniverseSize = binary.LittleEndian.Uint64(b[0:8])
	m.ValuePostingCount = binary.LittleEndian.Uint32(b[8:12])
	m.YearPostingCount = binary.LittleEndian.Uint32(b[12:16])
	return m, nil
}

// buildPostingsValueSection encodes §6 "kind=3 PostingsValue payload":
// repeated { attr varint; val varint; codec varint; body } until the
// section is exhausted — there is no leading count; the reader stops
// when it has consumed the section's full byte range (per the
// directory's length).
func buildPostingsValueSection(idx *peopleindex.PeopleIndex) ([]byte, error) {
	var buf bytes.Buffer
	var encErr error
	idx.EnumerateValuePostings(func(k peopleindex.AttrVal, p posting.Posting) bool {
		putVarint(&buf, uint64(uint32(k.Attr)))
		putVarint(&buf, uint64(uint32(k.Val)))
		if err := encodePosting(&buf, p); err != nil {
			encErr = err
			return false
		}
		return true
	})
	if encErr != nil {
		return nil, encErr
	}
	return buf.Bytes(), nil
}

func decodePostingsValueSection(b []byte, universeSize uint32) (map[peopleindex.AttrVal]posting.Posting, error) {
	out := make(map[peopleindex.AttrVal]posting.Posting)
	off := 0
	for off < len(b) {
		attr, next, err := readVarint(b, off)
		if err != nil {
			return nil, err
		}
		off = next
		val, next, err := readVarint(b, off)
		if err != nil {
			return nil, err
		}
		off = next
		p, next, err := decodePosting(b, off, universeSize)
		if err != nil {
			return nil, err
		}
		off = next
		out[peopleindex.AttrVal{Attr: int32(attr), Val: int32(val)}] = p
	}
	return out, nil
}

// buildPostingsYearSection encodes §6 "kind=4 PostingsYear payload".
func buildPostingsYearSection(idx *peopleindex.PeopleIndex) ([]byte, error) {
	var buf bytes.Buffer
	var encErr error
	idx.EnumerateYearPostings(func(k peopleindex.AttrValYear, p posting.Posting) bool {
		putVarint(&buf, uint64(uint32(k.Attr)))
		putVarint(&buf, uint64(uint32(k.Val)))
		putVarint(&buf, uint64(uint32(k.YYYYMM)))
		if err := encodePosting(&buf, p); err != nil {
			encErr = err
			return false
		}
		return true
	})
	if encErr != nil {
		return nil, encErr
	}
	return buf.Bytes(), nil
}

func decodePostingsYearSection(b []byte, universeSize uint32) (map[peopleindex.AttrValYear]posting.Posting, error) {
	out := make(map[peopleindex.AttrValYear]posting.Posting)
	off := 0
	for off < len(b) {
		attr, next, err := readVarint(b, off)
		if err != nil {
			return nil, err
		}
		off = next
		val, next, err := readVarint(b, off)
		if err != nil {
			return nil, err
		}
		off = next
		yyyymm, next, err := readVarint(b, off)
		if err != nil {
			return nil, err
		}
		off = next
		p, next, err := decodePosting(b, off, universeSize)
		if err != nil {
			return nil, err
		}
		off = next
		out[peopleindex.AttrValYear{Attr: int32(attr), Val: int32(val), YYYYMM: int32(yyyymm)}] = p
	}
	return out, nil
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func readUint32(b []byte, off int) (uint32, int, error) {
	if off+4 > len(b) {
		return 0, 0, fmt.Errorf("uint32 at offset %d: %w", off, rwderrors.ErrCorruptFile)
	}
	return binary.LittleEndian.Uint32(b[off : off+4]), off + 4, nil
}
