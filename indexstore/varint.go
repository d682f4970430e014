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

	"github.com/iliasaz/rwdqueryservice/rwderrors"
)

// putVarint appends v to buf using the LEB128 variant fixed by §4.4: each
// byte carries 7 bits of payload, low-endian (least significant group
// first), and the terminal byte has its high bit SET to signal end of
// the sequence — the opposite polarity of standard LEB128, where the
// continuation bit means "more bytes follow".
func putVarint(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			buf.WriteByte(b | 0x80)
			return
		}
		buf.WriteByte(b)
	}
}

// readVarint decodes one varint starting at b[off], returning the value
// and the offset just past it.
func readVarint(b []byte, off int) (uint64, int, error) {
	var v uint64
	var shift uint
	for i := off; i < len(b); i++ {
		cur := b[i]
		v |= uint64(cur&0x7f) << shift
		if cur&0x80 != 0 {
			return v, i + 1, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, fmt.Errorf("varint at offset %d: %w", off, rwderrors.ErrCorruptFile)
		}
	}
	return 0, 0, fmt.Errorf("varint at offset %d: truncated: %w", off, rwderrors.ErrCorruptFile)
}

// putString writes a varint-length-prefixed UTF-8 string.
func putString(buf *bytes.Buffer, s string) {
	putVarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

// readString reads a varint-length-prefixed UTF-8 string starting at
// b[off], returning the string and the offset just past it.
func readString(b []byte, off int) (string, int, error) {
	n, off, err := readVarint(b, off)
	if err != nil {
		return "", 0, err
	}
	end := off + int(n)
	if end < off || end > len(b) {
		return "", 0, fmt.Errorf("string at offset %d: length %d exceeds buffer: %w", off, n, rwderrors.ErrCorruptFile)
	}
	return string(b[off:end]), end, nil
}
