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

// Package indexstore implements the .rwdx binary container of §4.4/§6: a
// magic-tagged, sectioned file holding the Dictionary, metadata, and both
// posting maps, memory-mapped on load.
//
// The section-kind enumeration below (Kind, with its String method) is
// modeled on erigon-lib/kv/tables.go's Domain/InvertedIdx pattern: a
// small closed set of named sections, each dispatched to its own
// encoder/decoder, rather than a free-form tag.
package indexstore

import "fmt"

// Magic is the file signature u32 0x52574458 — the ASCII codes of "RWDX"
// read most-significant byte first (§6). Like every header field it is
// written little-endian, so the first four bytes on disk are "XDWR".
const Magic uint32 = 0x52574458

// Version is the only on-disk format version this build knows how to
// read and write.
const Version uint32 = 1

// flagCompressed is bit 0 of the header's flags field: when set, every
// section payload was zstd-compressed before being written, and must be
// decompressed after being read (SPEC_FULL.md "DOMAIN STACK" /
// klauspost/compress). §6 fixes flags=0 as the literal default; a writer
// that never enables compression always emits 0, preserving byte-for-
// byte compatibility with that default.
const flagCompressed uint32 = 1 << 0

// Kind identifies one of the four self-describing sections (§4.4).
type Kind uint32

const (
	KindDict          Kind = 1
	KindMeta          Kind = 2
	KindPostingsValue Kind = 3
	KindPostingsYear  Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindDict:
		return "dict"
	case KindMeta:
		return "meta"
	case KindPostingsValue:
		return "postingsValue"
	case KindPostingsYear:
		return "postingsYear"
	default:
		return fmt.Sprintf("unknown section kind %d", uint32(k))
	}
}

// codec tags for individual posting entries within KindPostingsValue /
// KindPostingsYear sections (§4.4).
const (
	codecArray  = 1
	codecBitmap = 2
)

// header is the fixed 16-byte prefix of an .rwdx file.
type header struct {
	Magic        uint32
	Version      uint32
	Flags        uint32
	SectionCount uint32
}

const headerSize = 16

// directoryEntry is one fixed-width (kind, offset, length) triple
// following the header.
type directoryEntry struct {
	Kind   uint32
	Offset uint64
	Length uint64
}

const directoryEntrySize = 4 + 8 + 8
