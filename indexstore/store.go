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

// Package indexstore persists a Dictionary and a sealed PeopleIndex to,
// and restores them from, an .rwdx container file (§4.4/§6).
package indexstore

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/edsrzf/mmap-go"
	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/iliasaz/rwdqueryservice/dictionary"
	"github.com/iliasaz/rwdqueryservice/peopleindex"
	"github.com/iliasaz/rwdqueryservice/rwderrors"
)

// Options controls optional behavior of Save/Load that is not fixed by
// the on-disk format itself.
type Options struct {
	// Compress, when true, zstd-compresses every section payload on Save
	// and sets the header's flagCompressed bit (SPEC_FULL.md DOMAIN STACK:
	// klauspost/compress). Load always honors whatever the file's flags
	// say, independent of this field.
	Compress bool

	// LockTimeout bounds how long Save waits to acquire the advisory file
	// lock before giving up. Zero means use a 10s default.
	LockTimeout time.Duration

	// OpenRetries bounds how many times Load retries opening/mapping the
	// file on failure (e.g. a concurrent Save still holding the lock).
	// Zero means use a default of 5 retries (up to 6 attempts in all).
	OpenRetries uint64
}

// Save writes dict and idx (which must be sealed) to path as a single
// .rwdx container: a 16-byte header, a fixed-width section directory,
// then the four section payloads in KindDict, KindMeta,
// KindPostingsValue, KindPostingsYear order (§6).
//
// An advisory exclusive lock (gofrs/flock) is held over the write so two
// concurrent Save calls against the same path cannot interleave; writes
// go to a temporary sibling file and are renamed into place on success,
// so readers never observe a partially written container.
func Save(path string, dict *dictionary.Dictionary, idx *peopleindex.PeopleIndex, opts Options) error {
	if !idx.Sealed() {
		return fmt.Errorf("indexstore: save: peopleindex is not sealed: %w", rwderrors.ErrSealed)
	}

	lockTimeout := opts.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = 10 * time.Second
	}
	lk := flock.New(path + ".lock")
	ctx, cancel := timeoutContext(lockTimeout)
	defer cancel()
	locked, err := lk.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("indexstore: save: acquiring lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("indexstore: save: timed out acquiring lock on %s", path)
	}
	defer lk.Unlock()

	payloads, err := buildPayloads(dict, idx)
	if err != nil {
		return err
	}

	var flags uint32
	if opts.Compress {
		flags |= flagCompressed
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("indexstore: save: creating zstd encoder: %w", err)
		}
		for i, p := range payloads {
			payloads[i].body = enc.EncodeAll(p.body, nil)
		}
		_ = enc.Close()
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("indexstore: save: %w: %w", err, rwderrors.ErrIO)
	}
	if err := writeContainer(f, flags, payloads); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("indexstore: save: closing: %w: %w", err, rwderrors.ErrIO)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("indexstore: save: renaming into place: %w: %w", err, rwderrors.ErrIO)
	}
	return nil
}

type sectionPayload struct {
	kind Kind
	body []byte
}

func buildPayloads(dict *dictionary.Dictionary, idx *peopleindex.PeopleIndex) ([]sectionPayload, error) {
	valueSection, err := buildPostingsValueSection(idx)
	if err != nil {
		return nil, fmt.Errorf("indexstore: save: encoding postingsValue: %w", err)
	}
	yearSection, err := buildPostingsYearSection(idx)
	if err != nil {
		return nil, fmt.Errorf("indexstore: save: encoding postingsYear: %w", err)
	}
	return []sectionPayload{
		{kind: KindDict, body: buildDictSection(dict.ExportFullSnapshot())},
		{kind: KindMeta, body: buildMetaSection(metaPayload{
			UniverseSize:      uint64(idx.UniverseSize()),
			ValuePostingCount: uint32(idx.ValuePostingCount()),
			YearPostingCount:  uint32(idx.YearPostingCount()),
		})},
		{kind: KindPostingsValue, body: valueSection},
		{kind: KindPostingsYear, body: yearSection},
	}, nil
}

func writeContainer(f *os.File, flags uint32, payloads []sectionPayload) error {
	dirSize := len(payloads) * directoryEntrySize
	offset := uint64(headerSize + dirSize)

	entries := make([]directoryEntry, len(payloads))
	for i, p := range payloads {
		entries[i] = directoryEntry{Kind: uint32(p.kind), Offset: offset, Length: uint64(len(p.body))}
		offset += uint64(len(p.body))
	}

	var buf bytes.Buffer
	writeHeader(&buf, header{Magic: Magic, Version: Version, Flags: flags, SectionCount: uint32(len(payloads))})
	for _, e := range entries {
		writeDirectoryEntry(&buf, e)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("indexstore: save: writing header/directory: %w: %w", err, rwderrors.ErrIO)
	}
	for _, p := range payloads {
		if _, err := f.Write(p.body); err != nil {
			return fmt.Errorf("indexstore: save: writing section %s: %w: %w", p.kind, err, rwderrors.ErrIO)
		}
	}
	return nil
}

// Load reads path and returns a Dictionary and a sealed PeopleIndex
// reconstructed from it. The file is opened and memory-mapped
// (edsrzf/mmap-go); transient open failures (e.g. a concurrent Save
// still holding the file) are retried with bounded exponential backoff
// (cenkalti/backoff/v4).
func Load(path string, log *zap.SugaredLogger, opts Options) (*dictionary.Dictionary, *peopleindex.PeopleIndex, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	retries := opts.OpenRetries
	if retries == 0 {
		retries = 5
	}

	var data mmap.MMap
	var file *os.File
	openOnce := func() error {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return backoff.Permanent(fmt.Errorf("indexstore: load: %w: %w", err, rwderrors.ErrIO))
			}
			return fmt.Errorf("indexstore: load: opening %s: %w", path, err)
		}
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			return fmt.Errorf("indexstore: load: mapping %s: %w", path, err)
		}
		file, data = f, m
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries)
	if err := backoff.Retry(openOnce, bo); err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = data.Unmap()
		_ = file.Close()
	}()

	hdr, dirOffset, err := readHeader(data)
	if err != nil {
		return nil, nil, err
	}
	entries, err := readDirectory(data, dirOffset, int(hdr.SectionCount))
	if err != nil {
		return nil, nil, err
	}

	sections := make(map[Kind][]byte, len(entries))
	for _, e := range entries {
		end := e.Offset + e.Length
		if end < e.Offset || end > uint64(len(data)) {
			return nil, nil, fmt.Errorf("indexstore: load: section %d out of range: %w", e.Kind, rwderrors.ErrCorruptFile)
		}
		body := []byte(data[e.Offset:end])
		if hdr.Flags&flagCompressed != 0 {
			dec, err := zstd.NewReader(nil)
			if err != nil {
				return nil, nil, fmt.Errorf("indexstore: load: creating zstd decoder: %w", err)
			}
			body, err = dec.DecodeAll(body, nil)
			dec.Close()
			if err != nil {
				return nil, nil, fmt.Errorf("indexstore: load: decompressing section %d: %w", e.Kind, err)
			}
		}
		sections[Kind(e.Kind)] = body
	}

	dictBody, ok := sections[KindDict]
	if !ok {
		return nil, nil, fmt.Errorf("indexstore: load: missing dict section: %w", rwderrors.ErrCorruptFile)
	}
	snap, err := decodeDictSection(dictBody)
	if err != nil {
		return nil, nil, err
	}
	dict := dictionary.New()
	if err := dict.ImportFullSnapshot(snap); err != nil {
		return nil, nil, fmt.Errorf("indexstore: load: %w: %w", err, rwderrors.ErrCorruptFile)
	}

	metaBody, ok := sections[KindMeta]
	if !ok {
		return nil, nil, fmt.Errorf("indexstore: load: missing meta section: %w", rwderrors.ErrCorruptFile)
	}
	meta, err := decodeMetaSection(metaBody)
	if err != nil {
		return nil, nil, err
	}

	valueMap, err := decodePostingsValueSection(sections[KindPostingsValue], uint32(meta.UniverseSize))
	if err != nil {
		return nil, nil, err
	}
	yearMap, err := decodePostingsYearSection(sections[KindPostingsYear], uint32(meta.UniverseSize))
	if err != nil {
		return nil, nil, err
	}

	idx := peopleindex.New(log)
	idx.LoadSealed(uint32(meta.UniverseSize), valueMap, yearMap)

	log.Infow("indexstore loaded",
		"path", path,
		"persons", dict.PersonCount(),
		"attrs", dict.AttrCount(),
		"valuePostings", len(valueMap),
		"yearPostings", len(yearMap),
	)
	return dict, idx, nil
}

func writeHeader(buf *bytes.Buffer, h header) {
	putRawUint32(buf, h.Magic)
	putRawUint32(buf, h.Version)
	putRawUint32(buf, h.Flags)
	putRawUint32(buf, h.SectionCount)
}

func writeDirectoryEntry(buf *bytes.Buffer, e directoryEntry) {
	putRawUint32(buf, e.Kind)
	putRawUint64(buf, e.Offset)
	putRawUint64(buf, e.Length)
}

func readHeader(data []byte) (header, int, error) {
	if len(data) < headerSize {
		return header{}, 0, fmt.Errorf("indexstore: load: file shorter than header: %w", rwderrors.ErrCorruptFile)
	}
	h := header{
		Magic:        rawUint32(data, 0),
		Version:      rawUint32(data, 4),
		Flags:        rawUint32(data, 8),
		SectionCount: rawUint32(data, 12),
	}
	if h.Magic != Magic {
		return header{}, 0, rwderrors.ErrBadMagic
	}
	if h.Version != Version {
		return header{}, 0, rwderrors.ErrUnsupportedVersion
	}
	return h, headerSize, nil
}

func readDirectory(data []byte, off int, count int) ([]directoryEntry, error) {
	entries := make([]directoryEntry, count)
	for i := 0; i < count; i++ {
		start := off + i*directoryEntrySize
		if start+directoryEntrySize > len(data) {
			return nil, fmt.Errorf("indexstore: load: directory truncated: %w", rwderrors.ErrCorruptFile)
		}
		entries[i] = directoryEntry{
			Kind:   rawUint32(data, start),
			Offset: rawUint64(data, start+4),
			Length: rawUint64(data, start+12),
		}
	}
	return entries, nil
}
