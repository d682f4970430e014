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

// Package peopleindex implements the inverted index at the center of the
// system: two maps from composite (attribute, value[, year-month]) keys
// to patient-id Postings, built concurrently via sharded buffers and then
// sealed into an immutable, lock-free-to-query structure (§4.3).
package peopleindex

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/iliasaz/rwdqueryservice/posting"
	"github.com/iliasaz/rwdqueryservice/rwderrors"
	"github.com/iliasaz/rwdqueryservice/rwdmath"
)

// AttrVal is the timeless key: an attribute id and a value id.
type AttrVal struct {
	Attr int32
	Val  int32
}

// AttrValYear is the year-bucketed key: an attribute id, a value id, and
// a yyyymm = year*100 + month.
type AttrValYear struct {
	Attr    int32
	Val     int32
	YYYYMM  int32
}

// yearBase is subtracted from the calendar year before packing into the
// 64-bit shard key (§4.3 "yearDelta = year − 2000").
const yearBase = 2000

// PackValueKey packs a timeless (attr, val) pair into the 64-bit key used
// to pick a shard and to store inside a shard's build buffer:
// (attr<<32) | val.
func PackValueKey(attr, val int32) uint64 {
	return uint64(uint32(attr))<<32 | uint64(uint32(val))
}

// monthIndex folds (year, month) into a single delta-from-epoch count so
// it fits the single "yearDelta" slot of §4.3's packed key formula
// `(yearDelta<<48) | (attr<<32) | val` without truncating month: rather
// than reading "yearDelta" as a calendar-year delta (which would leave
// month unrepresented), this repository reads it as a delta measured in
// whole months since 2000-01, which is what makes the packed key
// losslessly invertible back into (attr, val, yyyymm). See DESIGN.md for
// this resolution of the literal spec formula.
func monthIndex(yyyymm int32) int64 {
	year := int64(yyyymm / 100)
	month := int64(yyyymm % 100)
	return (year-yearBase)*12 + (month - 1)
}

func yyyymmFromMonthIndex(idx int64) int32 {
	year := idx/12 + yearBase
	month := idx%12 + 1
	if month <= 0 {
		month += 12
		year--
	}
	return int32(year*100 + month)
}

// PackYearKey packs (attr, val, yyyymm) into the 64-bit key:
// (monthIndex<<48) | (attr<<32) | val. Lossless for attr ids under 2^16
// (always true here: attr is drawn from a closed enumeration, §6).
func PackYearKey(attr, val, yyyymm int32) uint64 {
	idx := monthIndex(yyyymm)
	return uint64(idx&0xFFFF)<<48 | uint64(uint32(attr))<<32 | uint64(uint32(val))
}

// UnpackYearKey is the inverse of PackYearKey.
func UnpackYearKey(key uint64) (attr, val, yyyymm int32) {
	idx := int64(int16(key >> 48 & 0xFFFF)) // sign-extend: months before 2000-01 are valid
	attr = int32(uint32(key >> 32 & 0xFFFF))
	val = int32(uint32(key & 0xFFFFFFFF))
	yyyymm = yyyymmFromMonthIndex(idx)
	return attr, val, yyyymm
}

// UnpackValueKey is the inverse of PackValueKey.
func UnpackValueKey(key uint64) (attr, val int32) {
	return int32(uint32(key >> 32)), int32(uint32(key))
}

// buildShard is one of 2^k disjoint build-time buckets (§5 "Shard").
// Workers accumulate directly into the shard's maps under its own lock;
// the recommended discipline of accumulating lock-free per-worker before
// a single merge is left to callers via IngestBatch, which batches
// appends by shard before taking any lock.
type buildShard struct {
	mu       sync.Mutex
	valueBuf map[uint64][]posting.PersonID
	yearBuf  map[uint64][]posting.PersonID
}

// PeopleIndex holds the two posting maps plus the sharded build state
// used while they're being constructed (§4.3).
type PeopleIndex struct {
	log *zap.SugaredLogger

	// build-time state; nil once sealed.
	shards    []*buildShard
	shardMask uint64
	maxPerson atomic.Uint32

	universeSize uint32
	sealed       atomic.Bool

	postingsValue map[AttrVal]posting.Posting
	postingsYear  map[AttrValYear]posting.Posting
}

// New returns an empty, unsealed PeopleIndex.
func New(log *zap.SugaredLogger) *PeopleIndex {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &PeopleIndex{log: log}
}

// SetUniverseSizeHint records a pre-ingest estimate of universeSize,
// used by the posting factory to make density-aware representation
// choices during seal even before every AppendValue/AppendYear call has
// been observed (§4.3 "Universe").
func (pi *PeopleIndex) SetUniverseSizeHint(n uint32) {
	for {
		cur := pi.maxPerson.Load()
		if n <= cur {
			return
		}
		if pi.maxPerson.CompareAndSwap(cur, n-1) {
			return
		}
	}
}

// BeginIngest allocates shardCount build buffers (plus one mutex each)
// for both key spaces. shardCount must be a power of two.
func (pi *PeopleIndex) BeginIngest(shardCount int) error {
	if pi.sealed.Load() {
		return rwderrors.ErrSealed
	}
	if !rwdmath.IsPowerOfTwo(shardCount) {
		return fmt.Errorf("peopleindex: shard count %d is not a power of two", shardCount)
	}
	pi.shards = make([]*buildShard, shardCount)
	for i := range pi.shards {
		pi.shards[i] = &buildShard{
			valueBuf: make(map[uint64][]posting.PersonID),
			yearBuf:  make(map[uint64][]posting.PersonID),
		}
	}
	pi.shardMask = uint64(shardCount - 1)
	return nil
}

func (pi *PeopleIndex) shardFor(key uint64) *buildShard {
	return pi.shards[key&pi.shardMask]
}

func (pi *PeopleIndex) trackMax(pid posting.PersonID) {
	for {
		cur := pi.maxPerson.Load()
		if uint32(pid) <= cur {
			return
		}
		if pi.maxPerson.CompareAndSwap(cur, uint32(pid)) {
			return
		}
	}
}

// AppendValue records pid under the timeless key key64 (as produced by
// PackValueKey). Safe for concurrent use by many workers.
func (pi *PeopleIndex) AppendValue(key64 uint64, pid posting.PersonID) error {
	if pi.sealed.Load() {
		return rwderrors.ErrSealed
	}
	pi.trackMax(pid)
	s := pi.shardFor(key64)
	s.mu.Lock()
	s.valueBuf[key64] = append(s.valueBuf[key64], pid)
	s.mu.Unlock()
	return nil
}

// AppendYear records pid under the year-bucketed key key64 (as produced
// by PackYearKey).
func (pi *PeopleIndex) AppendYear(key64 uint64, pid posting.PersonID) error {
	if pi.sealed.Load() {
		return rwderrors.ErrSealed
	}
	pi.trackMax(pid)
	s := pi.shardFor(key64)
	s.mu.Lock()
	s.yearBuf[key64] = append(s.yearBuf[key64], pid)
	s.mu.Unlock()
	return nil
}

// EventTuple is one (attr, val, yyyymm, person) fact to ingest.
type EventTuple struct {
	Attr, Val, YYYYMM int32
	Person            posting.PersonID
}

// ValueTuple is one (attr, val, person) fact to ingest.
type ValueTuple struct {
	Attr, Val int32
	Person    posting.PersonID
}

// IngestBatch accumulates timelessTuples and eventTuples into local
// per-shard buffers before merging each shard once under its own lock —
// the discipline §5 recommends to minimize contention versus appending
// one tuple at a time from many goroutines. Each event tuple is recorded
// under its year key and also under its timeless (attr, val) key, so an
// event code has a value-level posting for window-less queries.
func (pi *PeopleIndex) IngestBatch(timelessTuples []ValueTuple, eventTuples []EventTuple) error {
	if pi.sealed.Load() {
		return rwderrors.ErrSealed
	}
	localValue := make(map[*buildShard]map[uint64][]posting.PersonID)
	localYear := make(map[*buildShard]map[uint64][]posting.PersonID)

	for _, vt := range timelessTuples {
		key := PackValueKey(vt.Attr, vt.Val)
		pi.trackMax(vt.Person)
		s := pi.shardFor(key)
		if localValue[s] == nil {
			localValue[s] = make(map[uint64][]posting.PersonID)
		}
		localValue[s][key] = append(localValue[s][key], vt.Person)
	}
	for _, et := range eventTuples {
		key := PackYearKey(et.Attr, et.Val, et.YYYYMM)
		pi.trackMax(et.Person)
		s := pi.shardFor(key)
		if localYear[s] == nil {
			localYear[s] = make(map[uint64][]posting.PersonID)
		}
		localYear[s][key] = append(localYear[s][key], et.Person)

		vkey := PackValueKey(et.Attr, et.Val)
		vs := pi.shardFor(vkey)
		if localValue[vs] == nil {
			localValue[vs] = make(map[uint64][]posting.PersonID)
		}
		localValue[vs][vkey] = append(localValue[vs][vkey], et.Person)
	}

	for s, m := range localValue {
		s.mu.Lock()
		for k, ids := range m {
			s.valueBuf[k] = append(s.valueBuf[k], ids...)
		}
		s.mu.Unlock()
	}
	for s, m := range localYear {
		s.mu.Lock()
		for k, ids := range m {
			s.yearBuf[k] = append(s.yearBuf[k], ids...)
		}
		s.mu.Unlock()
	}
	return nil
}

// Seal compacts the build buffers into the final, immutable posting
// maps. Each shard is processed independently and in parallel (since a
// key always hashes to exactly one shard, there is no cross-shard key
// collision to reconcile), then a single-threaded publish step installs
// the per-shard results into the final maps. Build buffers are freed
// afterward. Calling Seal twice is a programming error (§3 Lifecycle).
func (pi *PeopleIndex) Seal() error {
	if pi.sealed.Load() {
		return rwderrors.ErrSealed
	}
	pi.universeSize = pi.maxPerson.Load() + 1

	type shardResult struct {
		value map[AttrVal]posting.Posting
		year  map[AttrValYear]posting.Posting
	}
	results := make([]shardResult, len(pi.shards))

	var wg sync.WaitGroup
	for i, s := range pi.shards {
		wg.Add(1)
		go func(i int, s *buildShard) {
			defer wg.Done()
			vr := make(map[AttrVal]posting.Posting, len(s.valueBuf))
			for key, ids := range s.valueBuf {
				attr, val := UnpackValueKey(key)
				vr[AttrVal{Attr: attr, Val: val}] = sealBucket(ids, pi.universeSize)
			}
			yr := make(map[AttrValYear]posting.Posting, len(s.yearBuf))
			for key, ids := range s.yearBuf {
				attr, val, yyyymm := UnpackYearKey(key)
				yr[AttrValYear{Attr: attr, Val: val, YYYYMM: yyyymm}] = sealBucket(ids, pi.universeSize)
			}
			results[i] = shardResult{value: vr, year: yr}
		}(i, s)
	}
	wg.Wait()

	pi.postingsValue = make(map[AttrVal]posting.Posting)
	pi.postingsYear = make(map[AttrValYear]posting.Posting)
	for _, r := range results {
		for k, v := range r.value {
			pi.postingsValue[k] = v
		}
		for k, v := range r.year {
			pi.postingsYear[k] = v
		}
	}

	pi.shards = nil
	pi.sealed.Store(true)
	pi.log.Infow("peopleindex sealed",
		"universeSize", pi.universeSize,
		"valuePostings", len(pi.postingsValue),
		"yearPostings", len(pi.postingsYear),
	)
	return nil
}

func sealBucket(ids []posting.PersonID, universeSize uint32) posting.Posting {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ids = dedupe(ids)
	return posting.FromSorted(ids, universeSize)
}

func dedupe(ids []posting.PersonID) []posting.PersonID {
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

// Sealed reports whether Seal has completed.
func (pi *PeopleIndex) Sealed() bool { return pi.sealed.Load() }

// UniverseSize returns one past the maximum PersonID ever observed.
func (pi *PeopleIndex) UniverseSize() uint32 { return pi.universeSize }

// ValuePosting returns the posting for (attr, val), if any.
func (pi *PeopleIndex) ValuePosting(attr, val int32) (posting.Posting, bool) {
	p, ok := pi.postingsValue[AttrVal{Attr: attr, Val: val}]
	return p, ok
}

// YearPosting returns the posting for (attr, val, yyyymm), if any.
func (pi *PeopleIndex) YearPosting(attr, val, yyyymm int32) (posting.Posting, bool) {
	p, ok := pi.postingsYear[AttrValYear{Attr: attr, Val: val, YYYYMM: yyyymm}]
	return p, ok
}

// EnumerateValuePostings calls fn for every (key, posting) pair in the
// timeless map, stopping early if fn returns false. Used by save and by
// profiling.
func (pi *PeopleIndex) EnumerateValuePostings(fn func(AttrVal, posting.Posting) bool) {
	for k, v := range pi.postingsValue {
		if !fn(k, v) {
			return
		}
	}
}

// EnumerateYearPostings calls fn for every (key, posting) pair in the
// year-bucketed map.
func (pi *PeopleIndex) EnumerateYearPostings(fn func(AttrValYear, posting.Posting) bool) {
	for k, v := range pi.postingsYear {
		if !fn(k, v) {
			return
		}
	}
}

// LoadSealed installs value/year maps decoded by IndexStore and marks
// the PeopleIndex sealed directly, without going through ingest/Seal
// (§4.4 "After all sections are decoded, mark the PeopleIndex sealed").
func (pi *PeopleIndex) LoadSealed(universeSize uint32, value map[AttrVal]posting.Posting, year map[AttrValYear]posting.Posting) {
	pi.universeSize = universeSize
	pi.postingsValue = value
	pi.postingsYear = year
	pi.shards = nil
	pi.sealed.Store(true)
}

// ValuePostingCount returns the number of distinct timeless keys.
func (pi *PeopleIndex) ValuePostingCount() int { return len(pi.postingsValue) }

// YearPostingCount returns the number of distinct year-bucketed keys.
func (pi *PeopleIndex) YearPostingCount() int { return len(pi.postingsYear) }
