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

// Package dictionary interns attribute names, attribute values, and
// patient GUIDs into dense positional integer ids. Ids are implied by
// position in the exported arrays: id i is always arr[i], both on export
// and on re-import (§4.1).
package dictionary

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/iliasaz/rwdqueryservice/rwderrors"
)

// AttrID identifies an attribute name (e.g. "gender", "conditionCode").
type AttrID int32

// ValueID identifies a value within one attribute's value table.
type ValueID int32

// PersonID identifies a patient, dense and positional (§3 Data Model).
type PersonID uint32

// Dictionary interns three independent namespaces with positional integer
// ids. Allocation is monotonic; there are no deletions (§4.1).
//
// Safe for concurrent use: allocation methods take the write lock,
// lookups take the read lock. After a PeopleIndex built against this
// Dictionary is sealed, callers are expected to stop allocating and the
// Dictionary behaves as a read-mostly shared structure (§5).
type Dictionary struct {
	mu sync.RWMutex

	attrNames []string
	attrIndex map[string]AttrID

	valueTables []([]string)
	valueIndex  []map[string]ValueID
	valueOrder  []*btree.BTreeG[string] // sorted values per attribute, for prefix scans

	personGUIDs []string
	personIndex map[string]PersonID
}

func stringLess(a, b string) bool { return a < b }

// New returns an empty Dictionary.
func New() *Dictionary {
	return &Dictionary{
		attrIndex:   make(map[string]AttrID),
		personIndex: make(map[string]PersonID),
	}
}

// AttrID returns the id for name, allocating a new one (and an empty
// value table for it) if name has not been seen before. Allocation never
// fails.
func (d *Dictionary) AttrID(name string) AttrID {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.attrIndex[name]; ok {
		return id
	}
	id := AttrID(len(d.attrNames))
	d.attrNames = append(d.attrNames, name)
	d.attrIndex[name] = id
	d.valueTables = append(d.valueTables, nil)
	d.valueIndex = append(d.valueIndex, make(map[string]ValueID))
	d.valueOrder = append(d.valueOrder, btree.NewG(32, stringLess))
	return id
}

// LookupAttrID returns the id for name without allocating. The second
// return value is false if name is unknown.
func (d *Dictionary) LookupAttrID(name string) (AttrID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.attrIndex[name]
	return id, ok
}

// AttrName returns the name for aid, or ErrNotFound if aid is out of range.
func (d *Dictionary) AttrName(aid AttrID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if aid < 0 || int(aid) >= len(d.attrNames) {
		return "", fmt.Errorf("attr id %d: %w", aid, rwderrors.ErrNotFound)
	}
	return d.attrNames[aid], nil
}

// ValueID returns the id for value within attribute aid's value table,
// allocating a new one if it hasn't been seen before. Allocation never
// fails except when aid itself is out of range (a caller bug).
func (d *Dictionary) ValueID(aid AttrID, value string) (ValueID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if aid < 0 || int(aid) >= len(d.valueTables) {
		return 0, fmt.Errorf("attr id %d: %w", aid, rwderrors.ErrNotFound)
	}
	if vid, ok := d.valueIndex[aid][value]; ok {
		return vid, nil
	}
	vid := ValueID(len(d.valueTables[aid]))
	d.valueTables[aid] = append(d.valueTables[aid], value)
	d.valueIndex[aid][value] = vid
	d.valueOrder[aid].ReplaceOrInsert(value)
	return vid, nil
}

// LookupValueID returns the id for value within aid's table without
// allocating.
func (d *Dictionary) LookupValueID(aid AttrID, value string) (ValueID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if aid < 0 || int(aid) >= len(d.valueIndex) {
		return 0, false
	}
	vid, ok := d.valueIndex[aid][value]
	return vid, ok
}

// Value returns the string for (aid, vid), or ErrNotFound.
func (d *Dictionary) Value(aid AttrID, vid ValueID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if aid < 0 || int(aid) >= len(d.valueTables) {
		return "", fmt.Errorf("attr id %d: %w", aid, rwderrors.ErrNotFound)
	}
	table := d.valueTables[aid]
	if vid < 0 || int(vid) >= len(table) {
		return "", fmt.Errorf("value id %d for attr %d: %w", vid, aid, rwderrors.ErrNotFound)
	}
	return table[vid], nil
}

// ValueCount returns the number of distinct values interned for aid.
func (d *Dictionary) ValueCount(aid AttrID) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if aid < 0 || int(aid) >= len(d.valueTables) {
		return 0
	}
	return len(d.valueTables[aid])
}

// PrefixValues returns the ids of every value under aid that has the
// given prefix, in ascending string order. An empty prefix matches
// nothing — wildcard "*" alone is disabled per §9 (too expensive to
// expand against an unbounded value table).
func (d *Dictionary) PrefixValues(aid AttrID, prefix string) []ValueID {
	if prefix == "" {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if aid < 0 || int(aid) >= len(d.valueOrder) {
		return nil
	}
	var out []ValueID
	d.valueOrder[aid].AscendGreaterOrEqual(prefix, func(v string) bool {
		if !strings.HasPrefix(v, prefix) {
			return false
		}
		out = append(out, d.valueIndex[aid][v])
		return true
	})
	return out
}

// SearchValues implements the type-ahead search of §4.5: prefix matches
// first (already ascending), then — if includeContains is true —
// substring matches (ascending, excluding anything already matched as a
// prefix match), paginated by limit/offset. limit is clamped to [1,100];
// offset must be >= 0.
func (d *Dictionary) SearchValues(aid AttrID, keyword string, includeContains bool, limit, offset int) ([]string, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if aid < 0 || int(aid) >= len(d.valueTables) {
		return nil, fmt.Errorf("attr id %d: %w", aid, rwderrors.ErrNotFound)
	}
	kw := strings.ToLower(keyword)
	table := d.valueTables[aid]

	seen := make(map[string]struct{})
	var prefixMatches, containsMatches []string
	for _, v := range table {
		lv := strings.ToLower(v)
		if strings.HasPrefix(lv, kw) {
			prefixMatches = append(prefixMatches, v)
			seen[v] = struct{}{}
		}
	}
	sort.Strings(prefixMatches)
	if includeContains {
		for _, v := range table {
			if _, ok := seen[v]; ok {
				continue
			}
			if strings.Contains(strings.ToLower(v), kw) {
				containsMatches = append(containsMatches, v)
			}
		}
		sort.Strings(containsMatches)
	}

	all := append(prefixMatches, containsMatches...)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// PersonID idempotently allocates (or returns the existing) id for guid.
// The first caller to intern a given guid fixes its id.
func (d *Dictionary) PersonID(guid string) PersonID {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.personIndex[guid]; ok {
		return id
	}
	id := PersonID(len(d.personGUIDs))
	d.personGUIDs = append(d.personGUIDs, guid)
	d.personIndex[guid] = id
	return id
}

// LookupPersonID returns the id for guid without allocating.
func (d *Dictionary) LookupPersonID(guid string) (PersonID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.personIndex[guid]
	return id, ok
}

// PersonGUID returns the external guid for pid, or ErrNotFound.
func (d *Dictionary) PersonGUID(pid PersonID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(pid) >= len(d.personGUIDs) {
		return "", fmt.Errorf("person id %d: %w", pid, rwderrors.ErrNotFound)
	}
	return d.personGUIDs[pid], nil
}

// PersonCount returns the number of interned patients.
func (d *Dictionary) PersonCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.personGUIDs)
}

// AttrCount returns the number of interned attribute names.
func (d *Dictionary) AttrCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.attrNames)
}

// Snapshot is the positional export of a Dictionary's full contents
// (exportFullSnapshot in §4.1).
type Snapshot struct {
	AttrNames   []string   `json:"attrNames"`
	ValueTables [][]string `json:"valueTables"`
	PersonGUIDs []string   `json:"personGuids"`
}

// ExportFullSnapshot returns the positional arrays backing the three
// namespaces. The returned slices are copies; mutating them does not
// affect the Dictionary.
func (d *Dictionary) ExportFullSnapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap := Snapshot{
		AttrNames:   append([]string(nil), d.attrNames...),
		ValueTables: make([][]string, len(d.valueTables)),
		PersonGUIDs: append([]string(nil), d.personGUIDs...),
	}
	for i, vt := range d.valueTables {
		snap.ValueTables[i] = append([]string(nil), vt...)
	}
	return snap
}

// ImportFullSnapshot replaces the Dictionary's contents with snap. All ids
// are thereafter implied by position in snap's arrays. Intended for use
// immediately after construction (e.g. by IndexStore.Load); it is not
// safe to call against a Dictionary already in use by live queries.
func (d *Dictionary) ImportFullSnapshot(snap Snapshot) error {
	if len(snap.ValueTables) != len(snap.AttrNames) {
		return fmt.Errorf("snapshot: %d attr names but %d value tables", len(snap.AttrNames), len(snap.ValueTables))
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.attrNames = append([]string(nil), snap.AttrNames...)
	d.attrIndex = make(map[string]AttrID, len(d.attrNames))
	d.valueTables = make([][]string, len(d.attrNames))
	d.valueIndex = make([]map[string]ValueID, len(d.attrNames))
	d.valueOrder = make([]*btree.BTreeG[string], len(d.attrNames))

	for aid, name := range d.attrNames {
		d.attrIndex[name] = AttrID(aid)
		values := append([]string(nil), snap.ValueTables[aid]...)
		d.valueTables[aid] = values
		vidx := make(map[string]ValueID, len(values))
		order := btree.NewG(32, stringLess)
		for vid, v := range values {
			vidx[v] = ValueID(vid)
			order.ReplaceOrInsert(v)
		}
		d.valueIndex[aid] = vidx
		d.valueOrder[aid] = order
	}

	d.personGUIDs = append([]string(nil), snap.PersonGUIDs...)
	d.personIndex = make(map[string]PersonID, len(d.personGUIDs))
	for pid, guid := range d.personGUIDs {
		d.personIndex[guid] = PersonID(pid)
	}
	return nil
}
