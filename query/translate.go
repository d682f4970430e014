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

package query

import (
	"strings"

	"github.com/iliasaz/rwdqueryservice/dictionary"
	"github.com/iliasaz/rwdqueryservice/peopleindex"
	"github.com/iliasaz/rwdqueryservice/posting"
)

// resolveAttrTerm translates one {attr, value} demographic term into a
// posting (§4.5 "Attribute term"). An unknown attr name or value yields
// the empty posting — "contributes no posting".
func (e *Engine) resolveAttrTerm(t AttrTerm) posting.Posting {
	aid, ok := e.dict.LookupAttrID(t.Attr)
	if !ok {
		return posting.Empty(e.universeSize())
	}
	vid, ok := e.dict.LookupValueID(aid, t.Value)
	if !ok {
		return posting.Empty(e.universeSize())
	}
	p, ok := e.idx.ValuePosting(int32(aid), int32(vid))
	if !ok {
		return posting.Empty(e.universeSize())
	}
	return p
}

// expandMonths returns the inclusive list of yyyymm months from start to
// end, rolling December to January of the next year (§4.5 "Event time
// window"). Returns nil if start > end.
func expandMonths(start, end int) []int32 {
	if start > end {
		return nil
	}
	year, month := start/100, start%100
	endYear, endMonth := end/100, end%100
	var out []int32
	for {
		out = append(out, int32(year*100+month))
		if year == endYear && month == endMonth {
			break
		}
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return out
}

// resolveEventFilter translates one event-list entry into a single
// group posting: every expanded (vid[, month]) posting is OR-ed
// together (§4.5 "Event filter group semantics").
func (e *Engine) resolveEventFilter(f EventFilter) posting.Posting {
	aid, ok := e.dict.LookupAttrID(f.Attr)
	if !ok {
		return posting.Empty(e.universeSize())
	}

	var vids []dictionary.ValueID
	if strings.HasSuffix(f.Value, "*") {
		prefix := strings.TrimSuffix(f.Value, "*")
		if prefix == "" {
			// bare "*" is disabled by policy (§4.5, §9): too expensive to
			// expand against an unbounded value table.
			return posting.Empty(e.universeSize())
		}
		vids = e.dict.PrefixValues(aid, prefix)
	} else if vid, ok := e.dict.LookupValueID(aid, f.Value); ok {
		vids = []dictionary.ValueID{vid}
	}
	if len(vids) == 0 {
		return posting.Empty(e.universeSize())
	}

	months := windowMonths(f)

	group := posting.Empty(e.universeSize())
	for _, vid := range vids {
		if months == nil {
			if p, ok := e.idx.ValuePosting(int32(aid), int32(vid)); ok {
				group = group.Union(p)
			}
			continue
		}
		for _, m := range months {
			if p, ok := e.idx.YearPosting(int32(aid), int32(vid), m); ok {
				group = group.Union(p)
			}
		}
	}
	return group
}

// windowMonths returns the expanded month list for f, or nil if the
// filter is timeless (absent or partial window, §4.5 "Event time
// window").
func windowMonths(f EventFilter) []int32 {
	if f.StartYYYYMM == 0 || f.EndYYYYMM == 0 || f.StartYYYYMM > f.EndYYYYMM {
		return nil
	}
	return expandMonths(f.StartYYYYMM, f.EndYYYYMM)
}

// eventCodes returns the distinct (attr, val) pairs an event filter
// list's values expand to, for profiling's "included codes" set
// (§4.5 "Cohort profiling").
func (e *Engine) eventCodes(filters []EventFilter) []peopleindex.AttrVal {
	var out []peopleindex.AttrVal
	for _, f := range filters {
		aid, ok := e.dict.LookupAttrID(f.Attr)
		if !ok {
			continue
		}
		if strings.HasSuffix(f.Value, "*") {
			prefix := strings.TrimSuffix(f.Value, "*")
			if prefix == "" {
				continue
			}
			for _, vid := range e.dict.PrefixValues(aid, prefix) {
				out = append(out, peopleindex.AttrVal{Attr: int32(aid), Val: int32(vid)})
			}
			continue
		}
		if vid, ok := e.dict.LookupValueID(aid, f.Value); ok {
			out = append(out, peopleindex.AttrVal{Attr: int32(aid), Val: int32(vid)})
		}
	}
	return out
}
