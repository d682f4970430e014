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
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/iliasaz/rwdqueryservice/dictionary"
	"github.com/iliasaz/rwdqueryservice/peopleindex"
	"github.com/iliasaz/rwdqueryservice/posting"
)

// profile computes the demographic and event breakdowns of §4.5
// "Cohort profiling" for cohort.
func (e *Engine) profile(req Request, cohort posting.Posting) *Profile {
	cohortBM := posting.AsRoaring(cohort)

	p := &Profile{
		Demographics: make(map[string][]ValueCount, len(demographicAttrs)),
		Events:       make(map[string][]ValueCount),
	}

	for _, attrName := range demographicAttrs {
		aid, ok := e.dict.LookupAttrID(attrName)
		if !ok {
			continue
		}
		var buckets []ValueCount
		n := e.dict.ValueCount(aid)
		for vid := 0; vid < n; vid++ {
			vp, ok := e.idx.ValuePosting(int32(aid), int32(vid))
			if !ok {
				continue
			}
			count := int(cohortBM.AndCardinality(posting.AsRoaring(vp)))
			if count == 0 {
				continue
			}
			name, err := e.dict.Value(aid, dictionary.ValueID(vid))
			if err != nil {
				continue
			}
			buckets = append(buckets, ValueCount{Key: name, Count: count})
		}
		sortValueCountsDesc(buckets)
		if buckets != nil {
			p.Demographics[attrName] = buckets
		}
	}

	codes := dedupAttrVals(e.eventCodes(req.Events.AllOf), e.eventCodes(req.Events.AnyOf))
	byAttr := make(map[int32][]peopleindex.AttrVal)
	var attrOrder []int32
	for _, c := range codes {
		if _, seen := byAttr[c.Attr]; !seen {
			attrOrder = append(attrOrder, c.Attr)
		}
		byAttr[c.Attr] = append(byAttr[c.Attr], c)
	}
	for _, attr := range attrOrder {
		group := byAttr[attr]
		attrName, err := e.dict.AttrName(dictionary.AttrID(attr))
		if err != nil {
			continue
		}
		var buckets []ValueCount
		for _, c := range group {
			vp, ok := e.idx.ValuePosting(c.Attr, c.Val)
			if !ok {
				continue
			}
			count := int(cohortBM.AndCardinality(posting.AsRoaring(vp)))
			if count == 0 {
				continue
			}
			name, err := e.dict.Value(dictionary.AttrID(c.Attr), dictionary.ValueID(c.Val))
			if err != nil {
				continue
			}
			buckets = append(buckets, ValueCount{Key: name, Count: count})
		}
		sortValueCountsDesc(buckets)
		if buckets != nil {
			p.Events[attrName] = buckets
		}
	}

	return p
}

// dedupAttrVals merges attribute/value pairs from multiple lists via a
// set, so the same code filtered by both events.allOf and events.anyOf
// is only profiled once (§4.5 "dedup by (attr, val)";
// deckarep/golang-set).
func dedupAttrVals(lists ...[]peopleindex.AttrVal) []peopleindex.AttrVal {
	set := mapset.NewSet[peopleindex.AttrVal]()
	for _, l := range lists {
		for _, av := range l {
			set.Add(av)
		}
	}
	out := set.ToSlice()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Attr != out[j].Attr {
			return out[i].Attr < out[j].Attr
		}
		return out[i].Val < out[j].Val
	})
	return out
}

func sortValueCountsDesc(vc []ValueCount) {
	sort.Slice(vc, func(i, j int) bool {
		if vc[i].Count != vc[j].Count {
			return vc[i].Count > vc[j].Count
		}
		return vc[i].Key < vc[j].Key
	})
}
