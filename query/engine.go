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

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/iliasaz/rwdqueryservice/dictionary"
	"github.com/iliasaz/rwdqueryservice/peopleindex"
	"github.com/iliasaz/rwdqueryservice/posting"
)

// planCacheSize bounds the number of distinct evaluated cohort plans
// kept in Engine's LRU (SPEC_FULL.md DOMAIN STACK: golang-lru/v2).
const planCacheSize = 256

// Engine evaluates Request values against a Dictionary and a sealed
// PeopleIndex (§4.5). Safe for concurrent use once both are sealed/
// loaded (§5 "Query phase").
type Engine struct {
	dict *dictionary.Dictionary
	idx  *peopleindex.PeopleIndex
	log  *zap.SugaredLogger

	planCache *lru.Cache[string, posting.Posting]
}

// New returns an Engine over dict and a sealed idx.
func New(dict *dictionary.Dictionary, idx *peopleindex.PeopleIndex, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cache, err := lru.New[string, posting.Posting](planCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which planCacheSize
		// never is.
		panic(err)
	}
	return &Engine{dict: dict, idx: idx, log: log, planCache: cache}
}

func (e *Engine) universeSize() uint32 { return e.idx.UniverseSize() }

// Evaluate translates and runs req, returning the cohort count plus,
// if requested, the matched GUIDs and a demographic/event profile
// (§4.5 "Output", "Cohort profiling").
func (e *Engine) Evaluate(req Request) (*Response, error) {
	cohort := e.evalCohort(req)

	resp := &Response{Count: cohort.Count()}
	if req.IncludeIDs {
		ids := cohort.ToSlice()
		guids := make([]string, 0, len(ids))
		for _, pid := range ids {
			guid, err := e.dict.PersonGUID(pid)
			if err != nil {
				continue
			}
			guids = append(guids, guid)
		}
		resp.PersonGUIDs = guids
	}
	if req.IncludeProfile {
		resp.Profile = e.profile(req, cohort)
	}
	e.log.Debugw("query evaluated", "count", resp.Count, "includeIds", req.IncludeIDs, "includeProfile", req.IncludeProfile)
	return resp, nil
}

// evalCohort runs the fixed allOf -> anyOf -> exclude evaluation order
// of §4.5, consulting and populating the plan cache by a canonicalized
// key of req's filter lists.
func (e *Engine) evalCohort(req Request) posting.Posting {
	key := planKey(req)
	if cached, ok := e.planCache.Get(key); ok {
		return cached
	}

	allOf := e.collectAllOf(req)
	anyOf := e.collectAnyOf(req)
	exclude := e.collectExclude(req)

	var acc posting.Posting
	if len(allOf) > 0 {
		acc = intersectSortedByCardinality(allOf)
	}
	if len(anyOf) > 0 {
		union := unionAll(anyOf, e.universeSize())
		if acc == nil {
			acc = union
		} else {
			acc = acc.Intersect(union)
		}
	}
	if acc == nil {
		// Rule 4: no positive term produced an accumulator.
		acc = posting.Empty(e.universeSize())
	} else if len(exclude) > 0 {
		neg := unionAll(exclude, e.universeSize())
		acc = acc.Subtract(neg)
	}

	e.planCache.Add(key, acc)
	return acc
}

func (e *Engine) collectAllOf(req Request) []posting.Posting {
	out := make([]posting.Posting, 0, len(req.AllOf)+len(req.Events.AllOf))
	for _, t := range req.AllOf {
		out = append(out, e.resolveAttrTerm(t))
	}
	for _, f := range req.Events.AllOf {
		out = append(out, e.resolveEventFilter(f))
	}
	return out
}

func (e *Engine) collectAnyOf(req Request) []posting.Posting {
	out := make([]posting.Posting, 0, len(req.AnyOf)+len(req.Events.AnyOf))
	for _, t := range req.AnyOf {
		out = append(out, e.resolveAttrTerm(t))
	}
	for _, f := range req.Events.AnyOf {
		out = append(out, e.resolveEventFilter(f))
	}
	return out
}

func (e *Engine) collectExclude(req Request) []posting.Posting {
	out := make([]posting.Posting, 0, len(req.Exclude)+len(req.Events.Exclude))
	for _, t := range req.Exclude {
		out = append(out, e.resolveAttrTerm(t))
	}
	for _, f := range req.Events.Exclude {
		out = append(out, e.resolveEventFilter(f))
	}
	return out
}

// intersectSortedByCardinality sorts postings ascending by cardinality
// and intersects left to right, short-circuiting as soon as the
// accumulator is empty (§4.5 rule 1).
func intersectSortedByCardinality(postings []posting.Posting) posting.Posting {
	sorted := append([]posting.Posting(nil), postings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Count() < sorted[j].Count() })
	acc := sorted[0]
	for _, p := range sorted[1:] {
		if acc.Count() == 0 {
			break
		}
		acc = acc.Intersect(p)
	}
	return acc
}

// unionAll unions postings left to right (§4.5 rule 2/3 "built
// left-to-right").
func unionAll(postings []posting.Posting, universeSize uint32) posting.Posting {
	acc := posting.Empty(universeSize)
	for _, p := range postings {
		acc = acc.Union(p)
	}
	return acc
}
