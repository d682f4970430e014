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
	"fmt"
	"sort"

	"github.com/emicklei/dot"
	json "github.com/goccy/go-json"
)

// planKey canonicalizes req's filter lists (order-independent: each
// list is sorted before marshaling) into a stable cache key for
// Engine.planCache. Only the fields that affect evaluation are
// included — IncludeIDs/IncludeProfile do not change the cohort.
func planKey(req Request) string {
	canon := struct {
		AllOf, AnyOf, Exclude          []AttrTerm
		EAllOf, EAnyOf, EExclude       []EventFilter
	}{
		AllOf:    sortedAttrTerms(req.AllOf),
		AnyOf:    sortedAttrTerms(req.AnyOf),
		Exclude:  sortedAttrTerms(req.Exclude),
		EAllOf:   sortedEventFilters(req.Events.AllOf),
		EAnyOf:   sortedEventFilters(req.Events.AnyOf),
		EExclude: sortedEventFilters(req.Events.Exclude),
	}
	b, err := json.Marshal(canon)
	if err != nil {
		// Request is a plain data struct; Marshal cannot fail for it.
		return fmt.Sprintf("%+v", canon)
	}
	return string(b)
}

func sortedAttrTerms(in []AttrTerm) []AttrTerm {
	out := append([]AttrTerm(nil), in...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Attr != out[j].Attr {
			return out[i].Attr < out[j].Attr
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func sortedEventFilters(in []EventFilter) []EventFilter {
	out := append([]EventFilter(nil), in...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Attr != b.Attr {
			return a.Attr < b.Attr
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		if a.StartYYYYMM != b.StartYYYYMM {
			return a.StartYYYYMM < b.StartYYYYMM
		}
		return a.EndYYYYMM < b.EndYYYYMM
	})
	return out
}

// ExplainDOT renders req's evaluation plan as Graphviz DOT — the term/
// group structure and the allOf/anyOf/exclude combinators that
// combine them — for debugging, mirroring erigon's own internal use of
// emicklei/dot for graph visualization.
func ExplainDOT(req Request) string {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")

	result := g.Node("result").Attr("shape", "doublecircle")

	addGroup := func(label string, attrTerms []AttrTerm, events []EventFilter, combinator string) {
		if len(attrTerms) == 0 && len(events) == 0 {
			return
		}
		comboNode := g.Node(label).Attr("shape", "box").Attr("label", fmt.Sprintf("%s\n(%s)", label, combinator))
		g.Edge(comboNode, result)
		for _, t := range attrTerms {
			n := g.Node(fmt.Sprintf("%s:%s=%s", label, t.Attr, t.Value))
			g.Edge(n, comboNode)
		}
		for _, f := range events {
			desc := fmt.Sprintf("%s:%s=%s", label, f.Attr, f.Value)
			if f.StartYYYYMM != 0 && f.EndYYYYMM != 0 {
				desc += fmt.Sprintf("[%d-%d]", f.StartYYYYMM, f.EndYYYYMM)
			}
			n := g.Node(desc).Attr("shape", "ellipse")
			g.Edge(n, comboNode)
		}
	}

	addGroup("allOf", req.AllOf, req.Events.AllOf, "AND")
	addGroup("anyOf", req.AnyOf, req.Events.AnyOf, "OR")
	addGroup("exclude", req.Exclude, req.Events.Exclude, "OR+NOT")

	return g.String()
}
