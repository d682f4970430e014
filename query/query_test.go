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

package query_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliasaz/rwdqueryservice/dictionary"
	"github.com/iliasaz/rwdqueryservice/peopleindex"
	"github.com/iliasaz/rwdqueryservice/query"
)

// fixture builds a small, deterministic cohort: 4 patients with gender,
// race, and a conditionCode event spread across a couple of months.
func fixture(t *testing.T) (*dictionary.Dictionary, *peopleindex.PeopleIndex) {
	t.Helper()
	dict := dictionary.New()
	gender := dict.AttrID("gender")
	race := dict.AttrID("race")
	condition := dict.AttrID("conditionCode")

	m, _ := dict.ValueID(gender, "M")
	f, _ := dict.ValueID(gender, "F")
	asian, _ := dict.ValueID(race, "Asian")
	white, _ := dict.ValueID(race, "White")
	e11, _ := dict.ValueID(condition, "E11.9")
	e10, _ := dict.ValueID(condition, "E10.9")
	i10, _ := dict.ValueID(condition, "I10")

	p0 := dict.PersonID("p0")
	p1 := dict.PersonID("p1")
	p2 := dict.PersonID("p2")
	p3 := dict.PersonID("p3")

	idx := peopleindex.New(nil)
	require.NoError(t, idx.BeginIngest(4))
	require.NoError(t, idx.IngestBatch(
		[]peopleindex.ValueTuple{
			{Attr: int32(gender), Val: int32(m), Person: p0},
			{Attr: int32(gender), Val: int32(m), Person: p1},
			{Attr: int32(gender), Val: int32(f), Person: p2},
			{Attr: int32(gender), Val: int32(f), Person: p3},
			{Attr: int32(race), Val: int32(asian), Person: p0},
			{Attr: int32(race), Val: int32(asian), Person: p2},
			{Attr: int32(race), Val: int32(white), Person: p1},
			{Attr: int32(race), Val: int32(white), Person: p3},
		},
		[]peopleindex.EventTuple{
			{Attr: int32(condition), Val: int32(e11), YYYYMM: 202101, Person: p0},
			{Attr: int32(condition), Val: int32(e10), YYYYMM: 202103, Person: p1},
			{Attr: int32(condition), Val: int32(i10), YYYYMM: 202101, Person: p2},
			{Attr: int32(condition), Val: int32(e11), YYYYMM: 202106, Person: p3},
		},
	))
	require.NoError(t, idx.Seal())
	return dict, idx
}

func TestEvaluateAllOfIntersects(t *testing.T) {
	dict, idx := fixture(t)
	e := query.New(dict, idx, nil)

	resp, err := e.Evaluate(query.Request{
		AllOf:      []query.AttrTerm{{Attr: "gender", Value: "M"}, {Attr: "race", Value: "Asian"}},
		IncludeIDs: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	require.Equal(t, []string{"p0"}, resp.PersonGUIDs)
}

func TestEvaluateAnyOfUnions(t *testing.T) {
	dict, idx := fixture(t)
	e := query.New(dict, idx, nil)

	resp, err := e.Evaluate(query.Request{
		AnyOf: []query.AttrTerm{{Attr: "race", Value: "Asian"}, {Attr: "race", Value: "White"}},
	})
	require.NoError(t, err)
	require.Equal(t, 4, resp.Count)
}

func TestEvaluateExcludeSubtracts(t *testing.T) {
	dict, idx := fixture(t)
	e := query.New(dict, idx, nil)

	resp, err := e.Evaluate(query.Request{
		AllOf:      []query.AttrTerm{{Attr: "gender", Value: "M"}},
		Exclude:    []query.AttrTerm{{Attr: "race", Value: "White"}},
		IncludeIDs: true,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"p0"}, resp.PersonGUIDs)
}

func TestEvaluateNoPositiveTermIsEmpty(t *testing.T) {
	dict, idx := fixture(t)
	e := query.New(dict, idx, nil)

	resp, err := e.Evaluate(query.Request{
		Exclude: []query.AttrTerm{{Attr: "race", Value: "White"}},
	})
	require.NoError(t, err)
	require.Equal(t, 0, resp.Count)
}

func TestEvaluateMissingAllOfTermShortCircuits(t *testing.T) {
	dict, idx := fixture(t)
	e := query.New(dict, idx, nil)

	resp, err := e.Evaluate(query.Request{
		AllOf: []query.AttrTerm{
			{Attr: "gender", Value: "M"},
			{Attr: "gender", Value: "doesNotExist"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0, resp.Count)
}

func TestEvaluateEventWildcardExpansion(t *testing.T) {
	dict, idx := fixture(t)
	e := query.New(dict, idx, nil)

	resp, err := e.Evaluate(query.Request{
		Events: query.EventLists{
			AllOf: []query.EventFilter{{Attr: "conditionCode", Value: "E1*"}},
		},
		IncludeIDs: true,
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"p0", "p1", "p3"}, resp.PersonGUIDs)
}

func TestEvaluateEventMonthRangeExpansion(t *testing.T) {
	dict, idx := fixture(t)
	e := query.New(dict, idx, nil)

	resp, err := e.Evaluate(query.Request{
		Events: query.EventLists{
			AllOf: []query.EventFilter{{Attr: "conditionCode", Value: "E11.9", StartYYYYMM: 202101, EndYYYYMM: 202103}},
		},
		IncludeIDs: true,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"p0"}, resp.PersonGUIDs)

	resp2, err := e.Evaluate(query.Request{
		Events: query.EventLists{
			AllOf: []query.EventFilter{{Attr: "conditionCode", Value: "E11.9", StartYYYYMM: 202105, EndYYYYMM: 202107}},
		},
		IncludeIDs: true,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"p3"}, resp2.PersonGUIDs)
}

func TestEvaluateBareWildcardDisabled(t *testing.T) {
	dict, idx := fixture(t)
	e := query.New(dict, idx, nil)

	resp, err := e.Evaluate(query.Request{
		Events: query.EventLists{
			AllOf: []query.EventFilter{{Attr: "conditionCode", Value: "*"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0, resp.Count)
}

func TestProfileDemographicsAndEvents(t *testing.T) {
	dict, idx := fixture(t)
	e := query.New(dict, idx, nil)

	resp, err := e.Evaluate(query.Request{
		AnyOf: []query.AttrTerm{{Attr: "gender", Value: "M"}, {Attr: "gender", Value: "F"}},
		Events: query.EventLists{
			AllOf: []query.EventFilter{{Attr: "conditionCode", Value: "E1*"}},
		},
		IncludeProfile: true,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Profile)
	require.Len(t, resp.Profile.Demographics["gender"], 2)
}

func TestTypeAheadPrefixThenContains(t *testing.T) {
	dict, idx := fixture(t)
	e := query.New(dict, idx, nil)

	prefixOnly, err := e.TypeAhead("conditionCode", "E1", "prefix", 10, 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"E11.9", "E10.9"}, prefixOnly)

	withContains, err := e.TypeAhead("conditionCode", "10", "contains", 10, 0)
	require.NoError(t, err)
	require.Contains(t, withContains, "I10")
	require.Contains(t, withContains, "E10.9")
}

func TestExplainDOTRenders(t *testing.T) {
	dot := query.ExplainDOT(query.Request{
		AllOf: []query.AttrTerm{{Attr: "gender", Value: "M"}},
		Events: query.EventLists{
			Exclude: []query.EventFilter{{Attr: "conditionCode", Value: "I10"}},
		},
	})
	require.Contains(t, dot, "digraph")
	require.Contains(t, dot, "result")
}
