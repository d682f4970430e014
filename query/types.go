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

// Package query implements QueryEngine (§4.5): translating a cohort
// request into postings, evaluating it with the fixed allOf/anyOf/
// exclude order, and profiling the resulting cohort.
package query

// AttrTerm is one {attr, value} demographic term.
type AttrTerm struct {
	Attr  string `json:"attr"`
	Value string `json:"value"`
}

// EventFilter is one event-list entry: an attr/value pair (value may
// end with "*" for prefix expansion) plus an optional inclusive
// yyyymm window. Both bounds are required together; a zero value means
// "absent".
type EventFilter struct {
	Attr        string `json:"attr"`
	Value       string `json:"value"`
	StartYYYYMM int    `json:"startYYYYMM,omitempty"`
	EndYYYYMM   int    `json:"endYYYYMM,omitempty"`
}

// EventLists groups the three event-filter lists, mirroring the
// attribute AllOf/AnyOf/Exclude shape (§4.5).
type EventLists struct {
	AllOf   []EventFilter `json:"allOf,omitempty"`
	AnyOf   []EventFilter `json:"anyOf,omitempty"`
	Exclude []EventFilter `json:"exclude,omitempty"`
}

// Request is the translated QueryEngine input (§6 "Request data
// model").
type Request struct {
	AllOf   []AttrTerm `json:"allOf,omitempty"`
	AnyOf   []AttrTerm `json:"anyOf,omitempty"`
	Exclude []AttrTerm `json:"exclude,omitempty"`
	Events  EventLists `json:"events,omitempty"`

	IncludeIDs     bool `json:"includeIds,omitempty"`
	IncludeProfile bool `json:"includeProfile,omitempty"`
}

// ValueCount is one profile bucket: a value name and the cohort count
// that hold it.
type ValueCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Profile is the optional cohort breakdown of §4.5 "Cohort profiling".
type Profile struct {
	Demographics map[string][]ValueCount `json:"demographics"`
	Events       map[string][]ValueCount `json:"events"`
}

// Response is the QueryEngine output (§4.5 "Output").
type Response struct {
	Count       int      `json:"count"`
	PersonGUIDs []string `json:"personGuids,omitempty"`
	Profile     *Profile `json:"profile,omitempty"`
}

// demographicAttrs is the closed enumeration of §6 "attribute names".
var demographicAttrs = []string{"gender", "race", "ethnicity", "yearOfBirth", "state", "metro", "urban"}

// eventAttrs is the closed enumeration of §6 "event kinds".
var eventAttrs = []string{"conditionCode", "medicationCode", "procedureCode"}
