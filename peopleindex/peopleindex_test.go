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

package peopleindex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliasaz/rwdqueryservice/peopleindex"
	"github.com/iliasaz/rwdqueryservice/posting"
)

func TestPackUnpackValueKey(t *testing.T) {
	key := peopleindex.PackValueKey(3, 17)
	attr, val := peopleindex.UnpackValueKey(key)
	require.EqualValues(t, 3, attr)
	require.EqualValues(t, 17, val)
}

func TestPackUnpackYearKeyRoundTrips(t *testing.T) {
	cases := []struct{ attr, val, yyyymm int32 }{
		{1, 2, 202104},
		{9, 0, 202001},
		{5, 1234, 199912},
		{2, 7, 203012},
	}
	for _, c := range cases {
		key := peopleindex.PackYearKey(c.attr, c.val, c.yyyymm)
		attr, val, yyyymm := peopleindex.UnpackYearKey(key)
		require.Equal(t, c.attr, attr)
		require.Equal(t, c.val, val)
		require.Equal(t, c.yyyymm, yyyymm)
	}
}

func TestBeginIngestRequiresPowerOfTwo(t *testing.T) {
	pi := peopleindex.New(nil)
	require.Error(t, pi.BeginIngest(3))
	require.NoError(t, pi.BeginIngest(4))
}

func TestIngestAndSealScenario(t *testing.T) {
	// Mirrors §8 scenario 1: three patients, gender and race attributes.
	pi := peopleindex.New(nil)
	require.NoError(t, pi.BeginIngest(4))

	const genderAttr, raceAttr = int32(0), int32(1)
	const genderM, raceAsian = int32(0), int32(0)

	require.NoError(t, pi.AppendValue(peopleindex.PackValueKey(genderAttr, genderM), 0)) // p0
	require.NoError(t, pi.AppendValue(peopleindex.PackValueKey(genderAttr, genderM), 2)) // p2
	require.NoError(t, pi.AppendValue(peopleindex.PackValueKey(raceAttr, raceAsian), 1))  // p1
	require.NoError(t, pi.AppendValue(peopleindex.PackValueKey(raceAttr, raceAsian), 2))  // p2

	require.NoError(t, pi.Seal())
	require.True(t, pi.Sealed())
	require.EqualValues(t, 3, pi.UniverseSize())

	genderPosting, ok := pi.ValuePosting(genderAttr, genderM)
	require.True(t, ok)
	require.Equal(t, []posting.PersonID{0, 2}, genderPosting.ToSlice())

	racePosting, ok := pi.ValuePosting(raceAttr, raceAsian)
	require.True(t, ok)
	require.Equal(t, []posting.PersonID{1, 2}, racePosting.ToSlice())

	cohort := genderPosting.Intersect(racePosting)
	require.Equal(t, 1, cohort.Count())
	require.Equal(t, []posting.PersonID{2}, cohort.ToSlice())
}

func TestIngestAfterSealIsError(t *testing.T) {
	pi := peopleindex.New(nil)
	require.NoError(t, pi.BeginIngest(2))
	require.NoError(t, pi.Seal())

	require.Error(t, pi.AppendValue(peopleindex.PackValueKey(0, 0), 0))
	require.Error(t, pi.BeginIngest(2))
}

func TestYearPostingsAndDedup(t *testing.T) {
	pi := peopleindex.New(nil)
	require.NoError(t, pi.BeginIngest(2))

	const attr, val = int32(0), int32(0)
	key := peopleindex.PackYearKey(attr, val, 202104)
	// Duplicate appends of the same patient must dedupe at seal.
	require.NoError(t, pi.AppendYear(key, 7))
	require.NoError(t, pi.AppendYear(key, 7))
	require.NoError(t, pi.AppendYear(key, 3))

	require.NoError(t, pi.Seal())

	p, ok := pi.YearPosting(attr, val, 202104)
	require.True(t, ok)
	require.Equal(t, []posting.PersonID{3, 7}, p.ToSlice())
}

func TestIngestBatch(t *testing.T) {
	pi := peopleindex.New(nil)
	require.NoError(t, pi.BeginIngest(4))

	require.NoError(t, pi.IngestBatch(
		[]peopleindex.ValueTuple{{Attr: 0, Val: 0, Person: 0}, {Attr: 0, Val: 0, Person: 1}},
		[]peopleindex.EventTuple{{Attr: 1, Val: 0, YYYYMM: 202104, Person: 0}},
	))
	require.NoError(t, pi.Seal())

	vp, ok := pi.ValuePosting(0, 0)
	require.True(t, ok)
	require.Equal(t, []posting.PersonID{0, 1}, vp.ToSlice())

	yp, ok := pi.YearPosting(1, 0, 202104)
	require.True(t, ok)
	require.Equal(t, []posting.PersonID{0}, yp.ToSlice())
}
