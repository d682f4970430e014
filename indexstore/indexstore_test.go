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

package indexstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliasaz/rwdqueryservice/dictionary"
	"github.com/iliasaz/rwdqueryservice/indexstore"
	"github.com/iliasaz/rwdqueryservice/peopleindex"
)

func buildFixture(t *testing.T) (*dictionary.Dictionary, *peopleindex.PeopleIndex) {
	t.Helper()
	dict := dictionary.New()
	genderAttr := dict.AttrID("gender")
	raceAttr := dict.AttrID("race")
	conditionAttr := dict.AttrID("conditionCode")

	genderM, err := dict.ValueID(genderAttr, "M")
	require.NoError(t, err)
	genderF, err := dict.ValueID(genderAttr, "F")
	require.NoError(t, err)
	raceAsian, err := dict.ValueID(raceAttr, "Asian")
	require.NoError(t, err)
	diabetes, err := dict.ValueID(conditionAttr, "E11")
	require.NoError(t, err)

	p0 := dict.PersonID("guid-0")
	p1 := dict.PersonID("guid-1")
	p2 := dict.PersonID("guid-2")

	idx := peopleindex.New(nil)
	require.NoError(t, idx.BeginIngest(4))
	require.NoError(t, idx.IngestBatch(
		[]peopleindex.ValueTuple{
			{Attr: int32(genderAttr), Val: int32(genderM), Person: p0},
			{Attr: int32(genderAttr), Val: int32(genderF), Person: p1},
			{Attr: int32(genderAttr), Val: int32(genderM), Person: p2},
			{Attr: int32(raceAttr), Val: int32(raceAsian), Person: p1},
			{Attr: int32(raceAttr), Val: int32(raceAsian), Person: p2},
		},
		[]peopleindex.EventTuple{
			{Attr: int32(conditionAttr), Val: int32(diabetes), YYYYMM: 202103, Person: p0},
			{Attr: int32(conditionAttr), Val: int32(diabetes), YYYYMM: 202104, Person: p2},
		},
	))
	require.NoError(t, idx.Seal())
	return dict, idx
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dict, idx := buildFixture(t)
	path := filepath.Join(t.TempDir(), "cohort.rwdx")

	require.NoError(t, indexstore.Save(path, dict, idx, indexstore.Options{}))

	gotDict, gotIdx, err := indexstore.Load(path, nil, indexstore.Options{})
	require.NoError(t, err)

	require.Equal(t, dict.ExportFullSnapshot(), gotDict.ExportFullSnapshot())
	require.Equal(t, idx.UniverseSize(), gotIdx.UniverseSize())
	require.Equal(t, idx.ValuePostingCount(), gotIdx.ValuePostingCount())
	require.Equal(t, idx.YearPostingCount(), gotIdx.YearPostingCount())

	genderAttr, ok := gotDict.LookupAttrID("gender")
	require.True(t, ok)
	genderM, ok := gotDict.LookupValueID(genderAttr, "M")
	require.True(t, ok)

	want, ok := idx.ValuePosting(int32(genderAttr), int32(genderM))
	require.True(t, ok)
	got, ok := gotIdx.ValuePosting(int32(genderAttr), int32(genderM))
	require.True(t, ok)
	require.Equal(t, want.ToSlice(), got.ToSlice())
}

func TestSaveLoadRoundTripCompressed(t *testing.T) {
	dict, idx := buildFixture(t)
	path := filepath.Join(t.TempDir(), "cohort-compressed.rwdx")

	require.NoError(t, indexstore.Save(path, dict, idx, indexstore.Options{Compress: true}))

	gotDict, gotIdx, err := indexstore.Load(path, nil, indexstore.Options{})
	require.NoError(t, err)
	require.Equal(t, dict.PersonCount(), gotDict.PersonCount())
	require.Equal(t, idx.ValuePostingCount(), gotIdx.ValuePostingCount())
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.rwdx")
	require.NoError(t, os.WriteFile(path, make([]byte, 32), 0o644))

	_, _, err := indexstore.Load(path, nil, indexstore.Options{})
	require.Error(t, err)
}

func TestLoadRejectsTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.rwdx")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	_, _, err := indexstore.Load(path, nil, indexstore.Options{})
	require.Error(t, err)
}

func TestSaveRejectsUnsealedIndex(t *testing.T) {
	dict := dictionary.New()
	idx := peopleindex.New(nil)
	require.NoError(t, idx.BeginIngest(2))

	path := filepath.Join(t.TempDir(), "unsealed.rwdx")
	err := indexstore.Save(path, dict, idx, indexstore.Options{})
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.rwdx")
	_, _, err := indexstore.Load(path, nil, indexstore.Options{OpenRetries: 1})
	require.Error(t, err)
}
