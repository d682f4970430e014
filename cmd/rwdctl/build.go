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

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/iliasaz/rwdqueryservice/dictionary"
	"github.com/iliasaz/rwdqueryservice/indexstore"
	"github.com/iliasaz/rwdqueryservice/peopleindex"
)

// BuildCmd ingests two CSV fixtures into a new .rwdx index.
//
// demographics.csv columns: personGuid,gender,race,ethnicity,yearOfBirth,state,metro,urban
// events.csv columns:       personGuid,attr,value,yyyymm
type BuildCmd struct {
	Demographics string `arg:"" help:"Path to the demographics CSV fixture."`
	Events       string `arg:"" help:"Path to the events CSV fixture."`
	Out          string `arg:"" help:"Output .rwdx path."`
	ShardCount   int    `default:"16" help:"Ingest shard count; must be a power of two."`
	Compress     bool   `help:"zstd-compress the output sections."`
}

var demographicColumns = []string{"gender", "race", "ethnicity", "yearOfBirth", "state", "metro", "urban"}

func (c *BuildCmd) Run(rc *runContext) error {
	dict := dictionary.New()
	idx := peopleindex.New(rc.log)
	if err := idx.BeginIngest(c.ShardCount); err != nil {
		return fmt.Errorf("rwdctl build: %w", err)
	}

	demoAttrs := make([]dictionary.AttrID, len(demographicColumns))
	for i, name := range demographicColumns {
		demoAttrs[i] = dict.AttrID(name)
	}

	if err := readCSVRows(c.Demographics, func(row []string) error {
		if len(row) != len(demographicColumns)+1 {
			return fmt.Errorf("demographics row has %d columns, want %d", len(row), len(demographicColumns)+1)
		}
		pid := dict.PersonID(row[0])
		var tuples []peopleindex.ValueTuple
		for i, aid := range demoAttrs {
			value := row[i+1]
			if value == "" {
				continue
			}
			vid, err := dict.ValueID(aid, value)
			if err != nil {
				return err
			}
			tuples = append(tuples, peopleindex.ValueTuple{Attr: int32(aid), Val: int32(vid), Person: pid})
		}
		return idx.IngestBatch(tuples, nil)
	}); err != nil {
		return fmt.Errorf("rwdctl build: reading %s: %w", c.Demographics, err)
	}

	if err := readCSVRows(c.Events, func(row []string) error {
		if len(row) != 4 {
			return fmt.Errorf("events row has %d columns, want 4", len(row))
		}
		pid := dict.PersonID(row[0])
		aid := dict.AttrID(row[1])
		vid, err := dict.ValueID(aid, row[2])
		if err != nil {
			return err
		}
		yyyymm, err := strconv.Atoi(row[3])
		if err != nil {
			return fmt.Errorf("parsing yyyymm %q: %w", row[3], err)
		}
		return idx.IngestBatch(nil, []peopleindex.EventTuple{
			{Attr: int32(aid), Val: int32(vid), YYYYMM: int32(yyyymm), Person: pid},
		})
	}); err != nil {
		return fmt.Errorf("rwdctl build: reading %s: %w", c.Events, err)
	}

	if err := idx.Seal(); err != nil {
		return fmt.Errorf("rwdctl build: sealing: %w", err)
	}

	if err := indexstore.Save(c.Out, dict, idx, indexstore.Options{Compress: c.Compress}); err != nil {
		return fmt.Errorf("rwdctl build: saving %s: %w", c.Out, err)
	}
	rc.log.Infow("index built",
		"out", c.Out,
		"persons", dict.PersonCount(),
		"attrs", dict.AttrCount(),
		"valuePostings", idx.ValuePostingCount(),
		"yearPostings", idx.YearPostingCount(),
	)
	return nil
}

func readCSVRows(path string, fn func(row []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	_ = header
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
