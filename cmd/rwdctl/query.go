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
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/iliasaz/rwdqueryservice/indexstore"
	"github.com/iliasaz/rwdqueryservice/query"
)

// QueryCmd loads a saved index and evaluates a JSON request file
// against it, printing the count and (optionally) ids/profile as a
// table (§4.5 "Output").
type QueryCmd struct {
	Index   string `arg:"" help:"Path to the .rwdx index file."`
	Request string `arg:"" help:"Path to a JSON-encoded query.Request."`
	Explain bool   `help:"Print the evaluation plan as Graphviz DOT instead of running it."`
}

func (c *QueryCmd) Run(rc *runContext) error {
	b, err := os.ReadFile(c.Request)
	if err != nil {
		return fmt.Errorf("rwdctl query: reading %s: %w", c.Request, err)
	}
	var req query.Request
	if err := json.Unmarshal(b, &req); err != nil {
		return fmt.Errorf("rwdctl query: decoding %s: %w", c.Request, err)
	}

	if c.Explain {
		fmt.Println(query.ExplainDOT(req))
		return nil
	}

	dict, idx, err := indexstore.Load(c.Index, rc.log, indexstore.Options{})
	if err != nil {
		return fmt.Errorf("rwdctl query: loading %s: %w", c.Index, err)
	}

	engine := query.New(dict, idx, rc.log)
	resp, err := engine.Evaluate(req)
	if err != nil {
		return fmt.Errorf("rwdctl query: evaluating: %w", err)
	}

	fmt.Printf("count: %d\n", resp.Count)
	if len(resp.PersonGUIDs) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "personGuid"})
		for i, guid := range resp.PersonGUIDs {
			t.AppendRow(table.Row{i + 1, guid})
		}
		t.Render()
	}
	if resp.Profile != nil {
		printProfile(resp.Profile)
	}
	return nil
}

func printProfile(p *query.Profile) {
	for _, section := range []struct {
		title string
		data  map[string][]query.ValueCount
	}{
		{"demographics", p.Demographics},
		{"events", p.Events},
	} {
		if len(section.data) == 0 {
			continue
		}
		fmt.Printf("\n%s:\n", section.title)
		for attr, buckets := range section.data {
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetTitle(attr)
			t.AppendHeader(table.Row{"value", "count"})
			for _, vc := range buckets {
				t.AppendRow(table.Row{vc.Key, vc.Count})
			}
			t.Render()
		}
	}
}
