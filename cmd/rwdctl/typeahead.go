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

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/iliasaz/rwdqueryservice/indexstore"
	"github.com/iliasaz/rwdqueryservice/query"
)

// TypeAheadCmd exercises §4.5 "Type-ahead search" against a saved index.
type TypeAheadCmd struct {
	Index   string `arg:"" help:"Path to the .rwdx index file."`
	Attr    string `arg:"" help:"Attribute name (e.g. conditionCode)."`
	Keyword string `arg:"" help:"Search keyword."`
	Mode    string `default:"prefix" enum:"prefix,contains" help:"prefix-only or prefix-then-contains."`
	Limit   int    `default:"20" help:"Max results, clamped to [1,100]."`
	Offset  int    `default:"0" help:"Result offset."`
}

func (c *TypeAheadCmd) Run(rc *runContext) error {
	dict, idx, err := indexstore.Load(c.Index, rc.log, indexstore.Options{})
	if err != nil {
		return fmt.Errorf("rwdctl typeahead: loading %s: %w", c.Index, err)
	}
	engine := query.New(dict, idx, rc.log)

	matches, err := engine.TypeAhead(c.Attr, c.Keyword, c.Mode, c.Limit, c.Offset)
	if err != nil {
		return fmt.Errorf("rwdctl typeahead: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "value"})
	for i, v := range matches {
		t.AppendRow(table.Row{c.Offset + i + 1, v})
	}
	t.Render()
	return nil
}
