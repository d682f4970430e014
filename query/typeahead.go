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

	"github.com/iliasaz/rwdqueryservice/rwderrors"
)

// TypeAhead implements §4.5 "Type-ahead search": for attrName and
// keyword, prefix matches come first, then (if mode is "contains")
// substring matches, paginated.
func (e *Engine) TypeAhead(attrName, keyword, mode string, limit, offset int) ([]string, error) {
	aid, ok := e.dict.LookupAttrID(attrName)
	if !ok {
		return nil, fmt.Errorf("query: typeahead: attr %q: %w", attrName, rwderrors.ErrNotFound)
	}
	return e.dict.SearchValues(aid, keyword, mode == "contains", limit, offset)
}
