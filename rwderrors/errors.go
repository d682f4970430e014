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

// Package rwderrors defines the sentinel error kinds shared across the
// cohort query engine, per the error handling design: loaders abort on
// structural errors, while query-term translation failures degrade to
// empty-posting semantics rather than propagating as errors.
package rwderrors

import "errors"

var (
	// ErrBadMagic is returned when an .rwdx file does not start with the
	// expected magic number.
	ErrBadMagic = errors.New("rwdx: bad magic")

	// ErrUnsupportedVersion is returned when an .rwdx file's version field
	// is not one this build knows how to decode.
	ErrUnsupportedVersion = errors.New("rwdx: unsupported version")

	// ErrCorruptFile is returned when an .rwdx file's directory or section
	// payloads are structurally inconsistent (offsets out of range, a
	// section that doesn't end on a varint boundary, and so on).
	ErrCorruptFile = errors.New("rwdx: corrupt file")

	// ErrIO wraps an underlying file I/O failure encountered while loading
	// or saving an .rwdx file.
	ErrIO = errors.New("rwdx: io error")

	// ErrNotFound is returned by Dictionary lookups for a name or id that
	// was never allocated. QueryEngine treats it as "this term contributes
	// no posting", not as a query failure.
	ErrNotFound = errors.New("rwdx: not found")

	// ErrSealed is returned when an ingest method is called against a
	// PeopleIndex that has already been sealed. This is a programming
	// error, not a recoverable runtime condition.
	ErrSealed = errors.New("rwdx: sealed violation")
)
