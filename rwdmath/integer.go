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

// Package rwdmath holds small overflow-checked integer helpers shared by
// the indexing and storage layers. Adapted from erigon-lib's
// common/math/integer.go: same SafeAdd/SafeMul/CeilDiv idiom, trimmed to
// the subset this repository's size and offset arithmetic actually needs
// (no hex/decimal JSON marshaling, no big.Int random numbers — those were
// Ethereum-specific and have no caller here).
package rwdmath

import "math/bits"

// SafeAdd returns x+y and reports whether the addition overflowed.
func SafeAdd(x, y uint64) (uint64, bool) {
	sum, carryOut := bits.Add64(x, y, 0)
	return sum, carryOut != 0
}

// SafeMul returns x*y and reports whether the multiplication overflowed.
func SafeMul(x, y uint64) (uint64, bool) {
	hi, lo := bits.Mul64(x, y)
	return lo, hi != 0
}

// CeilDiv returns ceil(x/y), or 0 if y is 0.
func CeilDiv(x, y int) int {
	if y == 0 {
		return 0
	}
	return (x + y - 1) / y
}

// NextPowerOfTwo returns the smallest power of two >= n, or 1 if n <= 1.
// PeopleIndex shard-count validation (§4.3: "shards = 2^k") uses
// IsPowerOfTwo; this function has no caller in the repository.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// IsPowerOfTwo reports whether n is a power of two (n > 0).
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
