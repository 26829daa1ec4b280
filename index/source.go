// Copyright 2026 The Fusion Authors
// This file is part of Fusion.
//
// Fusion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Fusion is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Fusion. If not, see <http://www.gnu.org/licenses/>.

package index

import (
	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/schema"
)

// ItemSource lets the builder read back the raw items covered by a
// descriptor's item types, for back-fill (§4.2b "a single total range
// derived from the item type's storage prefix"). A descriptor covering
// several item types composes several sources ahead of construction time
// (e.g. a MultiSource), not something this package concerns itself with.
type ItemSource interface {
	// Range returns the half-open byte range covering every stored item
	// this source knows how to decode.
	Range() (begin, end []byte)

	// Decode turns one raw stored entry back into a Record and its
	// primary key tuple.
	Decode(entry kv.KeyValue) (item schema.Record, pk []byte, err error)
}
