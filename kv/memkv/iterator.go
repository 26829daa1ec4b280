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

package memkv

import (
	"bytes"
	"errors"
	"sort"

	"github.com/fusiondb/fusion-index/kv"
)

var errNotWritable = errors.New("memkv: transaction is read-only")

func sortItems(items []item) {
	sort.Slice(items, func(i, j int) bool { return bytes.Compare(items[i].key, items[j].key) < 0 })
}

func reverseItems(items []item) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

type iterator struct {
	items []item
	pos   int
}

func (it *iterator) Next() bool {
	it.pos++
	return it.pos < len(it.items)
}

func (it *iterator) KeyValue() kv.KeyValue {
	cur := it.items[it.pos]
	return kv.KeyValue{Key: cur.key, Value: cur.value}
}

func (it *iterator) Err() error { return nil }
func (it *iterator) Close()     {}
