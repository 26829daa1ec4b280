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

package graph

import (
	"bytes"
	"context"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/tuple"
)

// Query is a triple pattern with optional (nil) components -- the
// scanner's input (§4.4 "given (from?, edge?, to?)").
type Query struct {
	From, Label, To []byte
}

func componentsFor3(from, label, to []byte) [3][]byte {
	var c [3][]byte
	c[roleFrom] = from
	c[roleLabel] = label
	c[roleTo] = to
	return c
}

// pickOrdering selects, among orderings, the one whose leading roles have
// the longest run of non-nil query components -- "the ordering whose
// longest filled prefix gives the tightest prefix scan" (§4.4 core
// algorithm). Ties are broken by orderings' declared order, which lists
// higher-priority layouts first. It returns the chosen ordering, the
// number of leading roles that matched (the prefix length), and the
// matched component values in role order.
func pickOrdering(orderings []ordering, q Query) (ordering, int, [3][]byte) {
	components := componentsFor3(q.From, q.Label, q.To)

	var best ordering
	bestLen := -1
	for _, o := range orderings {
		n := 0
		for _, r := range o.roles {
			if components[r] == nil {
				break
			}
			n++
		}
		if n > bestLen {
			best = o
			bestLen = n
		}
	}
	return best, bestLen, components
}

// Scan picks the tightest-prefix ordering for q and returns every
// matching edge (§4.4 Scan selection, Batch APIs). Components of q beyond
// the matched prefix are applied as an in-memory post-filter over the
// ordering's (necessarily wider) scan, exactly reproducing the documented
// "full scan with source/target-filter" fallback when no ordering offers
// a label-qualified prefix.
func (s *EdgeStore) Scan(ctx context.Context, tx kv.Tx, q Query) ([]Edge, error) {
	orderings := s.orderings()
	o, prefixLen, components := pickOrdering(orderings, q)

	sub := s.root.Child(o.name)
	var prefixElements []tuple.Element
	for i := 0; i < prefixLen; i++ {
		prefixElements = append(prefixElements, components[o.roles[i]])
	}
	begin := sub.Pack(prefixElements...)
	end := tuple.Strinc(begin)

	it, err := tx.GetRange(ctx, begin, end, kv.RangeOptions{})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Edge
	for it.Next() {
		entry := it.KeyValue()
		e, err := decodeOrderedKey(sub, o, entry)
		if err != nil {
			return nil, err
		}
		if !matches(e, q) {
			continue
		}
		out = append(out, e)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeOrderedKey unpacks an ordering's key back into an Edge, raising
// ErrUnreachable instead of coercing a malformed key into a best-effort
// string (§9 Open Questions, redesign decision).
func decodeOrderedKey(sub tuple.Subspace, o ordering, entry kv.KeyValue) (Edge, error) {
	elems, err := sub.Unpack(entry.Key)
	if err != nil {
		return Edge{}, err
	}
	if len(elems) != 3 {
		return Edge{}, &ErrUnreachable{Reason: "scanned key does not decode to three components"}
	}
	var components [3][]byte
	for i, r := range o.roles {
		b, ok := elems[i].([]byte)
		if !ok {
			return Edge{}, &ErrUnreachable{Reason: "scanned key component is not a byte string"}
		}
		components[r] = b
	}
	return Edge{
		From:  components[roleFrom],
		Label: components[roleLabel],
		To:    components[roleTo],
		Value: entry.Value,
	}, nil
}

func matches(e Edge, q Query) bool {
	if q.From != nil && !bytes.Equal(e.From, q.From) {
		return false
	}
	if q.Label != nil && !bytes.Equal(e.Label, q.Label) {
		return false
	}
	if q.To != nil && !bytes.Equal(e.To, q.To) {
		return false
	}
	return true
}
