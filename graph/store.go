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
	"context"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/tuple"
)

// Strategy selects which redundant key layouts an EdgeStore maintains
// (§4.4 Storage strategies).
type Strategy int

const (
	Adjacency Strategy = iota
	TripleStore
	Hexastore
)

// role names the three edge components an ordering's key is built from,
// in the order they appear in the key.
type role int

const (
	roleFrom role = iota
	roleLabel
	roleTo
)

// ordering is one named key layout: a child-subspace name and the role
// order its key packs components in.
type ordering struct {
	name  string
	roles [3]role
}

// adjacencyOrderings, tripleOrderings, hexastoreOrderings enumerate the
// key layouts each strategy writes (§4.4, §6 on-disk layouts). Hexastore
// is triple-store's three orderings plus the three remaining permutations
// of (from, label, to), giving every possible leading-component scan a
// tight prefix.
var adjacencyOrderings = []ordering{
	{"out", [3]role{roleLabel, roleFrom, roleTo}},
	{"in", [3]role{roleLabel, roleTo, roleFrom}},
}

var tripleOrderings = []ordering{
	{"spo", [3]role{roleFrom, roleLabel, roleTo}},
	{"pos", [3]role{roleLabel, roleTo, roleFrom}},
	{"osp", [3]role{roleTo, roleFrom, roleLabel}},
}

var hexastoreOrderings = []ordering{
	{"spo", [3]role{roleFrom, roleLabel, roleTo}},
	{"pos", [3]role{roleLabel, roleTo, roleFrom}},
	{"osp", [3]role{roleTo, roleFrom, roleLabel}},
	{"sop", [3]role{roleFrom, roleTo, roleLabel}},
	{"pso", [3]role{roleLabel, roleFrom, roleTo}},
	{"ops", [3]role{roleTo, roleLabel, roleFrom}},
}

func orderingsFor(s Strategy) []ordering {
	switch s {
	case Adjacency:
		return adjacencyOrderings
	case TripleStore:
		return tripleOrderings
	case Hexastore:
		return hexastoreOrderings
	default:
		return nil
	}
}

// EdgeStore writes and scans a graph index's edges under root, maintaining
// whichever redundant key layouts strategy calls for (§4.4 Write
// invariant: every write/delete touches every applicable layout
// atomically, in one transaction).
type EdgeStore struct {
	root     tuple.Subspace
	strategy Strategy
}

// NewEdgeStore returns a store rooted at root using strategy.
func NewEdgeStore(root tuple.Subspace, strategy Strategy) *EdgeStore {
	return &EdgeStore{root: root, strategy: strategy}
}

func (s *EdgeStore) orderings() []ordering { return orderingsFor(s.strategy) }

// componentsFor returns e's (from, label, to) indexed by role, so an
// ordering can be packed by simply ranging over its roles.
func componentsFor(e Edge) [3][]byte {
	var c [3][]byte
	c[roleFrom] = e.From
	c[roleLabel] = e.Label
	c[roleTo] = e.To
	return c
}

func (s *EdgeStore) keyFor(o ordering, e Edge) []byte {
	c := componentsFor(e)
	sub := s.root.Child(o.name)
	return sub.Pack(c[o.roles[0]], c[o.roles[1]], c[o.roles[2]])
}

// IndexKeys returns every key layout e occupies, for debugging and range
// pre-computation (§4.3 indexKeys).
func (s *EdgeStore) IndexKeys(e Edge) [][]byte {
	orderings := s.orderings()
	keys := make([][]byte, 0, len(orderings))
	for _, o := range orderings {
		keys = append(keys, s.keyFor(o, e))
	}
	return keys
}

// Write stores e under every applicable layout in one transaction (§4.4).
func (s *EdgeStore) Write(ctx context.Context, tx kv.RwTx, e Edge) error {
	for _, o := range s.orderings() {
		if err := tx.Set(ctx, s.keyFor(o, e), e.Value); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes e from every applicable layout in one transaction (§4.4).
func (s *EdgeStore) Delete(ctx context.Context, tx kv.RwTx, e Edge) error {
	for _, o := range s.orderings() {
		if err := tx.Clear(ctx, s.keyFor(o, e)); err != nil {
			return err
		}
	}
	return nil
}
