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

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/fusiondb/fusion-index/kv"
)

// interner assigns dense uint32 ids to opaque node byte strings so BFS
// visited-sets can be kept in a roaring.Bitmap instead of a map[string]
// bool -- cheaper membership tests and unions over the large frontiers a
// multi-hop traversal can produce. It is task-local, never shared or
// persisted (§5 "BFS visited-sets are task-local"; §9 "no cycles form in
// memory" -- ids are a byte-string alias, not an owning reference).
type interner struct {
	ids  map[string]uint32
	keys [][]byte
}

func newInterner() *interner {
	return &interner{ids: make(map[string]uint32)}
}

func (in *interner) idFor(key []byte) uint32 {
	if id, ok := in.ids[string(key)]; ok {
		return id
	}
	id := uint32(len(in.keys))
	in.ids[string(key)] = id
	in.keys = append(in.keys, append([]byte(nil), key...))
	return id
}

func (in *interner) keyFor(id uint32) []byte { return in.keys[id] }

// Traverser runs BFS-family algorithms over an EdgeStore's outgoing edges.
type Traverser struct {
	store *EdgeStore
}

// NewTraverser returns a Traverser over store.
func NewTraverser(store *EdgeStore) *Traverser {
	return &Traverser{store: store}
}

// neighbors returns the outgoing (or, if incoming is true, the
// reachable-backward) neighbors of node along label.
func (t *Traverser) neighbors(ctx context.Context, tx kv.Tx, node, label []byte, incoming bool) ([][]byte, error) {
	var q Query
	if incoming {
		q = Query{Label: label, To: node}
	} else {
		q = Query{From: node, Label: label}
	}
	edges, err := t.store.Scan(ctx, tx, q)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(edges))
	for _, e := range edges {
		if incoming {
			out = append(out, e.From)
		} else {
			out = append(out, e.To)
		}
	}
	return out, nil
}

// BFS returns every node reachable from start by following label-edges
// forward, within maxDepth hops (maxDepth <= 0 means unbounded).
func (t *Traverser) BFS(ctx context.Context, tx kv.Tx, start, label []byte, maxDepth int) ([][]byte, error) {
	in := newInterner()
	visited := roaring.New()
	startID := in.idFor(start)
	visited.Add(startID)

	frontier := []uint32{startID}
	depth := 0
	for len(frontier) > 0 && (maxDepth <= 0 || depth < maxDepth) {
		var next []uint32
		for _, id := range frontier {
			neighbors, err := t.neighbors(ctx, tx, in.keyFor(id), label, false)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				nid := in.idFor(n)
				if !visited.Contains(nid) {
					visited.Add(nid)
					next = append(next, nid)
				}
			}
		}
		frontier = next
		depth++
	}

	out := make([][]byte, 0, visited.GetCardinality())
	it := visited.Iterator()
	for it.HasNext() {
		out = append(out, in.keyFor(it.Next()))
	}
	return out, nil
}

// ShortestPath returns the shortest label-path from start to target, or
// found=false if target is unreachable within maxDepth hops.
func (t *Traverser) ShortestPath(ctx context.Context, tx kv.Tx, start, target, label []byte, maxDepth int) (path [][]byte, found bool, err error) {
	in := newInterner()
	startID := in.idFor(start)
	targetID := in.idFor(target)

	visited := roaring.New()
	visited.Add(startID)
	parent := map[uint32]uint32{}

	frontier := []uint32{startID}
	depth := 0
	for len(frontier) > 0 && (maxDepth <= 0 || depth < maxDepth) {
		var next []uint32
		for _, id := range frontier {
			if id == targetID {
				return reconstructPath(in, parent, startID, targetID), true, nil
			}
			neighbors, nerr := t.neighbors(ctx, tx, in.keyFor(id), label, false)
			if nerr != nil {
				return nil, false, nerr
			}
			for _, n := range neighbors {
				nid := in.idFor(n)
				if !visited.Contains(nid) {
					visited.Add(nid)
					parent[nid] = id
					next = append(next, nid)
				}
			}
		}
		frontier = next
		depth++
	}
	if visited.Contains(targetID) {
		return reconstructPath(in, parent, startID, targetID), true, nil
	}
	return nil, false, nil
}

func reconstructPath(in *interner, parent map[uint32]uint32, start, target uint32) [][]byte {
	var ids []uint32
	cur := target
	for {
		ids = append(ids, cur)
		if cur == start {
			break
		}
		cur = parent[cur]
	}
	path := make([][]byte, len(ids))
	for i, id := range ids {
		path[len(ids)-1-i] = in.keyFor(id)
	}
	return path
}

// BidirectionalBFS reports whether target is reachable from start within
// maxDepth hops, expanding frontiers from both ends in lockstep and
// stopping as soon as they meet. Cheaper than a one-sided BFS when both
// endpoints are known and only reachability (not the path) matters.
func (t *Traverser) BidirectionalBFS(ctx context.Context, tx kv.Tx, start, target, label []byte, maxDepth int) (bool, error) {
	if string(start) == string(target) {
		return true, nil
	}
	in := newInterner()
	startID, targetID := in.idFor(start), in.idFor(target)

	forward := map[uint32]bool{startID: true}
	backward := map[uint32]bool{targetID: true}
	forwardFrontier := []uint32{startID}
	backwardFrontier := []uint32{targetID}

	depth := 0
	for len(forwardFrontier) > 0 && len(backwardFrontier) > 0 && (maxDepth <= 0 || depth < maxDepth) {
		var next []uint32
		for _, id := range forwardFrontier {
			neighbors, err := t.neighbors(ctx, tx, in.keyFor(id), label, false)
			if err != nil {
				return false, err
			}
			for _, n := range neighbors {
				nid := in.idFor(n)
				if backward[nid] {
					return true, nil
				}
				if !forward[nid] {
					forward[nid] = true
					next = append(next, nid)
				}
			}
		}
		forwardFrontier = next
		depth++
		if maxDepth > 0 && depth >= maxDepth {
			break
		}

		next = nil
		for _, id := range backwardFrontier {
			neighbors, err := t.neighbors(ctx, tx, in.keyFor(id), label, true)
			if err != nil {
				return false, err
			}
			for _, n := range neighbors {
				nid := in.idFor(n)
				if forward[nid] {
					return true, nil
				}
				if !backward[nid] {
					backward[nid] = true
					next = append(next, nid)
				}
			}
		}
		backwardFrontier = next
		depth++
	}
	return false, nil
}

// VariableLengthPaths returns every node reachable from start by exactly
// minHops..maxHops label-edges (inclusive), the building block for
// variable-length path patterns (e.g. "1 to 3 hops").
func (t *Traverser) VariableLengthPaths(ctx context.Context, tx kv.Tx, start, label []byte, minHops, maxHops int) ([][]byte, error) {
	in := newInterner()
	startID := in.idFor(start)
	frontier := []uint32{startID}
	result := roaring.New()

	for hop := 1; hop <= maxHops; hop++ {
		var next []uint32
		seenThisHop := roaring.New()
		for _, id := range frontier {
			neighbors, err := t.neighbors(ctx, tx, in.keyFor(id), label, false)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				nid := in.idFor(n)
				if !seenThisHop.Contains(nid) {
					seenThisHop.Add(nid)
					next = append(next, nid)
				}
			}
		}
		if hop >= minHops {
			result.Or(seenThisHop)
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	out := make([][]byte, 0, result.GetCardinality())
	it := result.Iterator()
	for it.HasNext() {
		out = append(out, in.keyFor(it.Next()))
	}
	return out, nil
}
