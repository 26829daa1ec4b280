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
	"fmt"

	"github.com/emicklei/dot"
)

// ExportDOT renders edges as a Graphviz DOT graph, labeled by edge label,
// for inspecting a traversal or pattern-match result while debugging a
// graph query. It is a developer aid, not part of any index's on-disk
// format or query path.
func ExportDOT(edges []Edge) string {
	g := dot.NewGraph(dot.Directed)
	nodes := make(map[string]dot.Node)

	nodeFor := func(id []byte) dot.Node {
		key := string(id)
		if n, ok := nodes[key]; ok {
			return n
		}
		n := g.Node(fmt.Sprintf("n%d", len(nodes))).Label(fmt.Sprintf("%x", id))
		nodes[key] = n
		return n
	}

	for _, e := range edges {
		from := nodeFor(e.From)
		to := nodeFor(e.To)
		g.Edge(from, to).Label(fmt.Sprintf("%x", e.Label))
	}
	return g.String()
}
