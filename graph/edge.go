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

// Package graph implements the redundant-key edge store and scanner
// (§4.4), the BFS/shortest-path traverser, and the SPARQL-style pattern
// evaluator (§4.5) over edges stored in a KV subspace.
package graph

// Edge is a directed, labeled triple (from, edge, to) with an optional
// per-edge attribute payload (§3 Graph edge). From, Edge, and To are
// opaque node/label identifiers -- typically tuple-packed application
// values -- compared only as raw bytes by this package.
type Edge struct {
	From, Label, To []byte
	Value           []byte
}

// ErrUnreachable is returned instead of coercing a malformed or
// impossible scan-key shape into a best-effort string, per the decided
// redesign: "the graph scanner falls back to String(describing:) in a few
// extraction paths... a robust implementation should raise a typed error
// rather than silently coerce" (§9 Open Questions).
type ErrUnreachable struct {
	Reason string
}

func (e *ErrUnreachable) Error() string { return "graph: unreachable: " + e.Reason }
