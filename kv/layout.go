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

package kv

// SchemaVersion is bumped whenever one of the top-level prefixes below
// changes meaning. Readers that persist data across restarts should refuse
// to open a store written by an incompatible major version.
//
// 1.0 - initial layout: per-descriptor subspaces own their own progress and
//
//	violation children (§3 Ownership/lifetime); vector indexes get a
//	reserved top-level byte so flat/PQ/SQ/BQ maintainers never collide
//	with a descriptor named "V".
var SchemaVersion = struct{ Major, Minor int }{1, 0}

// Top-level subspace prefixes. Every named index descriptor (graph, SHACL
// shapes graph, scalar/composite index) owns a caller-supplied subspace
// rooted below VectorRootPrefix's siblings; these two are reserved because
// the vector package derives its own keys without going through a
// Descriptor (codebooks and flat-scan entries are shared infrastructure,
// not a single named index).
const (
	// VectorRootPrefix roots every FlatMaintainer's scan entries
	// (vector.flatVectorSubspace).
	VectorRootPrefix = "V"

	// IndexMetaPrefix roots build-time metadata that outlives any one
	// descriptor, such as trained quantizer codebooks
	// (vector.codebookSubspace).
	IndexMetaPrefix = "index"
)
