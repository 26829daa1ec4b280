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
	"context"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/schema"
)

// Maintainer is the per-index object that translates record mutations
// into KV entries. Every index kind (graph, vector, scalar) implements
// this same interface, invoked both by normal writes and by the online
// builder's back-fill (§4.3).
type Maintainer interface {
	// Update applies an incremental change. old is nil for an insert, new
	// is nil for a delete; both present means a replace.
	Update(ctx context.Context, old, new schema.Record, pk []byte, tx kv.RwTx) error

	// Scan is invoked once per record during back-fill. It must produce
	// the same index entries Update(nil, item, pk, tx) would.
	Scan(ctx context.Context, item schema.Record, pk []byte, tx kv.RwTx) error

	// IndexKeys returns the keys this record would occupy, for debugging
	// and range pre-computation. It must not mutate tx.
	IndexKeys(ctx context.Context, item schema.Record, pk []byte) ([][]byte, error)
}

// CustomBuildStrategy is implemented by maintainers (e.g. HNSW-backed
// indexes) whose back-fill is not a simple scan-and-emit; the builder
// delegates to it instead of the serial/parallel scan path.
type CustomBuildStrategy interface {
	Build(ctx context.Context) error
}
