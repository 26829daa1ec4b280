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

package progress

import (
	"context"
	"fmt"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/tuple"
)

// ChunkStatus is one parallel-build chunk's lifecycle state (§3 Build
// progress, parallel mode).
type ChunkStatus int64

const (
	NotStarted ChunkStatus = iota
	InProgress
	Complete
)

func (s ChunkStatus) String() string {
	switch s {
	case NotStarted:
		return "notStarted"
	case InProgress:
		return "inProgress"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Chunk is one chunk's resumable state: its half-open byte range, its
// status, and (if InProgress) the last key successfully processed.
type Chunk struct {
	Begin, End []byte
	Status     ChunkStatus
	LastKey    []byte
}

// Cursor returns the chunk's resume point.
func (c Chunk) Cursor() []byte {
	if c.LastKey != nil {
		return c.LastKey
	}
	return c.Begin
}

// buildSubspace returns the subspace chunk records for indexName live
// under, per §6: index/_build/<indexName>/<chunkIndex>.
func buildSubspace(root tuple.Subspace, indexName string) tuple.Subspace {
	return root.Child("_build", indexName)
}

// LoadChunk reads chunk i's status, defaulting to NotStarted if absent.
func LoadChunk(ctx context.Context, tx kv.Tx, root tuple.Subspace, indexName string, i int) (Chunk, error) {
	sub := buildSubspace(root, indexName)
	raw, ok, err := tx.Get(ctx, sub.Pack(int64(i)))
	if err != nil {
		return Chunk{}, err
	}
	if !ok {
		return Chunk{Status: NotStarted}, nil
	}
	elems, err := tuple.Unpack(raw)
	if err != nil {
		return Chunk{}, fmt.Errorf("progress: decode chunk %d of %q: %w", i, indexName, err)
	}
	if len(elems) < 1 {
		return Chunk{}, fmt.Errorf("progress: chunk %d of %q: %w", i, indexName, tuple.ErrMalformed)
	}
	status, ok := elems[0].(int64)
	if !ok {
		return Chunk{}, fmt.Errorf("progress: chunk %d of %q: %w", i, indexName, tuple.ErrMalformed)
	}
	c := Chunk{Status: ChunkStatus(status)}
	if len(elems) > 1 {
		if lk, ok := elems[1].([]byte); ok {
			c.LastKey = lk
		}
	}
	return c, nil
}

// SaveChunk writes chunk i's status in the same transaction as the batch
// of work it accounts for.
func SaveChunk(ctx context.Context, tx kv.RwTx, root tuple.Subspace, indexName string, i int, c Chunk) error {
	sub := buildSubspace(root, indexName)
	var elements []tuple.Element
	if c.LastKey != nil {
		elements = []tuple.Element{int64(c.Status), c.LastKey}
	} else {
		elements = []tuple.Element{int64(c.Status)}
	}
	return tx.Set(ctx, sub.Pack(int64(i)), tuple.Pack(elements...))
}

// ClearAllChunks removes every chunk record for indexName, called once
// every chunk has completed (§4.2).
func ClearAllChunks(ctx context.Context, tx kv.RwTx, root tuple.Subspace, indexName string) error {
	sub := buildSubspace(root, indexName)
	begin, end := sub.Range()
	return tx.ClearRange(ctx, begin, end)
}
