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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/kv/memkv"
	"github.com/fusiondb/fusion-index/tuple"
)

func TestRangeSetSaveLoadRoundTrip(t *testing.T) {
	db := memkv.New()
	ctx := context.Background()
	progressPrefix := []byte("index/_progress")

	rs := NewRangeSet([]byte("a"), []byte("z"))
	rs.Ranges[0].LastKey = []byte("m")

	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		return Save(ctx, tx, progressPrefix, "by_email", rs)
	}))

	var loaded *RangeSet
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		var ok bool
		var err error
		loaded, ok, err = Load(ctx, tx, progressPrefix, "by_email")
		require.True(t, ok)
		return err
	}))
	require.Equal(t, rs, loaded)
}

func TestRangeSetNextIncompleteAndDone(t *testing.T) {
	rs := &RangeSet{Ranges: []Range{
		{Begin: []byte("a"), End: []byte("m"), Complete: true},
		{Begin: []byte("m"), End: []byte("z"), Complete: false},
	}}
	require.Equal(t, 1, rs.NextIncomplete())
	require.False(t, rs.Done())
	rs.Ranges[1].Complete = true
	require.Equal(t, -1, rs.NextIncomplete())
	require.True(t, rs.Done())
}

func TestLoadMissingRangeSet(t *testing.T) {
	db := memkv.New()
	ctx := context.Background()
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		_, ok, err := Load(ctx, tx, []byte("index/_progress"), "missing")
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}

func TestChunkSaveLoadRoundTripAndClear(t *testing.T) {
	db := memkv.New()
	ctx := context.Background()
	root := tuple.NewSubspace([]byte("idx/users/email"))

	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		return SaveChunk(ctx, tx, root, "by_email", 3, Chunk{Status: InProgress, LastKey: []byte("k3")})
	}))

	var loaded Chunk
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		var err error
		loaded, err = LoadChunk(ctx, tx, root, "by_email", 3)
		return err
	}))
	require.Equal(t, InProgress, loaded.Status)
	require.Equal(t, []byte("k3"), loaded.LastKey)

	unstarted, err := loadChunkView(db, root, "by_email", 7)
	require.NoError(t, err)
	require.Equal(t, NotStarted, unstarted.Status)

	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		return ClearAllChunks(ctx, tx, root, "by_email")
	}))
	cleared, err := loadChunkView(db, root, "by_email", 3)
	require.NoError(t, err)
	require.Equal(t, NotStarted, cleared.Status)
}

func loadChunkView(db *memkv.DB, root tuple.Subspace, indexName string, i int) (Chunk, error) {
	ctx := context.Background()
	var c Chunk
	err := db.View(ctx, func(tx kv.Tx) error {
		var err error
		c, err = LoadChunk(ctx, tx, root, indexName, i)
		return err
	})
	return c, err
}
