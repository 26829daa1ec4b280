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
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fusiondb/fusion-index/kv"
)

func TestSetGetCommit(t *testing.T) {
	db := New()
	ctx := context.Background()

	err := db.Update(ctx, func(tx kv.RwTx) error {
		return tx.Set(ctx, []byte("a"), []byte("1"))
	})
	require.NoError(t, err)

	err = db.View(ctx, func(tx kv.Tx) error {
		v, ok, err := tx.Get(ctx, []byte("a"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("1"), v)
		return nil
	})
	require.NoError(t, err)
}

func TestSnapshotIsolation(t *testing.T) {
	db := New()
	ctx := context.Background()
	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		return tx.Set(ctx, []byte("a"), []byte("1"))
	}))

	roTx, err := db.BeginRo(ctx)
	require.NoError(t, err)

	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		return tx.Set(ctx, []byte("a"), []byte("2"))
	}))

	v, ok, err := roTx.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v, "read-only tx must not observe later commits")
}

func TestRangeScanAndClearRange(t *testing.T) {
	db := New()
	ctx := context.Background()
	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		for _, k := range []string{"a", "b", "c", "d"} {
			if err := tx.Set(ctx, []byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	var keys []string
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		it, err := tx.GetRange(ctx, []byte("b"), []byte("d"), kv.RangeOptions{})
		if err != nil {
			return err
		}
		defer it.Close()
		for it.Next() {
			keys = append(keys, string(it.KeyValue().Key))
		}
		return it.Err()
	}))
	require.Equal(t, []string{"b", "c"}, keys)

	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		return tx.ClearRange(ctx, []byte("a"), []byte("c"))
	}))
	require.Equal(t, [][]byte{[]byte("c"), []byte("d")}, db.Keys())
}

func TestGetSplitPointsFallsBackWhenSmall(t *testing.T) {
	db := New()
	ctx := context.Background()
	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		return tx.Set(ctx, []byte("only"), []byte("1"))
	}))
	splits, err := db.GetSplitPoints(ctx, nil, nil, 10<<20)
	require.NoError(t, err)
	require.LessOrEqual(t, len(splits), 1)
}

func TestReadYourWrites(t *testing.T) {
	db := New()
	ctx := context.Background()
	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		require.NoError(t, tx.Set(ctx, []byte("a"), []byte("1")))
		v, ok, err := tx.Get(ctx, []byte("a"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("1"), v)
		return nil
	}))
}
