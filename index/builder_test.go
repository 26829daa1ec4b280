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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fusiondb/fusion-index/fieldvalue"
	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/kv/memkv"
	"github.com/fusiondb/fusion-index/progress"
	"github.com/fusiondb/fusion-index/schema"
	"github.com/fusiondb/fusion-index/tuple"
)

// userRecord is a minimal schema.Record used across index package tests.
type userRecord struct {
	email string
}

func (userRecord) TypeTag() string { return "user" }

func newUserRegistry() *schema.Registry {
	reg := schema.NewRegistry()
	reg.Register("user", "email", func(r schema.Record) fieldvalue.FieldValue {
		return fieldvalue.String(r.(userRecord).email)
	})
	return reg
}

// userSource stores userRecord items directly keyed by an integer primary
// key under a subspace, so tests can drive the builder over a real item
// store without a full record codec.
type userSource struct {
	sub tuple.Subspace
}

func newUserSource(root tuple.Subspace) *userSource {
	return &userSource{sub: root.Child("items")}
}

func (s *userSource) Range() ([]byte, []byte) { return s.sub.Range() }

func (s *userSource) Decode(entry kv.KeyValue) (schema.Record, []byte, error) {
	elems, err := s.sub.Unpack(entry.Key)
	if err != nil {
		return nil, nil, err
	}
	if len(elems) != 1 {
		return nil, nil, fmt.Errorf("unexpected user key shape")
	}
	return userRecord{email: string(entry.Value)}, entry.Key, nil
}

func (s *userSource) seed(ctx context.Context, db kv.RwDB, n int, emailFor func(i int) string) error {
	return db.Update(ctx, func(tx kv.RwTx) error {
		for i := 0; i < n; i++ {
			if err := tx.Set(ctx, s.sub.Pack(int64(i)), []byte(emailFor(i))); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestBuilderSerialBackfillsEveryItem(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	root := tuple.NewSubspace([]byte("idx"))
	registry := newUserRegistry()

	src := newUserSource(root)
	require.NoError(t, src.seed(ctx, db, 237, func(i int) string { return fmt.Sprintf("user%d@example.com", i) }))

	desc := NewDescriptor(root, "by_email", KindScalar, []string{"user"}, []schema.FieldPath{"email"}, false)
	require.NoError(t, desc.Declare())
	maintainer := NewScalarMaintainer(desc, registry)

	b := NewBuilder(db, desc, maintainer, src, BuildConfig{})
	require.NoError(t, b.Build(ctx, false))
	require.Equal(t, StateReadable, desc.State())

	var entries int
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		begin, end := desc.Subspace().Range()
		it, err := tx.GetRange(ctx, begin, end, kv.RangeOptions{})
		if err != nil {
			return err
		}
		defer it.Close()
		for it.Next() {
			entries++
		}
		return it.Err()
	}))
	require.Equal(t, 237, entries)

	// progress is cleared on completion.
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		_, ok, err := progress.Load(ctx, tx, desc.Subspace().Bytes(), desc.Name)
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}

func TestBuilderCapturesUniquenessViolations(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	root := tuple.NewSubspace([]byte("idx"))
	registry := newUserRegistry()

	src := newUserSource(root)
	emails := make([]string, 1000)
	for i := range emails {
		emails[i] = fmt.Sprintf("user%d@example.com", i)
	}
	// three duplicates of a single address
	emails[10] = "dup@example.com"
	emails[20] = "dup@example.com"
	emails[30] = "dup@example.com"
	require.NoError(t, src.seed(ctx, db, len(emails), func(i int) string { return emails[i] }))

	desc := NewDescriptor(root, "by_email_unique", KindScalar, []string{"user"}, []schema.FieldPath{"email"}, true)
	require.NoError(t, desc.Declare())
	maintainer := NewScalarMaintainer(desc, registry)

	b := NewBuilder(db, desc, maintainer, src, BuildConfig{})
	err := b.Build(ctx, false)
	require.Error(t, err)

	var violErr *UniquenessViolationsDetected
	require.ErrorAs(t, err, &violErr)
	require.Equal(t, 1, violErr.Count)
	require.Equal(t, 3, violErr.TotalConflicts)
	require.Equal(t, StateWriteOnly, desc.State())
}

func TestBuilderRerunOnReadableIsNoop(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	root := tuple.NewSubspace([]byte("idx"))
	registry := newUserRegistry()

	src := newUserSource(root)
	require.NoError(t, src.seed(ctx, db, 10, func(i int) string { return fmt.Sprintf("u%d@example.com", i) }))

	desc := NewDescriptor(root, "by_email", KindScalar, []string{"user"}, []schema.FieldPath{"email"}, false)
	require.NoError(t, desc.Declare())
	maintainer := NewScalarMaintainer(desc, registry)
	b := NewBuilder(db, desc, maintainer, src, BuildConfig{})
	require.NoError(t, b.Build(ctx, false))
	require.NoError(t, b.Build(ctx, false))
	require.Equal(t, StateReadable, desc.State())
}

// failOnceMaintainer wraps another Maintainer and returns a non-retryable
// error from the call numbered failAt (1-indexed across the whole back-fill),
// then behaves normally forever after. Scan is invoked once per item inside
// the builder's per-batch transaction, so failing mid-batch aborts that
// whole transaction -- nothing in it, including the progress save, commits
// (§4.2, §5 "either both commit or neither").
type failOnceMaintainer struct {
	Maintainer
	failAt int
	calls  int
}

func (m *failOnceMaintainer) Scan(ctx context.Context, item schema.Record, pk []byte, tx kv.RwTx) error {
	m.calls++
	if m.calls == m.failAt {
		return fmt.Errorf("simulated commit failure at call %d", m.calls)
	}
	return m.Maintainer.Scan(ctx, item, pk, tx)
}

// TestBuilderSerialResumesAfterSimulatedCommitFailure is the seed scenario
// "resumable back-fill": a serial build over 10,000 records with batch=100
// hits a simulated commit failure at the start of batch 37, leaving the
// index short of complete; rerunning Build from scratch (clearFirst=false)
// must finish the job without re-processing committed batches twice or
// losing any record, and must clear progress on success.
func TestBuilderSerialResumesAfterSimulatedCommitFailure(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	root := tuple.NewSubspace([]byte("idx"))
	registry := newUserRegistry()

	const total = 10000
	const batch = defaultBatchSize
	src := newUserSource(root)
	require.NoError(t, src.seed(ctx, db, total, func(i int) string { return fmt.Sprintf("user%d@example.com", i) }))

	desc := NewDescriptor(root, "by_email", KindScalar, []string{"user"}, []schema.FieldPath{"email"}, false)
	require.NoError(t, desc.Declare())

	// Batch 37 covers items [3600, 3700); failing on its first Scan call
	// (call number 36*batch+1) aborts that whole transaction.
	failing := &failOnceMaintainer{Maintainer: NewScalarMaintainer(desc, registry), failAt: 36*batch + 1}

	b := NewBuilder(db, desc, failing, src, BuildConfig{})
	err := b.Build(ctx, false)
	require.Error(t, err)
	require.Equal(t, StateWriteOnly, desc.State())

	// Progress from the 36 committed batches must have survived the abort.
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		_, ok, err := progress.Load(ctx, tx, desc.Subspace().Bytes(), desc.Name)
		require.NoError(t, err)
		require.True(t, ok, "progress from committed batches must still be present")
		return nil
	}))

	// Rerun: the same maintainer (now past its one failure) picks up where
	// progress left off.
	require.NoError(t, b.Build(ctx, false))
	require.Equal(t, StateReadable, desc.State())

	var entries int
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		begin, end := desc.Subspace().Range()
		it, err := tx.GetRange(ctx, begin, end, kv.RangeOptions{})
		if err != nil {
			return err
		}
		defer it.Close()
		for it.Next() {
			entries++
		}
		return it.Err()
	}))
	require.Equal(t, total, entries, "every record must be indexed exactly once across both runs")

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		_, ok, err := progress.Load(ctx, tx, desc.Subspace().Bytes(), desc.Name)
		require.NoError(t, err)
		require.False(t, ok, "progress must be cleared once the build completes")
		return nil
	}))
}

func TestBuilderParallelBackfillsEveryItem(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	root := tuple.NewSubspace([]byte("idx"))
	registry := newUserRegistry()

	src := newUserSource(root)
	require.NoError(t, src.seed(ctx, db, 500, func(i int) string { return fmt.Sprintf("user%d@example.com", i) }))

	desc := NewDescriptor(root, "by_email", KindScalar, []string{"user"}, []schema.FieldPath{"email"}, false)
	require.NoError(t, desc.Declare())
	maintainer := NewScalarMaintainer(desc, registry)

	b := NewBuilder(db, desc, maintainer, src, BuildConfig{MaxConcurrency: 4, ChunkSize: 640})
	require.NoError(t, b.Build(ctx, false))
	require.Equal(t, StateReadable, desc.State())

	var entries int
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		begin, end := desc.Subspace().Range()
		it, err := tx.GetRange(ctx, begin, end, kv.RangeOptions{})
		if err != nil {
			return err
		}
		defer it.Close()
		for it.Next() {
			entries++
		}
		return it.Err()
	}))
	require.Equal(t, 500, entries)
}
