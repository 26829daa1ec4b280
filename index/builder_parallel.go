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
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/progress"
	"github.com/fusiondb/fusion-index/tuple"
)

// buildParallel asks the store for split points and runs a worker pool of
// at most cfg.MaxConcurrency chunk tasks over them, falling back to serial
// build when there's only one chunk (§4.2 Parallel build).
func (b *Builder) buildParallel(ctx context.Context, logger *zap.Logger) error {
	begin, end := b.source.Range()
	splits, err := b.db.GetSplitPoints(ctx, begin, end, b.cfg.ChunkSize)
	if err != nil {
		return err
	}
	if len(splits) <= 1 {
		logger.Info("parallel build falling back to serial: single chunk")
		return b.buildSerial(ctx, logger)
	}

	bounds := append(append([][]byte{}, splits...), end)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(b.cfg.MaxConcurrency)
	for i := 0; i < len(bounds)-1; i++ {
		i := i
		chunkBegin, chunkEnd := bounds[i], bounds[i+1]
		group.Go(func() error {
			return b.runChunk(gctx, logger, i, chunkBegin, chunkEnd)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if err := b.db.Update(ctx, func(tx kv.RwTx) error {
		return progress.ClearAllChunks(ctx, tx, b.descriptor.Subspace(), b.descriptor.Name)
	}); err != nil {
		return err
	}
	logger.Info("parallel build complete", zap.Int("chunks", len(bounds)-1))
	return nil
}

// runChunk drives one chunk's back-fill to completion: mark inProgress,
// loop transactional batches over [begin,end), mark complete (§4.2).
func (b *Builder) runChunk(ctx context.Context, logger *zap.Logger, i int, begin, end []byte) error {
	chunkLogger := logger.With(zap.Int("chunk", i))
	for {
		done, err := b.runChunkStep(ctx, i, begin, end)
		if err != nil {
			return err
		}
		if done {
			chunkLogger.Debug("chunk complete")
			return nil
		}
		if err := b.waitBeforeNextBatch(ctx); err != nil {
			return err
		}
	}
}

// runChunkStep is the parallel analogue of runSerialStep, scoped to one
// chunk's [begin,end) and tracked via a per-chunk status record instead of
// a RangeSet.
func (b *Builder) runChunkStep(ctx context.Context, i int, begin, end []byte) (done bool, err error) {
	batchSize := b.cfg.batchSize()
	var start time.Time
	var itemsProcessed int

	stepErr := b.withRetry(ctx, func() error {
		itemsProcessed = 0
		start = time.Now()
		return b.db.Update(ctx, func(tx kv.RwTx) error {
			chunk, loadErr := progress.LoadChunk(ctx, tx, b.descriptor.Subspace(), b.descriptor.Name, i)
			if loadErr != nil {
				return loadErr
			}
			chunk.Begin, chunk.End = begin, end
			if chunk.Status == progress.Complete {
				done = true
				return nil
			}

			cursor := chunk.Cursor()
			it, rangeErr := tx.GetRange(ctx, cursor, end, kv.RangeOptions{Limit: batchSize})
			if rangeErr != nil {
				return rangeErr
			}
			defer it.Close()

			var lastKey []byte
			for it.Next() {
				entry := it.KeyValue()
				item, pk, decodeErr := b.source.Decode(entry)
				if decodeErr != nil {
					return decodeErr
				}
				if scanErr := b.maintainer.Scan(ctx, item, pk, tx); scanErr != nil {
					return scanErr
				}
				lastKey = entry.Key
				itemsProcessed++
			}
			if itErr := it.Err(); itErr != nil {
				return itErr
			}

			if itemsProcessed < batchSize {
				chunk.Status = progress.Complete
			} else {
				chunk.Status = progress.InProgress
				if lastKey != nil {
					chunk.LastKey = tuple.Strinc(lastKey)
				}
			}

			return progress.SaveChunk(ctx, tx, b.descriptor.Subspace(), b.descriptor.Name, i, chunk)
		})
	})

	b.recordOutcome(itemsProcessed, time.Since(start), stepErr)
	if stepErr != nil {
		return false, stepErr
	}
	return done, nil
}
