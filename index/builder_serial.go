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

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/progress"
	"github.com/fusiondb/fusion-index/tuple"
)

// buildSerial runs the serial scan-based build to completion (§4.2).
func (b *Builder) buildSerial(ctx context.Context, logger *zap.Logger) error {
	for {
		done, err := b.runSerialStep(ctx)
		if err != nil {
			return err
		}
		if done {
			break
		}
		if err := b.waitBeforeNextBatch(ctx); err != nil {
			return err
		}
	}
	if err := b.db.Update(ctx, func(tx kv.RwTx) error {
		return progress.Clear(ctx, tx, b.progressRoot(), b.descriptor.Name)
	}); err != nil {
		return err
	}
	logger.Info("serial build complete")
	return nil
}

// runSerialStep processes one batch inside one transaction: it loads (or
// seeds) the RangeSet, picks the next incomplete range, scans up to
// batchSize items from the range's cursor, invokes the maintainer, and
// saves the updated RangeSet in the same transaction it wrote index
// entries in (§4.2, §5 crash-safety). It reports done=true once every
// range is complete.
func (b *Builder) runSerialStep(ctx context.Context) (done bool, err error) {
	batchSize := b.cfg.batchSize()
	var start time.Time
	var itemsProcessed int

	stepErr := b.withRetry(ctx, func() error {
		itemsProcessed = 0
		start = time.Now()
		return b.db.Update(ctx, func(tx kv.RwTx) error {
			rs, ok, loadErr := progress.Load(ctx, tx, b.progressRoot(), b.descriptor.Name)
			if loadErr != nil {
				return loadErr
			}
			if !ok {
				begin, end := b.source.Range()
				rs = progress.NewRangeSet(begin, end)
			}
			if rs.Done() {
				done = true
				return nil
			}

			idx := rs.NextIncomplete()
			r := &rs.Ranges[idx]
			cursor := r.Cursor()

			it, rangeErr := tx.GetRange(ctx, cursor, r.End, kv.RangeOptions{Limit: batchSize})
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
				r.Complete = true
			} else if lastKey != nil {
				r.LastKey = tuple.Strinc(lastKey)
			}

			return progress.Save(ctx, tx, b.progressRoot(), b.descriptor.Name, rs)
		})
	})

	b.recordOutcome(itemsProcessed, time.Since(start), stepErr)
	if stepErr != nil {
		return false, stepErr
	}
	return done, nil
}
