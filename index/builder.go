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
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/throttle"
)

// UniquenessViolationsDetected is returned by Build when a unique index's
// back-fill completed but left unresolved duplicate values; the index
// stays write-only until an operator resolves them and re-invokes (§4.2).
type UniquenessViolationsDetected struct {
	Index          string
	Count          int
	TotalConflicts int
}

func (e *UniquenessViolationsDetected) Error() string {
	return fmt.Sprintf("index %q: %d uniqueness violations covering %d conflicting keys", e.Index, e.Count, e.TotalConflicts)
}

// ErrDisabled is returned by Build when the descriptor is in state
// disabled (§5 "disabled + build() -> error").
var ErrDisabled = fmt.Errorf("index: build called on a disabled descriptor")

const defaultBatchSize = 100

// BuildConfig collects the builder's tunables. The zero value is usable:
// it runs without throttling, serial only, with default retry bounds.
type BuildConfig struct {
	// Throttle, if non-nil, paces batch size and inter-batch delay.
	// Optional: "driven by call-site configuration, not by the builder's
	// own heuristic" (§4.2).
	Throttle *throttle.Throttler

	// MaxConcurrency bounds the parallel builder's in-flight chunk tasks.
	// A value <= 1 disables parallel build (falls back to serial).
	MaxConcurrency int

	// ChunkSize is the target chunk size in bytes requested from
	// SplitPointFinder.GetSplitPoints (§4.2, "say 10 MB").
	ChunkSize uint64

	// MaxRetries bounds retries of a single retryable batch-commit
	// failure before the build fails fatally.
	MaxRetries int

	// RetryBackoff is the base delay between retries.
	RetryBackoff time.Duration

	Logger *zap.Logger
}

func (c BuildConfig) batchSize() int {
	if c.Throttle != nil {
		return c.Throttle.Batch()
	}
	return defaultBatchSize
}

func (c BuildConfig) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func (c BuildConfig) backoffPolicy() backoff.BackOff {
	base := c.RetryBackoff
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = base
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return backoff.WithMaxRetries(eb, uint64(maxRetries))
}

// Builder orchestrates back-fill (serial or parallel), uniqueness
// violation capture, and the index state transition (§4.2).
type Builder struct {
	db         kv.RwDB
	descriptor *Descriptor
	maintainer Maintainer
	source     ItemSource
	tracker    *ViolationTracker
	cfg        BuildConfig
}

// NewBuilder constructs a Builder for descriptor, using maintainer to
// translate records into index entries and source to enumerate the
// covered items.
func NewBuilder(db kv.RwDB, descriptor *Descriptor, maintainer Maintainer, source ItemSource, cfg BuildConfig) *Builder {
	return &Builder{
		db:         db,
		descriptor: descriptor,
		maintainer: maintainer,
		source:     source,
		tracker:    NewViolationTracker(descriptor),
		cfg:        cfg,
	}
}

// Build runs the online back-fill to completion, transitioning the
// descriptor to readable on success (§4.2 Contract). If the maintainer
// implements CustomBuildStrategy, that strategy is used instead of the
// scan-based path (§6 "customBuildStrategy.build(ctx)").
func (b *Builder) Build(ctx context.Context, clearFirst bool) error {
	if b.descriptor.state == StateDisabled {
		return ErrDisabled
	}
	if b.descriptor.state == StateReadable && !clearFirst {
		// Re-running build(clearFirst=false) on an already-readable index
		// is a no-op (§5).
		return nil
	}
	if b.descriptor.state == StateReadable {
		if err := b.descriptor.MarkWriteOnly(); err != nil {
			return err
		}
	}

	logger := b.cfg.logger().With(zap.String("index", b.descriptor.Name))

	if clearFirst {
		if err := b.clearAll(ctx); err != nil {
			return fmt.Errorf("index %q: clear before build: %w", b.descriptor.Name, err)
		}
	}

	if custom, ok := b.maintainer.(CustomBuildStrategy); ok {
		if err := custom.Build(ctx); err != nil {
			return fmt.Errorf("index %q: custom build: %w", b.descriptor.Name, err)
		}
	} else if b.cfg.MaxConcurrency > 1 {
		if err := b.buildParallel(ctx, logger); err != nil {
			return err
		}
	} else {
		if err := b.buildSerial(ctx, logger); err != nil {
			return err
		}
	}

	return b.finish(ctx)
}

func (b *Builder) clearAll(ctx context.Context) error {
	return b.db.Update(ctx, func(tx kv.RwTx) error {
		begin, end := b.descriptor.Subspace().Range()
		if err := tx.ClearRange(ctx, begin, end); err != nil {
			return err
		}
		return b.tracker.Clear(ctx, tx)
	})
}

// finish either transitions the descriptor to readable or returns
// UniquenessViolationsDetected, depending on whether a unique index has
// unresolved conflicts (§4.2). Progress bookkeeping is already cleared by
// buildSerial/buildParallel before finish runs.
func (b *Builder) finish(ctx context.Context) error {
	if !b.descriptor.IsUnique {
		return b.descriptor.MarkReadable()
	}

	var violations []ViolationSummary
	err := b.db.View(ctx, func(tx kv.Tx) error {
		v, err := b.tracker.List(ctx, tx)
		violations = v
		return err
	})
	if err != nil {
		return fmt.Errorf("index %q: list violations: %w", b.descriptor.Name, err)
	}
	if len(violations) > 0 {
		return &UniquenessViolationsDetected{
			Index:          b.descriptor.Name,
			Count:          len(violations),
			TotalConflicts: TotalConflicts(violations),
		}
	}
	return b.descriptor.MarkReadable()
}

// progressRoot returns the subspace serial-mode progress and parallel-mode
// chunk records are written under. It reuses the descriptor's own
// subspace, keeping every piece of an index's on-disk state -- entries,
// progress, violations -- under one prefix (§3 Ownership/lifetime).
func (b *Builder) progressRoot() []byte {
	return b.descriptor.Subspace().Bytes()
}

// withRetry runs step, retrying retryable failures up to cfg.MaxRetries
// times with exponential backoff (§4.1 isRetryable, §4.2 crash-safety).
func (b *Builder) withRetry(ctx context.Context, step func() error) error {
	return backoff.Retry(func() error {
		err := step()
		if err == nil {
			return nil
		}
		if !throttle.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b.cfg.backoffPolicy(), ctx))
}

// recordOutcome feeds a completed (or failed) batch back into the
// configured throttler, if any.
func (b *Builder) recordOutcome(items int, dur time.Duration, err error) {
	if b.cfg.Throttle == nil {
		return
	}
	if err != nil {
		b.cfg.Throttle.RecordFailure(err)
		return
	}
	b.cfg.Throttle.RecordSuccess(items, dur)
}

func (b *Builder) waitBeforeNextBatch(ctx context.Context) error {
	if b.cfg.Throttle == nil {
		return nil
	}
	return b.cfg.Throttle.WaitBeforeNextBatch(ctx)
}
