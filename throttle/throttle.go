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

// Package throttle implements the online builder's adaptive batch-size and
// inter-batch delay controller (§4.1). Every state mutation happens under
// a single mutex; the arithmetic itself is pure and easy to test in
// isolation from wall-clock sleeping via the Sleeper seam.
package throttle

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/fusiondb/fusion-index/kv"
)

// Config bounds and tunes the throttler. Invariants (enforced by New):
// Min <= Max for both Batch and Delay, IncreaseRatio > 1, 0 < DecreaseRatio < 1.
type Config struct {
	MinBatch   int
	MaxBatch   int
	InitBatch  int
	MinDelay   time.Duration
	MaxDelay   time.Duration
	InitDelay  time.Duration

	IncreaseRatio      float64 // batch growth factor on sustained success
	DecreaseRatio      float64 // batch shrink factor on failure, in (0,1)
	DelayIncreaseRatio float64 // delay growth factor on failure
	DelayDecreaseRatio float64 // delay shrink factor on sustained success, in (0,1)

	// SuccessThreshold is the number of consecutive successes required
	// before the batch size is allowed to grow again.
	SuccessThreshold int
}

// DefaultConfig returns reasonable defaults matching the staged-backfill
// style of gradually ramping up batch size and backing off hard on the
// first failure.
func DefaultConfig() Config {
	return Config{
		MinBatch:           10,
		MaxBatch:           10_000,
		InitBatch:          100,
		MinDelay:           0,
		MaxDelay:           5 * time.Second,
		InitDelay:          0,
		IncreaseRatio:      1.5,
		DecreaseRatio:      0.5,
		DelayIncreaseRatio: 2.0,
		DelayDecreaseRatio: 0.8,
		SuccessThreshold:   5,
	}
}

// Throttler tracks an adaptive {batch, delay} pair driven by
// recordSuccess/recordFailure signals from the caller (§4.1).
type Throttler struct {
	cfg Config

	mu                  sync.Mutex
	batch               int
	delay               time.Duration
	consecutiveSuccess  int
	consecutiveFailures int

	sleep Sleeper
}

// Sleeper abstracts wall-clock waiting so tests can run without blocking.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// New validates cfg and returns a Throttler seeded at its initial
// batch/delay.
func New(cfg Config) (*Throttler, error) {
	if cfg.MinBatch <= 0 || cfg.MinBatch > cfg.MaxBatch {
		return nil, errors.New("throttle: require 0 < MinBatch <= MaxBatch")
	}
	if cfg.MinDelay < 0 || cfg.MinDelay > cfg.MaxDelay {
		return nil, errors.New("throttle: require 0 <= MinDelay <= MaxDelay")
	}
	if cfg.IncreaseRatio <= 1 {
		return nil, errors.New("throttle: IncreaseRatio must be > 1")
	}
	if cfg.DecreaseRatio <= 0 || cfg.DecreaseRatio >= 1 {
		return nil, errors.New("throttle: DecreaseRatio must be in (0,1)")
	}
	batch := clampInt(cfg.InitBatch, cfg.MinBatch, cfg.MaxBatch)
	delay := clampDuration(cfg.InitDelay, cfg.MinDelay, cfg.MaxDelay)
	return &Throttler{
		cfg:   cfg,
		batch: batch,
		delay: delay,
		sleep: realSleeper{},
	}, nil
}

// WithSleeper overrides the wall-clock sleeper, primarily for tests.
func (t *Throttler) WithSleeper(s Sleeper) *Throttler {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sleep = s
	return t
}

// Batch returns the current batch size.
func (t *Throttler) Batch() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.batch
}

// Delay returns the current inter-batch delay.
func (t *Throttler) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}

// RecordSuccess registers a successful batch of the given size and
// duration. Once SuccessThreshold consecutive successes accumulate, the
// batch size grows by IncreaseRatio (clamped) and the delay shrinks by
// DelayDecreaseRatio (clamped); duration is accepted for parity with the
// spec's signature, and the policy does not use it.
func (t *Throttler) RecordSuccess(items int, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveFailures = 0
	t.consecutiveSuccess++
	if t.consecutiveSuccess < t.cfg.SuccessThreshold {
		return
	}
	t.consecutiveSuccess = 0
	t.batch = clampInt(int(float64(t.batch)*t.cfg.IncreaseRatio), t.cfg.MinBatch, t.cfg.MaxBatch)
	t.delay = clampDuration(time.Duration(float64(t.delay)*t.cfg.DelayDecreaseRatio), t.cfg.MinDelay, t.cfg.MaxDelay)
}

// RecordFailure registers a failed batch. Unlike success, a single failure
// immediately shrinks the batch and grows the delay -- back off hard, ramp
// up slowly.
func (t *Throttler) RecordFailure(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveSuccess = 0
	t.consecutiveFailures++
	t.batch = clampInt(int(float64(t.batch)*t.cfg.DecreaseRatio), t.cfg.MinBatch, t.cfg.MaxBatch)
	delay := t.delay
	if delay <= 0 {
		delay = time.Millisecond
	}
	t.delay = clampDuration(time.Duration(float64(delay)*t.cfg.DelayIncreaseRatio), t.cfg.MinDelay, t.cfg.MaxDelay)
}

// WaitBeforeNextBatch sleeps for the current delay, or returns ctx.Err()
// if cancelled first.
func (t *Throttler) WaitBeforeNextBatch(ctx context.Context) error {
	t.mu.Lock()
	d := t.delay
	sleeper := t.sleep
	t.mu.Unlock()
	return sleeper.Sleep(ctx, d)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsRetryable classifies an error from the KV layer as retryable: commit
// conflicts, transaction timeouts, and equivalent network-timeout failures
// (§4.1, §7 "KV-retryable").
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, kv.ErrRetryable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var classified interface{ Retryable() bool }
	if errors.As(err, &classified) {
		return classified.Retryable()
	}
	return false
}
