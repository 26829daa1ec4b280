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

package engine

import (
	"time"

	"github.com/fusiondb/fusion-index/throttle"
)

// Config collects the builder's host-supplied tunables. The core never
// parses flags, env vars, or config files itself (§1, §6 "CLI/env: none
// defined by the core") -- the surrounding shell constructs a Config and
// passes it in, the same way the teacher's ethconfig.Config is built by
// its command-line layer and handed to the stack as a plain struct.
type Config struct {
	MaxConcurrency int
	ChunkSize      uint64 // target bytes per parallel chunk, §4.2 "say 10 MB"
	Throttle       throttle.Config
	MaxRetries     int
	RetryBackoff   time.Duration
}

// Option mutates a Config being built by NewConfig.
type Option func(*Config)

// WithMaxConcurrency bounds the parallel builder's in-flight chunk tasks
// (§4.2, §5).
func WithMaxConcurrency(n int) Option {
	return func(c *Config) { c.MaxConcurrency = n }
}

// WithChunkSize sets the target split size for parallel backfill.
func WithChunkSize(bytes uint64) Option {
	return func(c *Config) { c.ChunkSize = bytes }
}

// WithThrottle overrides the adaptive throttler configuration.
func WithThrottle(t throttle.Config) Option {
	return func(c *Config) { c.Throttle = t }
}

// WithMaxRetries bounds retry attempts for a single retryable batch
// failure (§5 "retries for retryable errors are bounded (default 3)").
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// NewConfig returns a Config with defaults matching §4.2/§5, then applies
// opts in order.
func NewConfig(opts ...Option) Config {
	c := Config{
		MaxConcurrency: 8,
		ChunkSize:      10 << 20, // 10 MB
		Throttle:       throttle.DefaultConfig(),
		MaxRetries:     3,
		RetryBackoff:   50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
