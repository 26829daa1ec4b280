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

// Package engine provides the explicit dependency container the design
// notes call for in place of a global context singleton (§9
// "FusionContext.current is a code smell and should be an explicit
// parameter"): a Container value holding the KV handle, the schema
// registry, and a logger. It holds no descriptor registry, and the other
// packages' constructors (index.NewBuilder and the rest) take their
// dependencies as separate arguments rather than a Container.
package engine

import (
	"go.uber.org/zap"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/schema"
)

// Container bundles the dependencies every component in this module needs,
// so none of them reach for a package-level global.
type Container struct {
	DB       kv.RwDB
	Registry *schema.Registry
	Logger   *zap.Logger
}

// NewContainer wires db and registry together with a logger (defaulting to
// a no-op logger, matching the teacher's habit of accepting *zap.Logger
// and falling back to zap.NewNop() rather than requiring one).
func NewContainer(db kv.RwDB, registry *schema.Registry, logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{DB: db, Registry: registry, Logger: logger}
}
