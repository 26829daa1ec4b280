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

// Package schema replaces the dynamic-member/KeyPath field access the
// design notes call out as a Swift-ism (§9): a FieldPath is an explicit
// value type, and a Registry maps (item type, FieldPath) to a small
// accessor closure captured once at type registration, not resolved by
// reflection on every access.
package schema

import (
	"fmt"
	"sync"

	"github.com/fusiondb/fusion-index/fieldvalue"
)

// Record is an opaque application entity, identified exclusively by its
// primary-key tuple (§3 Record). Attribute projection is the caller's
// responsibility; the engine never inspects a Record except through a
// registered Accessor.
type Record interface {
	// TypeTag names the record's schema, used to look up its registered
	// accessors and its primary storage range for backfill.
	TypeTag() string
}

// FieldPath identifies one field of a record type, e.g. "user.email" or
// "order.total". It replaces KeyPath-based field identification (§9).
type FieldPath string

// Accessor extracts a FieldValue from a Record. Returning fieldvalue.Null()
// signals "this record has no value at this path" -- a tagged result, not
// a panic or sentinel exception (§9 "exceptions for control flow").
type Accessor func(Record) fieldvalue.FieldValue

// Registry is the registration-time map from (type tag, FieldPath) to
// Accessor, held by the engine.Container and passed explicitly to every
// maintainer constructor -- never a package-level singleton (§9
// "FusionContext.current is a code smell").
type Registry struct {
	mu        sync.RWMutex
	accessors map[string]map[FieldPath]Accessor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{accessors: make(map[string]map[FieldPath]Accessor)}
}

// Register binds an Accessor for (typeTag, path). Re-registering the same
// pair overwrites the previous binding -- useful when a schema evolves and
// the index is rebuilt (§3 index state machine, readable -> write-only).
func (r *Registry) Register(typeTag string, path FieldPath, accessor Accessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.accessors[typeTag] == nil {
		r.accessors[typeTag] = make(map[FieldPath]Accessor)
	}
	r.accessors[typeTag][path] = accessor
}

// Accessor returns the registered accessor for (typeTag, path).
func (r *Registry) Accessor(typeTag string, path FieldPath) (Accessor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byPath, ok := r.accessors[typeTag]
	if !ok {
		return nil, fmt.Errorf("schema: unknown type tag %q", typeTag)
	}
	a, ok := byPath[path]
	if !ok {
		return nil, fmt.Errorf("schema: type %q has no field %q", typeTag, path)
	}
	return a, nil
}

// Value resolves path against record using the registry, returning
// fieldvalue.Null() (not an error) if the path is registered but the
// record simply has no value there; an error is returned only when the
// type or path itself is unknown.
func (r *Registry) Value(record Record, path FieldPath) (fieldvalue.FieldValue, error) {
	a, err := r.Accessor(record.TypeTag(), path)
	if err != nil {
		return fieldvalue.Null(), err
	}
	return a(record), nil
}
