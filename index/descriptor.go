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

// Package index implements the online index builder, the maintainer
// interface shared by every index kind, and the uniqueness-violation
// tracker. State transitions, progress bookkeeping, and violation capture
// all live here; the concrete maintainers (graph, vector, scalar) plug in
// through the Maintainer interface.
package index

import (
	"fmt"

	"github.com/fusiondb/fusion-index/schema"
	"github.com/fusiondb/fusion-index/tuple"
)

// Kind identifies the family of index a Descriptor describes. The kind
// fully determines the descriptor's subspace layout (§3 "changing a kind
// requires a new descriptor name").
type Kind string

const (
	KindScalar     Kind = "scalar"
	KindGraph      Kind = "graph"
	KindVectorPQ   Kind = "vector_pq"
	KindVectorSQ   Kind = "vector_sq"
	KindVectorBQ   Kind = "vector_bq"
	KindVectorFlat Kind = "vector_flat"
)

// State is one of the index state machine's three states (§3).
type State int

const (
	StateDisabled State = iota
	StateWriteOnly
	StateReadable
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateWriteOnly:
		return "write-only"
	case StateReadable:
		return "readable"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition reports an illegal index state transition.
type ErrInvalidTransition struct {
	From, To State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("index: invalid state transition %s -> %s", e.From, e.To)
}

// Descriptor names an index, pins its kind and covered item types, and
// owns the subspace its entries, build progress and uniqueness violations
// live under (§3 Ownership/lifetime). Vector codebooks are stored outside
// it, and Drop changes only the state; it does not clear that range.
type Descriptor struct {
	Name       string
	Kind       Kind
	FieldPaths []schema.FieldPath
	ItemTypes  []string
	IsUnique   bool

	state State
	root  tuple.Subspace
}

// NewDescriptor returns a Descriptor in state disabled, rooted at
// root.Child(name) so every index owns a disjoint slice of the keyspace.
func NewDescriptor(root tuple.Subspace, name string, kind Kind, itemTypes []string, fieldPaths []schema.FieldPath, isUnique bool) *Descriptor {
	return &Descriptor{
		Name:       name,
		Kind:       kind,
		FieldPaths: fieldPaths,
		ItemTypes:  itemTypes,
		IsUnique:   isUnique,
		state:      StateDisabled,
		root:       root.Child(name),
	}
}

// Subspace returns the index's owned subspace.
func (d *Descriptor) Subspace() tuple.Subspace { return d.root }

// State returns the descriptor's current state.
func (d *Descriptor) State() State { return d.state }

// Declare transitions disabled -> write-only (§3).
func (d *Descriptor) Declare() error {
	if d.state != StateDisabled {
		return &ErrInvalidTransition{From: d.state, To: StateWriteOnly}
	}
	d.state = StateWriteOnly
	return nil
}

// MarkReadable transitions write-only -> readable, after a successful
// back-fill with no unresolved uniqueness violations.
func (d *Descriptor) MarkReadable() error {
	if d.state != StateWriteOnly {
		return &ErrInvalidTransition{From: d.state, To: StateReadable}
	}
	d.state = StateReadable
	return nil
}

// MarkWriteOnly transitions readable -> write-only, for schema evolution
// that requires a re-build.
func (d *Descriptor) MarkWriteOnly() error {
	if d.state != StateReadable {
		return &ErrInvalidTransition{From: d.state, To: StateWriteOnly}
	}
	d.state = StateWriteOnly
	return nil
}

// Drop transitions any state to disabled. Callers are responsible for
// clearing the descriptor's subspace range afterward.
func (d *Descriptor) Drop() {
	d.state = StateDisabled
}

// RequiresSync reports whether writers must synchronously update this
// index inside the user's transaction (write-only or readable, §3).
func (d *Descriptor) RequiresSync() bool {
	return d.state == StateWriteOnly || d.state == StateReadable
}

// Readable reports whether readers may use this index.
func (d *Descriptor) Readable() bool {
	return d.state == StateReadable
}
