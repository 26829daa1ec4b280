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

package shacl

import (
	"github.com/fusiondb/fusion-index/graph"
)

// Severity is a violation's reported severity (sh:Violation by default).
type Severity string

const (
	SeverityViolation Severity = "Violation"
	SeverityWarning   Severity = "Warning"
	SeverityInfo      Severity = "Info"
)

// TargetKind selects how a Target resolves to focus nodes (§4.6 Targets).
type TargetKind int

const (
	TargetNode TargetKind = iota
	TargetClass
	TargetSubjectsOf
	TargetObjectsOf
)

// Target is one of a shape's declared targets.
type Target struct {
	Kind TargetKind
	// Value is the target's IRI argument: the node itself (TargetNode),
	// the class (TargetClass), or the predicate (TargetSubjectsOf /
	// TargetObjectsOf).
	Value []byte
}

// PropertyShape constrains the value nodes reached from a focus node by
// following Path.
type PropertyShape struct {
	Path        graph.PropertyPath
	Constraints []Constraint
	Severity    Severity
	Message     []string
}

// NodeShape is a shapes-graph shape: targets plus node-level constraints
// plus property shapes. The IRI field is also the implicit class target
// (§4.6 "implicit class target uses the shape's own IRI").
type NodeShape struct {
	IRI               []byte
	Targets           []Target
	Constraints       []Constraint
	PropertyShapes    []PropertyShape
	Closed            bool
	IgnoredProperties [][]byte
}

// ShapesGraph is the full set of shapes a Validator checks focus nodes
// against. The engine assumes an acyclic shapes graph: recursive
// constraints (not/and/or/xone/node/qualifiedValueShape) re-enter
// validation without cycle detection, per the decided Open Question (§9)
// -- the host is responsible for not declaring cyclic shape references.
type ShapesGraph struct {
	Shapes []NodeShape
}
