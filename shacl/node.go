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

// Package shacl implements a constraint-checking engine over the graph
// store (§4.6): targets resolve to focus nodes, focus nodes are checked
// against a shape's node-level and property-level constraints, including
// recursive logical composition (not/and/or/xone/node/qualifiedValueShape)
// and closed-shape augmentation by declared property paths (W3C §4.8.1).
package shacl

import (
	"fmt"

	"github.com/fusiondb/fusion-index/fieldvalue"
	"github.com/fusiondb/fusion-index/tuple"
)

// Kind tags an RDF term's dynamic shape (§4.6 nodeKind constraint).
type Kind uint8

const (
	KindIRI Kind = iota
	KindBlankNode
	KindLiteral
)

// Node is an RDF term: an IRI, a blank node, or a literal value. Graph
// edges store a Node's encoded bytes as an opaque identifier (for
// IRI/BlankNode) or a tuple-packed literal (for Literal), so the same
// graph.EdgeStore that backs the pattern evaluator also backs SHACL's
// triple scans.
type Node struct {
	kind    Kind
	id      []byte
	literal fieldvalue.FieldValue
	lang    string
}

// IRI returns an IRI-kind term identified by id.
func IRI(id []byte) Node { return Node{kind: KindIRI, id: append([]byte(nil), id...)} }

// BlankNode returns a blank-node term identified by id.
func BlankNode(id []byte) Node { return Node{kind: KindBlankNode, id: append([]byte(nil), id...)} }

// Literal returns a plain literal term with no language tag.
func Literal(v fieldvalue.FieldValue) Node { return Node{kind: KindLiteral, literal: v} }

// LanguageLiteral returns a literal term tagged with an RDF language tag
// (e.g. "en"), for the languageIn/uniqueLang constraints.
func LanguageLiteral(v fieldvalue.FieldValue, lang string) Node {
	return Node{kind: KindLiteral, literal: v, lang: lang}
}

func (n Node) Kind() Kind                     { return n.kind }
func (n Node) ID() []byte                     { return n.id }
func (n Node) LiteralValue() fieldvalue.FieldValue { return n.literal }
func (n Node) Lang() string                   { return n.lang }
func (n Node) IsIRI() bool                    { return n.kind == KindIRI }
func (n Node) IsBlankNode() bool              { return n.kind == KindBlankNode }
func (n Node) IsLiteral() bool                { return n.kind == KindLiteral }

// String renders n for violation messages.
func (n Node) String() string {
	switch n.kind {
	case KindIRI:
		return string(n.id)
	case KindBlankNode:
		return "_:" + string(n.id)
	default:
		return fmt.Sprintf("%v", n.literal)
	}
}

func literalElement(v fieldvalue.FieldValue) (tuple.Element, error) {
	switch v.Kind() {
	case fieldvalue.KindInt64:
		i, _ := v.Int64()
		return i, nil
	case fieldvalue.KindFloat64:
		f, _ := v.Float64()
		return f, nil
	case fieldvalue.KindBool:
		b, _ := v.Bool()
		return b, nil
	case fieldvalue.KindString:
		s, _ := v.String()
		return s, nil
	case fieldvalue.KindBytes:
		b, _ := v.Bytes()
		return b, nil
	case fieldvalue.KindUUID:
		u, _ := v.UUID()
		return u, nil
	case fieldvalue.KindDate:
		t, _ := v.Date()
		return t.UnixNano(), nil
	default:
		return nil, fmt.Errorf("shacl: literal of kind %d is not encodable", v.Kind())
	}
}

func literalFromElement(el tuple.Element) (fieldvalue.FieldValue, error) {
	switch v := el.(type) {
	case int64:
		return fieldvalue.Int64(v), nil
	case float64:
		return fieldvalue.Float64(v), nil
	case bool:
		return fieldvalue.Bool(v), nil
	case string:
		return fieldvalue.String(v), nil
	case []byte:
		return fieldvalue.Bytes(v), nil
	default:
		return fieldvalue.FieldValue{}, fmt.Errorf("shacl: undecodable literal element %T", el)
	}
}

// EncodeNode renders n as the opaque bytes a graph.Edge endpoint carries.
func EncodeNode(n Node) []byte {
	switch n.kind {
	case KindIRI:
		return tuple.Pack(uint8(KindIRI), n.id)
	case KindBlankNode:
		return tuple.Pack(uint8(KindBlankNode), n.id)
	default:
		el, err := literalElement(n.literal)
		if err != nil {
			// Encoding is only ever called with values this package
			// constructed; an unencodable literal is a programming error.
			panic(err)
		}
		return tuple.Pack(uint8(KindLiteral), el, n.lang)
	}
}

// DecodeNode reverses EncodeNode for IRIs, blank nodes, and int64, float64,
// bool, string and bytes literals. A date literal decodes as an int64
// literal holding its UnixNano value, and a UUID literal returns an error.
func DecodeNode(raw []byte) (Node, error) {
	elems, err := tuple.Unpack(raw)
	if err != nil {
		return Node{}, err
	}
	if len(elems) == 0 {
		return Node{}, fmt.Errorf("shacl: empty node encoding")
	}
	tag, ok := elems[0].(int64)
	if !ok {
		return Node{}, fmt.Errorf("shacl: malformed node kind tag")
	}
	switch Kind(tag) {
	case KindIRI:
		if len(elems) != 2 {
			return Node{}, fmt.Errorf("shacl: malformed IRI node encoding")
		}
		id, ok := elems[1].([]byte)
		if !ok {
			return Node{}, fmt.Errorf("shacl: malformed IRI node encoding")
		}
		return IRI(id), nil
	case KindBlankNode:
		if len(elems) != 2 {
			return Node{}, fmt.Errorf("shacl: malformed blank node encoding")
		}
		id, ok := elems[1].([]byte)
		if !ok {
			return Node{}, fmt.Errorf("shacl: malformed blank node encoding")
		}
		return BlankNode(id), nil
	case KindLiteral:
		if len(elems) != 3 {
			return Node{}, fmt.Errorf("shacl: malformed literal node encoding")
		}
		v, err := literalFromElement(elems[1])
		if err != nil {
			return Node{}, err
		}
		lang, _ := elems[2].(string)
		return LanguageLiteral(v, lang), nil
	default:
		return Node{}, fmt.Errorf("shacl: unknown node kind tag %d", tag)
	}
}
