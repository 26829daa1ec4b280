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

// Package tuple implements an order-preserving encoding of heterogeneous
// typed tuples into byte keys (§6 "Tuple codec (consumed)"). Lexicographic
// comparison of two encoded keys matches semantic comparison of the
// decoded tuples for elements of a common type; comparison across types is
// governed by a stable per-type tag byte, never a stringify-then-lex
// fallback (§3 Subspace invariant, §9 design notes).
//
// Supported element types: nil, bool, int64, float64, string, []byte,
// uuid.UUID, and nested tuples ([]Element).
package tuple

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Element is one component of a tuple. The concrete type must be one of:
// nil, bool, int64 (or any signed integer type, widened to int64), float64
// (or float32, widened), string, []byte, uuid.UUID, or []Element for a
// nested tuple.
type Element = any

// type tags, chosen in a fixed, stable order so cross-type comparison is
// well defined even though it carries no semantic meaning beyond
// "nulls sort first, then bytes, strings, nested tuples, then numerics,
// then booleans, then UUIDs".
const (
	tagNull   byte = 0x00
	tagBytes  byte = 0x01
	tagString byte = 0x02
	tagNested byte = 0x03
	tagInt    byte = 0x0c
	tagFloat  byte = 0x0d
	tagFalse  byte = 0x0e
	tagTrue   byte = 0x0f
	tagUUID   byte = 0x10
)

// ErrMalformed is returned by Unpack when the input is not a validly
// encoded tuple produced by Pack.
var ErrMalformed = errors.New("tuple: malformed encoding")

// Pack encodes elements into an order-preserving byte string.
func Pack(elements ...Element) []byte {
	var buf []byte
	for _, e := range elements {
		buf = appendElement(buf, e)
	}
	return buf
}

func appendElement(buf []byte, e Element) []byte {
	switch v := e.(type) {
	case nil:
		return append(buf, tagNull)
	case []byte:
		return appendEscaped(buf, tagBytes, v)
	case string:
		return appendEscaped(buf, tagString, []byte(v))
	case []Element:
		buf = append(buf, tagNested)
		inner := Pack(v...)
		buf = appendEscapedBody(buf, inner)
		return append(buf, 0x00)
	case bool:
		if v {
			return append(buf, tagTrue)
		}
		return append(buf, tagFalse)
	case uuid.UUID:
		b := v
		return append(append(buf, tagUUID), b[:]...)
	case float32:
		return appendFloat(buf, float64(v))
	case float64:
		return appendFloat(buf, v)
	case int:
		return appendInt(buf, int64(v))
	case int8:
		return appendInt(buf, int64(v))
	case int16:
		return appendInt(buf, int64(v))
	case int32:
		return appendInt(buf, int64(v))
	case int64:
		return appendInt(buf, v)
	case uint:
		return appendInt(buf, int64(v))
	case uint8:
		return appendInt(buf, int64(v))
	case uint16:
		return appendInt(buf, int64(v))
	case uint32:
		return appendInt(buf, int64(v))
	case uint64:
		return appendInt(buf, int64(v))
	default:
		panic(fmt.Sprintf("tuple: unsupported element type %T", e))
	}
}

func appendInt(buf []byte, v int64) []byte {
	buf = append(buf, tagInt)
	var b [8]byte
	// Flipping the sign bit maps the signed range onto an unsigned range
	// in the same relative order, so big-endian byte comparison of the
	// encoded form matches numeric comparison of v.
	binary.BigEndian.PutUint64(b[:], uint64(v)^(1<<63))
	return append(buf, b[:]...)
}

func appendFloat(buf []byte, v float64) []byte {
	buf = append(buf, tagFloat)
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		// Negative: flip every bit so more-negative values sort first.
		bits = ^bits
	} else {
		// Non-negative: flip only the sign bit so it sorts after negatives.
		bits |= 1 << 63
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], bits)
	return append(buf, b[:]...)
}

// appendEscaped writes tag, then the escaped body, then a 0x00 terminator.
func appendEscaped(buf []byte, tag byte, body []byte) []byte {
	buf = append(buf, tag)
	buf = appendEscapedBody(buf, body)
	return append(buf, 0x00)
}

// appendEscapedBody replaces every 0x00 byte in body with 0x00 0xFF so the
// real terminator (a lone trailing 0x00) is unambiguous.
func appendEscapedBody(buf []byte, body []byte) []byte {
	for _, b := range body {
		if b == 0x00 {
			buf = append(buf, 0x00, 0xFF)
			continue
		}
		buf = append(buf, b)
	}
	return buf
}

// Unpack decodes a byte string produced by Pack back into its elements.
func Unpack(data []byte) ([]Element, error) {
	var out []Element
	for len(data) > 0 {
		e, rest, err := decodeOne(data)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		data = rest
	}
	return out, nil
}

func decodeOne(data []byte) (Element, []byte, error) {
	tag := data[0]
	data = data[1:]
	switch tag {
	case tagNull:
		return nil, data, nil
	case tagBytes:
		body, rest, err := decodeEscaped(data)
		return body, rest, err
	case tagString:
		body, rest, err := decodeEscaped(data)
		if err != nil {
			return nil, nil, err
		}
		return string(body), rest, nil
	case tagNested:
		body, rest, err := decodeEscaped(data)
		if err != nil {
			return nil, nil, err
		}
		inner, err := Unpack(body)
		if err != nil {
			return nil, nil, err
		}
		if inner == nil {
			inner = []Element{}
		}
		return Element(inner), rest, nil
	case tagInt:
		if len(data) < 8 {
			return nil, nil, ErrMalformed
		}
		u := binary.BigEndian.Uint64(data[:8])
		return int64(u ^ (1 << 63)), data[8:], nil
	case tagFloat:
		if len(data) < 8 {
			return nil, nil, ErrMalformed
		}
		bits := binary.BigEndian.Uint64(data[:8])
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		return math.Float64frombits(bits), data[8:], nil
	case tagFalse:
		return false, data, nil
	case tagTrue:
		return true, data, nil
	case tagUUID:
		if len(data) < 16 {
			return nil, nil, ErrMalformed
		}
		id, err := uuid.FromBytes(data[:16])
		if err != nil {
			return nil, nil, fmt.Errorf("tuple: %w: %w", ErrMalformed, err)
		}
		return id, data[16:], nil
	default:
		return nil, nil, fmt.Errorf("tuple: %w: unknown tag 0x%02x", ErrMalformed, tag)
	}
}

// decodeEscaped reads an escaped, 0x00-terminated body and returns it
// unescaped along with the remaining input.
func decodeEscaped(data []byte) ([]byte, []byte, error) {
	var out []byte
	for i := 0; i < len(data); i++ {
		if data[i] != 0x00 {
			out = append(out, data[i])
			continue
		}
		if i+1 < len(data) && data[i+1] == 0xFF {
			out = append(out, 0x00)
			i++
			continue
		}
		return out, data[i+1:], nil
	}
	return nil, nil, ErrMalformed
}
