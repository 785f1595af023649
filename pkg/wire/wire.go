/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// Package wire is a thin field-scanning layer over
// google.golang.org/protobuf/encoding/protowire.
//
// The generated schema library assumed by §9 ("Generated protobuf code
// is an external collaborator") is not part of this retrieval pack: no
// .proto sources for the simulator's wire messages were recovered by
// the reverse-engineering effort this spec describes. What this package
// gives the decoders (C5, C6) is the one rung below that: structural
// field iteration by tag number, with the known fields of each message
// pulled out by convention. Unknown fields fall through untouched, the
// same way an unrecognised oneof branch would with real generated code.
package wire

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrTruncated means the buffer ended mid-field.
var ErrTruncated = errors.New("wire: truncated message")

// Type re-exports protowire's wire-type constants so callers classifying
// a Field don't need their own import of protowire.
type Type = protowire.Type

const (
	VarintType  = protowire.VarintType
	Fixed32Type = protowire.Fixed32Type
	Fixed64Type = protowire.Fixed64Type
	BytesType   = protowire.BytesType
)

// Field is one decoded top-level field of a message.
type Field struct {
	Number protowire.Number
	Type   protowire.Type
	Raw    []byte // the field's value bytes, wire-type dependent encoding
}

// Each walks every top-level field of b in order, calling fn for each.
// fn returning a non-nil error aborts the walk and propagates the
// error.
func Each(b []byte, fn func(Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ErrTruncated
		}
		b = b[n:]

		var raw []byte
		switch typ {
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return ErrTruncated
			}
			raw = b[:n]
			b = b[n:]
		case protowire.Fixed32Type:
			_, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return ErrTruncated
			}
			raw = b[:n]
			b = b[n:]
		case protowire.Fixed64Type:
			_, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return ErrTruncated
			}
			raw = b[:n]
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return ErrTruncated
			}
			raw = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return ErrTruncated
			}
			raw = b[:n]
			b = b[n:]
		}

		if err := fn(Field{Number: num, Type: typ, Raw: raw}); err != nil {
			return err
		}
	}
	return nil
}

// Varint returns the decoded value of the first varint field matching
// num.
func Varint(b []byte, num protowire.Number) (uint64, bool) {
	var out uint64
	var found bool
	Each(b, func(f Field) error {
		if !found && f.Number == num && f.Type == protowire.VarintType {
			v, _ := protowire.ConsumeVarint(f.Raw)
			out, found = v, true
		}
		return nil
	})
	return out, found
}

// Bytes returns the raw bytes of the first length-delimited field
// matching num (covers both `bytes`/`string` scalars and embedded
// messages).
func Bytes(b []byte, num protowire.Number) ([]byte, bool) {
	var out []byte
	var found bool
	Each(b, func(f Field) error {
		if !found && f.Number == num && f.Type == protowire.BytesType {
			out, found = f.Raw, true
		}
		return nil
	})
	return out, found
}

// String returns the first length-delimited field matching num,
// decoded as UTF-8 text.
func String(b []byte, num protowire.Number) (string, bool) {
	v, ok := Bytes(b, num)
	return string(v), ok
}

// Fixed64 returns the raw 64-bit value of the first fixed64 field
// matching num (callers decide whether to read it as a double or a
// uint64).
func Fixed64(b []byte, num protowire.Number) (uint64, bool) {
	var out uint64
	var found bool
	Each(b, func(f Field) error {
		if !found && f.Number == num && f.Type == Fixed64Type {
			v, _ := protowire.ConsumeFixed64(f.Raw)
			out, found = v, true
		}
		return nil
	})
	return out, found
}

// Messages returns the raw bytes of every length-delimited field
// matching num, in order (covers a `repeated` embedded message).
func Messages(b []byte, num protowire.Number) [][]byte {
	var out [][]byte
	Each(b, func(f Field) error {
		if f.Number == num && f.Type == protowire.BytesType {
			out = append(out, f.Raw)
		}
		return nil
	})
	return out
}
