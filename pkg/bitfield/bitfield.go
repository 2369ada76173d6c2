// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bitfield implements a big-endian, MSB-first codec for structures
// whose fields are not byte aligned.
//
// A structure is described by a Go struct type. Fields are laid out in
// declaration order starting at the most significant bit of the first byte.
// The width of a field is the width of its type unless narrowed by a
// `bitfield:"N"` tag:
//
//	type CommonPageHeader struct {
//		ParametersSaveable bool
//		SubpageFormat      bool
//		PageCode           uint8 `bitfield:"6"`
//		PageLength         uint8
//	}
//
// Supported field kinds are bool (1 bit), uint8 to uint64, byte arrays
// (8 bits per element, at any bit alignment), nested structs and arrays of
// any supported kind. Unexported fields and fields tagged `bitfield:"-"` are
// skipped.
//
// Decoding never reads past the input: missing bits read as zero. Encoding
// truncates values that do not fit their field.
package bitfield

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
)

type fieldKind int

const (
	kindBool fieldKind = iota
	kindUint
	kindBytes
	kindStruct
	kindArray
)

type field struct {
	index  int
	kind   fieldKind
	offset int // bit offset relative to the enclosing struct
	width  int // total bits
	sub    *plan
	elem   *field // array element, offset relative to element start
	length int
}

type plan struct {
	bits   int
	fields []field
}

var plans sync.Map // reflect.Type -> *plan

// InvalidTypeError is returned for types the codec cannot lay out.
type InvalidTypeError struct {
	Type   reflect.Type
	Reason string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("bitfield: invalid type %v: %s", e.Type, e.Reason)
}

func planFor(t reflect.Type) (*plan, error) {
	if p, ok := plans.Load(t); ok {
		return p.(*plan), nil
	}
	p, err := buildPlan(t)
	if err != nil {
		return nil, err
	}
	if p.bits%8 != 0 {
		return nil, &InvalidTypeError{t, fmt.Sprintf("%d bits is not a whole number of bytes", p.bits)}
	}
	actual, _ := plans.LoadOrStore(t, p)
	return actual.(*plan), nil
}

func buildPlan(t reflect.Type) (*plan, error) {
	if t.Kind() != reflect.Struct {
		return nil, &InvalidTypeError{t, "not a struct"}
	}
	p := &plan{}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("bitfield")
		if tag == "-" {
			continue
		}
		f, err := buildField(sf.Type)
		if err != nil {
			return nil, &InvalidTypeError{t, fmt.Sprintf("field %s: %v", sf.Name, err)}
		}
		if tag != "" {
			w, err := strconv.Atoi(tag)
			if err != nil || w <= 0 {
				return nil, &InvalidTypeError{t, fmt.Sprintf("field %s: bad width %q", sf.Name, tag)}
			}
			if f.kind != kindUint && f.kind != kindBool {
				return nil, &InvalidTypeError{t, fmt.Sprintf("field %s: width only applies to integers", sf.Name)}
			}
			if w > f.width && f.kind == kindUint {
				return nil, &InvalidTypeError{t, fmt.Sprintf("field %s: %d bits do not fit %v", sf.Name, w, sf.Type)}
			}
			f.width = w
		}
		f.index = i
		f.offset = p.bits
		p.bits += f.width
		p.fields = append(p.fields, f)
	}
	return p, nil
}

func buildField(t reflect.Type) (field, error) {
	switch t.Kind() {
	case reflect.Bool:
		return field{kind: kindBool, width: 1}, nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return field{kind: kindUint, width: t.Bits()}, nil
	case reflect.Struct:
		sub, err := buildPlan(t)
		if err != nil {
			return field{}, err
		}
		return field{kind: kindStruct, width: sub.bits, sub: sub}, nil
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return field{kind: kindBytes, width: 8 * t.Len(), length: t.Len()}, nil
		}
		elem, err := buildField(t.Elem())
		if err != nil {
			return field{}, err
		}
		return field{kind: kindArray, width: elem.width * t.Len(), elem: &elem, length: t.Len()}, nil
	}
	return field{}, fmt.Errorf("unsupported kind %v", t.Kind())
}

func structValue(v interface{}) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, &InvalidTypeError{reflect.TypeOf(v), "not a struct or pointer to struct"}
	}
	return rv, nil
}

// Size returns the number of bytes v occupies when encoded.
func Size(v interface{}) (int, error) {
	rv, err := structValue(v)
	if err != nil {
		return 0, err
	}
	p, err := planFor(rv.Type())
	if err != nil {
		return 0, err
	}
	return p.bits / 8, nil
}

// SizeOf is like Size for a type known to be valid.
func SizeOf(v interface{}) int {
	n, err := Size(v)
	if err != nil {
		panic(err)
	}
	return n
}

// Unmarshal decodes the leading bytes of data into the struct pointed to by v
// and returns the bytes that follow the structure. If data is shorter than
// the structure the missing bits decode as zero and the remainder is empty.
func Unmarshal(data []byte, v interface{}) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return data, &InvalidTypeError{reflect.TypeOf(v), "not a pointer to struct"}
	}
	rv = rv.Elem()
	p, err := planFor(rv.Type())
	if err != nil {
		return data, err
	}
	decodeStruct(data, 0, p, rv)
	n := p.bits / 8
	if n > len(data) {
		n = len(data)
	}
	return data[n:], nil
}

// MustUnmarshal is like Unmarshal but panics if v is not a valid layout.
func MustUnmarshal(data []byte, v interface{}) []byte {
	rest, err := Unmarshal(data, v)
	if err != nil {
		panic(err)
	}
	return rest
}

// Marshal encodes v (a struct or pointer to struct) into a newly allocated
// slice of exactly Size(v) bytes.
func Marshal(v interface{}) ([]byte, error) {
	rv, err := structValue(v)
	if err != nil {
		return nil, err
	}
	p, err := planFor(rv.Type())
	if err != nil {
		return nil, err
	}
	out := make([]byte, p.bits/8)
	encodeStruct(out, 0, p, rv)
	return out, nil
}

// MustMarshal is like Marshal but panics if v is not a valid layout.
func MustMarshal(v interface{}) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func decodeStruct(data []byte, base int, p *plan, rv reflect.Value) {
	for i := range p.fields {
		f := &p.fields[i]
		decodeField(data, base+f.offset, f, rv.Field(f.index))
	}
}

func decodeField(data []byte, off int, f *field, fv reflect.Value) {
	switch f.kind {
	case kindBool:
		fv.SetBool(getBits(data, off, f.width) != 0)
	case kindUint:
		fv.SetUint(getBits(data, off, f.width))
	case kindBytes:
		for i := 0; i < f.length; i++ {
			fv.Index(i).SetUint(getBits(data, off+8*i, 8))
		}
	case kindStruct:
		decodeStruct(data, off, f.sub, fv)
	case kindArray:
		for i := 0; i < f.length; i++ {
			decodeField(data, off+i*f.elem.width, f.elem, fv.Index(i))
		}
	}
}

func encodeStruct(out []byte, base int, p *plan, rv reflect.Value) {
	for i := range p.fields {
		f := &p.fields[i]
		encodeField(out, base+f.offset, f, rv.Field(f.index))
	}
}

func encodeField(out []byte, off int, f *field, fv reflect.Value) {
	switch f.kind {
	case kindBool:
		if fv.Bool() {
			putBits(out, off, f.width, 1)
		}
	case kindUint:
		putBits(out, off, f.width, fv.Uint())
	case kindBytes:
		for i := 0; i < f.length; i++ {
			putBits(out, off+8*i, 8, fv.Index(i).Uint())
		}
	case kindStruct:
		encodeStruct(out, off, f.sub, fv)
	case kindArray:
		for i := 0; i < f.length; i++ {
			encodeField(out, off+i*f.elem.width, f.elem, fv.Index(i))
		}
	}
}

// getBits reads n (<= 64) bits starting at bit offset off. Bits past the end
// of data read as zero.
func getBits(data []byte, off, n int) uint64 {
	var v uint64
	for n > 0 {
		idx, shift := off/8, off%8
		take := 8 - shift
		if take > n {
			take = n
		}
		var b byte
		if idx < len(data) {
			b = data[idx]
		}
		chunk := (b >> (8 - shift - take)) & byte(1<<take-1)
		v = v<<take | uint64(chunk)
		off += take
		n -= take
	}
	return v
}

// putBits writes the low n (<= 64) bits of v at bit offset off.
func putBits(out []byte, off, n int, v uint64) {
	for n > 0 {
		idx, shift := off/8, off%8
		take := 8 - shift
		if take > n {
			take = n
		}
		chunk := byte(v>>(n-take)) & byte(1<<take-1)
		pos := 8 - shift - take
		mask := byte(1<<take-1) << pos
		out[idx] = out[idx]&^mask | chunk<<pos
		off += take
		n -= take
	}
}
