// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// setField assigns value to the exported field name of the struct p points
// to. Unsigned fields are bounded by their bitfield width.
func setField(p interface{}, name, value string) error {
	rv := reflect.ValueOf(p)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("cannot set fields of %T", p)
	}
	rv = rv.Elem()
	sf, ok := rv.Type().FieldByName(name)
	if !ok || sf.PkgPath != "" || strings.HasPrefix(sf.Name, "Reserved") {
		return fmt.Errorf("%T has no field %q", p, name)
	}
	f := rv.FieldByIndex(sf.Index)

	switch f.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("field %s: %v", name, err)
		}
		f.SetBool(b)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		bits := f.Type().Bits()
		if tag, ok := sf.Tag.Lookup("bitfield"); ok {
			if n, err := strconv.Atoi(tag); err == nil {
				bits = n
			}
		}
		v, err := strconv.ParseUint(value, 0, bits)
		if err != nil {
			return fmt.Errorf("field %s: %v", name, err)
		}
		f.SetUint(v)
	default:
		return fmt.Errorf("field %s of type %s cannot be set", name, f.Type())
	}
	return nil
}
