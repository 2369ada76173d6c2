// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmdutil

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/term"
)

// Format selects how decoded data is printed.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatSpew  Format = "spew"
)

// IsTerminal reports whether f is connected to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ParseFormat validates s. An empty s picks table output for terminals and
// JSON otherwise.
func ParseFormat(s string, stdout *os.File) (Format, error) {
	switch f := Format(s); f {
	case "":
		if stdout != nil && IsTerminal(stdout) {
			return FormatTable, nil
		}
		return FormatJSON, nil
	case FormatTable, FormatJSON, FormatSpew:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format %q, want one of table, json, spew", s)
}

// Print writes v to w in format f.
func Print(w io.Writer, f Format, v interface{}) error {
	switch f {
	case FormatJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %v", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case FormatSpew:
		spew.Fdump(w, v)
		return nil
	}
	return PrintFields(w, v)
}

// PrintFields writes one "name value" line per exported field of v, with
// embedded structs flattened and nested values prefixed by their path.
// Reserved fields are left out.
func PrintFields(w io.Writer, v interface{}) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			fmt.Fprintln(tw, "-")
			return tw.Flush()
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		fields(tw, "", rv)
	} else {
		value(tw, "", rv)
	}
	return tw.Flush()
}

func fields(w io.Writer, prefix string, rv reflect.Value) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" || strings.HasPrefix(sf.Name, "Reserved") {
			continue
		}
		f := rv.Field(i)
		if sf.Anonymous && f.Kind() == reflect.Struct {
			fields(w, prefix, f)
			continue
		}
		value(w, prefix+sf.Name, f)
	}
}

func stringer(rv reflect.Value) (fmt.Stringer, bool) {
	if rv.CanAddr() {
		if s, ok := rv.Addr().Interface().(fmt.Stringer); ok {
			return s, true
		}
	}
	if rv.CanInterface() {
		s, ok := rv.Interface().(fmt.Stringer)
		return s, ok
	}
	return nil, false
}

func value(w io.Writer, name string, rv reflect.Value) {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			fmt.Fprintf(w, "%s\t-\n", name)
			return
		}
		rv = rv.Elem()
	}
	if s, ok := stringer(rv); ok {
		fmt.Fprintf(w, "%s\t%s\n", name, s.String())
		return
	}
	switch rv.Kind() {
	case reflect.Struct:
		fields(w, name+".", rv)
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			fmt.Fprintf(w, "%s\t%s\n", name, hex.EncodeToString(b))
			return
		}
		for i := 0; i < rv.Len(); i++ {
			value(w, fmt.Sprintf("%s[%d]", name, i), rv.Index(i))
		}
	default:
		fmt.Fprintf(w, "%s\t%v\n", name, rv.Interface())
	}
}
