// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cmdutil holds the plumbing shared by the command line tools.
package cmdutil

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v2"
)

// DefaultConfigPath is read when present, before any --config file.
const DefaultConfigPath = "~/.config/scsictl.yaml"

// YAML is a kong.ConfigurationLoader for flat YAML files mapping flag names
// to values, e.g.
//
//	device: /dev/sg2
//	timeout: 10s
//	log-level: debug
//
// Keys may use dashes or underscores.
func YAML(r io.Reader) (kong.Resolver, error) {
	values := map[string]interface{}{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config file could not be parsed: %v", err)
	}
	return kong.ResolverFunc(func(ctx *kong.Context, parent *kong.Path, flag *kong.Flag) (interface{}, error) {
		v, ok := values[flag.Name]
		if !ok {
			v, ok = values[strings.ReplaceAll(flag.Name, "-", "_")]
		}
		if !ok || v == nil {
			return nil, nil
		}
		switch v := v.(type) {
		case string:
			return v, nil
		case []interface{}, map[interface{}]interface{}:
			return nil, fmt.Errorf("config key %q must be a scalar", flag.Name)
		default:
			return fmt.Sprint(v), nil
		}
	}), nil
}
