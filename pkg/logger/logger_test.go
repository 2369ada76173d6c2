// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logger

import (
	"bytes"
	"testing"

	"github.com/cihub/seelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevels(t *testing.T) {
	defer UseLogger(seelog.Disabled)

	var buf bytes.Buffer
	require.NoError(t, Setup(&buf, "info"))

	Debugf("hidden %d", 1)
	Infof("shown %d", 2)
	Flush()

	assert.NotContains(t, buf.String(), "hidden 1")
	assert.Contains(t, buf.String(), "shown 2")
}

func TestSetupUnknownLevel(t *testing.T) {
	assert.Error(t, Setup(&bytes.Buffer{}, "loud"))
}

func TestSetupNone(t *testing.T) {
	defer UseLogger(seelog.Disabled)

	var buf bytes.Buffer
	require.NoError(t, Setup(&buf, "none"))
	Errorf("nothing")
	Flush()
	assert.Empty(t, buf.String())
}
