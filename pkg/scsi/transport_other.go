// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux && !windows

package scsi

import (
	"runtime"
)

func openTransport(path string) (Transport, error) {
	return nil, otherError("SCSI pass-through is not supported on "+runtime.GOOS, nil)
}
