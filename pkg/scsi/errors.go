// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scsi

import (
	"fmt"
)

// Kind classifies an Error. A Kind is itself an error so that it can be used
// as a sentinel with errors.Is.
type Kind int

const (
	KindOther Kind = iota
	KindNotBlockDevice
	KindNotScsiDevice
	KindArgumentOutOfBounds
	KindBadArgument
	KindCheckCondition
	KindIO
)

var kindNames = map[Kind]string{
	KindOther:               "other",
	KindNotBlockDevice:      "not a block device",
	KindNotScsiDevice:       "not a SCSI generic device",
	KindArgumentOutOfBounds: "argument out of bounds",
	KindBadArgument:         "bad argument",
	KindCheckCondition:      "check condition",
	KindIO:                  "I/O error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) Error() string {
	return "scsi: " + k.String()
}

var (
	ErrNotBlockDevice      error = KindNotBlockDevice
	ErrNotScsiDevice       error = KindNotScsiDevice
	ErrArgumentOutOfBounds error = KindArgumentOutOfBounds
	ErrBadArgument         error = KindBadArgument
	ErrCheckCondition      error = KindCheckCondition
	ErrIO                  error = KindIO
	ErrOther               error = KindOther
)

// Error is returned for every device or argument related failure.
type Error struct {
	Kind Kind
	// Path of the device for the open-time kinds.
	Path string
	// Msg describes argument errors and composite device failures.
	Msg string
	// Sense is set for KindCheckCondition.
	Sense *Sense
	// Err is the OS error for KindIO.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotBlockDevice:
		return fmt.Sprintf("%s is not a block device.", e.Path)
	case KindNotScsiDevice:
		return fmt.Sprintf("%s is not an SCSI Generic device, or old SCSI Generic driver.", e.Path)
	case KindArgumentOutOfBounds, KindBadArgument:
		return "Bad argument: " + e.Msg
	case KindCheckCondition:
		return fmt.Sprintf("Check condition: %v", e.Sense)
	case KindIO:
		if e.Err == nil {
			return "I/O error"
		}
		return e.Err.Error()
	}
	if e.Msg == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func notBlockDevice(path string) error {
	return &Error{Kind: KindNotBlockDevice, Path: path}
}

func notScsiDevice(path string) error {
	return &Error{Kind: KindNotScsiDevice, Path: path}
}

// ArgumentOutOfBounds reports a caller supplied value outside its legal range.
func ArgumentOutOfBounds(format string, a ...interface{}) error {
	return &Error{Kind: KindArgumentOutOfBounds, Msg: fmt.Sprintf(format, a...)}
}

// BadArgument reports an invalid caller supplied value.
func BadArgument(format string, a ...interface{}) error {
	return &Error{Kind: KindBadArgument, Msg: fmt.Sprintf(format, a...)}
}

// IOError wraps an OS level error.
func IOError(err error) error {
	return &Error{Kind: KindIO, Err: err}
}

func otherError(msg string, cause error) error {
	return &Error{Kind: KindOther, Msg: msg, Err: cause}
}
