// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scsi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ResultData is the outcome of one issuance. It references the caller's data
// buffer and must not outlive it.
type ResultData struct {
	// IoctlErr is the OS level failure of the pass-through call, nil when the
	// call itself succeeded.
	IoctlErr error

	TransferredDataLength  int
	Data                   []byte
	TransferredSenseLength int
	Sense                  SenseData
	Status                 Status

	// Transport status, reported by the Linux transport only.
	HostStatus   HostStatus
	DriverStatus DriverStatus
	Info         AuxiliaryInfo
}

// Payload returns the part of the data buffer the device actually wrote.
func (r *ResultData) Payload() []byte {
	n := r.TransferredDataLength
	if n > len(r.Data) {
		n = len(r.Data)
	}
	if n < 0 {
		n = 0
	}
	return r.Data[:n]
}

// SenseBytes returns the transferred part of the sense buffer.
func (r *ResultData) SenseBytes() []byte {
	n := r.TransferredSenseLength
	if n > MaxSenseLength {
		n = MaxSenseLength
	}
	if n < 0 {
		n = 0
	}
	return r.Sense[:n]
}

// CheckIoctlError reports whether the pass-through call failed at the OS
// level. Requests the transport refused to build keep their own kind.
func (r *ResultData) CheckIoctlError() error {
	if r.IoctlErr == nil {
		return nil
	}
	var serr *Error
	if errors.As(r.IoctlErr, &serr) {
		return serr
	}
	return IOError(r.IoctlErr)
}

type statusError struct {
	what  string
	value fmt.Stringer
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: %v.", e.what, e.value)
}

type senseError []byte

func (e senseError) Error() string {
	parts := make([]string, len(e))
	for i, b := range e {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return "Sense data: [" + strings.Join(parts, ", ") + "]"
}

func compositeFormat(es []error) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return strings.Join(parts, " ")
}

// CheckCommonError classifies the device level outcome of a call that
// reached the device. It returns nil for a clean GOOD completion, a
// KindCheckCondition error carrying the sense data when CHECK CONDITION is
// the only problem reported, and a KindOther error describing every failing
// layer otherwise.
func (r *ResultData) CheckCommonError() error {
	var merr *multierror.Error

	if r.HostStatus != HostOK {
		merr = multierror.Append(merr, &statusError{"host status", r.HostStatus})
	}
	if !r.DriverStatus.IsEmpty() {
		merr = multierror.Append(merr, &statusError{"driver status", r.DriverStatus})
	}
	if r.Status != StatusGood {
		merr = multierror.Append(merr, &statusError{"Status", r.Status})
	}
	if r.TransferredSenseLength != 0 {
		merr = multierror.Append(merr, senseError(r.SenseBytes()))
	}
	if merr == nil {
		return nil
	}

	if r.Status == StatusCheckCondition && r.HostStatus == HostOK &&
		(r.DriverStatus.IsEmpty() || r.DriverStatus == DriverSense) {
		return &Error{Kind: KindCheckCondition, Sense: ParseSense(r.SenseBytes())}
	}

	merr.ErrorFormat = compositeFormat
	return otherError(merr.Error(), merr.ErrorOrNil())
}
