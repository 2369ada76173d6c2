// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scsi issues SCSI commands through the operating system
// pass-through interface and classifies their outcome.
package scsi

import (
	"time"

	"github.com/open-source-firmware/go-scsi/pkg/logger"
)

//go:generate mockgen -destination=mocks/mock_transport.go -package=mocks github.com/open-source-firmware/go-scsi/pkg/scsi Transport

// DefaultTimeout applies to devices until SetTimeout is called.
const DefaultTimeout = 60 * time.Second

// Direction is the data transfer direction of a command.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionIn
	DirectionOut
)

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	}
	return "none"
}

// Command is a CDB with its data buffer. For DirectionIn the buffer length is
// the expected data-in capacity, for DirectionOut it is the payload.
type Command struct {
	CDB       []byte
	Direction Direction
	Data      []byte
}

// NewDataIn builds a command reading up to n bytes.
func NewDataIn(cdb []byte, n int) Command {
	return Command{CDB: cdb, Direction: DirectionIn, Data: make([]byte, n)}
}

// NewDataOut builds a command writing data.
func NewDataOut(cdb []byte, data []byte) Command {
	return Command{CDB: cdb, Direction: DirectionOut, Data: data}
}

// NewNoData builds a command without a data phase.
func NewNoData(cdb []byte) Command {
	return Command{CDB: cdb, Direction: DirectionNone}
}

// Transport submits a command through a platform pass-through interface.
// Execute blocks until the command completes or the timeout expires and never
// interprets the SCSI status.
type Transport interface {
	Execute(cmd Command, timeout time.Duration) *ResultData
	Close() error
}

// Device is an open handle to a SCSI device. A Device is not safe for
// concurrent use.
type Device struct {
	t       Transport
	timeout time.Duration
}

// Open opens the device at path through the platform transport.
func Open(path string) (*Device, error) {
	t, err := openTransport(path)
	if err != nil {
		return nil, err
	}
	return NewDevice(t), nil
}

// NewDevice wraps an already open transport.
func NewDevice(t Transport) *Device {
	return &Device{t: t, timeout: DefaultTimeout}
}

func (d *Device) SetTimeout(timeout time.Duration) {
	d.timeout = timeout
}

func (d *Device) Timeout() time.Duration {
	return d.timeout
}

// Execute issues cmd and returns the raw outcome without classification.
func (d *Device) Execute(cmd Command) *ResultData {
	if len(cmd.CDB) > 0 {
		logger.Debugf("scsi: issue opcode %#02x, direction %v, %d bytes", cmd.CDB[0], cmd.Direction, len(cmd.Data))
	}
	return d.t.Execute(cmd, d.timeout)
}

// Issue executes cmd and fails with a KindIO error when the OS call failed.
// The device level outcome is left to the caller (see CheckCommonError).
func (d *Device) Issue(cmd Command) (*ResultData, error) {
	if len(cmd.CDB) == 0 {
		return nil, BadArgument("empty CDB")
	}
	r := d.Execute(cmd)
	if err := r.CheckIoctlError(); err != nil {
		logger.Debugf("scsi: pass-through failed: %v", err)
		return nil, err
	}
	return r, nil
}

// IssueChecked is Issue followed by CheckCommonError.
func (d *Device) IssueChecked(cmd Command) (*ResultData, error) {
	r, err := d.Issue(cmd)
	if err != nil {
		return nil, err
	}
	if err := r.CheckCommonError(); err != nil {
		logger.Debugf("scsi: opcode %#02x failed: %v", cmd.CDB[0], err)
		return nil, err
	}
	return r, nil
}

func (d *Device) Close() error {
	return d.t.Close()
}
