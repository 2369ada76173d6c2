// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cdb builds command descriptor blocks for the commands used by the
// page and block shortcuts.
package cdb

import (
	"github.com/open-source-firmware/go-scsi/pkg/bitfield"
	"github.com/open-source-firmware/go-scsi/pkg/scsi"
)

// Operation codes
const (
	TestUnitReady     = 0x00
	RequestSense      = 0x03
	Inquiry           = 0x12
	ModeSelect6       = 0x15
	ModeSense6        = 0x1A
	ReadCapacity10    = 0x25
	Read10            = 0x28
	Write10           = 0x2A
	SynchronizeCache  = 0x35
	Unmap             = 0x42
	LogSense          = 0x4D
	ModeSelect10      = 0x55
	ModeSense10       = 0x5A
	Read16            = 0x88
	Write16           = 0x8A
	ServiceActionIn16 = 0x9E

	ReadCapacity16ServiceAction = 0x10
)

// PageControl selects which values MODE SENSE and LOG SENSE report.
type PageControl uint8

const (
	PageControlCurrent    PageControl = 0
	PageControlChangeable PageControl = 1
	PageControlDefault    PageControl = 2
	PageControlSaved      PageControl = 3
)

// LOG SENSE reads the page control field as threshold or cumulative values.
const (
	PageControlThreshold         PageControl = 0
	PageControlCumulative        PageControl = 1
	PageControlDefaultThreshold  PageControl = 2
	PageControlDefaultCumulative PageControl = 3
)

// Allocation length limits of the CDB families.
const (
	MaxAllocationLength8  = 0xFF
	MaxAllocationLength16 = 0xFFFF
)

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

type inquiryCDB struct {
	OperationCode    uint8
	Reserved0        uint8 `bitfield:"6"`
	Obsolete         bool
	EVPD             bool
	PageCode         uint8
	AllocationLength uint16
	Control          uint8
}

// NewInquiry builds INQUIRY. A nil page requests standard inquiry data.
func NewInquiry(page *uint8, allocationLength int) scsi.Command {
	n := clamp(allocationLength, MaxAllocationLength16)
	c := inquiryCDB{OperationCode: Inquiry, AllocationLength: uint16(n)}
	if page != nil {
		c.EVPD = true
		c.PageCode = *page
	}
	return scsi.NewDataIn(bitfield.MustMarshal(c), n)
}

type modeSense6CDB struct {
	OperationCode          uint8
	Reserved0              uint8 `bitfield:"4"`
	DisableBlockDescriptor bool
	Reserved1              uint8 `bitfield:"3"`
	PageControl            uint8 `bitfield:"2"`
	PageCode               uint8 `bitfield:"6"`
	SubpageCode            uint8
	AllocationLength       uint8
	Control                uint8
}

// ModeSenseRequest holds the fields shared by MODE SENSE(6) and (10).
type ModeSenseRequest struct {
	LongLBAAccepted        bool
	DisableBlockDescriptor bool
	PageControl            PageControl
	PageCode               uint8
	SubpageCode            uint8
}

// NewModeSense6 builds MODE SENSE(6).
func NewModeSense6(req ModeSenseRequest, allocationLength int) scsi.Command {
	n := clamp(allocationLength, MaxAllocationLength8)
	c := modeSense6CDB{
		OperationCode:          ModeSense6,
		DisableBlockDescriptor: req.DisableBlockDescriptor,
		PageControl:            uint8(req.PageControl),
		PageCode:               req.PageCode,
		SubpageCode:            req.SubpageCode,
		AllocationLength:       uint8(n),
	}
	return scsi.NewDataIn(bitfield.MustMarshal(c), n)
}

type modeSense10CDB struct {
	OperationCode          uint8
	Reserved0              uint8 `bitfield:"3"`
	LongLBAAccepted        bool
	DisableBlockDescriptor bool
	Reserved1              uint8 `bitfield:"3"`
	PageControl            uint8 `bitfield:"2"`
	PageCode               uint8 `bitfield:"6"`
	SubpageCode            uint8
	Reserved2              [3]byte
	AllocationLength       uint16
	Control                uint8
}

// NewModeSense10 builds MODE SENSE(10).
func NewModeSense10(req ModeSenseRequest, allocationLength int) scsi.Command {
	n := clamp(allocationLength, MaxAllocationLength16)
	c := modeSense10CDB{
		OperationCode:          ModeSense10,
		LongLBAAccepted:        req.LongLBAAccepted,
		DisableBlockDescriptor: req.DisableBlockDescriptor,
		PageControl:            uint8(req.PageControl),
		PageCode:               req.PageCode,
		SubpageCode:            req.SubpageCode,
		AllocationLength:       uint16(n),
	}
	return scsi.NewDataIn(bitfield.MustMarshal(c), n)
}

type modeSelect6CDB struct {
	OperationCode       uint8
	Reserved0           uint8 `bitfield:"3"`
	PageFormat          bool
	Reserved1           uint8 `bitfield:"3"`
	SavePages           bool
	Reserved2           uint16
	ParameterListLength uint8
	Control             uint8
}

// NewModeSelect6 builds MODE SELECT(6) sending the parameter list data.
func NewModeSelect6(pageFormat, savePages bool, data []byte) (scsi.Command, error) {
	if len(data) > MaxAllocationLength8 {
		return scsi.Command{}, scsi.ArgumentOutOfBounds("mode parameter list of %d bytes exceeds %d", len(data), MaxAllocationLength8)
	}
	c := modeSelect6CDB{
		OperationCode:       ModeSelect6,
		PageFormat:          pageFormat,
		SavePages:           savePages,
		ParameterListLength: uint8(len(data)),
	}
	return scsi.NewDataOut(bitfield.MustMarshal(c), data), nil
}

type modeSelect10CDB struct {
	OperationCode       uint8
	Reserved0           uint8 `bitfield:"3"`
	PageFormat          bool
	Reserved1           uint8 `bitfield:"2"`
	RevertToDefaults    bool
	SavePages           bool
	Reserved2           [5]byte
	ParameterListLength uint16
	Control             uint8
}

// NewModeSelect10 builds MODE SELECT(10) sending the parameter list data.
func NewModeSelect10(pageFormat, savePages bool, data []byte) (scsi.Command, error) {
	if len(data) > MaxAllocationLength16 {
		return scsi.Command{}, scsi.ArgumentOutOfBounds("mode parameter list of %d bytes exceeds %d", len(data), MaxAllocationLength16)
	}
	c := modeSelect10CDB{
		OperationCode:       ModeSelect10,
		PageFormat:          pageFormat,
		SavePages:           savePages,
		ParameterListLength: uint16(len(data)),
	}
	return scsi.NewDataOut(bitfield.MustMarshal(c), data), nil
}

type logSenseCDB struct {
	OperationCode    uint8
	Reserved0        uint8 `bitfield:"6"`
	Obsolete         bool
	SaveParameters   bool
	PageControl      uint8 `bitfield:"2"`
	PageCode         uint8 `bitfield:"6"`
	SubpageCode      uint8
	Reserved1        uint8
	ParameterPointer uint16
	AllocationLength uint16
	Control          uint8
}

// LogSenseRequest holds the LOG SENSE fields.
type LogSenseRequest struct {
	SaveParameters   bool
	PageControl      PageControl
	PageCode         uint8
	SubpageCode      uint8
	ParameterPointer uint16
}

// NewLogSense builds LOG SENSE.
func NewLogSense(req LogSenseRequest, allocationLength int) scsi.Command {
	n := clamp(allocationLength, MaxAllocationLength16)
	c := logSenseCDB{
		OperationCode:    LogSense,
		SaveParameters:   req.SaveParameters,
		PageControl:      uint8(req.PageControl),
		PageCode:         req.PageCode,
		SubpageCode:      req.SubpageCode,
		ParameterPointer: req.ParameterPointer,
		AllocationLength: uint16(n),
	}
	return scsi.NewDataIn(bitfield.MustMarshal(c), n)
}
