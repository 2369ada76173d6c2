// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cdb

import (
	"github.com/open-source-firmware/go-scsi/pkg/bitfield"
	"github.com/open-source-firmware/go-scsi/pkg/scsi"
)

type testUnitReadyCDB struct {
	OperationCode uint8
	Reserved      [4]byte
	Control       uint8
}

// NewTestUnitReady builds TEST UNIT READY.
func NewTestUnitReady() scsi.Command {
	return scsi.NewNoData(bitfield.MustMarshal(testUnitReadyCDB{OperationCode: TestUnitReady}))
}

type requestSenseCDB struct {
	OperationCode    uint8
	Reserved0        uint8 `bitfield:"7"`
	DescriptorFormat bool
	Reserved1        uint16
	AllocationLength uint8
	Control          uint8
}

// NewRequestSense builds REQUEST SENSE.
func NewRequestSense(descriptorFormat bool) scsi.Command {
	c := requestSenseCDB{
		OperationCode:    RequestSense,
		DescriptorFormat: descriptorFormat,
		AllocationLength: scsi.MaxSenseLength,
	}
	return scsi.NewDataIn(bitfield.MustMarshal(c), scsi.MaxSenseLength)
}

type readCapacity10CDB struct {
	OperationCode uint8
	Reserved      [8]byte
	Control       uint8
}

// ReadCapacity10Length is the size of the READ CAPACITY(10) parameter data.
const ReadCapacity10Length = 8

// NewReadCapacity10 builds READ CAPACITY(10).
func NewReadCapacity10() scsi.Command {
	c := readCapacity10CDB{OperationCode: ReadCapacity10}
	return scsi.NewDataIn(bitfield.MustMarshal(c), ReadCapacity10Length)
}

type readCapacity16CDB struct {
	OperationCode    uint8
	Reserved0        uint8 `bitfield:"3"`
	ServiceAction    uint8 `bitfield:"5"`
	Obsolete         uint64
	AllocationLength uint32
	Reserved1        uint8
	Control          uint8
}

// ReadCapacity16Length is the size of the READ CAPACITY(16) parameter data.
const ReadCapacity16Length = 32

// NewReadCapacity16 builds READ CAPACITY(16).
func NewReadCapacity16() scsi.Command {
	c := readCapacity16CDB{
		OperationCode:    ServiceActionIn16,
		ServiceAction:    ReadCapacity16ServiceAction,
		AllocationLength: ReadCapacity16Length,
	}
	return scsi.NewDataIn(bitfield.MustMarshal(c), ReadCapacity16Length)
}

type rw10CDB struct {
	OperationCode       uint8
	Protect             uint8 `bitfield:"3"`
	DisablePageOut      bool
	ForceUnitAccess     bool
	Reserved0           uint8 `bitfield:"3"`
	LogicalBlockAddress uint32
	Reserved1           uint8 `bitfield:"3"`
	GroupNumber         uint8 `bitfield:"5"`
	TransferLength      uint16
	Control             uint8
}

type rw16CDB struct {
	OperationCode       uint8
	Protect             uint8 `bitfield:"3"`
	DisablePageOut      bool
	ForceUnitAccess     bool
	Reserved0           uint8 `bitfield:"3"`
	LogicalBlockAddress uint64
	TransferLength      uint32
	Reserved1           uint8 `bitfield:"3"`
	GroupNumber         uint8 `bitfield:"5"`
	Control             uint8
}

// Transfer describes a READ or WRITE of whole logical blocks.
type Transfer struct {
	LogicalBlockAddress uint64
	Blocks              uint32
	ForceUnitAccess     bool
}

func checkTransfer(t Transfer, buf []byte, blockSize int) error {
	if blockSize <= 0 {
		return scsi.BadArgument("block size %d", blockSize)
	}
	if len(buf) != int(t.Blocks)*blockSize {
		return scsi.BadArgument("buffer of %d bytes does not hold %d blocks of %d bytes", len(buf), t.Blocks, blockSize)
	}
	return nil
}

// NewRead10 builds READ(10) into buf.
func NewRead10(t Transfer, buf []byte, blockSize int) (scsi.Command, error) {
	if err := checkTransfer(t, buf, blockSize); err != nil {
		return scsi.Command{}, err
	}
	if t.LogicalBlockAddress > 0xFFFFFFFF || t.Blocks > 0xFFFF {
		return scsi.Command{}, scsi.ArgumentOutOfBounds("READ(10) cannot address LBA %d count %d", t.LogicalBlockAddress, t.Blocks)
	}
	c := rw10CDB{
		OperationCode:       Read10,
		ForceUnitAccess:     t.ForceUnitAccess,
		LogicalBlockAddress: uint32(t.LogicalBlockAddress),
		TransferLength:      uint16(t.Blocks),
	}
	return scsi.Command{CDB: bitfield.MustMarshal(c), Direction: scsi.DirectionIn, Data: buf}, nil
}

// NewRead16 builds READ(16) into buf.
func NewRead16(t Transfer, buf []byte, blockSize int) (scsi.Command, error) {
	if err := checkTransfer(t, buf, blockSize); err != nil {
		return scsi.Command{}, err
	}
	c := rw16CDB{
		OperationCode:       Read16,
		ForceUnitAccess:     t.ForceUnitAccess,
		LogicalBlockAddress: t.LogicalBlockAddress,
		TransferLength:      t.Blocks,
	}
	return scsi.Command{CDB: bitfield.MustMarshal(c), Direction: scsi.DirectionIn, Data: buf}, nil
}

// NewWrite10 builds WRITE(10) from buf.
func NewWrite10(t Transfer, buf []byte, blockSize int) (scsi.Command, error) {
	if err := checkTransfer(t, buf, blockSize); err != nil {
		return scsi.Command{}, err
	}
	if t.LogicalBlockAddress > 0xFFFFFFFF || t.Blocks > 0xFFFF {
		return scsi.Command{}, scsi.ArgumentOutOfBounds("WRITE(10) cannot address LBA %d count %d", t.LogicalBlockAddress, t.Blocks)
	}
	c := rw10CDB{
		OperationCode:       Write10,
		ForceUnitAccess:     t.ForceUnitAccess,
		LogicalBlockAddress: uint32(t.LogicalBlockAddress),
		TransferLength:      uint16(t.Blocks),
	}
	return scsi.NewDataOut(bitfield.MustMarshal(c), buf), nil
}

// NewWrite16 builds WRITE(16) from buf.
func NewWrite16(t Transfer, buf []byte, blockSize int) (scsi.Command, error) {
	if err := checkTransfer(t, buf, blockSize); err != nil {
		return scsi.Command{}, err
	}
	c := rw16CDB{
		OperationCode:       Write16,
		ForceUnitAccess:     t.ForceUnitAccess,
		LogicalBlockAddress: t.LogicalBlockAddress,
		TransferLength:      t.Blocks,
	}
	return scsi.NewDataOut(bitfield.MustMarshal(c), buf), nil
}

type synchronizeCache10CDB struct {
	OperationCode       uint8
	Reserved0           uint8 `bitfield:"5"`
	SyncNV              bool
	Immediate           bool
	Obsolete            bool
	LogicalBlockAddress uint32
	Reserved1           uint8 `bitfield:"3"`
	GroupNumber         uint8 `bitfield:"5"`
	NumberOfBlocks      uint16
	Control             uint8
}

// NewSynchronizeCache10 builds SYNCHRONIZE CACHE(10). Zero blocks means up
// to the last logical block.
func NewSynchronizeCache10(lba uint32, blocks uint16, immediate bool) scsi.Command {
	c := synchronizeCache10CDB{
		OperationCode:       SynchronizeCache,
		Immediate:           immediate,
		LogicalBlockAddress: lba,
		NumberOfBlocks:      blocks,
	}
	return scsi.NewNoData(bitfield.MustMarshal(c))
}

type unmapCDB struct {
	OperationCode       uint8
	Reserved0           uint8 `bitfield:"7"`
	Anchor              bool
	Reserved1           uint32
	Reserved2           uint8 `bitfield:"3"`
	GroupNumber         uint8 `bitfield:"5"`
	ParameterListLength uint16
	Control             uint8
}

type unmapHeader struct {
	DataLength                uint16
	BlockDescriptorDataLength uint16
	Reserved                  uint32
}

// UnmapDescriptor is one LBA range of an UNMAP parameter list.
type UnmapDescriptor struct {
	LogicalBlockAddress uint64
	NumberOfBlocks      uint32
	Reserved            uint32
}

// MaxUnmapDescriptors fits the parameter list length field.
const MaxUnmapDescriptors = (MaxAllocationLength16 - 8) / 16

// NewUnmap builds UNMAP with its parameter list.
func NewUnmap(descriptors []UnmapDescriptor) (scsi.Command, error) {
	if len(descriptors) == 0 || len(descriptors) > MaxUnmapDescriptors {
		return scsi.Command{}, scsi.ArgumentOutOfBounds("UNMAP takes 1 to %d descriptors, got %d", MaxUnmapDescriptors, len(descriptors))
	}
	n := 16 * len(descriptors)
	data := bitfield.MustMarshal(unmapHeader{DataLength: uint16(n + 6), BlockDescriptorDataLength: uint16(n)})
	for _, d := range descriptors {
		data = append(data, bitfield.MustMarshal(d)...)
	}
	c := unmapCDB{OperationCode: Unmap, ParameterListLength: uint16(len(data))}
	return scsi.NewDataOut(bitfield.MustMarshal(c), data), nil
}
