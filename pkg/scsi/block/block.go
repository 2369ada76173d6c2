// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package block reads and writes logical blocks of a direct access device,
// splitting requests the way the device's block limits ask for.
package block

import (
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/open-source-firmware/go-scsi/pkg/bitfield"
	"github.com/open-source-firmware/go-scsi/pkg/logger"
	"github.com/open-source-firmware/go-scsi/pkg/scsi"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/cdb"
)

// DefaultTransferLength is the number of blocks per command used when the
// device reports no optimal transfer length.
const DefaultTransferLength = 32768

type capacity10 struct {
	ReturnedLogicalBlockAddress uint32
	LogicalBlockLength          uint32
}

type capacity16 struct {
	ReturnedLogicalBlockAddress   uint64
	LogicalBlockLength            uint32
	Reserved0                     uint8 `bitfield:"4"`
	ProtectionType                uint8 `bitfield:"3"`
	ProtectionEnable              bool
	ProtectionIntervalExponent    uint8 `bitfield:"4"`
	LogicalBlocksPerPhysicalBlock uint8 `bitfield:"4"`
	ProvisioningManagementEnabled bool
	ProvisioningReadZeros         bool
	LowestAlignedLogicalBlock     uint16 `bitfield:"14"`
	Reserved1                     [16]byte
}

// Capacity is the decoded READ CAPACITY data.
type Capacity struct {
	LastLogicalBlockAddress uint64
	LogicalBlockLength      uint32
	// LogicalBlocksPerPhysicalBlockExponent is zero when READ CAPACITY(10)
	// was used.
	LogicalBlocksPerPhysicalBlockExponent uint8
	ProtectionEnabled                     bool
	ProvisioningManagementEnabled         bool
	ProvisioningReadZeros                 bool
}

// Blocks is the number of logical blocks.
func (c *Capacity) Blocks() uint64 { return c.LastLogicalBlockAddress + 1 }

// Bytes is the capacity in bytes.
func (c *Capacity) Bytes() uint64 { return c.Blocks() * uint64(c.LogicalBlockLength) }

// PhysicalBlockLength is the size of a physical block in bytes.
func (c *Capacity) PhysicalBlockLength() uint64 {
	return uint64(c.LogicalBlockLength) << c.LogicalBlocksPerPhysicalBlockExponent
}

func isIllegalRequest(err error) bool {
	var e *scsi.Error
	return errors.As(err, &e) && e.Kind == scsi.KindCheckCondition && e.Sense != nil &&
		e.Sense.Key == scsi.SenseIllegalRequest
}

// ReadCapacity issues READ CAPACITY(16), falling back to READ CAPACITY(10)
// when the device rejects the 16 byte command.
func ReadCapacity(d *scsi.Device) (*Capacity, error) {
	r, err := d.IssueChecked(cdb.NewReadCapacity16())
	if err == nil {
		var c capacity16
		bitfield.MustUnmarshal(r.Payload(), &c)
		return &Capacity{
			LastLogicalBlockAddress:               c.ReturnedLogicalBlockAddress,
			LogicalBlockLength:                    c.LogicalBlockLength,
			LogicalBlocksPerPhysicalBlockExponent: c.LogicalBlocksPerPhysicalBlock,
			ProtectionEnabled:                     c.ProtectionEnable,
			ProvisioningManagementEnabled:         c.ProvisioningManagementEnabled,
			ProvisioningReadZeros:                 c.ProvisioningReadZeros,
		}, nil
	}
	if !isIllegalRequest(err) {
		return nil, pkgerrors.Wrap(err, "read capacity(16)")
	}

	logger.Debugf("block: READ CAPACITY(16) rejected, using READ CAPACITY(10)")
	r, err = d.IssueChecked(cdb.NewReadCapacity10())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read capacity(10)")
	}
	var c capacity10
	bitfield.MustUnmarshal(r.Payload(), &c)
	return &Capacity{
		LastLogicalBlockAddress: uint64(c.ReturnedLogicalBlockAddress),
		LogicalBlockLength:      c.LogicalBlockLength,
	}, nil
}

// TestUnitReady reports whether the device is ready to accept medium access
// commands. A not ready device returns a CheckCondition error.
func TestUnitReady(d *scsi.Device) error {
	_, err := d.IssueChecked(cdb.NewTestUnitReady())
	return err
}

// RequestSense fetches the sense data the device holds.
func RequestSense(d *scsi.Device, descriptorFormat bool) (*scsi.Sense, error) {
	r, err := d.IssueChecked(cdb.NewRequestSense(descriptorFormat))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "request sense")
	}
	return scsi.ParseSense(r.Payload()), nil
}

// SynchronizeCache flushes the whole volatile cache to the medium.
func SynchronizeCache(d *scsi.Device) error {
	_, err := d.IssueChecked(cdb.NewSynchronizeCache10(0, 0, false))
	return pkgerrors.Wrap(err, "synchronize cache")
}
