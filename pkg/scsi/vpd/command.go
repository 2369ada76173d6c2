// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vpd

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/open-source-firmware/go-scsi/pkg/scsi"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/cdb"
)

func builder(page uint8) func(int) scsi.Command {
	return func(n int) scsi.Command { return cdb.NewInquiry(&page, n) }
}

func none[H any](*H) int { return 0 }

// ReadRaw reads a VPD page as its header and body bytes.
func ReadRaw(d *scsi.Device, page uint8) (*Raw, error) {
	f, err := scsi.IssueFlex[Header, uint8](d, builder(page), remainingBytes, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "inquiry vpd page %#02x", page)
	}
	return &Raw{Header: f.Header, Data: f.Elements}, nil
}

// SupportedPages lists the VPD page codes the device reports.
func SupportedPages(d *scsi.Device) ([]uint8, error) {
	r, err := ReadRaw(d, PageSupported)
	if err != nil {
		return nil, err
	}
	return r.Data, nil
}

// ReadASCIIInformation reads an ASCII information page.
func ReadASCIIInformation(d *scsi.Device, page uint8) (*ASCIIInformation, error) {
	if page < PageASCIIFirst || page > PageASCIILast {
		return nil, scsi.ArgumentOutOfBounds("ASCII information page code %#02x not in 0x01-0x7f", page)
	}
	r, err := ReadRaw(d, page)
	if err != nil {
		return nil, err
	}
	return decodeASCIIInformation(r.Header, r.Data), nil
}

// UnitSerialNumber reads page 0x80.
func UnitSerialNumber(d *scsi.Device) (string, error) {
	r, err := ReadRaw(d, PageUnitSerialNumber)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimRight(string(r.Data), "\x00")), nil
}

// DeviceIdentification reads the designation descriptors of page 0x83.
func DeviceIdentification(d *scsi.Device) ([]Designator, error) {
	r, err := ReadRaw(d, PageDeviceIdentification)
	if err != nil {
		return nil, err
	}
	return parseDesignators(r.Data), nil
}

func readFixed[H any](d *scsi.Device, page uint8) (*H, error) {
	f, err := scsi.IssueFlex[H, struct{}](d, builder(page), none[H], 0)
	if err != nil {
		return nil, errors.Wrapf(err, "inquiry vpd page %#02x", page)
	}
	return &f.Header, nil
}

// ReadBlockLimits reads page 0xB0.
func ReadBlockLimits(d *scsi.Device) (*BlockLimits, error) {
	return readFixed[BlockLimits](d, PageBlockLimits)
}

// ReadBlockDeviceCharacteristics reads page 0xB1.
func ReadBlockDeviceCharacteristics(d *scsi.Device) (*BlockDeviceCharacteristics, error) {
	return readFixed[BlockDeviceCharacteristics](d, PageBlockDeviceCharacteristics)
}

// ReadZonedBlockDeviceCharacteristics reads page 0xB6.
func ReadZonedBlockDeviceCharacteristics(d *scsi.Device) (*ZonedBlockDeviceCharacteristics, error) {
	return readFixed[ZonedBlockDeviceCharacteristics](d, PageZonedBlockDevice)
}

// ReadLogicalBlockProvisioning reads page 0xB2.
func ReadLogicalBlockProvisioning(d *scsi.Device) (*LogicalBlockProvisioning, error) {
	remaining := func(h *LogicalBlockProvisioningHeader) int {
		n := int(h.PageLength) + headerSize - lbpHeaderSize
		if n < 0 {
			return 0
		}
		return n
	}
	f, err := scsi.IssueFlex[LogicalBlockProvisioningHeader, uint8](d, builder(PageLogicalBlockProvisioning), remaining, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "inquiry vpd page %#02x", PageLogicalBlockProvisioning)
	}
	return decodeLogicalBlockProvisioning(f.Header, f.Elements), nil
}

const lbpHeaderSize = 8

// Read reads a VPD page and returns it decoded with the type registered for
// its code; pages without one are returned as *Raw.
func Read(d *scsi.Device, page uint8) (interface{}, error) {
	switch {
	case page == PageSupported:
		return ReadRaw(d, page)
	case page >= PageASCIIFirst && page <= PageASCIILast:
		return ReadASCIIInformation(d, page)
	case page == PageUnitSerialNumber:
		return UnitSerialNumber(d)
	case page == PageDeviceIdentification:
		return DeviceIdentification(d)
	case page == PageBlockLimits:
		return ReadBlockLimits(d)
	case page == PageBlockDeviceCharacteristics:
		return ReadBlockDeviceCharacteristics(d)
	case page == PageLogicalBlockProvisioning:
		return ReadLogicalBlockProvisioning(d)
	case page == PageZonedBlockDevice:
		return ReadZonedBlockDeviceCharacteristics(d)
	}
	return ReadRaw(d, page)
}
