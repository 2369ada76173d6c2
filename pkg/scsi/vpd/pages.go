// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vpd

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/open-source-firmware/go-scsi/pkg/bitfield"
)

// VPD page codes
const (
	PageSupported                  = 0x00
	PageASCIIFirst                 = 0x01
	PageASCIILast                  = 0x7F
	PageUnitSerialNumber           = 0x80
	PageDeviceIdentification       = 0x83
	PageBlockLimits                = 0xB0
	PageBlockDeviceCharacteristics = 0xB1
	PageLogicalBlockProvisioning   = 0xB2
	PageZonedBlockDevice           = 0xB6
)

// Header starts every VPD page.
type Header struct {
	PeripheralQualifier  uint8 `bitfield:"3"`
	PeripheralDeviceType uint8 `bitfield:"5"`
	PageCode             uint8
	PageLength           uint16
}

const headerSize = 4

func remainingBytes(h *Header) int { return int(h.PageLength) }

// ASCIIInformation is an ASCII information page (0x01-0x7F).
type ASCIIInformation struct {
	Header
	// Strings are the NUL separated values of the ASCII information field.
	Strings        []string
	VendorSpecific []byte
}

func decodeASCIIInformation(h Header, body []byte) *ASCIIInformation {
	p := &ASCIIInformation{Header: h}
	if len(body) == 0 {
		return p
	}
	n := int(body[0])
	body = body[1:]
	if n > len(body) {
		n = len(body)
	}
	for _, s := range bytes.Split(body[:n], []byte{0}) {
		if len(s) > 0 {
			p.Strings = append(p.Strings, string(s))
		}
	}
	if len(body) > n {
		p.VendorSpecific = append([]byte(nil), body[n:]...)
	}
	return p
}

// Code sets of a designation descriptor
const (
	CodeSetBinary = 1
	CodeSetASCII  = 2
	CodeSetUTF8   = 3
)

// Designator types
const (
	DesignatorVendorSpecific = 0x0
	DesignatorT10VendorID    = 0x1
	DesignatorEUI64          = 0x2
	DesignatorNAA            = 0x3
	DesignatorRelativePort   = 0x4
	DesignatorTargetPort     = 0x5
	DesignatorLogicalUnit    = 0x6
	DesignatorMD5            = 0x7
	DesignatorSCSIName       = 0x8
)

// DesignationDescriptorHeader is the 4 byte header of a designation
// descriptor.
type DesignationDescriptorHeader struct {
	ProtocolIdentifier      uint8 `bitfield:"4"`
	CodeSet                 uint8 `bitfield:"4"`
	ProtocolIdentifierValid bool
	Reserved0               bool
	Association             uint8 `bitfield:"2"`
	DesignatorType          uint8 `bitfield:"4"`
	Reserved1               uint8
	DesignatorLength        uint8
}

// Designator is one designation descriptor of the device identification
// page.
type Designator struct {
	DesignationDescriptorHeader
	Designator []byte
}

func (d *Designator) String() string {
	if d.CodeSet == CodeSetASCII || d.CodeSet == CodeSetUTF8 {
		return string(bytes.TrimRight(d.Designator, "\x00 "))
	}
	return hex.EncodeToString(d.Designator)
}

// parseDesignators decodes designation descriptors until b is used up. A
// designator longer than what remains is clamped.
func parseDesignators(b []byte) []Designator {
	var ds []Designator
	for len(b) >= 4 {
		var d Designator
		b = bitfield.MustUnmarshal(b, &d.DesignationDescriptorHeader)
		n := int(d.DesignatorLength)
		if n > len(b) {
			n = len(b)
		}
		d.Designator = append([]byte(nil), b[:n]...)
		b = b[n:]
		ds = append(ds, d)
	}
	return ds
}

// BlockLimits is page 0xB0.
type BlockLimits struct {
	Header
	Reserved0                               uint8 `bitfield:"7"`
	WriteSameNonZero                        bool
	MaximumCompareAndWriteLength            uint8
	OptimalTransferLengthGranularity        uint16
	MaximumTransferLength                   uint32
	OptimalTransferLength                   uint32
	MaximumPrefetchLength                   uint32
	MaximumUnmapLBACount                    uint32
	MaximumUnmapBlockDescriptorCount        uint32
	OptimalUnmapGranularity                 uint32
	UnmapGranularityAlignmentValid          bool
	UnmapGranularityAlignment               uint32 `bitfield:"31"`
	MaximumWriteSameLength                  uint64
	MaximumAtomicTransferLength             uint32
	AtomicAlignment                         uint32
	AtomicTransferLengthGranularity         uint32
	MaximumAtomicTransferLengthWithBoundary uint32
	MaximumAtomicBoundarySize               uint32
}

// BlockDeviceCharacteristics is page 0xB1.
type BlockDeviceCharacteristics struct {
	Header
	MediumRotationRate            uint16
	ProductType                   uint8
	WriteAfterBlockEraseRequired  uint8 `bitfield:"2"`
	WriteAfterCryptoEraseRequired uint8 `bitfield:"2"`
	NominalFormFactor             uint8 `bitfield:"4"`
	Reserved0                     uint8 `bitfield:"2"`
	Zoned                         uint8 `bitfield:"2"`
	Reserved1                     bool
	BackgroundOperationControl    bool
	ForceUnitAccessBehavior       bool
	VerifyByteCheckUnmapped       bool
	Reserved2                     [55]byte
}

// Medium rotation rates with a special meaning
const (
	RotationRateNotReported = 0x0000
	RotationRateNonRotating = 0x0001
)

// LogicalBlockProvisioningHeader is the fixed part of page 0xB2.
type LogicalBlockProvisioningHeader struct {
	Header
	ThresholdExponent         uint8
	UnmapSupported            bool
	WriteSame16UnmapSupported bool
	WriteSame10UnmapSupported bool
	ReadZeroes                uint8 `bitfield:"3"`
	AnchorSupported           bool
	DescriptorPresent         bool
	MinimumPercentage         uint8 `bitfield:"5"`
	ProvisioningType          uint8 `bitfield:"3"`
	ThresholdPercentage       uint8
}

// LogicalBlockProvisioning is page 0xB2. The provisioning group
// descriptor is only present when DescriptorPresent is set.
type LogicalBlockProvisioning struct {
	LogicalBlockProvisioningHeader
	ProvisioningGroup *Designator
}

func decodeLogicalBlockProvisioning(h LogicalBlockProvisioningHeader, body []byte) *LogicalBlockProvisioning {
	p := &LogicalBlockProvisioning{LogicalBlockProvisioningHeader: h}
	if h.DescriptorPresent {
		if ds := parseDesignators(body); len(ds) > 0 {
			p.ProvisioningGroup = &ds[0]
		}
	}
	return p
}

// ZonedBlockDeviceCharacteristics is page 0xB6.
type ZonedBlockDeviceCharacteristics struct {
	Header
	Reserved0                                 uint8 `bitfield:"7"`
	UnrestrictedReadInSequentialWriteRequired bool
	Reserved1                                 uint32 `bitfield:"24"`
	OptimalOpenSequentialWritePreferredZones  uint32
	OptimalNonSequentiallyWrittenZones        uint32
	MaximumOpenSequentialWriteRequiredZones   uint32
	Reserved2                                 [44]byte
}

// Raw is a page without a dedicated layout.
type Raw struct {
	Header
	Data []byte
}

func (r *Raw) String() string {
	return fmt.Sprintf("page %#02x: %s", r.PageCode, hex.EncodeToString(r.Data))
}
