// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vpd reads standard INQUIRY data and vital product data pages.
package vpd

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/open-source-firmware/go-scsi/pkg/scsi"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/cdb"
)

// StandardInquiry is the fixed 96 byte part of standard INQUIRY data.
type StandardInquiry struct {
	PeripheralQualifier       uint8 `bitfield:"3"`
	PeripheralDeviceType      uint8 `bitfield:"5"`
	Removable                 bool
	Reserved0                 uint8 `bitfield:"7"`
	Version                   uint8
	Obsolete0                 uint8 `bitfield:"2"`
	NormalACA                 bool
	HierarchicalSupport       bool
	ResponseDataFormat        uint8 `bitfield:"4"`
	AdditionalLength          uint8
	SCCSupported              bool
	AccessControlsCoordinator bool
	TargetPortGroupSupport    uint8 `bitfield:"2"`
	ThirdPartyCopy            bool
	Reserved1                 uint8 `bitfield:"2"`
	Protect                   bool
	Obsolete1                 bool
	EnclosureServices         bool
	VendorSpecific0           bool
	MultiPort                 bool
	Obsolete2                 uint16 `bitfield:"10"`
	CommandQueue              bool
	VendorSpecific1           bool
	VendorIdentification      [8]byte
	ProductIdentification     [16]byte
	ProductRevisionLevel      [4]byte
	DriveSerialNumber         [8]byte
	VendorUnique              [12]byte
	Reserved2                 uint16
	VersionDescriptors        [8]uint16
	Reserved3                 [16]byte
	Reserved4                 [6]byte
}

const standardInquirySize = 96

// Inquiry is the decoded standard INQUIRY data.
type Inquiry struct {
	StandardInquiry
	// Copyright holds the vendor bytes after the fixed part.
	Copyright []byte
}

func trimASCII(b []byte) string {
	return strings.TrimRight(strings.TrimSpace(string(b)), "\x00")
}

func (i *Inquiry) Vendor() string   { return trimASCII(i.VendorIdentification[:]) }
func (i *Inquiry) Product() string  { return trimASCII(i.ProductIdentification[:]) }
func (i *Inquiry) Revision() string { return trimASCII(i.ProductRevisionLevel[:]) }

// remainingInquiry is the number of bytes the device holds beyond the
// fixed part.
func remainingInquiry(h *StandardInquiry) int {
	n := int(h.AdditionalLength) + 5 - standardInquirySize
	if n < 0 {
		return 0
	}
	return n
}

// Standard reads the standard INQUIRY data.
func Standard(d *scsi.Device) (*Inquiry, error) {
	build := func(n int) scsi.Command { return cdb.NewInquiry(nil, n) }
	f, err := scsi.IssueFlex[StandardInquiry, uint8](d, build, remainingInquiry, 0)
	if err != nil {
		return nil, errors.Wrap(err, "inquiry")
	}
	return &Inquiry{StandardInquiry: f.Header, Copyright: f.Elements}, nil
}
