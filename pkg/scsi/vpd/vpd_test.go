// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vpd_test

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-source-firmware/go-scsi/pkg/bitfield"
	"github.com/open-source-firmware/go-scsi/pkg/scsi"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/cdb"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/mocks"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/scsitest"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/vpd"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

func newDevice(t *testing.T) (*scsi.Device, *mocks.MockTransport) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	tr := mocks.NewMockTransport(ctrl)
	return scsi.NewDevice(tr), tr
}

// expectTwoStep answers the header probe and the full read of a VPD page.
func expectTwoStep(tr *mocks.MockTransport, probe int, resp []byte) {
	gomock.InOrder(
		tr.EXPECT().Execute(scsitest.Command(cdb.Inquiry, probe), gomock.Any()).DoAndReturn(scsitest.Respond(resp)),
		tr.EXPECT().Execute(scsitest.Command(cdb.Inquiry, len(resp)), gomock.Any()).DoAndReturn(scsitest.Respond(resp)),
	)
}

func TestSizes(t *testing.T) {
	tests := []struct {
		v    interface{}
		size int
	}{
		{&vpd.StandardInquiry{}, 96},
		{&vpd.Header{}, 4},
		{&vpd.DesignationDescriptorHeader{}, 4},
		{&vpd.BlockLimits{}, 64},
		{&vpd.BlockDeviceCharacteristics{}, 64},
		{&vpd.LogicalBlockProvisioningHeader{}, 8},
		{&vpd.ZonedBlockDeviceCharacteristics{}, 64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.size, bitfield.SizeOf(tt.v), "%T", tt.v)
	}
}

func TestLayoutsRoundTrip(t *testing.T) {
	for _, v := range []interface{}{
		&vpd.StandardInquiry{},
		&vpd.Header{},
		&vpd.DesignationDescriptorHeader{},
		&vpd.BlockLimits{},
		&vpd.BlockDeviceCharacteristics{},
		&vpd.LogicalBlockProvisioningHeader{},
		&vpd.ZonedBlockDeviceCharacteristics{},
	} {
		b := make([]byte, bitfield.SizeOf(v))
		for i := range b {
			b[i] = byte(0x3c ^ i*11)
		}
		assert.Empty(t, bitfield.MustUnmarshal(b, v), "%T", v)
		assert.Equal(t, b, bitfield.MustMarshal(v), "%T", v)
	}
}

func TestStandardInquiryWithCopyright(t *testing.T) {
	resp := make([]byte, 106)
	resp[1] = 0x80
	resp[2] = 0x07
	resp[3] = 0x12
	resp[4] = byte(len(resp) - 5)
	resp[5] = 0x08
	resp[6] = 0x10
	resp[7] = 0x02
	copy(resp[8:], "ACME    ")
	copy(resp[16:], "Test Disk       ")
	copy(resp[32:], "1.00")
	resp[58], resp[59] = 0x04, 0x60
	copy(resp[96:], "(c) ACME  ")

	d, tr := newDevice(t)
	gomock.InOrder(
		tr.EXPECT().Execute(scsitest.Command(cdb.Inquiry, 96), gomock.Any()).DoAndReturn(scsitest.Respond(resp)),
		tr.EXPECT().Execute(scsitest.Command(cdb.Inquiry, 106), gomock.Any()).DoAndReturn(scsitest.Respond(resp)),
	)

	inq, err := vpd.Standard(d)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), inq.PeripheralDeviceType)
	assert.True(t, inq.Removable)
	assert.Equal(t, uint8(7), inq.Version)
	assert.True(t, inq.HierarchicalSupport)
	assert.Equal(t, uint8(2), inq.ResponseDataFormat)
	assert.True(t, inq.ThirdPartyCopy)
	assert.True(t, inq.MultiPort)
	assert.True(t, inq.CommandQueue)
	assert.Equal(t, "ACME", inq.Vendor())
	assert.Equal(t, "Test Disk", inq.Product())
	assert.Equal(t, "1.00", inq.Revision())
	assert.Equal(t, uint16(0x0460), inq.VersionDescriptors[0])
	assert.Equal(t, []byte("(c) ACME  "), inq.Copyright)
}

func TestStandardInquiryShort(t *testing.T) {
	resp := make([]byte, 36)
	resp[4] = 31
	copy(resp[8:], "ACME    ")

	d, tr := newDevice(t)
	tr.EXPECT().Execute(scsitest.Command(cdb.Inquiry, 96), gomock.Any()).DoAndReturn(scsitest.Respond(resp))

	inq, err := vpd.Standard(d)
	require.NoError(t, err)
	assert.Equal(t, "ACME", inq.Vendor())
	assert.Empty(t, inq.Copyright)
}

func TestUnitSerialNumber(t *testing.T) {
	d, tr := newDevice(t)
	expectTwoStep(tr, 4, append(mustHex(t, "00 80 0008"), "SN123456"...))

	sn, err := vpd.UnitSerialNumber(d)
	require.NoError(t, err)
	assert.Equal(t, "SN123456", sn)
}

func TestASCIIInformation(t *testing.T) {
	d, tr := newDevice(t)
	resp := append(mustHex(t, "00 01 000c 08"), "abc\x00de\x00\x00vvv"...)
	expectTwoStep(tr, 4, resp)

	v, err := vpd.Read(d, 0x01)
	require.NoError(t, err)
	p, ok := v.(*vpd.ASCIIInformation)
	require.True(t, ok, "%T", v)
	assert.Equal(t, []string{"abc", "de"}, p.Strings)
	assert.Equal(t, []byte("vvv"), p.VendorSpecific)
}

func TestASCIIInformationOutOfBounds(t *testing.T) {
	d, _ := newDevice(t)
	for _, page := range []uint8{0x00, 0x80, 0xff} {
		_, err := vpd.ReadASCIIInformation(d, page)
		assert.True(t, errors.Is(err, scsi.ErrArgumentOutOfBounds), "%#02x: %v", page, err)
	}
}

func TestDeviceIdentification(t *testing.T) {
	d, tr := newDevice(t)
	resp := mustHex(t, "00 83 0022"+
		"01 03 00 08 5000c500a1b2c3d4"+
		"02 01 00 0c"+hex.EncodeToString([]byte("ACME    XYZ "))+
		"01 08 00 20 abcd")
	expectTwoStep(tr, 4, resp)

	ds, err := vpd.DeviceIdentification(d)
	require.NoError(t, err)
	require.Len(t, ds, 3)

	assert.Equal(t, uint8(vpd.DesignatorNAA), ds[0].DesignatorType)
	assert.Equal(t, uint8(vpd.CodeSetBinary), ds[0].CodeSet)
	assert.Equal(t, "5000c500a1b2c3d4", ds[0].String())

	assert.Equal(t, uint8(vpd.DesignatorT10VendorID), ds[1].DesignatorType)
	assert.Equal(t, "ACME    XYZ", ds[1].String())

	assert.Equal(t, uint8(vpd.DesignatorSCSIName), ds[2].DesignatorType)
	assert.Equal(t, uint8(0x20), ds[2].DesignatorLength)
	assert.Equal(t, []byte{0xab, 0xcd}, ds[2].Designator)
}

func TestBlockLimits(t *testing.T) {
	resp := make([]byte, 64)
	copy(resp, mustHex(t, "00 b0 003c 01 08 0008"))
	copy(resp[8:], mustHex(t, "00010000 00000800 00000000 00400000 00000001 00000008 80000008"))

	d, tr := newDevice(t)
	tr.EXPECT().Execute(scsitest.Command(cdb.Inquiry, 64), gomock.Any()).DoAndReturn(scsitest.Respond(resp))

	bl, err := vpd.ReadBlockLimits(d)
	require.NoError(t, err)
	assert.True(t, bl.WriteSameNonZero)
	assert.Equal(t, uint8(8), bl.MaximumCompareAndWriteLength)
	assert.Equal(t, uint16(8), bl.OptimalTransferLengthGranularity)
	assert.Equal(t, uint32(0x10000), bl.MaximumTransferLength)
	assert.Equal(t, uint32(0x800), bl.OptimalTransferLength)
	assert.Equal(t, uint32(0x400000), bl.MaximumUnmapLBACount)
	assert.Equal(t, uint32(1), bl.MaximumUnmapBlockDescriptorCount)
	assert.Equal(t, uint32(8), bl.OptimalUnmapGranularity)
	assert.True(t, bl.UnmapGranularityAlignmentValid)
	assert.Equal(t, uint32(8), bl.UnmapGranularityAlignment)
}

func TestBlockDeviceCharacteristics(t *testing.T) {
	resp := make([]byte, 64)
	copy(resp, mustHex(t, "00 b1 003c 0001 00 23 10"))

	d, tr := newDevice(t)
	tr.EXPECT().Execute(scsitest.Command(cdb.Inquiry, 64), gomock.Any()).DoAndReturn(scsitest.Respond(resp))

	v, err := vpd.Read(d, vpd.PageBlockDeviceCharacteristics)
	require.NoError(t, err)
	bdc, ok := v.(*vpd.BlockDeviceCharacteristics)
	require.True(t, ok, "%T", v)
	assert.Equal(t, uint16(vpd.RotationRateNonRotating), bdc.MediumRotationRate)
	assert.Equal(t, uint8(3), bdc.NominalFormFactor)
	assert.Equal(t, uint8(2), bdc.WriteAfterCryptoEraseRequired)
	assert.Equal(t, uint8(1), bdc.Zoned)
}

func TestLogicalBlockProvisioning(t *testing.T) {
	d, tr := newDevice(t)
	expectTwoStep(tr, 8, mustHex(t, "00 b2 000c 00 e1 02 00 01 03 00 04 deadbeef"))

	p, err := vpd.ReadLogicalBlockProvisioning(d)
	require.NoError(t, err)
	assert.True(t, p.UnmapSupported)
	assert.True(t, p.WriteSame16UnmapSupported)
	assert.True(t, p.WriteSame10UnmapSupported)
	assert.True(t, p.DescriptorPresent)
	assert.Equal(t, uint8(2), p.ProvisioningType)
	require.NotNil(t, p.ProvisioningGroup)
	assert.Equal(t, "deadbeef", p.ProvisioningGroup.String())
}

func TestLogicalBlockProvisioningWithoutDescriptor(t *testing.T) {
	d, tr := newDevice(t)
	tr.EXPECT().Execute(scsitest.Command(cdb.Inquiry, 8), gomock.Any()).DoAndReturn(scsitest.Respond(mustHex(t, "00 b2 0004 00 80 01 00")))

	p, err := vpd.ReadLogicalBlockProvisioning(d)
	require.NoError(t, err)
	assert.True(t, p.UnmapSupported)
	assert.Nil(t, p.ProvisioningGroup)
}

func TestReadUnknownIsRaw(t *testing.T) {
	d, tr := newDevice(t)
	expectTwoStep(tr, 4, mustHex(t, "00 c0 0002 abcd"))

	v, err := vpd.Read(d, 0xc0)
	require.NoError(t, err)
	r, ok := v.(*vpd.Raw)
	require.True(t, ok, "%T", v)
	assert.Equal(t, "page 0xc0: abcd", r.String())
}

func TestSupportedPagesError(t *testing.T) {
	d, tr := newDevice(t)
	tr.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(scsitest.CheckCondition(scsi.SenseIllegalRequest, 0x24, 0))

	_, err := vpd.SupportedPages(d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scsi.ErrCheckCondition))
	assert.True(t, strings.HasPrefix(err.Error(), "inquiry vpd page 0x00: "), err.Error())
}
