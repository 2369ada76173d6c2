// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logpage_test

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
	"github.com/open-source-firmware/go-scsi/pkg/scsi/logpage"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/mocks"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/scsitest"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

const temperaturePage = "0d 00 000c 0000 03 02 00 23 0001 03 02 00 46"

func TestSizes(t *testing.T) {
	tests := []struct {
		v    interface{}
		size int
	}{
		{&logpage.PageHeader{}, 4},
		{&logpage.ParameterHeader{}, 4},
		{&logpage.SupportedPage{}, 1},
		{&logpage.SupportedSubpage{}, 2},
		{&logpage.TemperatureParameter{}, 6},
		{&logpage.DateParameter{}, 10},
		{&logpage.CycleCountParameter{}, 8},
		{&logpage.ApplicationClientParameter{}, 256},
		{&logpage.SelfTestResultParameter{}, 20},
		{&logpage.PercentageUsedParameter{}, 8},
		{&logpage.BackgroundScanStatusParameter{}, 16},
		{&logpage.MediumScanParameter{}, 24},
		{&logpage.InformationalExceptionsParameter{}, 12},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.size, bitfield.SizeOf(tt.v), "%T", tt.v)
	}
}

func TestSupportedPagesFlatList(t *testing.T) {
	b := mustHex(t, "00 00 0005 00 02 03 0d 2f")
	w, rest := logpage.ParseWrapper(b, logpage.SelectorFor(0x00, 0x00))
	assert.Empty(t, rest)
	require.Len(t, w.Parameters, 5)
	var codes []uint16
	for _, p := range w.Parameters {
		require.IsType(t, &logpage.SupportedPage{}, p)
		codes = append(codes, p.Code())
	}
	assert.Equal(t, []uint16{0x00, 0x02, 0x03, 0x0d, 0x2f}, codes)
	assert.Equal(t, b, w.Marshal())
}

func TestSupportedSubpages(t *testing.T) {
	b := mustHex(t, "40 ff 0006 00 00 0d 00 0d 01")
	w, rest := logpage.ParseWrapper(b, logpage.SelectorFor(0x00, 0xff))
	assert.Empty(t, rest)
	assert.True(t, w.Header.SubpageFormat)
	require.Len(t, w.Parameters, 3)
	s, ok := w.Parameters[2].(*logpage.SupportedSubpage)
	require.True(t, ok)
	assert.Equal(t, uint8(0x0d), s.PageCode)
	assert.Equal(t, uint8(0x01), s.SubpageCode)
	assert.Equal(t, uint16(0x0d01), s.Code())
}

func TestTemperature(t *testing.T) {
	b := mustHex(t, temperaturePage)
	w, rest := logpage.ParseWrapper(b, logpage.SelectorFor(logpage.PageTemperature, 0))
	assert.Empty(t, rest)
	require.Len(t, w.Parameters, 2)

	current, ok := w.Find(0x0000).(*logpage.TemperatureParameter)
	require.True(t, ok)
	assert.Equal(t, uint8(35), current.Temperature)
	assert.Equal(t, uint8(3), current.FormatAndLinking)
	assert.Equal(t, uint8(2), current.ParameterLength)

	reference, ok := w.Find(0x0001).(*logpage.TemperatureParameter)
	require.True(t, ok)
	assert.Equal(t, uint8(70), reference.Temperature)
	assert.Equal(t, b, w.Marshal())
}

func TestErrorCounters(t *testing.T) {
	b := mustHex(t, "03 00 001a 0000 02 04 00001234 0005 02 08 0000000100000000 0006 02 02 0007")
	w, _ := logpage.ParseWrapper(b, logpage.SelectorFor(logpage.PageReadErrorCounter, 0))
	require.Len(t, w.Parameters, 3)
	values := map[uint16]uint64{}
	for _, p := range w.Parameters {
		c, ok := p.(*logpage.CounterParameter)
		require.True(t, ok, "%T", p)
		values[c.Code()] = c.Value
	}
	assert.Equal(t, map[uint16]uint64{0x0000: 0x1234, 0x0005: 0x100000000, 0x0006: 7}, values)
	assert.Equal(t, "Total uncorrected errors", logpage.CounterName(logpage.TotalUncorrected))
	assert.Equal(t, b, w.Marshal())
}

func TestBackgroundScanRanges(t *testing.T) {
	b := mustHex(t, "15 00 002c"+
		"0000 03 0c 00002710 00 02 0005 8000 0007"+
		"0001 03 14 00002711 31 0c 02 0000000000 00000000000003e8"+
		"0801 03 00")
	w, rest := logpage.ParseWrapper(b, logpage.SelectorFor(logpage.PageBackgroundScan, 0))
	assert.Empty(t, rest)
	require.Len(t, w.Parameters, 3)

	status, ok := w.Parameters[0].(*logpage.BackgroundScanStatusParameter)
	require.True(t, ok, "%T", w.Parameters[0])
	assert.Equal(t, uint32(10000), status.AccumulatedPowerOnMinutes)
	assert.Equal(t, uint8(2), status.BackgroundScanStatus)
	assert.Equal(t, uint16(5), status.NumberOfBackgroundScans)
	assert.Equal(t, uint16(0x8000), status.BackgroundScanProgress)

	scan, ok := w.Parameters[1].(*logpage.MediumScanParameter)
	require.True(t, ok, "%T", w.Parameters[1])
	assert.Equal(t, uint8(3), scan.ReassignStatus)
	assert.Equal(t, uint8(1), scan.SenseKey)
	assert.Equal(t, uint8(0x0c), scan.AdditionalSenseCode)
	assert.Equal(t, uint64(1000), scan.LogicalBlockAddress)

	assert.IsType(t, &logpage.GeneralParameter{}, w.Parameters[2])
	assert.Equal(t, b, w.Marshal())
}

func TestStartStopCycleCounter(t *testing.T) {
	b := mustHex(t, "0e 00 0012 0001 01 06 32303233 3134 0004 03 04 00000100")
	w, _ := logpage.ParseWrapper(b, logpage.SelectorFor(logpage.PageStartStopCycleCounter, 0))
	require.Len(t, w.Parameters, 2)

	date, ok := w.Find(logpage.DateOfManufacture).(*logpage.DateParameter)
	require.True(t, ok)
	assert.Equal(t, "2023 week 14", date.String())

	cycles, ok := w.Find(logpage.AccumulatedStartStopCycles).(*logpage.CycleCountParameter)
	require.True(t, ok)
	assert.Equal(t, uint32(256), cycles.Count)
}

func TestSelfTestResults(t *testing.T) {
	b := mustHex(t, "10 00 0014 0001 03 10 20 01 0100 ffffffffffffffff 00 00 00 00")
	w, _ := logpage.ParseWrapper(b, logpage.SelectorFor(logpage.PageSelfTestResults, 0))
	require.Len(t, w.Parameters, 1)
	r, ok := w.Parameters[0].(*logpage.SelfTestResultParameter)
	require.True(t, ok)
	assert.Equal(t, uint8(1), r.SelfTestCode)
	assert.Equal(t, uint8(0), r.SelfTestResults)
	assert.Equal(t, uint16(256), r.AccumulatedPowerOnHours)
	assert.Equal(t, ^uint64(0), r.AddressOfFirstFailure)
}

// patterned returns n bytes without runs of equal values.
func patterned(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(0x5a ^ i*13)
	}
	return b
}

func TestParametersRoundTrip(t *testing.T) {
	tests := []struct {
		page uint8
		code uint16
		want logpage.Parameter
	}{
		{logpage.PageTemperature, 0x0000, &logpage.TemperatureParameter{}},
		{logpage.PageStartStopCycleCounter, logpage.DateOfManufacture, &logpage.DateParameter{}},
		{logpage.PageStartStopCycleCounter, logpage.AccumulatedLoadUnloadCycles, &logpage.CycleCountParameter{}},
		{logpage.PageApplicationClient, 0x0100, &logpage.ApplicationClientParameter{}},
		{logpage.PageSelfTestResults, 0x0001, &logpage.SelfTestResultParameter{}},
		{logpage.PageSolidStateMedia, 0x0001, &logpage.PercentageUsedParameter{}},
		{logpage.PageBackgroundScan, 0x0000, &logpage.BackgroundScanStatusParameter{}},
		{logpage.PageBackgroundScan, 0x0001, &logpage.MediumScanParameter{}},
		{logpage.PageInformationalExceptions, 0x0000, &logpage.InformationalExceptionsParameter{}},
	}
	for _, tt := range tests {
		size := bitfield.SizeOf(tt.want)
		param := patterned(size)
		param[0], param[1] = byte(tt.code>>8), byte(tt.code)
		param[3] = byte(size - 4)
		b := append([]byte{tt.page, 0, byte(size >> 8), byte(size)}, param...)

		w, rest := logpage.ParseWrapper(b, logpage.SelectorFor(tt.page, 0))
		assert.Empty(t, rest)
		require.Len(t, w.Parameters, 1, "%T", tt.want)
		assert.IsType(t, tt.want, w.Parameters[0])
		assert.Equal(t, param, w.Parameters[0].Marshal(), "%T", tt.want)
		assert.Equal(t, b, w.Marshal(), "%T", tt.want)
	}
}

func TestParameterKeepsDeclaredLength(t *testing.T) {
	// A one byte temperature parameter and one longer than the layout.
	b := mustHex(t, "0d 00 000f 0000 03 01 00 0001 03 06 00 46 0000 0000")
	w, rest := logpage.ParseWrapper(b, logpage.SelectorFor(logpage.PageTemperature, 0))
	assert.Empty(t, rest)
	require.Len(t, w.Parameters, 2)
	assert.Equal(t, uint8(0), w.Parameters[0].(*logpage.TemperatureParameter).Temperature)
	assert.Equal(t, uint8(0x46), w.Parameters[1].(*logpage.TemperatureParameter).Temperature)
	assert.Equal(t, b, w.Marshal())

	p := &logpage.CycleCountParameter{Count: 9}
	p.ParameterCode = logpage.AccumulatedStartStopCycles
	assert.Equal(t, mustHex(t, "0004 00 04 00000009"), p.Marshal())
}

func TestParseWrapperClamps(t *testing.T) {
	t.Run("parameter length", func(t *testing.T) {
		w, rest := logpage.ParseWrapper(mustHex(t, "30 00 0006 0001 00 20 aabb ffff"), nil)
		assert.Equal(t, []byte{0xff, 0xff}, rest)
		require.Len(t, w.Parameters, 1)
		g, ok := w.Parameters[0].(*logpage.GeneralParameter)
		require.True(t, ok)
		assert.Equal(t, uint8(0x20), g.ParameterLength)
		assert.Equal(t, []byte{0xaa, 0xbb}, g.Data)
	})
	t.Run("page length", func(t *testing.T) {
		w, rest := logpage.ParseWrapper(mustHex(t, "0d 00 0100 0000 03 02 00 19"), logpage.SelectorFor(logpage.PageTemperature, 0))
		assert.Empty(t, rest)
		require.Len(t, w.Parameters, 1)
		assert.Equal(t, uint8(25), w.Parameters[0].(*logpage.TemperatureParameter).Temperature)
	})
	t.Run("partial header", func(t *testing.T) {
		w, _ := logpage.ParseWrapper(mustHex(t, "30 00 0003 0001 00"), nil)
		require.Len(t, w.Parameters, 1)
		assert.Equal(t, uint16(1), w.Parameters[0].Code())
	})
	t.Run("empty", func(t *testing.T) {
		w, rest := logpage.ParseWrapper(nil, nil)
		assert.Empty(t, w.Parameters)
		assert.Empty(t, rest)
	})
}

func TestSelectorFallback(t *testing.T) {
	assert.IsType(t, &logpage.GeneralParameter{}, logpage.SelectorFor(0x37, 0)(0x0000))
	assert.IsType(t, &logpage.GeneralParameter{}, logpage.SelectorFor(logpage.PageTemperature, 0x01)(0x0000))
	assert.IsType(t, &logpage.GeneralParameter{}, logpage.SelectorFor(logpage.PageTemperature, 0)(0x0002))
	assert.IsType(t, &logpage.ApplicationClientParameter{}, logpage.SelectorFor(logpage.PageApplicationClient, 0)(0x0fff))
	assert.IsType(t, &logpage.GeneralParameter{}, logpage.SelectorFor(logpage.PageApplicationClient, 0)(0x1000))
	assert.Equal(t, "Log page 0x37", logpage.PageName(0x37, 0))
}

func TestSenseSupportedPages(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resp := mustHex(t, "00 00 0006 00 02 03 0d 10 2f")
	tr := mocks.NewMockTransport(ctrl)
	gomock.InOrder(
		tr.EXPECT().Execute(scsitest.Command(cdb.LogSense, 4), gomock.Any()).DoAndReturn(scsitest.Respond(resp)),
		tr.EXPECT().Execute(scsitest.Command(cdb.LogSense, 10), gomock.Any()).DoAndReturn(scsitest.Respond(resp)),
	)

	pages, err := logpage.SupportedPages(scsi.NewDevice(tr))
	require.NoError(t, err)
	assert.Equal(t, []uint8{0x00, 0x02, 0x03, 0x0d, 0x10, 0x2f}, pages)
}

func TestSenseTemperature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Execute(scsitest.Command(cdb.LogSense, 4), gomock.Any()).DoAndReturn(scsitest.Respond(mustHex(t, temperaturePage)))
	tr.EXPECT().Execute(scsitest.Command(cdb.LogSense, 16), gomock.Any()).DoAndReturn(scsitest.Respond(mustHex(t, temperaturePage)))

	temp, ok, err := logpage.Temperature(scsi.NewDevice(tr))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 35, temp)
}

func TestSenseTemperatureUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resp := mustHex(t, "0d 00 0006 0000 03 02 00 ff")
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(scsitest.Respond(resp)).Times(2)

	_, ok, err := logpage.Temperature(scsi.NewDevice(tr))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSenseCheckCondition(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(scsitest.CheckCondition(scsi.SenseIllegalRequest, 0x24, 0))

	_, err := logpage.Sense(scsi.NewDevice(tr), cdb.LogSenseRequest{PageCode: logpage.PageSolidStateMedia})
	require.Error(t, err)
	assert.True(t, errors.Is(err, scsi.ErrCheckCondition))
	assert.True(t, strings.HasPrefix(err.Error(), "log sense Solid State Media: "), err.Error())
}

func TestLastSelfTest(t *testing.T) {
	tests := []struct {
		name string
		resp string
		code uint8
	}{
		{"completed", "10 00 0014 0001 03 10 21 01 0100 ffffffffffffffff 00 00 00 00", 1},
		{"never run", "10 00 0014 0001 03 10 00 00 0000 0000000000000000 00 00 00 00", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			resp := mustHex(t, tt.resp)
			tr := mocks.NewMockTransport(ctrl)
			gomock.InOrder(
				tr.EXPECT().Execute(scsitest.Command(cdb.LogSense, 4), gomock.Any()).DoAndReturn(scsitest.Respond(resp)),
				tr.EXPECT().Execute(scsitest.Command(cdb.LogSense, 24), gomock.Any()).DoAndReturn(scsitest.Respond(resp)),
			)

			r, err := logpage.LastSelfTest(scsi.NewDevice(tr))
			require.NoError(t, err)
			if tt.code == 0 {
				assert.Nil(t, r)
				return
			}
			require.NotNil(t, r)
			assert.Equal(t, tt.code, r.SelfTestCode)
			assert.Equal(t, uint8(1), r.SelfTestResults)
			assert.Equal(t, uint8(1), r.SelfTestNumber)
		})
	}
}
