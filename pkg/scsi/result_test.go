// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scsi

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withSense(r ResultData, sense ...byte) *ResultData {
	copy(r.Sense[:], sense)
	r.TransferredSenseLength = len(sense)
	return &r
}

func TestCheckCommonError(t *testing.T) {
	tests := []struct {
		name string
		r    *ResultData
		kind Kind
		ok   bool
		msg  string
	}{
		{"good", &ResultData{}, 0, true, ""},
		{"check condition", withSense(ResultData{Status: StatusCheckCondition, DriverStatus: DriverSense},
			0x70, 0, 0x02, 0, 0, 0, 0, 0x0a, 0, 0, 0, 0, 0x04, 0x01), KindCheckCondition, false,
			"Check condition: response code 0x70, sense key NOT READY, ASC/ASCQ 0x04/0x01"},
		{"busy", &ResultData{Status: StatusBusy}, KindOther, false, "Status: Busy."},
		{"host timeout", &ResultData{HostStatus: HostTimeOut}, KindOther, false, "host status: TimeOut."},
		{"check condition over bad transport", withSense(ResultData{Status: StatusCheckCondition, HostStatus: HostError, DriverStatus: DriverSense},
			0x72, 0x05, 0x20, 0x00), KindOther, false,
			"host status: Error. driver status: Sense. Status: CheckCondition. Sense data: [72, 05, 20, 00]"},
		{"driver timeout", &ResultData{DriverStatus: DriverTimeout | SuggestAbort}, KindOther, false,
			"driver status: Timeout|SuggestAbort."},
		{"unknown status", &ResultData{Status: 0x22}, KindOther, false, "Status: Unknown(0x22)."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.r.CheckCommonError()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var serr *Error
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tc.kind, serr.Kind)
			assert.Equal(t, tc.msg, err.Error())
		})
	}
}

func TestCheckIoctlError(t *testing.T) {
	assert.NoError(t, (&ResultData{}).CheckIoctlError())

	err := (&ResultData{IoctlErr: syscall.ETIMEDOUT}).CheckIoctlError()
	assert.True(t, errors.Is(err, ErrIO))
	assert.True(t, errors.Is(err, syscall.ETIMEDOUT))

	err = (&ResultData{IoctlErr: BadArgument("too long")}).CheckIoctlError()
	assert.True(t, errors.Is(err, ErrBadArgument))
	assert.Equal(t, "Bad argument: too long", err.Error())
}

func TestPayloadClamped(t *testing.T) {
	r := &ResultData{Data: make([]byte, 4), TransferredDataLength: 9}
	assert.Len(t, r.Payload(), 4)
	r.TransferredDataLength = 2
	assert.Len(t, r.Payload(), 2)
	r.TransferredSenseLength = 1000
	assert.Len(t, r.SenseBytes(), MaxSenseLength)
}

func TestParseSense(t *testing.T) {
	fixed := ParseSense([]byte{0xF0, 0, 0x03, 0x00, 0x00, 0x12, 0x34, 0x0a, 0, 0, 0, 0, 0x11, 0x00})
	assert.Equal(t, uint8(SenseFixedCurrent), fixed.ResponseCode)
	assert.Equal(t, SenseMediumError, fixed.Key)
	assert.Equal(t, uint8(0x11), fixed.ASC)
	assert.True(t, fixed.Valid)
	assert.Equal(t, uint64(0x1234), fixed.Information)
	assert.False(t, fixed.IsDescriptor())

	desc := ParseSense([]byte{0x73, 0x06, 0x29, 0x00, 0, 0, 0, 0x0c,
		0x00, 0x0a, 0x80, 0x00, 0, 0, 0, 0, 0, 0, 0x10, 0x00})
	assert.True(t, desc.IsDescriptor())
	assert.True(t, desc.IsDeferred())
	assert.Equal(t, SenseUnitAttention, desc.Key)
	assert.Equal(t, uint8(0x29), desc.ASC)
	assert.True(t, desc.Valid)
	assert.Equal(t, uint64(0x1000), desc.Information)

	short := ParseSense([]byte{0x70})
	assert.Equal(t, SenseNoSense, short.Key)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "/dev/sda is not a block device.", notBlockDevice("/dev/sda").Error())
	assert.Equal(t, "/dev/sg0 is not an SCSI Generic device, or old SCSI Generic driver.", notScsiDevice("/dev/sg0").Error())
	assert.Equal(t, "Bad argument: page 0x90", ArgumentOutOfBounds("page %#x", 0x90).Error())
	assert.True(t, errors.Is(ArgumentOutOfBounds("x"), ErrArgumentOutOfBounds))
	assert.False(t, errors.Is(ArgumentOutOfBounds("x"), ErrBadArgument))
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "TaskAborted", StatusTaskAborted.String())
	assert.Equal(t, "MediumError", HostMediumError.String())
	assert.Equal(t, "Unknown(0x99)", HostStatus(0x99).String())
	assert.Equal(t, "Ok", DriverOK.String())
	assert.True(t, AuxiliaryInfo(0).OK())
	assert.False(t, InfoCheck.OK())
}
