// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package scsi

import (
	"math"
	"os"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	IOCTL_SCSI_PASS_THROUGH_DIRECT = 0x4D014

	scsiIoctlDataOut         = 0
	scsiIoctlDataIn          = 1
	scsiIoctlDataUnspecified = 2

	maxCDBLength = 16
)

// SCSI_PASS_THROUGH_DIRECT from <ntddscsi.h>
type scsiPassThroughDirect struct {
	Length             uint16
	ScsiStatus         uint8
	PathId             uint8
	TargetId           uint8
	Lun                uint8
	CdbLength          uint8
	SenseInfoLength    uint8
	DataIn             uint8
	DataTransferLength uint32
	TimeOutValue       uint32 // seconds
	DataBuffer         uintptr
	SenseInfoOffset    uint32
	Cdb                [maxCDBLength]byte
}

// The sense buffer trails the request in the same allocation.
type scsiPassThroughDirectWithSense struct {
	sptd  scsiPassThroughDirect
	sense SenseData
}

type sptdTransport struct {
	h windows.Handle
}

func openTransport(path string) (Transport, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, BadArgument("device path %q: %v", path, err)
	}
	h, err := windows.CreateFile(name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return nil, IOError(&os.PathError{Op: "open", Path: path, Err: err})
	}
	ft, err := windows.GetFileType(h)
	if err != nil || ft != windows.FILE_TYPE_DISK {
		windows.CloseHandle(h)
		return nil, notBlockDevice(path)
	}
	return &sptdTransport{h: h}, nil
}

func sptdTimeout(timeout time.Duration) uint32 {
	if timeout <= 0 {
		return 1
	}
	s := (timeout + time.Second - 1) / time.Second
	if s > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(s)
}

func (t *sptdTransport) Execute(cmd Command, timeout time.Duration) *ResultData {
	r := &ResultData{Data: cmd.Data}
	if len(cmd.CDB) == 0 || len(cmd.CDB) > maxCDBLength {
		r.IoctlErr = BadArgument("CDB length %d exceeds %d bytes", len(cmd.CDB), maxCDBLength)
		return r
	}

	var req scsiPassThroughDirectWithSense
	req.sptd.Length = uint16(unsafe.Sizeof(req.sptd))
	req.sptd.CdbLength = uint8(len(cmd.CDB))
	copy(req.sptd.Cdb[:], cmd.CDB)
	req.sptd.SenseInfoLength = MaxSenseLength
	req.sptd.SenseInfoOffset = uint32(unsafe.Offsetof(req.sense))
	req.sptd.TimeOutValue = sptdTimeout(timeout)
	req.sptd.DataTransferLength = uint32(len(cmd.Data))
	switch cmd.Direction {
	case DirectionIn:
		req.sptd.DataIn = scsiIoctlDataIn
	case DirectionOut:
		req.sptd.DataIn = scsiIoctlDataOut
	default:
		req.sptd.DataIn = scsiIoctlDataUnspecified
	}
	if len(cmd.Data) > 0 {
		req.sptd.DataBuffer = uintptr(unsafe.Pointer(&cmd.Data[0]))
	}

	size := uint32(unsafe.Sizeof(req))
	var returned uint32
	err := windows.DeviceIoControl(t.h, IOCTL_SCSI_PASS_THROUGH_DIRECT,
		(*byte)(unsafe.Pointer(&req)), size,
		(*byte)(unsafe.Pointer(&req)), size,
		&returned, nil)
	runtime.KeepAlive(cmd.Data)
	if err != nil {
		r.IoctlErr = err
		return r
	}

	n := int(req.sptd.DataTransferLength)
	if n > len(cmd.Data) {
		n = len(cmd.Data)
	}
	r.TransferredDataLength = n
	r.TransferredSenseLength = int(req.sptd.SenseInfoLength)
	r.Sense = req.sense
	r.Status = Status(req.sptd.ScsiStatus)
	return r
}

func (t *sptdTransport) Close() error {
	return windows.CloseHandle(t.h)
}
