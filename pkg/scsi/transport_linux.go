// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Copyright 2021 Christian Svensson. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux

// SCSI generic (sg) transport.

package scsi

import (
	"math"
	"os"
	"runtime"
	"time"
	"unsafe"

	"github.com/dswarbrick/smart/ioctl"
	"golang.org/x/sys/unix"
)

type sgDirection int32

const (
	sgDxferNone    sgDirection = -1
	sgDxferToDev   sgDirection = -2
	sgDxferFromDev sgDirection = -3

	SG_IO              = 0x2285
	SG_GET_VERSION_NUM = 0x2282

	// Oldest sg driver with the sg_io_hdr interface
	sgMinVersion = 30000
)

// SCSI generic ioctl header, defined as sg_io_hdr_t in <scsi/sg.h>
type sgIoHdr struct {
	interface_id    int32       // 'S' for SCSI generic (required)
	dxfer_direction sgDirection // data transfer direction
	cmd_len         uint8       // SCSI command length (<= 16 bytes)
	mx_sb_len       uint8       // max length to write to sbp
	iovec_count     uint16      //nolint:structcheck,unused // 0 implies no scatter gather
	dxfer_len       uint32      // byte count of data transfer
	dxferp          uintptr     // points to data transfer memory or scatter gather list
	cmdp            uintptr     // points to command to perform
	sbp             uintptr     // points to sense_buffer memory
	timeout         uint32      // MAX_UINT -> no timeout (unit: millisec)
	flags           uint32      //nolint:structcheck,unused // 0 -> default, see SG_FLAG...
	pack_id         int32       //nolint:structcheck,unused // unused internally (normally)
	usr_ptr         uintptr     //nolint:structcheck,unused // unused internally
	status          uint8       // SCSI status
	masked_status   uint8       //nolint:structcheck,unused // shifted, masked scsi status
	msg_status      uint8       //nolint:structcheck,unused // messaging level data (optional)
	sb_len_wr       uint8       // byte count actually written to sbp
	host_status     uint16      // errors from host adapter
	driver_status   uint16      // errors from software driver
	resid           int32       // dxfer_len - actual_transferred
	duration        uint32      //nolint:structcheck,unused // time taken by cmd (unit: millisec)
	info            uint32      // auxiliary information
}

type sgTransport struct {
	f *os.File
}

func openTransport(path string) (Transport, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, IOError(&os.PathError{Op: "open", Path: path, Err: err})
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, IOError(&os.PathError{Op: "fstat", Path: path, Err: err})
	}
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFBLK, unix.S_IFCHR:
	default:
		unix.Close(fd)
		return nil, notBlockDevice(path)
	}

	var version int32
	err = ioctl.Ioctl(uintptr(fd), SG_GET_VERSION_NUM, uintptr(unsafe.Pointer(&version)))
	if err != nil || version < sgMinVersion {
		unix.Close(fd)
		return nil, notScsiDevice(path)
	}

	return &sgTransport{f: os.NewFile(uintptr(fd), path)}, nil
}

func sgTimeout(timeout time.Duration) uint32 {
	ms := timeout.Milliseconds()
	if ms <= 0 || ms >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}

func (t *sgTransport) Execute(cmd Command, timeout time.Duration) *ResultData {
	r := &ResultData{Data: cmd.Data}
	if len(cmd.CDB) == 0 || len(cmd.CDB) > math.MaxUint8 {
		r.IoctlErr = unix.EINVAL
		return r
	}

	hdr := sgIoHdr{
		interface_id:    'S',
		dxfer_direction: sgDxferNone,
		cmd_len:         uint8(len(cmd.CDB)),
		mx_sb_len:       MaxSenseLength,
		dxfer_len:       uint32(len(cmd.Data)),
		cmdp:            uintptr(unsafe.Pointer(&cmd.CDB[0])),
		sbp:             uintptr(unsafe.Pointer(&r.Sense[0])),
		timeout:         sgTimeout(timeout),
	}
	switch cmd.Direction {
	case DirectionIn:
		hdr.dxfer_direction = sgDxferFromDev
	case DirectionOut:
		hdr.dxfer_direction = sgDxferToDev
	}
	if len(cmd.Data) > 0 {
		hdr.dxferp = uintptr(unsafe.Pointer(&cmd.Data[0]))
	} else {
		hdr.dxfer_direction = sgDxferNone
	}

	err := ioctl.Ioctl(t.f.Fd(), SG_IO, uintptr(unsafe.Pointer(&hdr)))
	runtime.KeepAlive(cmd.CDB)
	runtime.KeepAlive(cmd.Data)
	runtime.KeepAlive(r)
	runtime.KeepAlive(t.f)
	if err != nil {
		r.IoctlErr = err
		return r
	}

	n := int(hdr.dxfer_len) - int(hdr.resid)
	if n < 0 {
		n = 0
	}
	if n > len(cmd.Data) {
		n = len(cmd.Data)
	}
	r.TransferredDataLength = n
	r.TransferredSenseLength = int(hdr.sb_len_wr)
	r.Status = Status(hdr.status)
	r.HostStatus = HostStatus(hdr.host_status)
	r.DriverStatus = DriverStatus(hdr.driver_status)
	r.Info = AuxiliaryInfo(hdr.info)
	return r
}

func (t *sgTransport) Close() error {
	return t.f.Close()
}
