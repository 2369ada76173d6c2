// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scsi

import (
	"fmt"
	"strings"
)

// Status is the SCSI status byte returned by the device server.
type Status uint8

const (
	StatusGood                Status = 0x00
	StatusCheckCondition      Status = 0x02
	StatusConditionMet        Status = 0x04
	StatusBusy                Status = 0x08
	StatusReservationConflict Status = 0x18
	StatusTaskSetFull         Status = 0x28
	StatusACAActive           Status = 0x30
	StatusTaskAborted         Status = 0x40
)

func (s Status) String() string {
	switch s {
	case StatusGood:
		return "Good"
	case StatusCheckCondition:
		return "CheckCondition"
	case StatusConditionMet:
		return "ConditionMet"
	case StatusBusy:
		return "Busy"
	case StatusReservationConflict:
		return "ReservationConflict"
	case StatusTaskSetFull:
		return "TaskSetFull"
	case StatusACAActive:
		return "AcaActive"
	case StatusTaskAborted:
		return "TaskAborted"
	}
	return fmt.Sprintf("Unknown(%#02x)", uint8(s))
}

// HostStatus is the host adapter outcome (DID_* in the Linux SCSI
// midlayer). It is only reported by the Linux transport.
type HostStatus uint16

const (
	HostOK HostStatus = iota
	HostNoConnect
	HostBusBusy
	HostTimeOut
	HostBadTarget
	HostAbort
	HostParity
	HostError
	HostReset
	HostBadInterrupt
	HostPassthrough
	HostSoftError
	HostImmediateRetry
	HostRequeue
	HostTransportDisrupted
	HostTransportFailfast
	HostTargetFailure
	HostNexusFailure
	HostAllocFailure
	HostMediumError
)

var hostStatusNames = [...]string{
	"Ok", "NoConnect", "BusBusy", "TimeOut", "BadTarget", "Abort", "Parity",
	"Error", "Reset", "BadIntr", "Passthrough", "SoftError", "ImmRetry",
	"Requeue", "TransportDisrupted", "TransportFailfast", "TargetFailure",
	"NexusFailure", "AllocFailure", "MediumError",
}

func (h HostStatus) String() string {
	if int(h) < len(hostStatusNames) {
		return hostStatusNames[h]
	}
	return fmt.Sprintf("Unknown(%#02x)", uint16(h))
}

// DriverStatus is the low level driver outcome. The low nibble holds the
// driver byte, the high nibble the suggestion bits.
type DriverStatus uint16

const (
	DriverOK      DriverStatus = 0x00
	DriverBusy    DriverStatus = 0x01
	DriverSoft    DriverStatus = 0x02
	DriverMedia   DriverStatus = 0x03
	DriverError   DriverStatus = 0x04
	DriverInvalid DriverStatus = 0x05
	DriverTimeout DriverStatus = 0x06
	DriverHard    DriverStatus = 0x07
	DriverSense   DriverStatus = 0x08

	SuggestRetry DriverStatus = 0x10
	SuggestAbort DriverStatus = 0x20
	SuggestRemap DriverStatus = 0x30
	SuggestDie   DriverStatus = 0x40
	SuggestSense DriverStatus = 0x80

	driverMask  DriverStatus = 0x0f
	suggestMask DriverStatus = 0xf0
)

// Driver returns the driver byte.
func (d DriverStatus) Driver() DriverStatus { return d & driverMask }

// Suggest returns the suggestion bits.
func (d DriverStatus) Suggest() DriverStatus { return d & suggestMask }

// IsEmpty reports whether no driver condition was reported.
func (d DriverStatus) IsEmpty() bool { return d == DriverOK }

func (d DriverStatus) String() string {
	if d.IsEmpty() {
		return "Ok"
	}
	var parts []string
	switch d.Driver() {
	case DriverOK:
	case DriverBusy:
		parts = append(parts, "Busy")
	case DriverSoft:
		parts = append(parts, "Soft")
	case DriverMedia:
		parts = append(parts, "Media")
	case DriverError:
		parts = append(parts, "Error")
	case DriverInvalid:
		parts = append(parts, "Invalid")
	case DriverTimeout:
		parts = append(parts, "Timeout")
	case DriverHard:
		parts = append(parts, "Hard")
	case DriverSense:
		parts = append(parts, "Sense")
	default:
		parts = append(parts, fmt.Sprintf("Driver(%#x)", uint16(d.Driver())))
	}
	switch d.Suggest() {
	case 0:
	case SuggestRetry:
		parts = append(parts, "SuggestRetry")
	case SuggestAbort:
		parts = append(parts, "SuggestAbort")
	case SuggestRemap:
		parts = append(parts, "SuggestRemap")
	case SuggestDie:
		parts = append(parts, "SuggestDie")
	case SuggestSense:
		parts = append(parts, "SuggestSense")
	default:
		parts = append(parts, fmt.Sprintf("Suggest(%#x)", uint16(d.Suggest())))
	}
	if d&^(driverMask|suggestMask) != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint16(d&^(driverMask|suggestMask))))
	}
	return strings.Join(parts, "|")
}

// AuxiliaryInfo is the sg_io_hdr info word.
type AuxiliaryInfo uint32

const (
	InfoOKMask       AuxiliaryInfo = 0x1
	InfoCheck        AuxiliaryInfo = 0x1
	InfoDirectIOMask AuxiliaryInfo = 0x6
	InfoDirectIO     AuxiliaryInfo = 0x2
	InfoMixedIO      AuxiliaryInfo = 0x4
)

// OK reports whether the driver flagged nothing unusual.
func (i AuxiliaryInfo) OK() bool { return i&InfoOKMask == 0 }
