// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scsi

import (
	"encoding/binary"
	"fmt"
)

// MaxSenseLength is the size of the sense buffer handed to the transport.
const MaxSenseLength = 252

// SenseData is the raw sense buffer of one issuance. Only the first
// ResultData.TransferredSenseLength bytes are meaningful.
type SenseData [MaxSenseLength]byte

// Sense response codes
const (
	SenseFixedCurrent       = 0x70
	SenseFixedDeferred      = 0x71
	SenseDescriptorCurrent  = 0x72
	SenseDescriptorDeferred = 0x73
)

// SenseKey is the 4-bit sense key.
type SenseKey uint8

const (
	SenseNoSense        SenseKey = 0x0
	SenseRecoveredError SenseKey = 0x1
	SenseNotReady       SenseKey = 0x2
	SenseMediumError    SenseKey = 0x3
	SenseHardwareError  SenseKey = 0x4
	SenseIllegalRequest SenseKey = 0x5
	SenseUnitAttention  SenseKey = 0x6
	SenseDataProtect    SenseKey = 0x7
	SenseBlankCheck     SenseKey = 0x8
	SenseVendorSpecific SenseKey = 0x9
	SenseCopyAborted    SenseKey = 0xa
	SenseAbortedCommand SenseKey = 0xb
	SenseVolumeOverflow SenseKey = 0xd
	SenseMiscompare     SenseKey = 0xe
	SenseCompleted      SenseKey = 0xf
)

var senseKeyNames = map[SenseKey]string{
	SenseNoSense:        "NO SENSE",
	SenseRecoveredError: "RECOVERED ERROR",
	SenseNotReady:       "NOT READY",
	SenseMediumError:    "MEDIUM ERROR",
	SenseHardwareError:  "HARDWARE ERROR",
	SenseIllegalRequest: "ILLEGAL REQUEST",
	SenseUnitAttention:  "UNIT ATTENTION",
	SenseDataProtect:    "DATA PROTECT",
	SenseBlankCheck:     "BLANK CHECK",
	SenseVendorSpecific: "VENDOR SPECIFIC",
	SenseCopyAborted:    "COPY ABORTED",
	SenseAbortedCommand: "ABORTED COMMAND",
	SenseVolumeOverflow: "VOLUME OVERFLOW",
	SenseMiscompare:     "MISCOMPARE",
	SenseCompleted:      "COMPLETED",
}

func (k SenseKey) String() string {
	if s, ok := senseKeyNames[k]; ok {
		return s
	}
	return fmt.Sprintf("SenseKey(%#x)", uint8(k))
}

// Sense is the decoded form of a sense buffer.
type Sense struct {
	ResponseCode uint8
	Key          SenseKey
	ASC          uint8
	ASCQ         uint8
	// Information is only meaningful when Valid is set.
	Information uint64
	Valid       bool
	Raw         []byte
}

// ParseSense decodes fixed (0x70/0x71) and descriptor (0x72/0x73) format
// sense data. Fields beyond the end of b read as zero.
func ParseSense(b []byte) *Sense {
	s := &Sense{Raw: append([]byte(nil), b...)}
	at := func(i int) uint8 {
		if i < len(b) {
			return b[i]
		}
		return 0
	}
	s.ResponseCode = at(0) & 0x7f
	switch s.ResponseCode {
	case SenseFixedCurrent, SenseFixedDeferred:
		s.Key = SenseKey(at(2) & 0x0f)
		s.ASC = at(12)
		s.ASCQ = at(13)
		if at(0)&0x80 != 0 {
			s.Valid = true
			s.Information = uint64(binary.BigEndian.Uint32([]byte{at(3), at(4), at(5), at(6)}))
		}
	case SenseDescriptorCurrent, SenseDescriptorDeferred:
		s.Key = SenseKey(at(1) & 0x0f)
		s.ASC = at(2)
		s.ASCQ = at(3)
		if info, ok := descriptorInformation(b); ok {
			s.Valid = true
			s.Information = info
		}
	}
	return s
}

// descriptorInformation returns the INFORMATION descriptor (type 0x00) of
// descriptor format sense data.
func descriptorInformation(b []byte) (uint64, bool) {
	if len(b) < 8 {
		return 0, false
	}
	end := 8 + int(b[7])
	if end > len(b) {
		end = len(b)
	}
	for d := b[8:end]; len(d) >= 2; {
		n := 2 + int(d[1])
		if n > len(d) {
			n = len(d)
		}
		if d[0] == 0x00 && n >= 12 && d[2]&0x80 != 0 {
			return binary.BigEndian.Uint64(d[4:12]), true
		}
		d = d[n:]
	}
	return 0, false
}

// IsDescriptor reports whether the sense data uses descriptor format.
func (s *Sense) IsDescriptor() bool {
	return s.ResponseCode == SenseDescriptorCurrent || s.ResponseCode == SenseDescriptorDeferred
}

// IsDeferred reports whether the sense data describes a deferred error.
func (s *Sense) IsDeferred() bool {
	return s.ResponseCode == SenseFixedDeferred || s.ResponseCode == SenseDescriptorDeferred
}

func (s *Sense) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("response code %#02x, sense key %v, ASC/ASCQ %#02x/%#02x", s.ResponseCode, s.Key, s.ASC, s.ASCQ)
}
