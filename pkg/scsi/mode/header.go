// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mode

import (
	"github.com/open-source-firmware/go-scsi/pkg/bitfield"
)

// HeaderType selects the mode parameter header format. MODE SENSE(6) and
// MODE SELECT(6) use the short header, the 10 byte commands the long one.
type HeaderType int

const (
	HeaderShort HeaderType = iota
	HeaderLong
)

// New returns a zero header of this type.
func (t HeaderType) New() HeaderStorage {
	if t == HeaderLong {
		return &LongHeader{}
	}
	return &ShortHeader{}
}

// probeLength is the width of the mode data length field.
func (t HeaderType) probeLength() int {
	if t == HeaderLong {
		return 2
	}
	return 1
}

// HeaderInfo is the format independent view of a mode parameter header.
type HeaderInfo struct {
	ModeDataLength        int
	MediumType            uint8
	WriteProtect          bool
	DPOFUA                bool
	LongLBA               bool
	BlockDescriptorLength int
}

// HeaderStorage is a short or long mode parameter header.
type HeaderStorage interface {
	Info() HeaderInfo
	// RequiredAllocationLength is the mode data length plus the size of
	// the length field itself.
	RequiredAllocationLength() int
	Unmarshal(b []byte) []byte
	Marshal() []byte
}

// NewHeader builds a header of type t from info.
func NewHeader(t HeaderType, info HeaderInfo) HeaderStorage {
	if t == HeaderLong {
		return &LongHeader{
			ModeDataLength:        uint16(saturate(info.ModeDataLength, 0xFFFF)),
			MediumType:            info.MediumType,
			WriteProtect:          info.WriteProtect,
			DPOFUA:                info.DPOFUA,
			LongLBA:               info.LongLBA,
			BlockDescriptorLength: uint16(saturate(info.BlockDescriptorLength, 0xFFFF)),
		}
	}
	return &ShortHeader{
		ModeDataLength:        uint8(saturate(info.ModeDataLength, 0xFF)),
		MediumType:            info.MediumType,
		WriteProtect:          info.WriteProtect,
		DPOFUA:                info.DPOFUA,
		BlockDescriptorLength: uint8(saturate(info.BlockDescriptorLength, 0xFF)),
	}
}

func saturate(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

// ShortHeader is the 4 byte mode parameter header.
type ShortHeader struct {
	ModeDataLength        uint8
	MediumType            uint8
	WriteProtect          bool
	Reserved0             uint8 `bitfield:"2"`
	DPOFUA                bool
	Reserved1             uint8 `bitfield:"4"`
	BlockDescriptorLength uint8
}

func (h *ShortHeader) Info() HeaderInfo {
	return HeaderInfo{
		ModeDataLength:        int(h.ModeDataLength),
		MediumType:            h.MediumType,
		WriteProtect:          h.WriteProtect,
		DPOFUA:                h.DPOFUA,
		BlockDescriptorLength: int(h.BlockDescriptorLength),
	}
}

func (h *ShortHeader) RequiredAllocationLength() int {
	return saturate(int(h.ModeDataLength)+1, 0xFF)
}

func (h *ShortHeader) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, h) }
func (h *ShortHeader) Marshal() []byte           { return bitfield.MustMarshal(h) }

// LongHeader is the 8 byte mode parameter header.
type LongHeader struct {
	ModeDataLength        uint16
	MediumType            uint8
	WriteProtect          bool
	Reserved0             uint8 `bitfield:"2"`
	DPOFUA                bool
	Reserved1             uint8 `bitfield:"4"`
	Reserved2             uint8 `bitfield:"7"`
	LongLBA               bool
	Reserved3             uint8
	BlockDescriptorLength uint16
}

func (h *LongHeader) Info() HeaderInfo {
	return HeaderInfo{
		ModeDataLength:        int(h.ModeDataLength),
		MediumType:            h.MediumType,
		WriteProtect:          h.WriteProtect,
		DPOFUA:                h.DPOFUA,
		LongLBA:               h.LongLBA,
		BlockDescriptorLength: int(h.BlockDescriptorLength),
	}
}

func (h *LongHeader) RequiredAllocationLength() int {
	return saturate(int(h.ModeDataLength)+2, 0xFFFF)
}

func (h *LongHeader) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, h) }
func (h *LongHeader) Marshal() []byte           { return bitfield.MustMarshal(h) }

// DescriptorType selects the block descriptor format.
type DescriptorType int

const (
	DescriptorShort DescriptorType = iota
	DescriptorLong
)

// New returns a zero descriptor of this type.
func (t DescriptorType) New() DescriptorStorage {
	if t == DescriptorLong {
		return &LongDescriptor{}
	}
	return &ShortDescriptor{}
}

// DescriptorInfo is the format independent view of a block descriptor.
type DescriptorInfo struct {
	NumberOfBlocks     uint64
	LogicalBlockLength uint32
}

// DescriptorStorage is a short or long block descriptor.
type DescriptorStorage interface {
	Info() DescriptorInfo
	Unmarshal(b []byte) []byte
	Marshal() []byte
}

// ShortDescriptor is the 8 byte block descriptor.
type ShortDescriptor struct {
	NumberOfBlocks     uint32
	Reserved           uint8
	LogicalBlockLength uint32 `bitfield:"24"`
}

func (d *ShortDescriptor) Info() DescriptorInfo {
	return DescriptorInfo{NumberOfBlocks: uint64(d.NumberOfBlocks), LogicalBlockLength: d.LogicalBlockLength}
}

func (d *ShortDescriptor) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, d) }
func (d *ShortDescriptor) Marshal() []byte           { return bitfield.MustMarshal(d) }

// LongDescriptor is the 16 byte block descriptor.
type LongDescriptor struct {
	NumberOfBlocks     uint64
	Reserved           uint32
	LogicalBlockLength uint32
}

func (d *LongDescriptor) Info() DescriptorInfo {
	return DescriptorInfo{NumberOfBlocks: d.NumberOfBlocks, LogicalBlockLength: d.LogicalBlockLength}
}

func (d *LongDescriptor) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, d) }
func (d *LongDescriptor) Marshal() []byte           { return bitfield.MustMarshal(d) }
