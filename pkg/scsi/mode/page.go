// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mode

import (
	"github.com/open-source-firmware/go-scsi/pkg/bitfield"
)

// PageHeaderInfo is the format independent view of a mode page header.
type PageHeaderInfo struct {
	ParametersSaveable bool
	SubpageFormat      bool
	PageCode           uint8
	SubpageCode        uint8
	// PageLength counts the bytes after the page header.
	PageLength int
}

// PageHeaderStorage is the page_0 or sub_page header of a mode page.
type PageHeaderStorage interface {
	HeaderInfo() PageHeaderInfo
	Unmarshal(b []byte) []byte
	Marshal() []byte
}

// CommonPageHeader is the 2 byte page_0 format header.
type CommonPageHeader struct {
	ParametersSaveable bool
	SubpageFormat      bool
	PageCode           uint8 `bitfield:"6"`
	PageLength         uint8
}

func (h *CommonPageHeader) HeaderInfo() PageHeaderInfo {
	return PageHeaderInfo{
		ParametersSaveable: h.ParametersSaveable,
		SubpageFormat:      h.SubpageFormat,
		PageCode:           h.PageCode,
		PageLength:         int(h.PageLength),
	}
}

func (h *CommonPageHeader) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, h) }
func (h *CommonPageHeader) Marshal() []byte           { return bitfield.MustMarshal(h) }

// CommonSubpageHeader is the 4 byte sub_page format header.
type CommonSubpageHeader struct {
	ParametersSaveable bool
	SubpageFormat      bool
	PageCode           uint8 `bitfield:"6"`
	SubpageCode        uint8
	PageLength         uint16
}

func (h *CommonSubpageHeader) HeaderInfo() PageHeaderInfo {
	return PageHeaderInfo{
		ParametersSaveable: h.ParametersSaveable,
		SubpageFormat:      h.SubpageFormat,
		PageCode:           h.PageCode,
		SubpageCode:        h.SubpageCode,
		PageLength:         int(h.PageLength),
	}
}

func (h *CommonSubpageHeader) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, h) }
func (h *CommonSubpageHeader) Marshal() []byte           { return bitfield.MustMarshal(h) }

const subpageFormatBit = 0x40

// ParsePageHeader decodes the page header at the start of b, choosing the
// form from the SPF bit.
func ParsePageHeader(b []byte) PageHeaderStorage {
	var h PageHeaderStorage = &CommonPageHeader{}
	if len(b) > 0 && b[0]&subpageFormatBit != 0 {
		h = &CommonSubpageHeader{}
	}
	h.Unmarshal(b)
	return h
}

func pageHeaderSize(b []byte) int {
	if len(b) > 0 && b[0]&subpageFormatBit != 0 {
		return 4
	}
	return 2
}

// fitPage sizes the encoding of a fixed layout page to the page length its
// header declares, zero padding or truncating the layout. A zero page length
// is set to the length of the layout.
func fitPage(b []byte) []byte {
	hs := pageHeaderSize(b)
	if len(b) < hs {
		return b
	}
	var n int
	if hs == 4 {
		n = int(b[2])<<8 | int(b[3])
	} else {
		n = int(b[1])
	}
	if n == 0 {
		n = len(b) - hs
		if hs == 4 {
			b[2], b[3] = byte(n>>8), byte(n)
		} else {
			b[1] = byte(n)
		}
		return b
	}
	if hs+n <= len(b) {
		return b[:hs+n]
	}
	return append(b, make([]byte, hs+n-len(b))...)
}

// Page is a decoded mode page.
type Page interface {
	HeaderInfo() PageHeaderInfo
	// Unmarshal decodes the page from the start of b and returns the
	// bytes that follow it.
	Unmarshal(b []byte) []byte
	Marshal() []byte
}

// GeneralPage keeps any page as its header and raw parameter bytes.
type GeneralPage struct {
	Header PageHeaderStorage
	Data   []byte
}

func (p *GeneralPage) HeaderInfo() PageHeaderInfo {
	if p.Header == nil {
		return PageHeaderInfo{}
	}
	return p.Header.HeaderInfo()
}

// Unmarshal keeps the header and page length bytes. A page length beyond
// the end of b is clamped.
func (p *GeneralPage) Unmarshal(b []byte) []byte {
	p.Header = ParsePageHeader(b)
	hs := pageHeaderSize(b)
	if hs > len(b) {
		p.Data = nil
		return nil
	}
	end := hs + p.Header.HeaderInfo().PageLength
	if end > len(b) {
		end = len(b)
	}
	p.Data = append([]byte(nil), b[hs:end]...)
	return b[end:]
}

func (p *GeneralPage) Marshal() []byte {
	if p.Header == nil {
		return append([]byte(nil), p.Data...)
	}
	return append(p.Header.Marshal(), p.Data...)
}
