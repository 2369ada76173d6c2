// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mode decodes and encodes mode parameter data: the mode parameter
// header, block descriptors and the mode pages that follow them.
package mode

import (
	"github.com/open-source-firmware/go-scsi/pkg/logger"
)

// PageWrapper is a complete mode parameter list.
type PageWrapper struct {
	Header      HeaderStorage
	Descriptors []DescriptorStorage
	Pages       []Page
}

// ParseWrapper decodes b as a mode parameter list. The header and descriptor
// formats are chosen by the caller because they follow from the command that
// produced the data. Lengths declared beyond the end of b are clamped.
func ParseWrapper(ht HeaderType, dt DescriptorType, b []byte) *PageWrapper {
	w := &PageWrapper{Header: ht.New()}
	rest := w.Header.Unmarshal(b)
	consumed := len(b) - len(rest)
	if n := w.Header.RequiredAllocationLength(); n < len(b) {
		b = b[:n]
		if consumed > n {
			consumed = n
		}
		rest = b[consumed:]
	}

	dlen := w.Header.Info().BlockDescriptorLength
	if dlen > len(rest) {
		logger.Debugf("mode: block descriptor length %d exceeds the %d bytes left", dlen, len(rest))
		dlen = len(rest)
	}
	dsize := len(dt.New().Marshal())
	for d := rest[:dlen]; len(d) >= dsize; {
		desc := dt.New()
		d = desc.Unmarshal(d)
		w.Descriptors = append(w.Descriptors, desc)
	}

	w.Pages = ParsePages(rest[dlen:])
	return w
}

// ParsePages splits b into mode pages, each bounded by its declared page
// length, and decodes each with the type registered for its codes. A page
// whose SPF bit disagrees with the header form of its registered layout is
// kept as a GeneralPage.
func ParsePages(b []byte) []Page {
	var pages []Page
	for len(b) > 0 {
		hs := pageHeaderSize(b)
		if len(b) < hs {
			logger.Debugf("mode: %d trailing bytes do not hold a page header", len(b))
			break
		}
		info := ParsePageHeader(b).HeaderInfo()
		end := hs + info.PageLength
		if end > len(b) {
			end = len(b)
		}
		var p Page = &GeneralPage{}
		if info.SubpageFormat == (info.SubpageCode != 0) {
			p = NewPage(info.PageCode, info.SubpageCode)
		} else {
			logger.Debugf("mode: page %#02x/%#02x has SPF %t", info.PageCode, info.SubpageCode, info.SubpageFormat)
		}
		p.Unmarshal(b[:end])
		pages = append(pages, p)
		b = b[end:]
	}
	return pages
}

// Page returns the first page, or nil when the list holds none.
func (w *PageWrapper) Page() Page {
	if len(w.Pages) == 0 {
		return nil
	}
	return w.Pages[0]
}

// Find returns the page with the given codes, or nil.
func (w *PageWrapper) Find(page, subpage uint8) Page {
	for _, p := range w.Pages {
		info := p.HeaderInfo()
		if info.PageCode == page && info.SubpageCode == subpage {
			return p
		}
	}
	return nil
}

// Marshal encodes the list as held, header included.
func (w *PageWrapper) Marshal() []byte {
	var out []byte
	if w.Header != nil {
		out = w.Header.Marshal()
	}
	for _, d := range w.Descriptors {
		out = append(out, d.Marshal()...)
	}
	for _, p := range w.Pages {
		out = append(out, p.Marshal()...)
	}
	return out
}

// selectData encodes the list for MODE SELECT: the mode data length is zero
// and the PS bit of every page is cleared.
func (w *PageWrapper) selectData(ht HeaderType) []byte {
	var descs []byte
	for _, d := range w.Descriptors {
		descs = append(descs, d.Marshal()...)
	}
	var info HeaderInfo
	if w.Header != nil {
		info = w.Header.Info()
	}
	h := NewHeader(ht, HeaderInfo{
		MediumType:            info.MediumType,
		LongLBA:               info.LongLBA,
		BlockDescriptorLength: len(descs),
	})
	out := append(h.Marshal(), descs...)
	for _, p := range w.Pages {
		b := p.Marshal()
		if len(b) > 0 {
			b[0] &^= 0x80
		}
		out = append(out, b...)
	}
	return out
}
