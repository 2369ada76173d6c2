// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scsi

import (
	"github.com/open-source-firmware/go-scsi/pkg/bitfield"
	"github.com/open-source-firmware/go-scsi/pkg/logger"
)

// FlexibleStruct is a response made of a fixed size header followed by a
// variable number of elements. Element types are either byte sized integers
// or bitfield structures; struct{} means the response has no elements.
type FlexibleStruct[H, E any] struct {
	Header   H
	Elements []E
	// Raw is the transferred part of the response.
	Raw []byte
}

func elementSize[E any]() int {
	var e E
	switch any(e).(type) {
	case uint8:
		return 1
	}
	return bitfield.SizeOf(&e)
}

// Body returns the transferred bytes following the header.
func (f *FlexibleStruct[H, E]) Body() []byte {
	n := bitfield.SizeOf(&f.Header)
	if n > len(f.Raw) {
		return nil
	}
	return f.Raw[n:]
}

// DecodeFlexible decodes b as a header followed by as many complete elements
// as b holds. A short b yields a zero-padded header and no elements.
func DecodeFlexible[H, E any](b []byte) *FlexibleStruct[H, E] {
	f := &FlexibleStruct[H, E]{Raw: b}
	rest := bitfield.MustUnmarshal(b, &f.Header)
	size := elementSize[E]()
	if size == 0 {
		return f
	}
	f.Elements = make([]E, 0, len(rest)/size)
	for len(rest) >= size {
		var e E
		if p, ok := any(&e).(*uint8); ok {
			*p = rest[0]
			rest = rest[1:]
		} else {
			rest = bitfield.MustUnmarshal(rest, &e)
		}
		f.Elements = append(f.Elements, e)
	}
	return f
}

// IssueFlex runs the probe then reissue protocol. The command is first built
// for the header plus probe elements. remaining reports how many elements the
// decoded header declares; when that exceeds what was probed the command is
// rebuilt once for the declared size and reissued.
func IssueFlex[H, E any](d *Device, build func(allocationLength int) Command, remaining func(h *H) int, probe int) (*FlexibleStruct[H, E], error) {
	var h H
	hsize := bitfield.SizeOf(&h)
	esize := elementSize[E]()

	r, err := d.IssueChecked(build(hsize + probe*esize))
	if err != nil {
		return nil, err
	}
	f := DecodeFlexible[H, E](r.Payload())

	n := remaining(&f.Header)
	if n <= probe || esize == 0 {
		return f, nil
	}

	logger.Debugf("scsi: response declares %d elements, probed %d, reissuing", n, probe)
	r, err = d.IssueChecked(build(hsize + n*esize))
	if err != nil {
		return nil, err
	}
	return DecodeFlexible[H, E](r.Payload()), nil
}

// IssueRaw is the byte level form of IssueFlex for responses whose header
// layout is only known to the caller. required reports the total length the
// probed response declares.
func IssueRaw(d *Device, build func(allocationLength int) Command, required func(resp []byte) int, probe int) ([]byte, error) {
	r, err := d.IssueChecked(build(probe))
	if err != nil {
		return nil, err
	}
	resp := r.Payload()

	n := required(resp)
	if n <= probe {
		return resp, nil
	}

	logger.Debugf("scsi: response declares %d bytes, probed %d, reissuing", n, probe)
	r, err = d.IssueChecked(build(n))
	if err != nil {
		return nil, err
	}
	return r.Payload(), nil
}
