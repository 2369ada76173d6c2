// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logpage decodes log pages returned by LOG SENSE into their
// parameters.
package logpage

import (
	"github.com/open-source-firmware/go-scsi/pkg/bitfield"
	"github.com/open-source-firmware/go-scsi/pkg/logger"
)

// PageHeader is the 4 byte log page header.
type PageHeader struct {
	DisableSave   bool
	SubpageFormat bool
	PageCode      uint8 `bitfield:"6"`
	SubpageCode   uint8
	PageLength    uint16
}

const pageHeaderSize = 4

// ParameterHeader is the 4 byte header of a log parameter.
type ParameterHeader struct {
	ParameterCode             uint16
	DisableUpdate             bool
	Obsolete                  bool
	TargetSaveDisable         bool
	EnableThresholdComparison bool
	ThresholdMetCriteria      uint8 `bitfield:"2"`
	FormatAndLinking          uint8 `bitfield:"2"`
	ParameterLength           uint8
}

const parameterHeaderSize = 4

func (h *ParameterHeader) Code() uint16 { return h.ParameterCode }

// Parameter is a decoded log parameter.
type Parameter interface {
	Code() uint16
	// Unmarshal decodes the parameter from the start of b and returns the
	// bytes that follow it.
	Unmarshal(b []byte) []byte
	Marshal() []byte
}

// ParameterSelector returns an empty parameter of the type used for code.
type ParameterSelector func(code uint16) Parameter

// extent splits b after the parameter that starts it, clamping the declared
// parameter length to what b holds.
func extent(b []byte) (param, rest []byte) {
	if len(b) < parameterHeaderSize {
		return b, nil
	}
	n := parameterHeaderSize + int(b[3])
	if n > len(b) {
		n = len(b)
	}
	return b[:n], b[n:]
}

// unmarshalFixed decodes a header based parameter of fixed layout. The
// layout is zero-padded when the device reports a shorter parameter.
func unmarshalFixed(b []byte, p interface{}) []byte {
	param, rest := extent(b)
	bitfield.MustUnmarshal(param, p)
	return rest
}

// marshalFixed encodes a header based parameter of fixed layout, sized to
// the parameter length its header declares. A zero parameter length is set
// to the length of the layout.
func marshalFixed(p interface{}) []byte {
	b := bitfield.MustMarshal(p)
	n := int(b[3])
	if n == 0 {
		b[3] = byte(len(b) - parameterHeaderSize)
		return b
	}
	if parameterHeaderSize+n <= len(b) {
		return b[:parameterHeaderSize+n]
	}
	return append(b, make([]byte, parameterHeaderSize+n-len(b))...)
}

// GeneralParameter keeps any parameter as its header and raw bytes.
type GeneralParameter struct {
	ParameterHeader
	Data []byte `bitfield:"-"`
}

func (p *GeneralParameter) Unmarshal(b []byte) []byte {
	param, rest := extent(b)
	bitfield.MustUnmarshal(param, &p.ParameterHeader)
	p.Data = nil
	if len(param) > parameterHeaderSize {
		p.Data = append([]byte(nil), param[parameterHeaderSize:]...)
	}
	return rest
}

func (p *GeneralParameter) Marshal() []byte {
	return append(bitfield.MustMarshal(&p.ParameterHeader), p.Data...)
}

func general(uint16) Parameter { return &GeneralParameter{} }

// PageWrapper is a log page with its parameters.
type PageWrapper struct {
	Header     PageHeader
	Parameters []Parameter
}

// ParseWrapper decodes b as a log page whose parameters are chosen by sel.
// The parameter area is bounded by the page length, clamped to b. The bytes
// after the page are returned.
func ParseWrapper(b []byte, sel ParameterSelector) (*PageWrapper, []byte) {
	w := &PageWrapper{}
	body := bitfield.MustUnmarshal(b, &w.Header)
	var rest []byte
	if n := int(w.Header.PageLength); n < len(body) {
		body, rest = body[:n], body[n:]
	} else if n > len(body) {
		logger.Debugf("logpage: page %#02x declares %d bytes, %d transferred", w.Header.PageCode, n, len(body))
	}
	if sel == nil {
		sel = general
	}

	for len(body) > 0 {
		var code uint16
		if len(body) >= 2 {
			code = uint16(body[0])<<8 | uint16(body[1])
		}
		p := sel(code)
		next := p.Unmarshal(body)
		if len(next) >= len(body) {
			break
		}
		w.Parameters = append(w.Parameters, p)
		body = next
	}
	return w, rest
}

// Find returns the first parameter with the given code, or nil.
func (w *PageWrapper) Find(code uint16) Parameter {
	for _, p := range w.Parameters {
		if p.Code() == code {
			return p
		}
	}
	return nil
}

// Marshal encodes the page. The page length is recomputed from the
// parameters, each of which keeps its declared parameter length, so a
// decoded page encodes to the length it declared.
func (w *PageWrapper) Marshal() []byte {
	var body []byte
	for _, p := range w.Parameters {
		body = append(body, p.Marshal()...)
	}
	h := w.Header
	h.PageLength = uint16(len(body))
	return append(bitfield.MustMarshal(&h), body...)
}
