// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logpage

import (
	"fmt"

	"github.com/open-source-firmware/go-scsi/pkg/bitfield"
)

// Page codes
const (
	PageSupported               = 0x00
	PageWriteErrorCounter       = 0x02
	PageReadErrorCounter        = 0x03
	PageVerifyErrorCounter      = 0x05
	PageNonMediumError          = 0x06
	PageTemperature             = 0x0D
	PageStartStopCycleCounter   = 0x0E
	PageApplicationClient       = 0x0F
	PageSelfTestResults         = 0x10
	PageSolidStateMedia         = 0x11
	PageBackgroundScan          = 0x15
	PageInformationalExceptions = 0x2F

	SubpageAll = 0xFF
)

type codeRange struct {
	first, last uint16
	new         func() Parameter
}

func ranges(rs ...codeRange) ParameterSelector {
	return func(code uint16) Parameter {
		for _, r := range rs {
			if code >= r.first && code <= r.last {
				return r.new()
			}
		}
		return &GeneralParameter{}
	}
}

// SelectorFor returns the parameter selector of a page. Pages without a
// dedicated layout decode into GeneralParameter.
func SelectorFor(page, subpage uint8) ParameterSelector {
	if page == PageSupported {
		if subpage == SubpageAll {
			return func(uint16) Parameter { return &SupportedSubpage{} }
		}
		return func(uint16) Parameter { return &SupportedPage{} }
	}
	if subpage != 0 {
		return general
	}
	switch page {
	case PageWriteErrorCounter, PageReadErrorCounter, PageVerifyErrorCounter:
		return ranges(codeRange{0x0000, 0x0006, func() Parameter { return &CounterParameter{} }})
	case PageNonMediumError:
		return ranges(codeRange{0x0000, 0x0000, func() Parameter { return &CounterParameter{} }})
	case PageTemperature:
		return ranges(codeRange{0x0000, 0x0001, func() Parameter { return &TemperatureParameter{} }})
	case PageStartStopCycleCounter:
		return ranges(
			codeRange{0x0001, 0x0002, func() Parameter { return &DateParameter{} }},
			codeRange{0x0003, 0x0006, func() Parameter { return &CycleCountParameter{} }},
		)
	case PageApplicationClient:
		return ranges(codeRange{0x0000, 0x0FFF, func() Parameter { return &ApplicationClientParameter{} }})
	case PageSelfTestResults:
		return ranges(codeRange{0x0001, 0x0014, func() Parameter { return &SelfTestResultParameter{} }})
	case PageSolidStateMedia:
		return ranges(codeRange{0x0001, 0x0001, func() Parameter { return &PercentageUsedParameter{} }})
	case PageBackgroundScan:
		return ranges(
			codeRange{0x0000, 0x0000, func() Parameter { return &BackgroundScanStatusParameter{} }},
			codeRange{0x0001, 0x0800, func() Parameter { return &MediumScanParameter{} }},
		)
	case PageInformationalExceptions:
		return ranges(codeRange{0x0000, 0x0000, func() Parameter { return &InformationalExceptionsParameter{} }})
	}
	return general
}

var pageNames = map[uint8]string{
	PageSupported:               "Supported Log Pages",
	PageWriteErrorCounter:       "Write Error Counter",
	PageReadErrorCounter:        "Read Error Counter",
	PageVerifyErrorCounter:      "Verify Error Counter",
	PageNonMediumError:          "Non-Medium Error",
	PageTemperature:             "Temperature",
	PageStartStopCycleCounter:   "Start-Stop Cycle Counter",
	PageApplicationClient:       "Application Client",
	PageSelfTestResults:         "Self-Test Results",
	PageSolidStateMedia:         "Solid State Media",
	PageBackgroundScan:          "Background Scan Results",
	PageInformationalExceptions: "Informational Exceptions",
}

// PageName returns a human readable name for a log page.
func PageName(page, subpage uint8) string {
	if page == PageSupported && subpage == SubpageAll {
		return "Supported Log Pages and Subpages"
	}
	if s, ok := pageNames[page]; ok && subpage == 0 {
		return s
	}
	if subpage == 0 {
		return fmt.Sprintf("Log page %#02x", page)
	}
	return fmt.Sprintf("Log page %#02x/%#02x", page, subpage)
}

// SupportedPage is one entry of the supported log pages page.
type SupportedPage struct {
	Reserved uint8 `bitfield:"2"`
	PageCode uint8 `bitfield:"6"`
}

func (p *SupportedPage) Code() uint16              { return uint16(p.PageCode) }
func (p *SupportedPage) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, p) }
func (p *SupportedPage) Marshal() []byte           { return bitfield.MustMarshal(p) }

// SupportedSubpage is one entry of the supported log pages and subpages
// page.
type SupportedSubpage struct {
	Reserved    uint8 `bitfield:"2"`
	PageCode    uint8 `bitfield:"6"`
	SubpageCode uint8
}

func (p *SupportedSubpage) Code() uint16 {
	return uint16(p.PageCode)<<8 | uint16(p.SubpageCode)
}
func (p *SupportedSubpage) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, p) }
func (p *SupportedSubpage) Marshal() []byte           { return bitfield.MustMarshal(p) }

// Error counter parameter codes
const (
	CorrectedWithoutDelay = 0x0000
	CorrectedWithDelay    = 0x0001
	TotalRereadsRewrites  = 0x0002
	TotalCorrected        = 0x0003
	CorrectionInvocations = 0x0004
	TotalBytesProcessed   = 0x0005
	TotalUncorrected      = 0x0006
)

var counterNames = map[uint16]string{
	CorrectedWithoutDelay: "Errors corrected without substantial delay",
	CorrectedWithDelay:    "Errors corrected with possible delays",
	TotalRereadsRewrites:  "Total rewrites or rereads",
	TotalCorrected:        "Total errors corrected",
	CorrectionInvocations: "Total times correction algorithm processed",
	TotalBytesProcessed:   "Total bytes processed",
	TotalUncorrected:      "Total uncorrected errors",
}

// CounterName names an error counter parameter code.
func CounterName(code uint16) string {
	if s, ok := counterNames[code]; ok {
		return s
	}
	return fmt.Sprintf("Parameter %#04x", code)
}

// CounterParameter is a big-endian counter whose width is the parameter
// length. Counters wider than 64 bits keep their low 64 bits.
type CounterParameter struct {
	ParameterHeader
	Value uint64 `bitfield:"-"`
}

func (p *CounterParameter) Unmarshal(b []byte) []byte {
	param, rest := extent(b)
	bitfield.MustUnmarshal(param, &p.ParameterHeader)
	p.Value = 0
	if len(param) > parameterHeaderSize {
		for _, c := range param[parameterHeaderSize:] {
			p.Value = p.Value<<8 | uint64(c)
		}
	}
	return rest
}

func (p *CounterParameter) Marshal() []byte {
	out := bitfield.MustMarshal(&p.ParameterHeader)
	v := make([]byte, p.ParameterLength)
	x := p.Value
	for i := len(v) - 1; i >= 0 && x != 0; i-- {
		v[i] = byte(x)
		x >>= 8
	}
	return append(out, v...)
}

// TemperatureParameter is parameter 0x0000 (current) or 0x0001 (reference)
// of the temperature page, in degrees Celsius. 0xFF means not available.
type TemperatureParameter struct {
	ParameterHeader
	Reserved    uint8
	Temperature uint8
}

// TemperatureUnavailable is reported when the sensor cannot be read.
const TemperatureUnavailable = 0xFF

func (p *TemperatureParameter) Unmarshal(b []byte) []byte { return unmarshalFixed(b, p) }
func (p *TemperatureParameter) Marshal() []byte           { return marshalFixed(p) }

// DateParameter is the date of manufacture (0x0001) or accounting date
// (0x0002) of the start-stop cycle counter page, as ASCII digits.
type DateParameter struct {
	ParameterHeader
	Year [4]byte
	Week [2]byte
}

func (p *DateParameter) String() string {
	return fmt.Sprintf("%s week %s", p.Year[:], p.Week[:])
}

func (p *DateParameter) Unmarshal(b []byte) []byte { return unmarshalFixed(b, p) }
func (p *DateParameter) Marshal() []byte           { return marshalFixed(p) }

// Start-stop cycle counter parameter codes
const (
	DateOfManufacture              = 0x0001
	AccountingDate                 = 0x0002
	SpecifiedCycleCountOverLife    = 0x0003
	AccumulatedStartStopCycles     = 0x0004
	SpecifiedLoadUnloadCountOnLife = 0x0005
	AccumulatedLoadUnloadCycles    = 0x0006
)

// CycleCountParameter is one of the 32-bit counters of the start-stop cycle
// counter page.
type CycleCountParameter struct {
	ParameterHeader
	Count uint32
}

func (p *CycleCountParameter) Unmarshal(b []byte) []byte { return unmarshalFixed(b, p) }
func (p *CycleCountParameter) Marshal() []byte           { return marshalFixed(p) }

// ApplicationClientParameter is a general usage application client
// parameter.
type ApplicationClientParameter struct {
	ParameterHeader
	Data [252]byte
}

func (p *ApplicationClientParameter) Unmarshal(b []byte) []byte { return unmarshalFixed(b, p) }
func (p *ApplicationClientParameter) Marshal() []byte           { return marshalFixed(p) }

// SelfTestResultParameter is one self-test log entry.
type SelfTestResultParameter struct {
	ParameterHeader
	SelfTestCode                 uint8 `bitfield:"3"`
	Reserved0                    bool
	SelfTestResults              uint8 `bitfield:"4"`
	SelfTestNumber               uint8
	AccumulatedPowerOnHours      uint16
	AddressOfFirstFailure        uint64
	Reserved1                    uint8 `bitfield:"4"`
	SenseKey                     uint8 `bitfield:"4"`
	AdditionalSenseCode          uint8
	AdditionalSenseCodeQualifier uint8
	VendorSpecific               uint8
}

func (p *SelfTestResultParameter) Unmarshal(b []byte) []byte { return unmarshalFixed(b, p) }
func (p *SelfTestResultParameter) Marshal() []byte           { return marshalFixed(p) }

// PercentageUsedParameter is the percentage used endurance indicator of
// the solid state media page.
type PercentageUsedParameter struct {
	ParameterHeader
	Reserved       uint32 `bitfield:"24"`
	PercentageUsed uint8
}

func (p *PercentageUsedParameter) Unmarshal(b []byte) []byte { return unmarshalFixed(b, p) }
func (p *PercentageUsedParameter) Marshal() []byte           { return marshalFixed(p) }

// BackgroundScanStatusParameter is parameter 0x0000 of the background
// scan results page.
type BackgroundScanStatusParameter struct {
	ParameterHeader
	AccumulatedPowerOnMinutes    uint32
	Reserved                     uint8
	BackgroundScanStatus         uint8
	NumberOfBackgroundScans      uint16
	BackgroundScanProgress       uint16
	NumberOfMediumScansPerformed uint16
}

func (p *BackgroundScanStatusParameter) Unmarshal(b []byte) []byte { return unmarshalFixed(b, p) }
func (p *BackgroundScanStatusParameter) Marshal() []byte           { return marshalFixed(p) }

// MediumScanParameter is one medium error found by a background scan.
type MediumScanParameter struct {
	ParameterHeader
	AccumulatedPowerOnMinutes    uint32
	ReassignStatus               uint8 `bitfield:"4"`
	SenseKey                     uint8 `bitfield:"4"`
	AdditionalSenseCode          uint8
	AdditionalSenseCodeQualifier uint8
	VendorSpecific               [5]byte
	LogicalBlockAddress          uint64
}

func (p *MediumScanParameter) Unmarshal(b []byte) []byte { return unmarshalFixed(b, p) }
func (p *MediumScanParameter) Marshal() []byte           { return marshalFixed(p) }

// InformationalExceptionsParameter is the general parameter of the
// informational exceptions page.
type InformationalExceptionsParameter struct {
	ParameterHeader
	AdditionalSenseCode          uint8
	AdditionalSenseCodeQualifier uint8
	MostRecentTemperature        uint8
	TemperatureTripPoint         uint8
	MaximumTemperature           uint8
	VendorSpecific               [3]byte
}

func (p *InformationalExceptionsParameter) Unmarshal(b []byte) []byte {
	return unmarshalFixed(b, p)
}
func (p *InformationalExceptionsParameter) Marshal() []byte { return marshalFixed(p) }
