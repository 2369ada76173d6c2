// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mode

import (
	"fmt"

	"github.com/open-source-firmware/go-scsi/pkg/bitfield"
)

// Page and subpage codes
const (
	PageReadWriteErrorRecovery = 0x01
	PageVerifyErrorRecovery    = 0x07
	PageCaching                = 0x08
	PageControl                = 0x0A
	PagePowerCondition         = 0x1A
	PageInformationalExcept    = 0x1C
	PageAll                    = 0x3F

	SubpageControlExtension  = 0x01
	SubpageApplicationTag    = 0x02
	SubpagePowerConsumption  = 0x01
	SubpageBackgroundControl = 0x01
	SubpageAll               = 0xFF
)

// NewPage returns an empty page of the type registered for the codes, or a
// GeneralPage for codes without a dedicated layout. Registered layouts use
// the page_0 header for subpage 0 and the sub_page header otherwise.
func NewPage(page, subpage uint8) Page {
	switch {
	case page == PageReadWriteErrorRecovery && subpage == 0:
		return &ReadWriteErrorRecoveryPage{}
	case page == PageVerifyErrorRecovery && subpage == 0:
		return &VerifyErrorRecoveryPage{}
	case page == PageCaching && subpage == 0:
		return &CachingPage{}
	case page == PageControl && subpage == 0:
		return &ControlPage{}
	case page == PageControl && subpage == SubpageControlExtension:
		return &ControlExtensionPage{}
	case page == PageControl && subpage == SubpageApplicationTag:
		return &ApplicationTagPage{}
	case page == PagePowerCondition && subpage == 0:
		return &PowerConditionPage{}
	case page == PagePowerCondition && subpage == SubpagePowerConsumption:
		return &PowerConsumptionPage{}
	case page == PageInformationalExcept && subpage == 0:
		return &InformationalExceptionsControlPage{}
	case page == PageInformationalExcept && subpage == SubpageBackgroundControl:
		return &BackgroundControlPage{}
	}
	return &GeneralPage{}
}

var pageNames = map[[2]uint8]string{
	{PageReadWriteErrorRecovery, 0}:                     "Read-Write Error Recovery",
	{PageVerifyErrorRecovery, 0}:                        "Verify Error Recovery",
	{PageCaching, 0}:                                    "Caching",
	{PageControl, 0}:                                    "Control",
	{PageControl, SubpageControlExtension}:              "Control Extension",
	{PageControl, SubpageApplicationTag}:                "Application Tag",
	{PagePowerCondition, 0}:                             "Power Condition",
	{PagePowerCondition, SubpagePowerConsumption}:       "Power Consumption",
	{PageInformationalExcept, 0}:                        "Informational Exceptions Control",
	{PageInformationalExcept, SubpageBackgroundControl}: "Background Control",
}

// PageName returns a human readable name for the codes.
func PageName(page, subpage uint8) string {
	if s, ok := pageNames[[2]uint8{page, subpage}]; ok {
		return s
	}
	if subpage == 0 {
		return fmt.Sprintf("Page %#02x", page)
	}
	return fmt.Sprintf("Page %#02x/%#02x", page, subpage)
}

// ReadWriteErrorRecoveryPage is mode page 0x01.
type ReadWriteErrorRecoveryPage struct {
	CommonPageHeader
	AutomaticWriteReallocation bool
	AutomaticReadReallocation  bool
	TransferBlock              bool
	ReadContinuous             bool
	EnableEarlyRecovery        bool
	PostError                  bool
	DataTerminateOnError       bool
	DisableCorrection          bool
	ReadRetryCount             uint8
	Obsolete                   uint32 `bitfield:"24"`
	Reserved0                  uint8
	WriteRetryCount            uint8
	Reserved1                  uint8
	RecoveryTimeLimit          uint16
}

func (p *ReadWriteErrorRecoveryPage) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, p) }
func (p *ReadWriteErrorRecoveryPage) Marshal() []byte           { return fitPage(bitfield.MustMarshal(p)) }

// VerifyErrorRecoveryPage is mode page 0x07.
type VerifyErrorRecoveryPage struct {
	CommonPageHeader
	Reserved0               uint8 `bitfield:"4"`
	EnableEarlyRecovery     bool
	PostError               bool
	DataTerminateOnError    bool
	DisableCorrection       bool
	VerifyRetryCount        uint8
	Obsolete                uint8
	Reserved1               uint64 `bitfield:"40"`
	VerifyRecoveryTimeLimit uint16
}

func (p *VerifyErrorRecoveryPage) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, p) }
func (p *VerifyErrorRecoveryPage) Marshal() []byte           { return fitPage(bitfield.MustMarshal(p)) }

// CachingPage is mode page 0x08.
type CachingPage struct {
	CommonPageHeader
	InitiatorControl              bool
	AbortPrefetch                 bool
	CachingAnalysisPermitted      bool
	Discontinuity                 bool
	SizeEnable                    bool
	WriteCacheEnable              bool
	MultiplicationFactor          bool
	ReadCacheDisable              bool
	DemandReadRetentionPriority   uint8 `bitfield:"4"`
	WriteRetentionPriority        uint8 `bitfield:"4"`
	DisablePrefetchTransferLength uint16
	MinimumPrefetch               uint16
	MaximumPrefetch               uint16
	MaximumPrefetchCeiling        uint16
	ForceSequentialWrite          bool
	LogicalBlockCacheSegmentSize  bool
	DisableReadAhead              bool
	VendorSpecific                uint8 `bitfield:"2"`
	SyncProgress                  uint8 `bitfield:"2"`
	NonVolatileDisabled           bool
	NumberOfCacheSegments         uint8
	CacheSegmentSize              uint16
	Reserved                      uint8
	Obsolete                      uint32 `bitfield:"24"`
}

func (p *CachingPage) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, p) }
func (p *CachingPage) Marshal() []byte           { return fitPage(bitfield.MustMarshal(p)) }

// ControlPage is mode page 0x0A.
type ControlPage struct {
	CommonPageHeader
	TaskSetType                       uint8 `bitfield:"3"`
	TaskManagementFunctionsOnly       bool
	DisableProtectionInformationCheck bool
	DescriptorSense                   bool
	GlobalLoggingTargetSaveDisable    bool
	ReportLogExceptionCondition       bool
	QueueAlgorithmModifier            uint8 `bitfield:"4"`
	NoUnitAttentionOnRelease          bool
	QueueErrorManagement              uint8 `bitfield:"2"`
	DisableQueuing                    bool
	VendorSpecific                    bool
	ReportACheck                      bool
	UnitAttentionInterlocksControl    uint8 `bitfield:"2"`
	SoftwareWriteProtect              bool
	ReadyAERPermission                bool
	UnitAttentionAERPermission        bool
	ErrorAERPermission                bool
	ApplicationTagOwner               bool
	TaskAbortedStatus                 bool
	ApplicationTagModePageEnabled     bool
	RejectWriteWithoutProtection      bool
	Reserved                          bool
	AutoloadMode                      uint8 `bitfield:"3"`
	ReadyAERHoldoffPeriod             uint16
	BusyTimeoutPeriod                 uint16
	ExtendedSelfTestCompletionTime    uint16
}

func (p *ControlPage) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, p) }
func (p *ControlPage) Marshal() []byte           { return fitPage(bitfield.MustMarshal(p)) }

// ControlExtensionPage is mode page 0x0A subpage 0x01.
type ControlExtensionPage struct {
	CommonSubpageHeader
	Reserved0                    uint8 `bitfield:"5"`
	TimestampChangeableByMethods bool
	SCSIPrecedence               bool
	ImplicitALUAEnable           bool
	Reserved1                    uint8 `bitfield:"4"`
	InitialCommandPriority       uint8 `bitfield:"4"`
	MaximumSenseDataLength       uint8
	Reserved2                    [16]byte
	Reserved3                    [9]byte
}

func (p *ControlExtensionPage) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, p) }
func (p *ControlExtensionPage) Marshal() []byte           { return fitPage(bitfield.MustMarshal(p)) }

// ApplicationTagHeader is the fixed part of mode page 0x0A subpage 0x02.
type ApplicationTagHeader struct {
	CommonSubpageHeader
	Reserved [12]byte
}

// ApplicationTagDescriptor is one logical block application tag range.
type ApplicationTagDescriptor struct {
	Last                       bool
	Reserved0                  uint8 `bitfield:"7"`
	Reserved1                  [5]byte
	LogicalBlockApplicationTag uint16
	LogicalBlockAddress        uint64
	LogicalBlockCount          uint64
}

// ApplicationTagPage is mode page 0x0A subpage 0x02. Descriptors are read
// until one carries the last flag or the page length is used up.
type ApplicationTagPage struct {
	Header      ApplicationTagHeader
	Descriptors []ApplicationTagDescriptor
}

func (p *ApplicationTagPage) HeaderInfo() PageHeaderInfo {
	return p.Header.CommonSubpageHeader.HeaderInfo()
}

func (p *ApplicationTagPage) Unmarshal(b []byte) []byte {
	rest := bitfield.MustUnmarshal(b, &p.Header)
	end := 4 + int(p.Header.PageLength)
	if end > len(b) {
		end = len(b)
	}
	consumed := len(b) - len(rest)
	if end < consumed {
		end = consumed
	}
	body, tail := b[consumed:end], b[end:]

	dsize := bitfield.SizeOf(&ApplicationTagDescriptor{})
	p.Descriptors = nil
	for len(body) >= dsize {
		var d ApplicationTagDescriptor
		body = bitfield.MustUnmarshal(body, &d)
		p.Descriptors = append(p.Descriptors, d)
		if d.Last {
			break
		}
	}
	return tail
}

func (p *ApplicationTagPage) Marshal() []byte {
	out := bitfield.MustMarshal(&p.Header)
	for i := range p.Descriptors {
		out = append(out, bitfield.MustMarshal(&p.Descriptors[i])...)
	}
	return out
}

// PowerConditionPage is mode page 0x1A.
type PowerConditionPage struct {
	CommonPageHeader
	PowerManagementBackgroundPrecedence uint8 `bitfield:"2"`
	Reserved0                           uint8 `bitfield:"5"`
	StandbyY                            bool
	Reserved1                           uint8 `bitfield:"4"`
	IdleC                               bool
	IdleB                               bool
	IdleA                               bool
	StandbyZ                            bool
	IdleAConditionTimer                 uint32
	StandbyZConditionTimer              uint32
	IdleBConditionTimer                 uint32
	IdleCConditionTimer                 uint32
	StandbyYConditionTimer              uint32
	Reserved2                           [15]byte
	CheckConditionFromIdle              uint8 `bitfield:"2"`
	CheckConditionFromStandby           uint8 `bitfield:"2"`
	CheckConditionFromStopped           uint8 `bitfield:"2"`
	Reserved3                           uint8 `bitfield:"2"`
}

func (p *PowerConditionPage) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, p) }
func (p *PowerConditionPage) Marshal() []byte           { return fitPage(bitfield.MustMarshal(p)) }

// PowerConsumptionPage is mode page 0x1A subpage 0x01.
type PowerConsumptionPage struct {
	CommonSubpageHeader
	Reserved0                  uint16
	Reserved1                  uint8 `bitfield:"6"`
	ActiveLevel                uint8 `bitfield:"2"`
	PowerConsumptionIdentifier uint8
	Reserved2                  uint64
}

func (p *PowerConsumptionPage) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, p) }
func (p *PowerConsumptionPage) Marshal() []byte           { return fitPage(bitfield.MustMarshal(p)) }

// InformationalExceptionsControlPage is mode page 0x1C.
type InformationalExceptionsControlPage struct {
	CommonPageHeader
	Performance              bool
	Reserved0                bool
	EnableBackgroundFunction bool
	EnableWarning            bool
	DisableException         bool
	Test                     bool
	EnableBackgroundError    bool
	LogErrors                bool
	Reserved1                uint8 `bitfield:"4"`
	MethodOfReporting        uint8 `bitfield:"4"`
	IntervalTimer            uint32
	ReportCount              uint32
}

func (p *InformationalExceptionsControlPage) Unmarshal(b []byte) []byte {
	return bitfield.MustUnmarshal(b, p)
}
func (p *InformationalExceptionsControlPage) Marshal() []byte { return fitPage(bitfield.MustMarshal(p)) }

// BackgroundControlPage is mode page 0x1C subpage 0x01.
type BackgroundControlPage struct {
	CommonSubpageHeader
	Reserved0                    uint8 `bitfield:"5"`
	SuspendOnLogFull             bool
	LogOnlyWhenIntervention      bool
	EnableBackgroundMediumScan   bool
	Reserved1                    uint8 `bitfield:"7"`
	EnablePreScan                bool
	BackgroundMediumScanInterval uint16
	PreScanTimeoutLimit          uint16
	MinimumIdleTimeBeforeScan    uint16
	MaximumTimeToSuspendScan     uint16
	Reserved2                    uint16
}

func (p *BackgroundControlPage) Unmarshal(b []byte) []byte { return bitfield.MustUnmarshal(b, p) }
func (p *BackgroundControlPage) Marshal() []byte           { return fitPage(bitfield.MustMarshal(p)) }
