// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logpage

import (
	"github.com/pkg/errors"

	"github.com/open-source-firmware/go-scsi/pkg/scsi"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/cdb"
)

func requiredLength(resp []byte) int {
	if len(resp) < pageHeaderSize {
		return pageHeaderSize
	}
	return pageHeaderSize + (int(resp[2])<<8 | int(resp[3]))
}

// Sense reads a log page. The first issuance covers the page header only,
// the second the page length it declares.
func Sense(d *scsi.Device, req cdb.LogSenseRequest) (*PageWrapper, error) {
	build := func(n int) scsi.Command { return cdb.NewLogSense(req, n) }
	resp, err := scsi.IssueRaw(d, build, requiredLength, pageHeaderSize)
	if err != nil {
		return nil, errors.Wrapf(err, "log sense %s", PageName(req.PageCode, req.SubpageCode))
	}
	w, _ := ParseWrapper(resp, SelectorFor(req.PageCode, req.SubpageCode))
	return w, nil
}

// SupportedPages lists the log page codes the device reports.
func SupportedPages(d *scsi.Device) ([]uint8, error) {
	w, err := Sense(d, cdb.LogSenseRequest{PageControl: cdb.PageControlCumulative, PageCode: PageSupported})
	if err != nil {
		return nil, err
	}
	pages := make([]uint8, 0, len(w.Parameters))
	for _, p := range w.Parameters {
		if s, ok := p.(*SupportedPage); ok {
			pages = append(pages, s.PageCode)
		}
	}
	return pages, nil
}

// Temperature returns the current temperature in degrees Celsius, and false
// when the device does not report one.
func Temperature(d *scsi.Device) (int, bool, error) {
	w, err := Sense(d, cdb.LogSenseRequest{PageControl: cdb.PageControlCumulative, PageCode: PageTemperature})
	if err != nil {
		return 0, false, err
	}
	p, ok := w.Find(0x0000).(*TemperatureParameter)
	if !ok || p.Temperature == TemperatureUnavailable {
		return 0, false, nil
	}
	return int(p.Temperature), true, nil
}

// LastSelfTest returns the most recent self-test result, or nil when the
// device has none recorded.
func LastSelfTest(d *scsi.Device) (*SelfTestResultParameter, error) {
	w, err := Sense(d, cdb.LogSenseRequest{PageControl: cdb.PageControlCumulative, PageCode: PageSelfTestResults})
	if err != nil {
		return nil, err
	}
	p, ok := w.Find(0x0001).(*SelfTestResultParameter)
	if !ok || p.SelfTestCode == 0 && p.SelfTestNumber == 0 && p.AccumulatedPowerOnHours == 0 {
		return nil, nil
	}
	return p, nil
}
