// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mode

import (
	"github.com/pkg/errors"

	"github.com/open-source-firmware/go-scsi/pkg/scsi"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/cdb"
)

// SenseRequest describes a MODE SENSE. Header selects MODE SENSE(6) or (10);
// a long descriptor request sets LLBAA on MODE SENSE(10).
type SenseRequest struct {
	Header                  HeaderType
	Descriptor              DescriptorType
	DisableBlockDescriptors bool
	PageControl             cdb.PageControl
	PageCode                uint8
	SubpageCode             uint8
}

// AllPages requests every page and subpage.
func AllPages(pc cdb.PageControl) SenseRequest {
	return SenseRequest{
		Header:      HeaderLong,
		Descriptor:  DescriptorLong,
		PageControl: pc,
		PageCode:    PageAll,
		SubpageCode: SubpageAll,
	}
}

func (r SenseRequest) build(n int) scsi.Command {
	req := cdb.ModeSenseRequest{
		DisableBlockDescriptor: r.DisableBlockDescriptors,
		PageControl:            r.PageControl,
		PageCode:               r.PageCode,
		SubpageCode:            r.SubpageCode,
	}
	if r.Header == HeaderShort {
		return cdb.NewModeSense6(req, n)
	}
	req.LongLBAAccepted = r.Descriptor == DescriptorLong
	return cdb.NewModeSense10(req, n)
}

// Sense reads mode parameter data. The first issuance only covers the mode
// data length field, the second the length it declares.
func Sense(d *scsi.Device, r SenseRequest) (*PageWrapper, error) {
	required := func(resp []byte) int {
		h := r.Header.New()
		h.Unmarshal(resp)
		return h.RequiredAllocationLength()
	}
	resp, err := scsi.IssueRaw(d, r.build, required, r.Header.probeLength())
	if err != nil {
		return nil, errors.Wrapf(err, "mode sense %s", PageName(r.PageCode, r.SubpageCode))
	}
	return ParseWrapper(r.Header, r.Descriptor, resp), nil
}

// SensePage reads one page and returns it decoded with its registered type.
func SensePage(d *scsi.Device, r SenseRequest) (Page, error) {
	w, err := Sense(d, r)
	if err != nil {
		return nil, err
	}
	p := w.Find(r.PageCode, r.SubpageCode)
	if p == nil {
		return nil, scsi.BadArgument("device returned no %s page", PageName(r.PageCode, r.SubpageCode))
	}
	return p, nil
}

// Select writes w with MODE SELECT(6) or (10), matching ht. save asks the
// device to keep the values across power cycles.
func Select(d *scsi.Device, ht HeaderType, w *PageWrapper, save bool) error {
	data := w.selectData(ht)
	var cmd scsi.Command
	var err error
	if ht == HeaderShort {
		cmd, err = cdb.NewModeSelect6(true, save, data)
	} else {
		cmd, err = cdb.NewModeSelect10(true, save, data)
	}
	if err != nil {
		return err
	}
	if _, err := d.IssueChecked(cmd); err != nil {
		return errors.Wrap(err, "mode select")
	}
	return nil
}
