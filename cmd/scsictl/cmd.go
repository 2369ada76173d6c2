// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/open-source-firmware/go-scsi/pkg/cmdutil"
	"github.com/open-source-firmware/go-scsi/pkg/scsi"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/block"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/cdb"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/logpage"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/mode"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/vpd"
)

// Globals are the flags shared by every command. Run methods receive them
// from kong.
type Globals struct {
	Config   kong.ConfigFlag `placeholder:"FILE" help:"Read flag defaults from a YAML file"`
	Device   string          `required:"" short:"d" env:"SCSI_DEVICE" help:"Path to SCSI device (e.g. /dev/sg0)"`
	Timeout  time.Duration   `default:"30s" help:"Timeout of each command"`
	Output   string          `short:"o" help:"Output format: table, json or spew (default table on a terminal, json otherwise)"`
	LogLevel string          `default:"warn" enum:"debug,info,warn,error,crit,none" help:"Library log level"`
}

func (g *Globals) open() (*scsi.Device, error) {
	d, err := scsi.Open(g.Device)
	if err != nil {
		return nil, err
	}
	d.SetTimeout(g.Timeout)
	return d, nil
}

func (g *Globals) print(v interface{}) error {
	f, err := cmdutil.ParseFormat(g.Output, os.Stdout)
	if err != nil {
		return err
	}
	return cmdutil.Print(os.Stdout, f, v)
}

func parseByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid page code %q: %v", s, err)
	}
	return uint8(v), nil
}

type inquiryCmd struct{}

type inquiryView struct {
	Vendor   string
	Product  string
	Revision string
	*vpd.Inquiry
}

// Run executes when the inquiry command is invoked
func (t *inquiryCmd) Run(g *Globals) error {
	d, err := g.open()
	if err != nil {
		return err
	}
	defer d.Close()
	inq, err := vpd.Standard(d)
	if err != nil {
		return err
	}
	return g.print(inquiryView{inq.Vendor(), inq.Product(), inq.Revision(), inq})
}

type vpdCmd struct {
	Page string `arg:"" optional:"" default:"0x00" help:"VPD page code"`
}

// Run executes when the vpd command is invoked
func (t *vpdCmd) Run(g *Globals) error {
	page, err := parseByte(t.Page)
	if err != nil {
		return err
	}
	d, err := g.open()
	if err != nil {
		return err
	}
	defer d.Close()
	v, err := vpd.Read(d, page)
	if err != nil {
		return err
	}
	return g.print(v)
}

var modePageControls = map[string]cdb.PageControl{
	"current":    cdb.PageControlCurrent,
	"changeable": cdb.PageControlChangeable,
	"default":    cdb.PageControlDefault,
	"saved":      cdb.PageControlSaved,
}

type modeCmd struct {
	Page        string `default:"0x3f" help:"Mode page code, 0x3f for all pages"`
	Subpage     string `help:"Subpage code (default 0xff with --page=0x3f, 0x00 otherwise)"`
	PageControl string `default:"current" enum:"current,changeable,default,saved" help:"Values to report"`
	Short       bool   `help:"Use MODE SENSE(6) and short block descriptors"`
	DBD         bool   `name:"dbd" help:"Disable block descriptors"`
}

func (t *modeCmd) request() (mode.SenseRequest, error) {
	page, err := parseByte(t.Page)
	if err != nil {
		return mode.SenseRequest{}, err
	}
	var subpage uint8
	if t.Subpage != "" {
		if subpage, err = parseByte(t.Subpage); err != nil {
			return mode.SenseRequest{}, err
		}
	} else if page == mode.PageAll {
		subpage = mode.SubpageAll
	}
	r := mode.SenseRequest{
		Header:                  mode.HeaderLong,
		Descriptor:              mode.DescriptorLong,
		DisableBlockDescriptors: t.DBD,
		PageControl:             modePageControls[t.PageControl],
		PageCode:                page,
		SubpageCode:             subpage,
	}
	if t.Short {
		r.Header, r.Descriptor = mode.HeaderShort, mode.DescriptorShort
	}
	return r, nil
}

type modePageView struct {
	Name string
	Page mode.Page
}

type modeView struct {
	Header      mode.HeaderInfo
	Descriptors []mode.DescriptorInfo
	Pages       []modePageView
}

func newModeView(w *mode.PageWrapper) modeView {
	v := modeView{Header: w.Header.Info()}
	for _, d := range w.Descriptors {
		v.Descriptors = append(v.Descriptors, d.Info())
	}
	for _, p := range w.Pages {
		h := p.HeaderInfo()
		v.Pages = append(v.Pages, modePageView{Name: mode.PageName(h.PageCode, h.SubpageCode), Page: p})
	}
	return v
}

// Run executes when the mode command is invoked
func (t *modeCmd) Run(g *Globals) error {
	r, err := t.request()
	if err != nil {
		return err
	}
	d, err := g.open()
	if err != nil {
		return err
	}
	defer d.Close()
	w, err := mode.Sense(d, r)
	if err != nil {
		return err
	}
	return g.print(newModeView(w))
}

type modeSelectCmd struct {
	Page    string            `required:"" help:"Mode page code"`
	Subpage string            `default:"0x00" help:"Subpage code"`
	Set     map[string]string `required:"" help:"Field=value to change, may be repeated"`
	Save    bool              `help:"Save the page so it survives a power cycle"`
	Short   bool              `help:"Use MODE SENSE(6) and MODE SELECT(6)"`
}

// Run executes when the mode-select command is invoked
func (t *modeSelectCmd) Run(g *Globals) error {
	sense := modeCmd{Page: t.Page, Subpage: t.Subpage, PageControl: "current", Short: t.Short}
	r, err := sense.request()
	if err != nil {
		return err
	}
	if r.PageCode == mode.PageAll || r.SubpageCode == mode.SubpageAll {
		return fmt.Errorf("mode-select needs a single page, not %s", mode.PageName(r.PageCode, r.SubpageCode))
	}
	d, err := g.open()
	if err != nil {
		return err
	}
	defer d.Close()

	w, err := mode.Sense(d, r)
	if err != nil {
		return err
	}
	p := w.Find(r.PageCode, r.SubpageCode)
	if p == nil {
		return fmt.Errorf("device returned no %s page", mode.PageName(r.PageCode, r.SubpageCode))
	}
	for name, value := range t.Set {
		if err := setField(p, name, value); err != nil {
			return err
		}
	}
	w.Pages = []mode.Page{p}
	if err := mode.Select(d, r.Header, w, t.Save); err != nil {
		return err
	}
	return g.print(modePageView{Name: mode.PageName(r.PageCode, r.SubpageCode), Page: p})
}

var logPageControls = map[string]cdb.PageControl{
	"threshold":          cdb.PageControlThreshold,
	"cumulative":         cdb.PageControlCumulative,
	"default-threshold":  cdb.PageControlDefaultThreshold,
	"default-cumulative": cdb.PageControlDefaultCumulative,
}

type logCmd struct {
	Page        string `default:"0x00" help:"Log page code"`
	Subpage     string `default:"0x00" help:"Log subpage code"`
	PageControl string `default:"cumulative" enum:"threshold,cumulative,default-threshold,default-cumulative" help:"Values to report"`
}

type logView struct {
	Name       string
	Header     logpage.PageHeader
	Parameters []logpage.Parameter
}

// Run executes when the log command is invoked
func (t *logCmd) Run(g *Globals) error {
	page, err := parseByte(t.Page)
	if err != nil {
		return err
	}
	subpage, err := parseByte(t.Subpage)
	if err != nil {
		return err
	}
	d, err := g.open()
	if err != nil {
		return err
	}
	defer d.Close()
	w, err := logpage.Sense(d, cdb.LogSenseRequest{
		PageControl: logPageControls[t.PageControl],
		PageCode:    page,
		SubpageCode: subpage,
	})
	if err != nil {
		return err
	}
	return g.print(logView{Name: logpage.PageName(page, subpage), Header: w.Header, Parameters: w.Parameters})
}

type capacityCmd struct{}

type capacityView struct {
	Blocks              uint64
	Bytes               uint64
	PhysicalBlockLength uint64
	*block.Capacity
}

// Run executes when the capacity command is invoked
func (t *capacityCmd) Run(g *Globals) error {
	d, err := g.open()
	if err != nil {
		return err
	}
	defer d.Close()
	c, err := block.ReadCapacity(d)
	if err != nil {
		return err
	}
	return g.print(capacityView{c.Blocks(), c.Bytes(), c.PhysicalBlockLength(), c})
}

type readCmd struct {
	LBA    uint64 `required:"" name:"lba" help:"First logical block"`
	Count  uint64 `default:"1" help:"Number of blocks"`
	Digest bool   `help:"Print a BLAKE2b-256 digest of the blocks instead of the data"`
}

// Run executes when the read command is invoked
func (t *readCmd) Run(g *Globals) error {
	if !t.Digest && cmdutil.IsTerminal(os.Stdout) {
		return errors.New("refusing to write binary data to a terminal, redirect stdout or use --digest")
	}
	d, err := g.open()
	if err != nil {
		return err
	}
	defer d.Close()
	k, err := block.Open(d)
	if err != nil {
		return err
	}

	if !t.Digest {
		return readTo(os.Stdout, k, t.LBA, t.Count)
	}
	sum, err := digestBlocks(k, t.LBA, t.Count)
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(sum))
	return nil
}

// digestBlocks returns the BLAKE2b-256 digest of count blocks starting at lba.
func digestBlocks(k *block.Disk, lba, count uint64) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, errors.Wrap(err, "blake2b")
	}
	if err := readTo(h, k, lba, count); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// readTo copies count blocks starting at lba to w, one transfer length at a
// time.
func readTo(w io.Writer, k *block.Disk, lba, count uint64) error {
	step := uint64(k.TransferLength())
	bs := uint64(k.Capacity.LogicalBlockLength)
	for done := uint64(0); done < count; {
		n := count - done
		if n > step {
			n = step
		}
		buf := make([]byte, n*bs)
		if err := k.ReadBlocks(lba+done, buf); err != nil {
			return err
		}
		if _, err := w.Write(buf); err != nil {
			return errors.Wrap(err, "write output")
		}
		done += n
	}
	return nil
}

type turCmd struct{}

// Run executes when the tur command is invoked
func (t *turCmd) Run(g *Globals) error {
	d, err := g.open()
	if err != nil {
		return err
	}
	defer d.Close()
	if err := block.TestUnitReady(d); err != nil {
		return err
	}
	fmt.Println("Device is ready")
	return nil
}

type senseCmd struct {
	Descriptor bool `help:"Ask for descriptor format sense data"`
}

// Run executes when the sense command is invoked
func (t *senseCmd) Run(g *Globals) error {
	d, err := g.open()
	if err != nil {
		return err
	}
	defer d.Close()
	s, err := block.RequestSense(d, t.Descriptor)
	if err != nil {
		return err
	}
	return g.print(s)
}

type unmapCmd struct {
	LBA   uint64 `required:"" name:"lba" help:"First logical block"`
	Count uint64 `required:"" help:"Number of blocks"`
	Yes   bool   `help:"Confirm that the data in the range may be lost"`
}

// Run executes when the unmap command is invoked
func (t *unmapCmd) Run(g *Globals) error {
	if !t.Yes {
		return errors.New("unmap discards data, pass --yes to proceed")
	}
	d, err := g.open()
	if err != nil {
		return err
	}
	defer d.Close()
	k, err := block.Open(d)
	if err != nil {
		return err
	}
	return k.Unmap(t.LBA, t.Count)
}

type syncCmd struct{}

// Run executes when the sync command is invoked
func (t *syncCmd) Run(g *Globals) error {
	d, err := g.open()
	if err != nil {
		return err
	}
	defer d.Close()
	return block.SynchronizeCache(d)
}

// cli is the main command line interface struct required by kong command line parser
var cli struct {
	Globals

	Inquiry    inquiryCmd    `cmd:"" help:"Print the standard INQUIRY data"`
	VPD        vpdCmd        `cmd:"" name:"vpd" help:"Print a vital product data page"`
	Mode       modeCmd       `cmd:"" help:"Print mode pages"`
	ModeSelect modeSelectCmd `cmd:"" help:"Change fields of a mode page"`
	Log        logCmd        `cmd:"" help:"Print a log page"`
	Capacity   capacityCmd   `cmd:"" help:"Print the capacity of the device"`
	Read       readCmd       `cmd:"" help:"Read logical blocks to stdout"`
	TUR        turCmd        `cmd:"" name:"tur" help:"Check that the device is ready"`
	Sense      senseCmd      `cmd:"" help:"Print the sense data held by the device"`
	Unmap      unmapCmd      `cmd:"" help:"Deallocate logical blocks"`
	Sync       syncCmd       `cmd:"" help:"Flush the volatile cache"`
}
