// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/open-source-firmware/go-scsi/pkg/logger"
	"github.com/open-source-firmware/go-scsi/pkg/scsi"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/block"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/logpage"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/vpd"
)

var cli struct {
	Output    string        `short:"o" default:"table" enum:"table,json,openmetrics" help:"Output format; one of [table, json, openmetrics]"`
	NoHeader  bool          `help:"Supress the header in table format output"`
	Timeout   time.Duration `default:"10s" help:"Timeout of each command"`
	LogLevel  string        `default:"none" enum:"debug,info,warn,error,crit,none" help:"Library log level"`
	SysfsRoot string        `default:"/sys/class/block" hidden:""`
	DevRoot   string        `default:"/dev" hidden:""`
}

// SelfTest is the outcome of the most recent self-test.
type SelfTest struct {
	Code            uint8
	Result          uint8
	PowerOnHours    uint16
	FirstFailingLBA uint64
}

type DeviceState struct {
	Device      string
	Vendor      string
	Product     string
	Revision    string
	Serial      string
	Capacity    *block.Capacity `json:",omitempty"`
	Temperature *int            `json:",omitempty"`
	SelfTest    *SelfTest       `json:",omitempty"`
}

type Devices []DeviceState

func main() {
	kong.Parse(&cli,
		kong.Name("scsidiskstat"),
		kong.Description("List SCSI disks with their identity and health"),
		kong.UsageOnError())

	if err := logger.Setup(os.Stderr, cli.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Flush()

	names, err := enumerate(cli.SysfsRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to enumerate block devices: %v\n", err)
		os.Exit(1)
	}

	var state Devices
	var merr *multierror.Error
	for _, name := range names {
		devpath := filepath.Join(cli.DevRoot, name)
		d, err := scsi.Open(devpath)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		d.SetTimeout(cli.Timeout)
		s, err := probe(d, devpath)
		d.Close()
		if err != nil {
			merr = multierror.Append(merr, err)
		}
		state = append(state, s)
	}

	switch cli.Output {
	case "json":
		err = outputJSON(os.Stdout, state)
	case "openmetrics":
		err = outputMetrics(os.Stdout, state)
	default:
		err = outputTable(os.Stdout, state, !cli.NoHeader)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if merr != nil {
		fmt.Fprintln(os.Stderr, merr)
	}
}

// enumerate lists the whole disks below root, skipping partitions and
// virtual devices without a backing device.
func enumerate(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, "device")); err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, "partition")); err == nil {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// probe gathers what the device reports. Failing queries leave their fields
// empty and are returned together.
func probe(d *scsi.Device, devpath string) (DeviceState, error) {
	s := DeviceState{Device: devpath}
	var merr *multierror.Error

	inq, err := vpd.Standard(d)
	if err != nil {
		// Without INQUIRY nothing else is worth asking.
		return s, errors.Wrap(err, devpath)
	}
	s.Vendor, s.Product, s.Revision = inq.Vendor(), inq.Product(), inq.Revision()

	if s.Serial, err = vpd.UnitSerialNumber(d); err != nil {
		merr = multierror.Append(merr, errors.Wrap(err, devpath))
	}
	if s.Capacity, err = block.ReadCapacity(d); err != nil {
		merr = multierror.Append(merr, errors.Wrap(err, devpath))
	}
	if temp, ok, err := logpage.Temperature(d); err != nil {
		merr = multierror.Append(merr, errors.Wrap(err, devpath))
	} else if ok {
		s.Temperature = &temp
	}
	if r, err := logpage.LastSelfTest(d); err != nil {
		merr = multierror.Append(merr, errors.Wrap(err, devpath))
	} else if r != nil {
		s.SelfTest = &SelfTest{
			Code:            r.SelfTestCode,
			Result:          r.SelfTestResults,
			PowerOnHours:    r.AccumulatedPowerOnHours,
			FirstFailingLBA: r.AddressOfFirstFailure,
		}
	}
	return s, merr.ErrorOrNil()
}

func outputJSON(w io.Writer, state Devices) error {
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %v", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func formatBytes(n uint64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}

func outputTable(w io.Writer, state Devices, header bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	if header {
		fmt.Fprintf(tw, "DEVICE\tVENDOR\tPRODUCT\tSERIAL\tREVISION\tSIZE\tTEMP\tSELF-TEST\n")
	}
	for _, s := range state {
		size, temp, test := "-", "-", "-"
		if s.Capacity != nil {
			size = formatBytes(s.Capacity.Bytes())
		}
		if s.Temperature != nil {
			temp = fmt.Sprintf("%dC", *s.Temperature)
		}
		if s.SelfTest != nil {
			test = selfTestResults[s.SelfTest.Result]
			if test == "" {
				test = fmt.Sprintf("result %d", s.SelfTest.Result)
			}
		}
		fmt.Fprint(tw,
			s.Device, "\t",
			s.Vendor, "\t",
			s.Product, "\t",
			s.Serial, "\t",
			s.Revision, "\t",
			size, "\t",
			temp, "\t",
			test, "\t",
			"\n")
	}
	return tw.Flush()
}

var selfTestResults = map[uint8]string{
	0x0: "passed",
	0x1: "aborted",
	0x2: "aborted",
	0x3: "failed",
	0x4: "failed",
	0x5: "failed",
	0x6: "failed",
	0x7: "failed",
	0xf: "running",
}
