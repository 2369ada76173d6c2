// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

import (
	"math"

	"github.com/pkg/errors"

	"github.com/open-source-firmware/go-scsi/pkg/logger"
	"github.com/open-source-firmware/go-scsi/pkg/scsi"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/cdb"
	"github.com/open-source-firmware/go-scsi/pkg/scsi/vpd"
)

// Disk issues block commands sized by the device's capacity and block
// limits.
type Disk struct {
	dev      *scsi.Device
	Capacity *Capacity
	// Limits is nil when the device has no block limits page.
	Limits *vpd.BlockLimits
}

// Open reads the capacity and block limits of d.
func Open(d *scsi.Device) (*Disk, error) {
	c, err := ReadCapacity(d)
	if err != nil {
		return nil, err
	}
	k := &Disk{dev: d, Capacity: c}
	if l, err := vpd.ReadBlockLimits(d); err == nil {
		k.Limits = l
	} else {
		logger.Debugf("block: no block limits: %v", err)
	}
	return k, nil
}

// NewDisk builds a Disk from already known capacity and limits.
func NewDisk(d *scsi.Device, c *Capacity, l *vpd.BlockLimits) *Disk {
	return &Disk{dev: d, Capacity: c, Limits: l}
}

// TransferLength is the number of blocks moved per READ or WRITE.
func (k *Disk) TransferLength() uint32 {
	n := uint32(DefaultTransferLength)
	if k.Limits != nil {
		if k.Limits.OptimalTransferLength != 0 {
			n = k.Limits.OptimalTransferLength
		}
		if m := k.Limits.MaximumTransferLength; m != 0 && m < n {
			n = m
		}
	}
	return n
}

func (k *Disk) blockSize() int {
	return int(k.Capacity.LogicalBlockLength)
}

func (k *Disk) check(lba uint64, buf []byte) (uint64, error) {
	bs := k.blockSize()
	if bs == 0 || len(buf)%bs != 0 {
		return 0, scsi.BadArgument("buffer of %d bytes is not a multiple of the %d byte block size", len(buf), bs)
	}
	blocks := uint64(len(buf) / bs)
	if lba > k.Capacity.LastLogicalBlockAddress || blocks > k.Capacity.Blocks()-lba {
		return 0, scsi.ArgumentOutOfBounds("LBA range %d+%d beyond last LBA %d", lba, blocks, k.Capacity.LastLogicalBlockAddress)
	}
	return blocks, nil
}

type transferFunc func(t cdb.Transfer, buf []byte, blockSize int) (scsi.Command, error)

func (k *Disk) transfer(name string, short, long transferFunc, lba uint64, buf []byte, fua bool) error {
	blocks, err := k.check(lba, buf)
	if err != nil {
		return err
	}
	bs := k.blockSize()
	step := uint64(k.TransferLength())
	for done := uint64(0); done < blocks; {
		n := blocks - done
		if n > step {
			n = step
		}
		t := cdb.Transfer{LogicalBlockAddress: lba + done, Blocks: uint32(n), ForceUnitAccess: fua}
		chunk := buf[done*uint64(bs) : (done+n)*uint64(bs)]
		build := long
		if t.LogicalBlockAddress+n-1 <= 0xFFFFFFFF && n <= 0xFFFF {
			build = short
		}
		cmd, err := build(t, chunk, bs)
		if err != nil {
			return err
		}
		if _, err := k.dev.IssueChecked(cmd); err != nil {
			return errors.Wrapf(err, "%s LBA %d count %d", name, t.LogicalBlockAddress, n)
		}
		done += n
	}
	return nil
}

// ReadBlocks fills buf with the blocks starting at lba.
func (k *Disk) ReadBlocks(lba uint64, buf []byte) error {
	return k.transfer("read", cdb.NewRead10, cdb.NewRead16, lba, buf, false)
}

// WriteBlocks writes buf to the blocks starting at lba.
func (k *Disk) WriteBlocks(lba uint64, buf []byte, fua bool) error {
	return k.transfer("write", cdb.NewWrite10, cdb.NewWrite16, lba, buf, fua)
}

// A block limits count of all ones means no limit.
const unlimited = 0xFFFFFFFF

// Unmap deallocates count blocks starting at lba, in as many UNMAP commands
// as the block limits require.
func (k *Disk) Unmap(lba, count uint64) error {
	if k.Limits == nil || k.Limits.MaximumUnmapLBACount == 0 {
		return scsi.BadArgument("device does not report UNMAP support")
	}
	if lba > k.Capacity.LastLogicalBlockAddress || count > k.Capacity.Blocks()-lba {
		return scsi.ArgumentOutOfBounds("LBA range %d+%d beyond last LBA %d", lba, count, k.Capacity.LastLogicalBlockAddress)
	}
	perCommand := uint64(k.Limits.MaximumUnmapLBACount)
	if k.Limits.MaximumUnmapLBACount == unlimited {
		perCommand = math.MaxUint64
	}
	maxDescriptors := int(k.Limits.MaximumUnmapBlockDescriptorCount)
	if maxDescriptors == 0 || maxDescriptors > cdb.MaxUnmapDescriptors {
		maxDescriptors = cdb.MaxUnmapDescriptors
	}

	for count > 0 {
		var descs []cdb.UnmapDescriptor
		var covered uint64
		for len(descs) < maxDescriptors && covered < perCommand && count > 0 {
			n := count
			if n > perCommand-covered {
				n = perCommand - covered
			}
			if n > unlimited {
				n = unlimited
			}
			descs = append(descs, cdb.UnmapDescriptor{LogicalBlockAddress: lba, NumberOfBlocks: uint32(n)})
			lba += n
			count -= n
			covered += n
		}
		cmd, err := cdb.NewUnmap(descs)
		if err != nil {
			return err
		}
		if _, err := k.dev.IssueChecked(cmd); err != nil {
			return errors.Wrapf(err, "unmap %d descriptors at LBA %d", len(descs), descs[0].LogicalBlockAddress)
		}
	}
	return nil
}
