// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scsitest holds helpers for testing code that issues commands
// through a mocked scsi.Transport.
package scsitest

import (
	"fmt"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/open-source-firmware/go-scsi/pkg/scsi"
)

// Respond returns an Execute action that answers with resp, truncated to
// the allocation length of the command.
func Respond(resp []byte) func(scsi.Command, time.Duration) *scsi.ResultData {
	return func(cmd scsi.Command, _ time.Duration) *scsi.ResultData {
		n := copy(cmd.Data, resp)
		return &scsi.ResultData{Data: cmd.Data, TransferredDataLength: n}
	}
}

// Capture returns an Execute action that stores the data sent by the
// command in out and completes with GOOD status.
func Capture(out *[]byte) func(scsi.Command, time.Duration) *scsi.ResultData {
	return func(cmd scsi.Command, _ time.Duration) *scsi.ResultData {
		*out = append([]byte(nil), cmd.Data...)
		return &scsi.ResultData{Data: cmd.Data}
	}
}

// CheckCondition returns a result with CHECK CONDITION status carrying
// fixed format sense data for key, asc and ascq.
func CheckCondition(key scsi.SenseKey, asc, ascq uint8) *scsi.ResultData {
	r := &scsi.ResultData{Status: scsi.StatusCheckCondition, TransferredSenseLength: 18}
	r.Sense[0] = scsi.SenseFixedCurrent
	r.Sense[2] = uint8(key)
	r.Sense[7] = 10
	r.Sense[12] = asc
	r.Sense[13] = ascq
	return r
}

type commandMatcher struct {
	opcode     int
	allocation int
}

// Command matches a command by operation code and, when allocation is not
// negative, by the size of its data buffer.
func Command(opcode uint8, allocation int) gomock.Matcher {
	return commandMatcher{opcode: int(opcode), allocation: allocation}
}

// Allocation matches any command whose data buffer holds n bytes.
func Allocation(n int) gomock.Matcher {
	return commandMatcher{opcode: -1, allocation: n}
}

func (m commandMatcher) Matches(x interface{}) bool {
	cmd, ok := x.(scsi.Command)
	if !ok {
		return false
	}
	if m.opcode >= 0 && (len(cmd.CDB) == 0 || int(cmd.CDB[0]) != m.opcode) {
		return false
	}
	return m.allocation < 0 || len(cmd.Data) == m.allocation
}

func (m commandMatcher) String() string {
	if m.opcode < 0 {
		return fmt.Sprintf("command with allocation length %d", m.allocation)
	}
	return fmt.Sprintf("command %#02x with allocation length %d", m.opcode, m.allocation)
}
