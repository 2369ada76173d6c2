// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/open-source-firmware/go-scsi/pkg/cmdutil"
	"github.com/open-source-firmware/go-scsi/pkg/logger"
)

const (
	programName = "scsictl"
	programDesc = "Go SCSI pass-through control"
)

func main() {
	// Parse kong flags and sub-commands
	ctx := kong.Parse(&cli,
		kong.Name(programName),
		kong.Description(programDesc),
		kong.UsageOnError(),
		kong.Configuration(cmdutil.YAML, cmdutil.DefaultConfigPath),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	ctx.FatalIfErrorf(logger.Setup(os.Stderr, cli.LogLevel))

	// Run the command
	err := ctx.Run(&cli.Globals)
	logger.Flush()
	ctx.FatalIfErrorf(err)
}
