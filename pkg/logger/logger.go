// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logger holds the package level logger of the SCSI library. It is
// disabled until a program installs one.
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cihub/seelog"
)

const logFormat = "%UTCDate(2006-01-02T15:04:05Z07:00) [%LEVEL] %Msg%n"

// logLevels maps user facing level names to seelog levels.
var logLevels = map[string]string{
	"debug": "debug",
	"info":  "info",
	"warn":  "warn",
	"error": "error",
	"crit":  "critical",
	"none":  "off",
}

var (
	mu  sync.RWMutex
	log seelog.LoggerInterface = seelog.Disabled
)

// UseLogger replaces the package logger.
func UseLogger(l seelog.LoggerInterface) {
	mu.Lock()
	defer mu.Unlock()
	log.Flush()
	log = l
}

// Setup installs a logger writing to w at the given level.
func Setup(w io.Writer, level string) error {
	parsed, ok := logLevels[strings.ToLower(level)]
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	if parsed == "off" {
		UseLogger(seelog.Disabled)
		return nil
	}
	minLevel, _ := seelog.LogLevelFromString(parsed)
	l, err := seelog.LoggerFromWriterWithMinLevelAndFormat(w, minLevel, logFormat)
	if err != nil {
		return err
	}
	UseLogger(l)
	return nil
}

// SetupFromConfig installs a logger from a seelog XML configuration.
func SetupFromConfig(config string) error {
	l, err := seelog.LoggerFromConfigAsString(config)
	if err != nil {
		return err
	}
	UseLogger(l)
	return nil
}

func current() seelog.LoggerInterface {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debugf(format string, params ...interface{}) {
	current().Debugf(format, params...)
}

func Infof(format string, params ...interface{}) {
	current().Infof(format, params...)
}

func Warnf(format string, params ...interface{}) {
	_ = current().Warnf(format, params...)
}

func Errorf(format string, params ...interface{}) {
	_ = current().Errorf(format, params...)
}

// Flush writes out buffered messages.
func Flush() {
	current().Flush()
}
