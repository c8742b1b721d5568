// Copyright (C) 2026  betanet mixnode authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package log provides a per-process logging backend for the mixnode.
//
// It mirrors how the katzenpost client wires up github.com/op/go-logging:
// one Backend created at startup, one *logging.Logger handed out per
// component via GetLogger.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/op/go-logging"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logFormat = logging.MustStringFormatter(
	"%{time:2006-01-02 15:04:05.000} %{level:.4s} %{module}: %{message}",
)

// Backend owns the shared go-logging backend and the current log level.
type Backend struct {
	backend logging.LeveledBackend
	writer  io.Writer
}

// New creates a Backend writing to file (or stderr if file is empty),
// rotated via lumberjack, at the given level ("DEBUG", "INFO", "NOTICE",
// "WARNING", "ERROR", "CRITICAL").
func New(file string, level string, disable bool) (*Backend, error) {
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log: invalid level %q: %w", level, err)
	}

	var w io.Writer
	if disable {
		w = io.Discard
	} else if file == "" {
		w = os.Stderr
	} else {
		w = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
	}

	base := logging.NewLogBackend(w, "", 0)
	formatted := logging.NewBackendFormatter(base, logFormat)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")

	return &Backend{backend: leveled, writer: w}, nil
}

// GetLogger returns a named *logging.Logger backed by this Backend.
func (b *Backend) GetLogger(name string) *logging.Logger {
	l := logging.MustGetLogger(name)
	l.SetBackend(b.backend)
	return l
}
