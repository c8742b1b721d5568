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

// Package main provides the mixnode daemon entrypoint: flag parsing,
// config loading, and signal-driven graceful shutdown, generalized from
// the teacher's own main.go (same flag names, same signal-channel
// shutdown loop) onto the mixnode's Node instead of a client daemon.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/op/go-logging"

	"github.com/betanet/mixnode/config"
)

var log = logging.MustGetLogger("mixnode")

func main() {
	var configFilePath string
	var logLevel string
	var nodeID string

	flag.StringVar(&configFilePath, "config", "", "configuration file (TOML); defaults are used if omitted")
	flag.StringVar(&logLevel, "log_level", "", "overrides the configured logging level: DEBUG, INFO, NOTICE, WARNING, ERROR, CRITICAL")
	flag.StringVar(&nodeID, "node_id", "", "this node's identifier advertised in the handshake; defaults to its listen address")
	flag.Parse()

	cfg, err := config.FromFile(configFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mixnode: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		fmt.Fprintf(os.Stderr, "mixnode: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "mixnode: %v\n", err)
		os.Exit(1)
	}

	if nodeID == "" {
		nodeID = cfg.Listen
	}

	node, err := New(cfg, nodeID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mixnode: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- node.Run()
	}()

	select {
	case sig := <-sigCh:
		log.Noticef("mixnode shutdown on signal: %v", sig)
		node.Shutdown()
	case err := <-runErrCh:
		if err != nil {
			log.Errorf("mixnode: listener stopped: %v", err)
			node.Shutdown()
			os.Exit(1)
		}
	}
}
