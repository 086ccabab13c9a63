// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"

	"gitlab.com/jaxnet/cnoted/config"
	"gitlab.com/jaxnet/cnoted/node"
	"gitlab.com/jaxnet/cnoted/version"
)

func main() {
	// Work around defer not working after os.Exit()
	if err := cnotedMain(); err != nil {
		fmt.Println("FATAL:", err)
		os.Exit(1)
	}
}

// cnotedMain is the real main function for cnoted.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func cnotedMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.ShowVersion {
		fmt.Println("cnoted version", version.GetVersion())
		return nil
	}

	defer config.Log.Info().Msg("Shutdown complete")

	// Show version at startup.
	config.Log.Info().Msgf("Version %s", version.GetVersion())

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		go func() {
			listenAddr := net.JoinHostPort("", cfg.Profile)
			config.Log.Info().Msgf("Profile server listening on %s", listenAddr)
			profileRedirect := http.RedirectHandler("/debug/pprof",
				http.StatusSeeOther)
			http.Handle("/", profileRedirect)
			if err := http.ListenAndServe(listenAddr, nil); err != nil {
				config.Log.Error().Err(err).Msg("listen and serve failed")
			}
		}()
	}

	// Get a channel that will be closed when a shutdown signal has been
	// triggered from an OS signal such as SIGINT (Ctrl+C).
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := interruptListener(config.Log.With().Str("ctx", "interruptListener").Logger())
	go func() {
		<-sigChan
		config.Log.Info().Msg("propagate stop signal")
		cancel()
	}()

	if err := node.Controller().Run(ctx, cfg); err != nil {
		config.Log.Error().Err(err).Msg("Can't run node")
		return err
	}

	return nil
}
