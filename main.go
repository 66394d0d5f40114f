// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pdmcap/cmd"
	applog "pdmcap/internal/log"
	"pdmcap/pkg/build"
)

// main is the entry point of pdmcap.
//
// 1. Startup: resolve build information and install signal handling.
// 2. Capture: the selected command arms the driver and runs a capture
// session until it finishes or the process is interrupted.
// 3. Shutdown: the command stops the driver and releases the target before
// Execute returns.
func main() {
	if err := build.Initialize(); err != nil {
		// Development build without ldflags.
		build.UseModuleInfo()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		stop()
		applog.Fatalf("%v", err)
	}
}
