package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ralf-homelab/ralf/cmd/ralf/commands"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	// Cancel on interrupt so report --watch shuts down cleanly
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Execute(ctx, commands.BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	}, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
