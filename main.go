package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prawnloader/prawnloader/loader/cli"
)

var versionName = ""

func main() {
	if versionName != "" {
		cli.Version = versionName
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.Execute(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
