package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/compozy/guidebook/cli"
	"github.com/compozy/guidebook/cli/helpers"
	"github.com/compozy/guidebook/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := cli.RootCmd()
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		helpers.OutputError(os.Stderr, err, helpers.ShouldUseColor(config.FromContext(cmd.Context())))
		os.Exit(helpers.ExitCode(err))
	}
}
