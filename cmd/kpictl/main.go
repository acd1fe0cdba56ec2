package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/kpisync/internal/cli"
	"github.com/okian/kpisync/pkg/logger"
)

func main() {
	// configbook logs while parsing; keep it quiet on the terminal.
	if err := logger.InitWithWriter(os.Stderr); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(cli.ExitFailed)
	}
	_ = logger.SetLevelString("error")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Main(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
