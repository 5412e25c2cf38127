package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tradejournal/internal/cli"
)

// version проставляется при сборке через -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, version)
	stop()

	os.Exit(code)
}
