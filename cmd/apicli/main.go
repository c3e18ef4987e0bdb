// Command apicli sends requests through the resilient API client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewApp(os.Stdout, os.Stderr).Execute(ctx, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}
