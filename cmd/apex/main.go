// Command apex is the CLI entrypoint for the rules-and-enrichment
// engine: load a configuration tree, route a data type to its scenario,
// and evaluate records against it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mraysmit/apex-sub000/cmd/apex/commands"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := commands.Execute(ctx, version, commit); err != nil {
		os.Exit(1)
	}
}
