// tcpprobe - TCP reachability probe with SSH gateway support.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tcpprobe/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.Name(os.Args[0]), err)
		os.Exit(1)
	}
}
