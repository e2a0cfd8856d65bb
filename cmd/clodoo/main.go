package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/clodoo/internal/cli"
	"github.com/JonMunkholm/clodoo/internal/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, cli.ErrRunFailed) {
			if core.IsUserFacing(err) {
				fmt.Fprintln(os.Stderr, "Error:", core.FormatUserError(err))
			} else {
				fmt.Fprintln(os.Stderr, "Error:", err)
			}
		}
		os.Exit(1)
	}
}
