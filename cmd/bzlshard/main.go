// Command bzlshard expands Bazel target patterns and splits them into build shards.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/albertocavalcante/go-bzlshard/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	code := cli.GetExitCode(err)
	stop()
	os.Exit(code)
}
