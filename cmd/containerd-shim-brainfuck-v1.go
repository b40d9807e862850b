package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/containerd/v2/pkg/shim"

	"github.com/MarcinKonowalczyk/tapebf/bf/cli"
	bf_shim "github.com/MarcinKonowalczyk/tapebf/shim"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The shim starts every task by re-executing itself as the interpreter
	if brainfuck, args := cli.Hijack(os.Args[1:], bf_shim.InterpreterCommand); brainfuck {
		code := cli.Main(ctx, args, os.Stdin, os.Stdout, os.Stderr)
		cancel()
		os.Exit(code)
	}

	shim.Run(ctx, bf_shim.NewManager(bf_shim.RuntimeName))
}
