// Command kaktos-serve runs a development-only HTTP server that serves a
// source tree and regenerates its manifest on every request. Not for
// production use.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/kaktoslabs/kaktos/internal/build"
	"github.com/kaktoslabs/kaktos/internal/devserver"
)

func main() {
	app := &cli.Command{
		Name:  "kaktos-serve",
		Usage: "serve a source tree and its manifest for device testing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "src",
				Usage:    "source directory to serve",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "address to listen on",
				Value: "localhost:8000",
			},
			&cli.StringFlag{
				Name:  "auth-key",
				Usage: "HMAC shared secret; empty skips signing",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	b := build.NewBuilder(cmd.String("src"))
	b.AuthKey = cmd.String("auth-key")

	srv := devserver.New(b)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, cmd.String("addr"))
}
