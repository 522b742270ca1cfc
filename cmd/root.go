// Package cmd implements the device-side lifecycle CLI: check, confirm,
// cleanup, revert, and status, each a thin wrapper around pkg/ota.Updater.
package cmd

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/kaktoslabs/kaktos/pkg/version"
)

// Commands:
//
// check:
//   runs check_and_perform_ota once
//
// confirm:
//   confirms a pending update, optionally cleaning up the backup directory
//
// cleanup:
//   removes the backup directory once confirmation is no longer pending
//
// revert:
//   restores the backup directory over dest_dir and reboots
//
// status:
//   reports the durable state marker, local manifest version, and whether
//   a backup directory is present

func Execute(ctx context.Context, args []string) error {
	app := &cli.Command{
		Name:    "kaktos",
		Usage:   "device-side OTA updater",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to kaktos.toml (defaults to $KAKTOS_CONFIG or ./kaktos.toml)",
			},
		},
		Commands: []*cli.Command{
			checkCommand(),
			confirmCommand(),
			cleanupCommand(),
			revertCommand(),
			statusCommand(),
		},
	}

	return app.Run(ctx, args)
}
