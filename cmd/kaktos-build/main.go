// Command kaktos-build scans a source tree and writes the OTA manifest
// devices diff against.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kaktoslabs/kaktos/internal/build"
)

func main() {
	app := &cli.Command{
		Name:  "kaktos-build",
		Usage: "generate an OTA manifest from a source tree",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "src",
				Usage:    "source directory to scan",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "output manifest path",
				Value: "versions.json",
			},
			&cli.StringFlag{
				Name:  "auth-key",
				Usage: "HMAC shared secret; empty skips signing",
			},
			&cli.StringFlag{
				Name:  "signature-field",
				Usage: "manifest field the signature is stored under",
				Value: "signature",
			},
			&cli.StringFlag{
				Name:  "version-source",
				Usage: "mtime or git_commit_time",
				Value: "mtime",
			},
			&cli.BoolFlag{
				Name:  "reuse-unchanged-versions",
				Usage: "keep a file's prior version when its md5 is unchanged",
			},
			&cli.StringFlag{
				Name:  "previous-manifest",
				Usage: "path to a prior manifest, for reuse-unchanged-versions diffing",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(_ context.Context, cmd *cli.Command) error {
	b := build.NewBuilder(cmd.String("src"))
	b.AuthKey = cmd.String("auth-key")
	if field := cmd.String("signature-field"); field != "" {
		b.SignatureField = field
	}
	if src := cmd.String("version-source"); src != "" {
		b.VersionSource = build.VersionSource(src)
	}
	b.ReuseUnchangedVersions = cmd.Bool("reuse-unchanged-versions")
	b.PreviousManifestPath = cmd.String("previous-manifest")

	m, err := b.WriteManifest(cmd.String("out"))
	if err != nil {
		return err
	}

	fmt.Printf("wrote manifest version %s (%d files) to %s\n", m.Version, len(m.Files), cmd.String("out"))
	return nil
}
