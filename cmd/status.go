package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kaktoslabs/kaktos/internal/clistyle"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "show updater state, local manifest version, and backup presence",
		Action: statusAction,
	}
}

func statusAction(_ context.Context, cmd *cli.Command) error {
	if len(cmd.Args().Slice()) > 0 {
		return fmt.Errorf("status does not accept arguments")
	}

	u, err := newUpdater(cmd)
	if err != nil {
		return err
	}
	defer u.Release()

	st, err := u.Status()
	if err != nil {
		return reportError(err)
	}

	fmt.Println(clistyle.Heading("Updater state"))
	fmt.Printf("  state: %s\n", st.State)
	if !st.Recognized {
		fmt.Println(clistyle.Warning("  state marker was unrecognized and treated as idle"))
	}
	version := st.LocalManifest.Version
	if version == "" {
		version = "(none)"
	}
	fmt.Printf("  local manifest version: %s\n", version)
	fmt.Printf("  tracked files: %d\n", len(st.LocalManifest.Files))
	if st.BackupPresent {
		fmt.Println(clistyle.Warning("  backup directory present"))
	} else {
		fmt.Println("  backup directory: (none)")
	}

	return nil
}
