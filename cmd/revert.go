package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kaktoslabs/kaktos/internal/clistyle"
)

func revertCommand() *cli.Command {
	return &cli.Command{
		Name:   "revert",
		Usage:  "restore the backup directory over dest_dir and reboot",
		Action: revertAction,
	}
}

func revertAction(ctx context.Context, cmd *cli.Command) error {
	if len(cmd.Args().Slice()) > 0 {
		return fmt.Errorf("revert does not accept arguments")
	}

	u, err := newUpdater(cmd)
	if err != nil {
		return err
	}
	defer u.Release()

	if err := u.RevertUpdate(ctx); err != nil {
		return reportError(err)
	}
	fmt.Println(clistyle.Success("reverted"))
	return nil
}
