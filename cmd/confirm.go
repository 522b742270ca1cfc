package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kaktoslabs/kaktos/internal/clistyle"
)

func confirmCommand() *cli.Command {
	return &cli.Command{
		Name:  "confirm",
		Usage: "confirm a pending update",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "cleanup",
				Usage: "also remove the backup directory",
			},
		},
		Action: confirmAction,
	}
}

func confirmAction(_ context.Context, cmd *cli.Command) error {
	if len(cmd.Args().Slice()) > 0 {
		return fmt.Errorf("confirm does not accept arguments")
	}

	u, err := newUpdater(cmd)
	if err != nil {
		return err
	}
	defer u.Release()

	confirmed, err := u.ConfirmUpdate(cmd.Bool("cleanup"))
	if err != nil {
		return reportError(err)
	}
	if !confirmed {
		fmt.Println(clistyle.Warning("no update is pending confirmation"))
		return nil
	}
	fmt.Println(clistyle.Success("update confirmed"))
	return nil
}
