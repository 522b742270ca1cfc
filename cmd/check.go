package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "check for and apply an OTA update",
		Action: checkAction,
	}
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	if len(cmd.Args().Slice()) > 0 {
		return fmt.Errorf("check does not accept arguments")
	}

	u, err := newUpdater(cmd)
	if err != nil {
		return err
	}
	defer u.Release()

	if err := u.CheckAndPerformOTA(ctx); err != nil {
		return reportError(err)
	}
	return nil
}
