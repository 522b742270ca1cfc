package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kaktoslabs/kaktos/internal/clistyle"
)

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:   "cleanup",
		Usage:  "remove the backup directory",
		Action: cleanupAction,
	}
}

func cleanupAction(_ context.Context, cmd *cli.Command) error {
	if len(cmd.Args().Slice()) > 0 {
		return fmt.Errorf("cleanup does not accept arguments")
	}

	u, err := newUpdater(cmd)
	if err != nil {
		return err
	}
	defer u.Release()

	cleaned, err := u.CleanupFiles()
	if err != nil {
		return reportError(err)
	}
	if !cleaned {
		fmt.Println(clistyle.Warning("nothing to clean up"))
		return nil
	}
	fmt.Println(clistyle.Success("backup directory removed"))
	return nil
}
