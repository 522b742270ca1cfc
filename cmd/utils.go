package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kaktoslabs/kaktos/internal/clistyle"
	"github.com/kaktoslabs/kaktos/pkg/ota"
)

func configPath(cmd *cli.Command) string {
	if path := cmd.Root().String("config"); path != "" {
		return path
	}
	return ota.DefaultConfigPath()
}

// newUpdater loads config and wires a CLI-appropriate logger and event
// sink: every event is rendered through clistyle as it's published.
func newUpdater(cmd *cli.Command) (*ota.Updater, error) {
	cfg, err := ota.LoadConfig(configPath(cmd))
	if err != nil {
		return nil, err
	}

	u := ota.New(cfg)
	u.Logger = ota.NewStdLogger(log.New(os.Stderr, "kaktos ", log.LstdFlags))
	u.Sink = ota.SinkFunc(func(e ota.Event) {
		fmt.Println(clistyle.RenderEvent(e))
	})
	return u, nil
}

func reportError(err error) error {
	if err == nil {
		return nil
	}
	if otaErr, ok := err.(*ota.Error); ok {
		fmt.Println(clistyle.ErrorLine(otaErr.Code, otaErr.Message))
		return err
	}
	fmt.Println(clistyle.Failure(err.Error()))
	return err
}
