package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/Mrowqa/siktacka/internal/server"
)

func main() {
	app := cli.NewApp()
	app.Name = "siktacka-server"
	app.Usage = "authoritative server for the siktacka multiplayer game"
	app.Flags = server.Flags()
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := server.ConfigFromContext(c)
	if err != nil {
		c.App.Writer = os.Stderr
		cli.ShowAppHelp(c)
		return cli.NewExitError(err.Error(), 1)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	srv := server.New(cfg, logger)
	if err := srv.Run(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
