package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/Mrowqa/siktacka/internal/client"
	"github.com/Mrowqa/siktacka/internal/protocol"
)

const (
	defaultServerPort = 12345
	defaultGUIHost    = "localhost"
	defaultGUIPort    = 12346
)

func main() {
	app := cli.NewApp()
	app.Name = "siktacka-client"
	app.Usage = "connects a player to a siktacka game server and its GUI"
	app.ArgsUsage = "<player_name> <game_server_host>[:port] [<gui_host>[:port]]"
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return cli.NewExitError("usage: "+c.App.ArgsUsage, 1)
	}

	playerName := args.Get(0)
	if !protocol.ValidName(playerName) {
		return cli.NewExitError("invalid player_name", 1)
	}

	serverAddr := withDefaultPort(args.Get(1), defaultServerPort)

	guiArg := fmt.Sprintf("%s:%d", defaultGUIHost, defaultGUIPort)
	if len(args) >= 3 {
		guiArg = args.Get(2)
	}
	guiAddr := withDefaultPort(guiArg, defaultGUIPort)

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cl, err := client.New(playerName, serverAddr, guiAddr, logger)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if err := cl.Run(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}

// withDefaultPort appends defaultPort to hostport if it carries no port of
// its own.
func withDefaultPort(hostport string, defaultPort int) string {
	if _, _, err := net.SplitHostPort(hostport); err == nil {
		return hostport
	}
	return net.JoinHostPort(hostport, strconv.Itoa(defaultPort))
}
