package server

import (
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Config holds the server's bootstrap parameters (§6).
type Config struct {
	MapWidth        uint32
	MapHeight       uint32
	Port            int
	RoundsPerSecond int
	TurningSpeed    int
	Seed            uint64
	SeedSet         bool
}

// Default bootstrap values (§6).
const (
	DefaultMapWidth        = 800
	DefaultMapHeight       = 600
	DefaultPort            = 12345
	DefaultRoundsPerSecond = 50
	DefaultTurningSpeed    = 6
)

// Flags builds the server's urfave/cli flag set.
func Flags() []cli.Flag {
	return []cli.Flag{
		cli.UintFlag{Name: "W", Value: DefaultMapWidth, Usage: "board width in pixels"},
		cli.UintFlag{Name: "H", Value: DefaultMapHeight, Usage: "board height in pixels"},
		cli.IntFlag{Name: "p", Value: DefaultPort, Usage: "UDP port to listen on"},
		cli.IntFlag{Name: "s", Value: DefaultRoundsPerSecond, Usage: "game rounds per second"},
		cli.IntFlag{Name: "t", Value: DefaultTurningSpeed, Usage: "turning speed in degrees per round"},
		cli.Int64Flag{Name: "r", Usage: "PRNG seed (default: time-derived)"},
	}
}

// ConfigFromContext validates a cli.Context against §6's ranges, returning
// a ready-to-run Config or an error describing the first violation.
func ConfigFromContext(c *cli.Context) (Config, error) {
	cfg := Config{
		MapWidth:        uint32(c.Uint("W")),
		MapHeight:       uint32(c.Uint("H")),
		Port:            c.Int("p"),
		RoundsPerSecond: c.Int("s"),
		TurningSpeed:    c.Int("t"),
	}
	if c.IsSet("r") {
		cfg.Seed = uint64(c.Int64("r"))
		cfg.SeedSet = true
	} else {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	if cfg.MapWidth < 1 || cfg.MapWidth > 10000 {
		return cfg, errors.Errorf("-W out of range [1, 10000]: %d", cfg.MapWidth)
	}
	if cfg.MapHeight < 1 || cfg.MapHeight > 10000 {
		return cfg, errors.Errorf("-H out of range [1, 10000]: %d", cfg.MapHeight)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return cfg, errors.Errorf("-p out of range [0, 65535]: %d", cfg.Port)
	}
	if cfg.RoundsPerSecond < 1 || cfg.RoundsPerSecond > 1000 {
		return cfg, errors.Errorf("-s out of range [1, 1000]: %d", cfg.RoundsPerSecond)
	}
	if cfg.TurningSpeed < 1 || cfg.TurningSpeed > 359 {
		return cfg, errors.Errorf("-t out of range [1, 359]: %d", cfg.TurningSpeed)
	}
	return cfg, nil
}
