package server

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func buildContext(t *testing.T, args []string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range Flags() {
		f.Apply(set)
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(nil, set, nil)
}

func TestConfigFromContextDefaults(t *testing.T) {
	cfg, err := ConfigFromContext(buildContext(t, nil))
	require.NoError(t, err)

	assert.EqualValues(t, DefaultMapWidth, cfg.MapWidth)
	assert.EqualValues(t, DefaultMapHeight, cfg.MapHeight)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultRoundsPerSecond, cfg.RoundsPerSecond)
	assert.Equal(t, DefaultTurningSpeed, cfg.TurningSpeed)
	assert.False(t, cfg.SeedSet)
}

func TestConfigFromContextExplicitSeed(t *testing.T) {
	cfg, err := ConfigFromContext(buildContext(t, []string{"-r", "42"}))
	require.NoError(t, err)
	assert.True(t, cfg.SeedSet)
	assert.EqualValues(t, 42, cfg.Seed)
}

func TestConfigFromContextRejectsOutOfRangeWidth(t *testing.T) {
	_, err := ConfigFromContext(buildContext(t, []string{"-W", "0"}))
	assert.Error(t, err)
}

func TestConfigFromContextRejectsOutOfRangeTurningSpeed(t *testing.T) {
	_, err := ConfigFromContext(buildContext(t, []string{"-t", "360"}))
	assert.Error(t, err)
}

func TestConfigFromContextRejectsOutOfRangeRoundsPerSecond(t *testing.T) {
	_, err := ConfigFromContext(buildContext(t, []string{"-s", "0"}))
	assert.Error(t, err)
}
