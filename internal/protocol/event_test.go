package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	cases := []*GameEvent{
		{EventNo: 0, Type: EventNewGame, NewGame: &NewGamePayload{MaxX: 800, MaxY: 600, PlayerNames: []string{"alice", "bob"}}},
		{EventNo: 1, Type: EventPixel, Pixel: &PixelPayload{PlayerNo: 0, X: 12, Y: 34}},
		{EventNo: 2, Type: EventPlayerEliminated, PlayerEliminated: &PlayerEliminatedPayload{PlayerNo: 1}},
		{EventNo: 3, Type: EventGameOver, GameOver: &GameOverPayload{}},
	}

	for _, e := range cases {
		data, err := e.Serialize()
		require.NoError(t, err)

		got, n, err := DeserializeEvent(data)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
		assert.Equal(t, e.EventNo, got.EventNo)
		assert.Equal(t, e.Type, got.Type)

		switch e.Type {
		case EventNewGame:
			assert.Equal(t, e.NewGame, got.NewGame)
		case EventPixel:
			assert.Equal(t, e.Pixel, got.Pixel)
		case EventPlayerEliminated:
			assert.Equal(t, e.PlayerEliminated, got.PlayerEliminated)
		case EventGameOver:
			assert.Equal(t, e.GameOver, got.GameOver)
		}
	}
}

func TestDeserializeEventCRCMismatch(t *testing.T) {
	e := &GameEvent{EventNo: 5, Type: EventPixel, Pixel: &PixelPayload{PlayerNo: 0, X: 1, Y: 1}}
	data, err := e.Serialize()
	require.NoError(t, err)

	data[len(data)-1] ^= 0xFF
	_, _, err = DeserializeEvent(data)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDeserializeEventTruncated(t *testing.T) {
	e := &GameEvent{EventNo: 5, Type: EventPixel, Pixel: &PixelPayload{PlayerNo: 0, X: 1, Y: 1}}
	data, err := e.Serialize()
	require.NoError(t, err)

	for n := 1; n < len(data); n++ {
		_, _, err := DeserializeEvent(data[:n])
		assert.Error(t, err)
	}
}

func TestValidateNewGameRequiresSortedNames(t *testing.T) {
	err := ValidateNewGame(&NewGamePayload{MaxX: 10, MaxY: 10, PlayerNames: []string{"bob", "alice"}})
	assert.Error(t, err)
}

func TestValidateNewGameRequiresTwoPlayers(t *testing.T) {
	err := ValidateNewGame(&NewGamePayload{MaxX: 10, MaxY: 10, PlayerNames: []string{"alice"}})
	assert.Error(t, err)
}

func TestValidateInGameContextPixelBounds(t *testing.T) {
	e := &GameEvent{Type: EventPixel, Pixel: &PixelPayload{PlayerNo: 0, X: 10, Y: 5}}
	assert.Error(t, ValidateInGameContext(e, 2, 10, 10))

	e.Pixel.X = 9
	assert.NoError(t, ValidateInGameContext(e, 2, 10, 10))
}

func TestValidateInGameContextPlayerNoRange(t *testing.T) {
	e := &GameEvent{Type: EventPlayerEliminated, PlayerEliminated: &PlayerEliminatedPayload{PlayerNo: 3}}
	assert.Error(t, ValidateInGameContext(e, 2, 10, 10))
}
