package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serializeAll(t *testing.T, events []*GameEvent) [][]byte {
	t.Helper()
	out := make([][]byte, len(events))
	for i, e := range events {
		data, err := e.Serialize()
		require.NoError(t, err)
		out[i] = data
	}
	return out
}

func TestPackUnpackRoundTrip(t *testing.T) {
	events := []*GameEvent{
		{EventNo: 0, Type: EventNewGame, NewGame: &NewGamePayload{MaxX: 800, MaxY: 600, PlayerNames: []string{"alice", "bob"}}},
		{EventNo: 1, Type: EventPixel, Pixel: &PixelPayload{PlayerNo: 0, X: 1, Y: 1}},
		{EventNo: 2, Type: EventPixel, Pixel: &PixelPayload{PlayerNo: 1, X: 2, Y: 2}},
	}
	serialized := serializeAll(t, events)

	var got []*GameEvent
	from := 0
	for from < len(serialized) {
		datagram, next, err := PackFromCache(0xCAFEBABE, serialized, from)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(datagram), MaxDatagramSize)

		gid, unpacked, err := Unpack(datagram)
		require.NoError(t, err)
		assert.Equal(t, uint32(0xCAFEBABE), gid)
		for _, u := range unpacked {
			got = append(got, u.Event)
		}
		from = next
	}

	require.Len(t, got, len(events))
	for i := range events {
		assert.Equal(t, events[i].EventNo, got[i].EventNo)
		assert.Equal(t, events[i].Type, got[i].Type)
	}
}

func TestPackFromCacheNoProgressIsEventTooLarge(t *testing.T) {
	oversized := make([]byte, MaxDatagramSize) // a single "event" that alone can't fit with the game_id prefix
	_, _, err := PackFromCache(1, [][]byte{oversized}, 0)
	assert.ErrorIs(t, err, ErrEventTooLarge)
}

func TestPackFromCacheNeverExceedsCap(t *testing.T) {
	e := &GameEvent{Type: EventPixel, Pixel: &PixelPayload{PlayerNo: 0, X: 1, Y: 1}}
	var serialized [][]byte
	for i := 0; i < 200; i++ {
		e.EventNo = uint32(i)
		data, err := e.Serialize()
		require.NoError(t, err)
		serialized = append(serialized, data)
	}

	from := 0
	for from < len(serialized) {
		datagram, next, err := PackFromCache(1, serialized, from)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(datagram), MaxDatagramSize)
		assert.Greater(t, next, from)
		from = next
	}
}

func TestUnpackRejectsShortDatagram(t *testing.T) {
	_, _, err := Unpack([]byte{1, 2, 3})
	assert.Error(t, err)
}
