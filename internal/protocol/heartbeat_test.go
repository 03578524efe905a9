package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartBeatRoundTrip(t *testing.T) {
	h := &HeartBeat{SessionID: 123456789, TurnDirection: -1, NextExpectedEventNo: 42, PlayerName: "alice"}
	data := h.Serialize()

	got, err := DeserializeHeartBeat(data)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestDeserializeHeartBeatRejectsBadTurnDirection(t *testing.T) {
	h := &HeartBeat{SessionID: 1, TurnDirection: 0, NextExpectedEventNo: 0, PlayerName: "bob"}
	data := h.Serialize()
	data[8] = 2 // out of {-1, 0, 1}

	_, err := DeserializeHeartBeat(data)
	assert.Error(t, err)
}

func TestDeserializeHeartBeatRejectsBadName(t *testing.T) {
	h := &HeartBeat{SessionID: 1, TurnDirection: 0, NextExpectedEventNo: 0, PlayerName: "bob"}
	data := h.Serialize()
	data[13] = ' ' // space is not a valid name byte

	_, err := DeserializeHeartBeat(data)
	assert.Error(t, err)
}

func TestDeserializeHeartBeatRejectsTruncated(t *testing.T) {
	_, err := DeserializeHeartBeat([]byte{0, 0, 0})
	assert.Error(t, err)
}
