package protocol

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// heartbeatHeaderSize is session_id(8) + turn_direction(1) + next_expected_event_no(4).
const heartbeatHeaderSize = 8 + 1 + 4

// MinHeartbeatSize and MaxHeartbeatSize bound the whole datagram: the
// header plus a name of at most 64 bytes (§4.3). The minimum is the bare
// header; the name's 1-byte minimum is enforced by ValidName.
const (
	MinHeartbeatSize = heartbeatHeaderSize
	MaxHeartbeatSize = heartbeatHeaderSize + MaxNameLength
)

// HeartBeat is the client's periodic liveness/intent datagram.
type HeartBeat struct {
	SessionID           uint64
	TurnDirection       int8
	NextExpectedEventNo uint32
	PlayerName          string
}

// Serialize encodes h as session_id(u64 BE) | turn_direction(i8) |
// next_expected_event_no(u32 BE) | player_name. It does not validate h;
// callers validate before sending.
func (h *HeartBeat) Serialize() []byte {
	out := make([]byte, heartbeatHeaderSize+len(h.PlayerName))
	binary.BigEndian.PutUint64(out[0:8], h.SessionID)
	out[8] = byte(h.TurnDirection)
	binary.BigEndian.PutUint32(out[9:13], h.NextExpectedEventNo)
	copy(out[13:], h.PlayerName)
	return out
}

// DeserializeHeartBeat parses and validates a HeartBeat datagram: turn
// direction must be -1, 0, or 1, and the trailing name must satisfy
// ValidName.
func DeserializeHeartBeat(data []byte) (*HeartBeat, error) {
	if len(data) < MinHeartbeatSize || len(data) > MaxHeartbeatSize {
		return nil, errors.Wrap(ErrMalformed, "heartbeat: bad size")
	}

	td := int8(data[8])
	if td < -1 || td > 1 {
		return nil, errors.Wrap(ErrMalformed, "heartbeat: invalid turn_direction")
	}

	name := string(data[13:])
	if !ValidName(name) {
		return nil, errors.Wrap(ErrMalformed, "heartbeat: invalid player name")
	}

	return &HeartBeat{
		SessionID:           binary.BigEndian.Uint64(data[0:8]),
		TurnDirection:       td,
		NextExpectedEventNo: binary.BigEndian.Uint32(data[9:13]),
		PlayerName:          name,
	}, nil
}
