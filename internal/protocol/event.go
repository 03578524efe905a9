package protocol

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"
)

// EventType discriminates the GameEvent payload variants on the wire.
type EventType uint8

const (
	EventNewGame          EventType = 0
	EventPixel            EventType = 1
	EventPlayerEliminated EventType = 2
	EventGameOver         EventType = 3
)

func (t EventType) String() string {
	switch t {
	case EventNewGame:
		return "NEW_GAME"
	case EventPixel:
		return "PIXEL"
	case EventPlayerEliminated:
		return "PLAYER_ELIMINATED"
	case EventGameOver:
		return "GAME_OVER"
	default:
		return "UNKNOWN"
	}
}

// Sentinel errors for the deserializer's three-way result (§4.1, §7 tier 1).
var (
	// ErrUnknownEventType marks a non-fatal per-event skip: the remainder of
	// the datagram is still parsed.
	ErrUnknownEventType = errors.New("protocol: unknown event type")
	// ErrMalformed marks a fatal parse failure: the remainder of the
	// datagram must be discarded.
	ErrMalformed = errors.New("protocol: malformed event")
	// ErrTruncated is a specialization of ErrMalformed for short input.
	ErrTruncated = errors.Wrap(ErrMalformed, "truncated")
)

// NewGamePayload is the payload of event_no=0 for a game.
type NewGamePayload struct {
	MaxX        uint32
	MaxY        uint32
	PlayerNames []string
}

// PixelPayload marks a single player-owned cell.
type PixelPayload struct {
	PlayerNo uint8
	X        uint32
	Y        uint32
}

// PlayerEliminatedPayload marks a player as no longer alive.
type PlayerEliminatedPayload struct {
	PlayerNo uint8
}

// GameOverPayload carries no data; its presence is the signal.
type GameOverPayload struct{}

// GameEvent is one entry of a game's event log: a discriminated union over
// the four payload variants, never carrying more than one populated field.
type GameEvent struct {
	EventNo uint32
	Type    EventType

	NewGame          *NewGamePayload
	Pixel            *PixelPayload
	PlayerEliminated *PlayerEliminatedPayload
	GameOver         *GameOverPayload
}

// namesCapacity is the budget left for player_names once the envelope
// (len, event_no, type, crc32) and the NewGame fixed fields (maxx, maxy)
// are subtracted from the 512-byte hard datagram cap, minus the 4-byte
// game_id prefix of the datagram that carries it.
const namesCapacity = MaxDatagramSize - 4 /*game_id*/ - 4 /*len*/ - 4 /*event_no*/ - 1 /*type*/ - 4 /*crc*/ - 4 /*maxx*/ - 4 /*maxy*/

// ValidateNewGame checks a NewGame payload's self-contained invariants:
// at least 2 players, names individually valid and lexicographically
// sorted, and the encoded names fit the capacity left in a single
// datagram. It does not need external context, so it is also used by
// DeserializeEvent.
func ValidateNewGame(p *NewGamePayload) error {
	if len(p.PlayerNames) < 2 {
		return errors.Wrap(ErrMalformed, "new game needs at least 2 players")
	}
	used := 0
	for i, name := range p.PlayerNames {
		if !ValidName(name) {
			return errors.Wrapf(ErrMalformed, "new game: invalid player name at index %d", i)
		}
		if i > 0 && p.PlayerNames[i-1] >= name {
			return errors.Wrap(ErrMalformed, "new game: player names not sorted")
		}
		used += len(name) + 1
	}
	if used > namesCapacity {
		return errors.Wrap(ErrMalformed, "new game: player names exceed datagram capacity")
	}
	return nil
}

// ValidateInGameContext enforces the event's remaining invariants that
// cannot be checked from its own bytes alone: Pixel/PlayerEliminated
// player indices and Pixel coordinates are only meaningful relative to
// the enclosing game's player list and map size. Callers apply this once
// per event, in event_no order, as they fold the log into game state
// (§4.8's process_events; the server's own emit path in internal/server
// validates the same way before appending).
func ValidateInGameContext(e *GameEvent, numPlayers int, maxx, maxy uint32) error {
	switch e.Type {
	case EventPixel:
		p := e.Pixel
		if int(p.PlayerNo) >= numPlayers {
			return errors.Wrap(ErrMalformed, "pixel: player_no out of range")
		}
		if p.X >= maxx || p.Y >= maxy {
			return errors.Wrap(ErrMalformed, "pixel: coordinates off map")
		}
	case EventPlayerEliminated:
		if int(e.PlayerEliminated.PlayerNo) >= numPlayers {
			return errors.Wrap(ErrMalformed, "player_eliminated: player_no out of range")
		}
	}
	return nil
}

// Serialize encodes e as len(u32 BE) | event_no(u32 BE) | type(u8) | payload
// | crc32(u32 BE), where len covers event_no..payload and the CRC covers
// len..payload. It does not itself re-validate e; callers validate before
// emitting (§4.7).
func (e *GameEvent) Serialize() ([]byte, error) {
	var body bytes.Buffer
	binary.Write(&body, binary.BigEndian, e.EventNo)
	body.WriteByte(byte(e.Type))

	switch e.Type {
	case EventNewGame:
		p := e.NewGame
		binary.Write(&body, binary.BigEndian, p.MaxX)
		binary.Write(&body, binary.BigEndian, p.MaxY)
		for _, name := range p.PlayerNames {
			body.WriteString(name)
			body.WriteByte(0)
		}
	case EventPixel:
		p := e.Pixel
		body.WriteByte(p.PlayerNo)
		binary.Write(&body, binary.BigEndian, p.X)
		binary.Write(&body, binary.BigEndian, p.Y)
	case EventPlayerEliminated:
		body.WriteByte(e.PlayerEliminated.PlayerNo)
	case EventGameOver:
		// empty payload
	default:
		return nil, errors.Wrap(ErrMalformed, "serialize: unknown event type")
	}

	bodyBytes := body.Bytes()
	out := make([]byte, 4+len(bodyBytes)+4)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(bodyBytes)))
	copy(out[4:4+len(bodyBytes)], bodyBytes)
	crc := crc32.ChecksumIEEE(out[0 : 4+len(bodyBytes)])
	binary.BigEndian.PutUint32(out[4+len(bodyBytes):], crc)
	return out, nil
}

// DeserializeEvent parses a single serialized GameEvent from the front of
// data: envelope, CRC, and the payload's own self-contained shape (sizes,
// NewGame's name ordering/capacity). It does not know the enclosing game's
// player count or map size, so Pixel/PlayerEliminated index and bounds
// checks are deferred to ValidateInGameContext. It returns the event, the
// number of bytes consumed, and an error that is either nil,
// ErrUnknownEventType (skip, keep parsing), or wraps ErrMalformed (fatal,
// stop parsing).
func DeserializeEvent(data []byte) (*GameEvent, int, error) {
	if len(data) < 4 {
		return nil, 0, ErrTruncated
	}
	length := binary.BigEndian.Uint32(data[0:4])
	total := 4 + int(length) + 4
	if total < 0 || len(data) < total {
		return nil, 0, ErrTruncated
	}
	if length < 5 {
		return nil, 0, errors.Wrap(ErrMalformed, "event shorter than event_no+type")
	}

	recordedCRC := binary.BigEndian.Uint32(data[4+length : total])
	computedCRC := crc32.ChecksumIEEE(data[0 : 4+length])
	if recordedCRC != computedCRC {
		return nil, 0, errors.Wrap(ErrMalformed, "crc mismatch")
	}

	eventNo := binary.BigEndian.Uint32(data[4:8])
	typ := EventType(data[8])
	payload := data[9 : 4+length]

	e := &GameEvent{EventNo: eventNo, Type: typ}

	switch typ {
	case EventNewGame:
		if len(payload) < 8 {
			return nil, 0, errors.Wrap(ErrMalformed, "new_game payload too short")
		}
		p := &NewGamePayload{
			MaxX: binary.BigEndian.Uint32(payload[0:4]),
			MaxY: binary.BigEndian.Uint32(payload[4:8]),
		}
		rest := payload[8:]
		if len(rest) > 0 {
			names := bytes.Split(rest, []byte{0})
			// A trailing null leaves one empty element after the last name.
			if len(names) > 0 && len(names[len(names)-1]) == 0 {
				names = names[:len(names)-1]
			}
			for _, n := range names {
				p.PlayerNames = append(p.PlayerNames, string(n))
			}
		}
		if err := ValidateNewGame(p); err != nil {
			return nil, 0, err
		}
		if eventNo != 0 {
			return nil, 0, errors.Wrap(ErrMalformed, "new_game at non-zero event_no")
		}
		e.NewGame = p

	case EventPixel:
		if len(payload) != 9 {
			return nil, 0, errors.Wrap(ErrMalformed, "pixel payload wrong size")
		}
		e.Pixel = &PixelPayload{
			PlayerNo: payload[0],
			X:        binary.BigEndian.Uint32(payload[1:5]),
			Y:        binary.BigEndian.Uint32(payload[5:9]),
		}

	case EventPlayerEliminated:
		if len(payload) != 1 {
			return nil, 0, errors.Wrap(ErrMalformed, "player_eliminated payload wrong size")
		}
		e.PlayerEliminated = &PlayerEliminatedPayload{PlayerNo: payload[0]}

	case EventGameOver:
		if len(payload) != 0 {
			return nil, 0, errors.Wrap(ErrMalformed, "game_over payload must be empty")
		}
		e.GameOver = &GameOverPayload{}

	default:
		return e, total, ErrUnknownEventType
	}

	return e, total, nil
}
