package protocol

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// MaxDatagramSize is the hard UDP-payload cap for this protocol (§4.2, §6).
const MaxDatagramSize = 512

// gameIDSize is the width of the datagram's game_id prefix.
const gameIDSize = 4

// ErrEventTooLarge is returned by PackFromCache when the very first event
// at the requested offset does not fit in a single datagram on its own —
// a logic error, since no single serialized event may exceed the cap.
var ErrEventTooLarge = errors.New("protocol: single event exceeds datagram cap")

// PackFromCache greedily appends already-serialized events (serialized[from:])
// into one datagram prefixed by gameID, stopping once the next event would
// exceed MaxDatagramSize. It returns the datagram bytes and the index of the
// first event not packed. If the first event does not fit, it returns
// ErrEventTooLarge with next == from; if from is already past the end, it
// returns a nil datagram, from, and a nil error.
func PackFromCache(gameID uint32, serialized [][]byte, from int) ([]byte, int, error) {
	if from >= len(serialized) {
		return nil, from, nil
	}

	budget := MaxDatagramSize - gameIDSize
	out := make([]byte, gameIDSize, MaxDatagramSize)
	binary.BigEndian.PutUint32(out, gameID)

	next := from
	for next < len(serialized) {
		ev := serialized[next]
		if len(ev) > budget {
			break
		}
		out = append(out, ev...)
		budget -= len(ev)
		next++
	}

	if next == from {
		return nil, from, ErrEventTooLarge
	}
	return out, next, nil
}

// UnpackedEvent pairs a parsed event with its raw serialized bytes; Raw is
// a sub-slice of the datagram passed to Unpack.
type UnpackedEvent struct {
	Event *GameEvent
	Raw   []byte
}

// Unpack reads game_id followed by zero or more serialized events. Events
// whose type is unrecognized are skipped (parsing continues past them); a
// malformed event terminates parsing, retaining the successfully parsed
// prefix. The datagram is accepted (err == nil) iff at least one event was
// parsed; gameID is returned whenever the datagram is long enough to hold
// one, so the caller can route even rejected datagrams for logging.
func Unpack(datagram []byte) (gameID uint32, events []UnpackedEvent, err error) {
	if len(datagram) < gameIDSize {
		return 0, nil, errors.Wrap(ErrMalformed, "datagram shorter than game_id")
	}
	gameID = binary.BigEndian.Uint32(datagram[0:gameIDSize])
	rest := datagram[gameIDSize:]

	for len(rest) > 0 {
		ev, n, derr := DeserializeEvent(rest)
		if derr == ErrUnknownEventType {
			rest = rest[n:]
			continue
		}
		if derr != nil {
			break
		}
		events = append(events, UnpackedEvent{Event: ev, Raw: rest[:n]})
		rest = rest[n:]
	}

	if len(events) == 0 {
		return gameID, nil, errors.New("protocol: datagram carried no parseable events")
	}
	return gameID, events, nil
}
