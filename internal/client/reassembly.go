// Package client implements the player-side protocol core: ordered event
// reassembly, the heartbeat driver, and the GUI bridge (§4.8-4.10).
package client

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Mrowqa/siktacka/internal/protocol"
)

// lookAheadThreshold bounds how far ahead of next_event_no an incoming
// datagram may reach before it is dropped wholesale (§4.8, §8 scenario 3).
const lookAheadThreshold = 100

// ErrFatal marks a stream that violates the server's own invariants; per
// §7 tier 2 this always terminates the client.
var ErrFatal = errors.New("client: server event stream violates invariants")

// GameState is the subset of NewGame that later events are validated and
// rendered against.
type GameState struct {
	MaxX, MaxY uint32
	Names      []string
	GameOver   bool
}

// Reassembler is the client's indexed slot buffer plus the two read
// cursors (§4.8). It holds no network state; Ingest is fed raw datagram
// bytes and ProcessEvents/DrainToGUI are driven by the main loop.
type Reassembler struct {
	log *logrus.Entry

	haveGame    bool
	gameID      uint32
	prevGameIDs map[uint32]struct{}

	slots          []*protocol.UnpackedEvent
	nextEventNo    uint32
	guiNextEventNo uint32

	state GameState
}

// NewReassembler constructs an empty Reassembler.
func NewReassembler(log *logrus.Entry) *Reassembler {
	return &Reassembler{
		log:         log,
		prevGameIDs: make(map[uint32]struct{}),
	}
}

// NextEventNo is the event_no the client still needs, as reported in its
// own heartbeats.
func (r *Reassembler) NextEventNo() uint32 { return r.nextEventNo }

// Ingest unpacks a raw datagram and folds its events into the slot buffer.
// Malformed datagrams are dropped silently (§7 tier 1); this includes a
// NewGame at a non-zero event_no, which the decoder rejects as malformed.
// A non-contiguous event_no run is reported via ErrFatal.
func (r *Reassembler) Ingest(datagram []byte) error {
	gid, events, err := protocol.Unpack(datagram)
	if err != nil {
		r.log.WithError(err).Debug("dropped malformed datagram")
		return nil
	}
	return r.ingest(gid, events)
}

func (r *Reassembler) ingest(gid uint32, events []protocol.UnpackedEvent) error {
	if _, stale := r.prevGameIDs[gid]; stale {
		r.log.WithField("game_id", gid).Debug("dropped: stale game")
		return nil
	}

	lo := events[0].Event.EventNo
	for i, e := range events {
		if e.Event.EventNo != lo+uint32(i) {
			return errors.Wrap(ErrFatal, "non-contiguous event_no in datagram")
		}
	}

	if !r.haveGame {
		r.gameID = gid
		r.haveGame = true
	} else if gid != r.gameID {
		r.prevGameIDs[r.gameID] = struct{}{}
		r.gameID = gid
		r.resetGameState()
	}

	hi := events[len(events)-1].Event.EventNo
	if hi < r.nextEventNo || lo > r.nextEventNo+lookAheadThreshold {
		r.log.WithFields(logrus.Fields{"lo": lo, "hi": hi, "next": r.nextEventNo}).Debug("dropped: outside look-ahead window")
		return nil
	}

	need := int(hi) + 1
	if len(r.slots) < need {
		grown := make([]*protocol.UnpackedEvent, need)
		copy(grown, r.slots)
		r.slots = grown
	}
	for i := range events {
		e := events[i]
		idx := e.Event.EventNo
		if r.slots[idx] == nil {
			r.slots[idx] = &e
		}
	}
	return nil
}

func (r *Reassembler) resetGameState() {
	r.slots = nil
	r.nextEventNo = 0
	r.guiNextEventNo = 0
	r.state = GameState{}
}

// ProcessEvents folds every contiguous, available event into game state in
// event_no order, stopping at the first gap. It returns ErrFatal the
// instant the stream violates an invariant the server itself must uphold.
func (r *Reassembler) ProcessEvents() error {
	for int(r.nextEventNo) < len(r.slots) && r.slots[r.nextEventNo] != nil {
		if err := r.applyEvent(r.slots[r.nextEventNo].Event); err != nil {
			return err
		}
		r.nextEventNo++
	}
	return nil
}

func (r *Reassembler) applyEvent(e *protocol.GameEvent) error {
	if e.EventNo == 0 && e.Type != protocol.EventNewGame {
		return errors.Wrap(ErrFatal, "event_no 0 is not NEW_GAME")
	}
	if e.Type == protocol.EventNewGame && e.EventNo != 0 {
		return errors.Wrap(ErrFatal, "NEW_GAME at non-zero event_no")
	}
	if r.state.GameOver {
		return errors.Wrap(ErrFatal, "event received after GAME_OVER")
	}

	switch e.Type {
	case protocol.EventNewGame:
		r.state = GameState{MaxX: e.NewGame.MaxX, MaxY: e.NewGame.MaxY, Names: e.NewGame.PlayerNames}
	case protocol.EventPixel, protocol.EventPlayerEliminated:
		if err := protocol.ValidateInGameContext(e, len(r.state.Names), r.state.MaxX, r.state.MaxY); err != nil {
			return errors.Wrap(ErrFatal, err.Error())
		}
	case protocol.EventGameOver:
		r.state.GameOver = true
	}
	return nil
}

// DrainToGUI pops every processed-but-not-yet-forwarded event in order and
// renders it as a GUI text line (§4.8, §6). GameOver never produces a line.
func (r *Reassembler) DrainToGUI() []string {
	var lines []string
	for r.guiNextEventNo < r.nextEventNo {
		slot := r.slots[r.guiNextEventNo]
		r.slots[r.guiNextEventNo] = nil
		r.guiNextEventNo++
		if line, ok := r.toGUILine(slot.Event); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

func (r *Reassembler) toGUILine(e *protocol.GameEvent) (string, bool) {
	switch e.Type {
	case protocol.EventNewGame:
		parts := append([]string{fmt.Sprintf("NEW_GAME %d %d", e.NewGame.MaxX, e.NewGame.MaxY)}, e.NewGame.PlayerNames...)
		return strings.Join(parts, " "), true
	case protocol.EventPixel:
		return fmt.Sprintf("PIXEL %d %d %s", e.Pixel.X, e.Pixel.Y, r.playerName(e.Pixel.PlayerNo)), true
	case protocol.EventPlayerEliminated:
		return fmt.Sprintf("PLAYER_ELIMINATED %s", r.playerName(e.PlayerEliminated.PlayerNo)), true
	default:
		return "", false
	}
}

func (r *Reassembler) playerName(no uint8) string {
	if int(no) < len(r.state.Names) {
		return r.state.Names[no]
	}
	return "?"
}
