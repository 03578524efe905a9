package server

import (
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mrowqa/siktacka/internal/protocol"
	"github.com/Mrowqa/siktacka/internal/rng"
	"github.com/Mrowqa/siktacka/internal/sim"
)

// Player is one simulated snake for the lifetime of a single game (§3).
type Player struct {
	Name          string
	TurnDirection int8
	Alive         bool
	PosX, PosY    float64
	Angle         float64 // degrees, kept in [0, 360)

	cellX, cellY int64 // last rounded (floor) occupied cell
}

// EventLog is the append-only, opaque-byte-string sequence backing one
// game_id's history (§9). Index i always holds the event with event_no i.
type EventLog struct {
	entries [][]byte
}

func (l *EventLog) Size() int { return len(l.entries) }

func (l *EventLog) append(data []byte) { l.entries = append(l.entries, data) }

func (l *EventLog) reset() { l.entries = l.entries[:0] }

// Slice returns the serialized events from index from onward, for packing
// into outbound datagrams (§4.5).
func (l *EventLog) Slice(from int) [][]byte {
	if from >= len(l.entries) {
		return nil
	}
	return l.entries[from:]
}

// Game is the server's authoritative simulation state for one game_id
// (§3, §4.6, §4.7).
type Game struct {
	log *logrus.Entry
	gen *rng.LCG

	turningSpeed float64
	tickPeriod   time.Duration

	GameID       uint32
	Players      []*Player
	AliveCount   int
	Grid         *sim.Grid
	Log          EventLog
	NextTickTime time.Time
	InProgress   bool

	over bool
}

// NewGame constructs an idle Game (no game in progress yet): the first
// call to Tick will attempt to start one once enough players are ready.
func NewGame(gen *rng.LCG, roundsPerSecond, turningSpeed int, log *logrus.Entry) *Game {
	return &Game{
		log:          log,
		gen:          gen,
		turningSpeed: float64(turningSpeed),
		tickPeriod:   time.Duration(1_000_000/roundsPerSecond) * time.Microsecond,
		NextTickTime: time.Now(),
	}
}

// TickDue reports whether the scheduled tick time has arrived.
func (g *Game) TickDue(now time.Time) bool {
	return !now.Before(g.NextTickTime)
}

// AdvanceSchedule moves NextTickTime forward by exactly one tick period —
// not to now+period, so skipped ticks are caught up explicitly rather than
// silently dropped (§4.6).
func (g *Game) AdvanceSchedule() {
	g.NextTickTime = g.NextTickTime.Add(g.tickPeriod)
}

// emit assigns the next event_no, validates, serializes once, and appends
// to the log. An invalid event is logged and dropped without advancing
// the counter (§4.7).
func (g *Game) emit(ev *protocol.GameEvent) (*protocol.GameEvent, bool) {
	if g.over {
		g.log.WithField("type", ev.Type).Warn("emit after game_over dropped")
		return nil, false
	}
	ev.EventNo = uint32(g.Log.Size())

	isNewGame := ev.Type == protocol.EventNewGame
	if (ev.EventNo == 0) != isNewGame {
		g.log.WithField("type", ev.Type).Warn("emit violates new_game-only-at-zero invariant")
		return nil, false
	}

	var verr error
	switch ev.Type {
	case protocol.EventNewGame:
		verr = protocol.ValidateNewGame(ev.NewGame)
	case protocol.EventPixel, protocol.EventPlayerEliminated:
		verr = protocol.ValidateInGameContext(ev, len(g.Players), g.Grid.Width(), g.Grid.Height())
	}
	if verr != nil {
		g.log.WithError(verr).Warn("emit dropped invalid event")
		return nil, false
	}

	data, err := ev.Serialize()
	if err != nil {
		g.log.WithError(err).Warn("emit failed to serialize")
		return nil, false
	}
	g.Log.append(data)
	if ev.Type == protocol.EventGameOver {
		g.over = true
		g.InProgress = false
	}
	return ev, true
}

func (g *Game) emitNewGame(maxx, maxy uint32, names []string) {
	g.emit(&protocol.GameEvent{
		Type:    protocol.EventNewGame,
		NewGame: &protocol.NewGamePayload{MaxX: maxx, MaxY: maxy, PlayerNames: names},
	})
}

func (g *Game) emitPixel(playerNo int, x, y uint32) {
	g.emit(&protocol.GameEvent{
		Type:  protocol.EventPixel,
		Pixel: &protocol.PixelPayload{PlayerNo: uint8(playerNo), X: x, Y: y},
	})
}

func (g *Game) emitPlayerEliminated(playerNo int) {
	g.emit(&protocol.GameEvent{
		Type:             protocol.EventPlayerEliminated,
		PlayerEliminated: &protocol.PlayerEliminatedPayload{PlayerNo: uint8(playerNo)},
	})
}

func (g *Game) emitGameOver() {
	g.emit(&protocol.GameEvent{Type: protocol.EventGameOver, GameOver: &protocol.GameOverPayload{}})
}

// Tick runs one simulation step: starting a new game if none is in
// progress and enough players are ready, or advancing every alive player
// otherwise (§4.6). registry is consulted to find ready players and to
// assign player_no back onto sessions when a game starts.
func (g *Game) Tick(registry *Registry, mapWidth, mapHeight uint32) {
	if !g.InProgress {
		g.tryStart(registry, mapWidth, mapHeight)
		return
	}
	g.step()
}

func (g *Game) tryStart(registry *Registry, mapWidth, mapHeight uint32) {
	ready := registry.ReadyPlayers()
	if len(ready) < 2 {
		return
	}

	names := make([]string, len(ready))
	for i, s := range ready {
		names[i] = s.Name
	}
	sort.Strings(names)

	for len(names) >= 2 {
		if protocol.ValidateNewGame(&protocol.NewGamePayload{MaxX: mapWidth, MaxY: mapHeight, PlayerNames: names}) == nil {
			break
		}
		names = names[:len(names)-1]
	}
	if len(names) < 2 {
		return
	}

	g.GameID = uint32(g.gen.Next())
	g.Log.reset()
	g.Grid = sim.NewGrid(mapWidth, mapHeight)
	g.InProgress = true
	g.over = false

	nameIndex := make(map[string]int, len(names))
	for i, n := range names {
		nameIndex[n] = i
	}
	for _, s := range registry.All() {
		s.WatchingGame = true
		s.GotNewGameEvent = false
		s.ReadyToPlay = false
		if idx, ok := nameIndex[s.Name]; ok {
			s.PlayerNo = int8(idx)
		} else {
			s.PlayerNo = -1
		}
	}

	g.emitNewGame(mapWidth, mapHeight, names)

	g.Players = make([]*Player, len(names))
	g.AliveCount = len(names)
	for i, name := range names {
		p := &Player{Name: name, Alive: true}
		x := float64(g.gen.Next()%uint64(mapWidth)) + 0.5
		y := float64(g.gen.Next()%uint64(mapHeight)) + 0.5
		angle := float64(g.gen.Next() % 360)
		p.PosX, p.PosY, p.Angle = x, y, angle
		p.cellX, p.cellY = int64(math.Floor(x)), int64(math.Floor(y))
		g.Players[i] = p

		if g.Grid.Occupied(uint32(p.cellX), uint32(p.cellY)) {
			g.eliminate(i)
			if g.over {
				break
			}
		} else {
			g.Grid.Mark(uint32(p.cellX), uint32(p.cellY))
			g.emitPixel(i, uint32(p.cellX), uint32(p.cellY))
		}
	}

	g.log.WithFields(logrus.Fields{"game_id": g.GameID, "players": names}).Info("game started")
}

// eliminate marks player i dead, emits PlayerEliminated, and ends the game
// (emitting GameOver) if at most one player remains alive.
func (g *Game) eliminate(i int) {
	p := g.Players[i]
	if !p.Alive {
		return
	}
	p.Alive = false
	g.AliveCount--
	g.emitPlayerEliminated(i)
	if g.AliveCount <= 1 {
		g.emitGameOver()
		g.log.WithField("game_id", g.GameID).Info("game over")
	}
}

// step advances every alive player by one tick, in player-index order,
// aborting early if a PlayerEliminated triggers GameOver (§4.6).
func (g *Game) step() {
	for i, p := range g.Players {
		if !p.Alive {
			continue
		}

		switch p.TurnDirection {
		case 1:
			p.Angle = math.Mod(p.Angle+g.turningSpeed, 360)
		case -1:
			p.Angle = math.Mod(p.Angle-g.turningSpeed+360, 360)
		}

		rad := p.Angle * math.Pi / 180
		p.PosX += math.Cos(rad)
		p.PosY += math.Sin(rad)

		newCellX := int64(math.Floor(p.PosX))
		newCellY := int64(math.Floor(p.PosY))
		if newCellX == p.cellX && newCellY == p.cellY {
			continue
		}
		p.cellX, p.cellY = newCellX, newCellY

		offMap := newCellX < 0 || newCellY < 0 ||
			!g.Grid.InBounds(uint32(newCellX), uint32(newCellY))
		occupied := !offMap && g.Grid.Occupied(uint32(newCellX), uint32(newCellY))

		if offMap || occupied {
			g.eliminate(i)
			if g.over {
				return
			}
			continue
		}

		g.Grid.Mark(uint32(newCellX), uint32(newCellY))
		g.emitPixel(i, uint32(newCellX), uint32(newCellY))
	}
}
