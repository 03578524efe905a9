// Package server implements the authoritative game server: socket layer,
// session registry, fair delivery, and the tick-scheduled simulation.
// Session maintenance, heartbeat intake, outbound fan-out, and the tick
// gate all run on one thread, in that order, every pass — no goroutines,
// no locks.
package server

import (
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Mrowqa/siktacka/internal/protocol"
	"github.com/Mrowqa/siktacka/internal/rng"
)

// idleYield is how long the main loop sleeps when a pass did no work, so
// the cooperative scheduler does not spin a core at 100% (§5: "yields when
// idle").
const idleYield = time.Millisecond

// Server is the authoritative game server (§2, §4).
type Server struct {
	cfg      Config
	conn     *net.UDPConn
	registry *Registry
	game     *Game
	log      *logrus.Entry
}

// New constructs a Server bound to cfg, not yet listening.
func New(cfg Config, logger *logrus.Logger) *Server {
	entry := logger.WithField("component", "server")
	gen := rng.NewSeeded(cfg.Seed)
	return &Server{
		cfg:      cfg,
		registry: NewRegistry(entry),
		game:     NewGame(gen, cfg.RoundsPerSecond, cfg.TurningSpeed, entry),
		log:      entry,
	}
}

// Run opens the UDP listener and drives the cooperative main loop until an
// unrecoverable socket error occurs.
func (s *Server) Run() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return errors.Wrap(err, "resolve listen address")
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return errors.Wrap(err, "listen udp")
	}
	defer conn.Close()
	s.conn = conn

	s.log.WithFields(logrus.Fields{
		"port": s.cfg.Port, "map": fmt.Sprintf("%dx%d", s.cfg.MapWidth, s.cfg.MapHeight),
		"rounds_per_second": s.cfg.RoundsPerSecond, "turning_speed": s.cfg.TurningSpeed,
		"seed": s.cfg.Seed,
	}).Info("server listening")

	for {
		now := time.Now()
		didWork := false

		if evicted := s.registry.SweepStale(now); len(evicted) > 0 {
			didWork = true
			for _, ev := range evicted {
				s.log.WithField("peer", ev.AddrKey).Info("session swept: heartbeat timeout")
			}
		}

		if n := s.intakeHeartbeats(now); n > 0 {
			didWork = true
		}

		tickDue := s.game.TickDue(now)
		if !tickDue {
			if s.sendOneEvent(now) {
				didWork = true
			}
		} else {
			s.game.Tick(s.registry, s.cfg.MapWidth, s.cfg.MapHeight)
			s.game.AdvanceSchedule()
			didWork = true
		}

		if !didWork {
			time.Sleep(idleYield)
		}
	}
}

// intakeHeartbeats drains every heartbeat currently queued on the socket,
// running admission and propagating turn_direction onto the simulation
// (§4.4 step 6). It returns the number of datagrams processed.
func (s *Server) intakeHeartbeats(now time.Time) int {
	buf := make([]byte, protocol.MaxHeartbeatSize)
	count := 0

	for {
		s.conn.SetReadDeadline(now)
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return count
			}
			s.log.WithError(err).Debug("udp read error")
			return count
		}
		count++

		hb, err := protocol.DeserializeHeartBeat(buf[:n])
		if err != nil {
			s.log.WithError(err).Debug("dropped malformed heartbeat")
			continue
		}

		sess, result := s.registry.Admit(addr, hb.SessionID, hb.PlayerName, hb.TurnDirection, hb.NextExpectedEventNo, now, s.game.InProgress)
		if result == AdmissionDropped {
			s.log.WithField("peer", addr.String()).Debug("dropped heartbeat: admission refused")
			continue
		}
		if result == AdmissionNewSession {
			s.log.WithFields(logrus.Fields{"peer": addr.String(), "name": hb.PlayerName, "session_id": hb.SessionID}).Info("session admitted")
		}

		if s.game.InProgress && sess.PlayerNo != -1 {
			s.game.Players[sess.PlayerNo].TurnDirection = hb.TurnDirection
		}
	}
}

// sendOneEvent implements §4.5's fair-delivery step: at most one send
// attempt per call, skipping stale or not-yet-eligible sessions up to once
// around the whole registry, so every session is attempted within |sessions|
// calls. It returns whether it sent (or evicted) anything.
func (s *Server) sendOneEvent(now time.Time) bool {
	attempts := s.registry.Len()
	evicted := false
	for i := 0; i < attempts; i++ {
		sess := s.registry.CursorSession()
		if sess == nil {
			return evicted
		}

		if now.Sub(sess.LastHeartbeat) > SessionTimeout {
			s.registry.EvictCursor()
			s.log.WithField("peer", sess.AddrKey).Info("session timed out")
			evicted = true
			continue
		}

		if sess.WatchingGame && !sess.GotNewGameEvent {
			sess.NextEventNo = 0
		}

		if !sess.WatchingGame || int(sess.NextEventNo) >= s.game.Log.Size() {
			s.registry.AdvanceCursor()
			continue
		}

		serialized := s.game.Log.Slice(int(sess.NextEventNo))
		datagram, nextIdx, err := protocol.PackFromCache(s.game.GameID, serialized, 0)
		if err != nil {
			s.log.WithError(err).Error("event exceeds datagram cap; dropping session view")
			s.registry.AdvanceCursor()
			return true
		}

		wasAtZero := sess.NextEventNo == 0
		_, werr := s.conn.WriteToUDP(datagram, sess.Addr)
		if werr == nil {
			absoluteNext := int(sess.NextEventNo) + nextIdx
			if wasAtZero && absoluteNext > 0 {
				sess.GotNewGameEvent = true
			}
			sess.NextEventNo = uint32(absoluteNext)
		}
		s.registry.AdvanceCursor()
		return true
	}
	return evicted
}
