package client

import (
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Mrowqa/siktacka/internal/protocol"
)

// idleYield is the cooperative sleep when a main loop pass does no work
// (§4.10 step 7, §9).
const idleYield = time.Millisecond

// Client drives the protocol core for one player: heartbeats out, events
// in, bridged to a GUI process over TCP (§2, §4.9, §4.10).
type Client struct {
	log *logrus.Entry

	conn *net.UDPConn
	gui  *GUI

	hb          *HeartbeatDriver
	reassembler *Reassembler

	leftDown, rightDown bool
	lastServerRecv      time.Time

	// outLines holds GUI-bound lines that DrainToGUI has already popped
	// from the reassembler but WriteLine has not yet delivered.
	outLines []string
}

// New dials both the server and the GUI and returns a Client ready to Run.
func New(playerName, serverAddr, guiAddr string, logger *logrus.Logger) (*Client, error) {
	entry := logger.WithField("component", "client")

	raddr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return nil, errors.Wrap(err, "resolve server address")
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, errors.Wrap(err, "dial server")
	}

	gui, err := DialGUI(guiAddr)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "dial gui")
	}

	return &Client{
		log:         entry,
		conn:        conn,
		gui:         gui,
		hb:          NewHeartbeatDriver(playerName),
		reassembler: NewReassembler(entry),
	}, nil
}

// Run drives the cooperative main loop until a fatal error terminates it
// (§4.10). The heartbeat deadline gates every other kind of work, per §5.
func (c *Client) Run() error {
	defer c.conn.Close()
	defer c.gui.Close()

	c.lastServerRecv = time.Now()

	for {
		now := time.Now()
		didWork := false

		if c.hb.Pending(now) {
			if err := c.sendHeartbeat(now); err != nil {
				return err
			}
			didWork = true
		}

		guiEvents, err := c.drainGUIInput()
		if err != nil {
			return err
		}
		if guiEvents > 0 {
			didWork = true
		}

		if c.hb.Pending(time.Now()) {
			if err := c.sendHeartbeat(time.Now()); err != nil {
				return err
			}
			didWork = true
		}

		if lines := c.reassembler.DrainToGUI(); len(lines) > 0 {
			didWork = true
			c.outLines = append(c.outLines, lines...)
		}

		flushed, err := c.flushGUIOutput()
		if err != nil {
			return err
		}
		if flushed > 0 {
			didWork = true
		}

		if err := c.reassembler.ProcessEvents(); err != nil {
			return err
		}

		udpRead, err := c.drainUDP(now)
		if err != nil {
			return err
		}
		if udpRead > 0 {
			didWork = true
		}

		if time.Since(c.lastServerRecv) > ServerTimeout {
			return errors.New("client: no datagram from server within timeout")
		}

		if !didWork {
			time.Sleep(idleYield)
		}
	}
}

func (c *Client) sendHeartbeat(now time.Time) error {
	turn := int8(0)
	if c.leftDown {
		turn--
	}
	if c.rightDown {
		turn++
	}
	hb := c.hb.Build(turn, c.reassembler.NextEventNo())
	if err := SendWithRetry(c.conn, hb.Serialize()); err != nil {
		return errors.Wrap(err, "heartbeat send")
	}
	c.hb.MarkSent(now)
	return nil
}

// drainGUIInput reads key events until the socket is not ready or another
// heartbeat falls due, whichever comes first (§4.10 step 2).
func (c *Client) drainGUIInput() (int, error) {
	count := 0
	for {
		if c.hb.Pending(time.Now()) {
			return count, nil
		}
		line, err := c.gui.ReadLine()
		if err == errNotReady {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		count++
		switch line {
		case "LEFT_KEY_DOWN":
			c.leftDown = true
		case "LEFT_KEY_UP":
			c.leftDown = false
		case "RIGHT_KEY_DOWN":
			c.rightDown = true
		case "RIGHT_KEY_UP":
			c.rightDown = false
		default:
			c.log.WithField("line", line).Debug("unrecognized gui input line")
		}
	}
}

// flushGUIOutput writes as many pending lines as it can, stopping the
// instant a write is not ready or another heartbeat falls due (§4.10's
// "bounded" rule applies to GUI output exactly as it does to GUI input).
// A line that WriteLine could not deliver stays at the front of outLines
// for the next pass.
func (c *Client) flushGUIOutput() (int, error) {
	count := 0
	for len(c.outLines) > 0 {
		if c.hb.Pending(time.Now()) {
			return count, nil
		}
		err := c.gui.WriteLine(c.outLines[0])
		if err == errNotReady {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		c.outLines = c.outLines[1:]
		count++
	}
	return count, nil
}

// drainUDP reads every datagram currently queued from the server (§4.10
// step 6), stopping early if a heartbeat falls due so a burst of queued
// datagrams cannot starve the heartbeat send. Any successful read, valid
// payload or not, counts as liveness.
func (c *Client) drainUDP(now time.Time) (int, error) {
	buf := make([]byte, protocol.MaxDatagramSize)
	count := 0
	for {
		if c.hb.Pending(time.Now()) {
			return count, nil
		}
		c.conn.SetReadDeadline(now)
		n, err := c.conn.Read(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return count, nil
			}
			return count, errors.Wrap(err, "udp socket error")
		}
		count++
		c.lastServerRecv = now
		if err := c.reassembler.Ingest(buf[:n]); err != nil {
			return count, err
		}
	}
}
