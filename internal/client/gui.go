package client

import (
	"bytes"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// errNotReady mirrors the UDP "NotReady" result for the GUI's nonblocking
// line reads and writes: the deadline-based call returned without making
// progress.
var errNotReady = errors.New("client: gui not ready")

// writeDeadline bounds a single GUI write attempt so a stalled or
// slow-draining GUI process cannot block the main loop indefinitely.
const writeDeadline = 5 * time.Millisecond

// GUI is the TCP, newline-terminated bridge to the renderer/input process
// (§4.8, §6). recvBuf persists raw bytes across ReadLine calls: a
// deadline-triggered read can land mid-line, and the fragment already read
// off the socket must survive until the rest of the line arrives.
type GUI struct {
	conn    *net.TCPConn
	recvBuf []byte
}

// DialGUI connects to addr, disabling Nagle's algorithm per §6.
func DialGUI(addr string) (*GUI, error) {
	raddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "resolve gui address")
	}
	conn, err := net.DialTCP("tcp", nil, raddr)
	if err != nil {
		return nil, errors.Wrap(err, "dial gui")
	}
	if err := conn.SetNoDelay(true); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "disable nagle")
	}
	return &GUI{conn: conn}, nil
}

// ReadLine returns the next complete line if one is already available,
// errNotReady if the socket has nothing more to offer right now, or a
// fatal error on GUI disconnect (§7 tier 3). A partial line left over from
// a timed-out read stays in recvBuf and is prepended to the next call's
// data rather than discarded.
func (g *GUI) ReadLine() (string, error) {
	if line, ok := g.popLine(); ok {
		return line, nil
	}

	g.conn.SetReadDeadline(time.Now())
	buf := make([]byte, 4096)
	n, err := g.conn.Read(buf)
	if n > 0 {
		g.recvBuf = append(g.recvBuf, buf[:n]...)
	}
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			if line, ok := g.popLine(); ok {
				return line, nil
			}
			return "", errNotReady
		}
		return "", errors.Wrap(err, "gui disconnected")
	}

	if line, ok := g.popLine(); ok {
		return line, nil
	}
	return "", errNotReady
}

// popLine extracts and removes the first complete line from recvBuf, if any.
func (g *GUI) popLine() (string, bool) {
	idx := bytes.IndexByte(g.recvBuf, '\n')
	if idx < 0 {
		return "", false
	}
	line := g.recvBuf[:idx]
	g.recvBuf = g.recvBuf[idx+1:]
	return strings.TrimRight(string(line), "\r"), true
}

// WriteLine attempts to send one newline-terminated line within
// writeDeadline. A timed-out write returns errNotReady so the caller can
// retry on a later pass instead of blocking the main loop; any other error
// is fatal (§7 tier 3).
func (g *GUI) WriteLine(line string) error {
	g.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_, err := g.conn.Write([]byte(line + "\n"))
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return errNotReady
		}
		return errors.Wrap(err, "gui disconnected")
	}
	return nil
}

// Close releases the underlying connection.
func (g *GUI) Close() error {
	return g.conn.Close()
}
