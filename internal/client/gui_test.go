package client

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenTCP(t *testing.T) *net.TCPListener {
	t.Helper()
	laddr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	l, err := net.ListenTCP("tcp", laddr)
	require.NoError(t, err)
	return l
}

func TestGUIWriteLineReachesPeer(t *testing.T) {
	l := listenTCP(t)
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := l.Accept()
		accepted <- conn
	}()

	gui, err := DialGUI(l.Addr().String())
	require.NoError(t, err)
	defer gui.Close()

	peer := <-accepted
	defer peer.Close()

	require.NoError(t, gui.WriteLine("NEW_GAME 10 10 a b"))

	peer.SetReadDeadline(time.Now().Add(time.Second))
	line, err := bufio.NewReader(peer).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "NEW_GAME 10 10 a b\n", line)
}

func TestGUIReadLineReturnsNotReadyThenLine(t *testing.T) {
	l := listenTCP(t)
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := l.Accept()
		accepted <- conn
	}()

	gui, err := DialGUI(l.Addr().String())
	require.NoError(t, err)
	defer gui.Close()

	peer := <-accepted
	defer peer.Close()

	_, err = gui.ReadLine()
	assert.ErrorIs(t, err, errNotReady)

	_, writeErr := peer.Write([]byte("LEFT_KEY_DOWN\n"))
	require.NoError(t, writeErr)

	deadline := time.Now().Add(time.Second)
	var line string
	for time.Now().Before(deadline) {
		line, err = gui.ReadLine()
		if err == nil {
			break
		}
		if err != errNotReady {
			require.NoError(t, err)
		}
	}
	require.NoError(t, err)
	assert.Equal(t, "LEFT_KEY_DOWN", line)
}
