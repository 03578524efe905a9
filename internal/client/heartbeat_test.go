package client

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatDriverCadence(t *testing.T) {
	d := NewHeartbeatDriver("alice")
	now := time.Now()

	assert.True(t, d.Pending(now), "a fresh driver is immediately due")
	d.MarkSent(now)
	assert.False(t, d.Pending(now.Add(time.Millisecond)))
	assert.True(t, d.Pending(now.Add(HeartbeatPeriod)))
}

func TestHeartbeatDriverBuild(t *testing.T) {
	d := NewHeartbeatDriver("alice")
	hb := d.Build(1, 7)

	assert.Equal(t, int8(1), hb.TurnDirection)
	assert.EqualValues(t, 7, hb.NextExpectedEventNo)
	assert.Equal(t, "alice", hb.PlayerName)
	assert.NotZero(t, hb.SessionID)
}

func TestSendWithRetrySucceedsOverLoopback(t *testing.T) {
	laddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	listener, err := net.ListenUDP("udp", laddr)
	require.NoError(t, err)
	defer listener.Close()

	conn, err := net.DialUDP("udp", nil, listener.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, SendWithRetry(conn, []byte("hello")))

	buf := make([]byte, 16)
	listener.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}
