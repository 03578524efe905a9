package client

import (
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/Mrowqa/siktacka/internal/protocol"
)

// HeartbeatPeriod is how often the client sends its liveness/intent
// datagram (§4.9).
const HeartbeatPeriod = 20 * time.Millisecond

// ServerTimeout is how long the client tolerates silence from the server
// before giving up (§4.9, §5).
const ServerTimeout = 60 * time.Second

// maxSendRetries bounds outbound UDP send attempts for a single heartbeat
// before the failure escalates to fatal (§7, §9's "per-heartbeat" reading
// of the retry budget).
const maxSendRetries = 3

// HeartbeatDriver tracks send cadence and the session identity chosen once
// at startup.
type HeartbeatDriver struct {
	sessionID  uint64
	playerName string
	lastSent   time.Time
}

// NewHeartbeatDriver derives a session_id from the current wall-clock time
// in microseconds since the Unix epoch; it is not a monotonic clock reading.
func NewHeartbeatDriver(playerName string) *HeartbeatDriver {
	return &HeartbeatDriver{
		sessionID:  uint64(time.Now().UnixMicro()),
		playerName: playerName,
	}
}

// Pending reports whether a heartbeat is due.
func (d *HeartbeatDriver) Pending(now time.Time) bool {
	return now.Sub(d.lastSent) >= HeartbeatPeriod
}

// Build constructs the next heartbeat to send.
func (d *HeartbeatDriver) Build(turnDirection int8, nextEventNo uint32) *protocol.HeartBeat {
	return &protocol.HeartBeat{
		SessionID:           d.sessionID,
		TurnDirection:       turnDirection,
		NextExpectedEventNo: nextEventNo,
		PlayerName:          d.playerName,
	}
}

// MarkSent resets the cadence clock after a successful send.
func (d *HeartbeatDriver) MarkSent(now time.Time) {
	d.lastSent = now
}

// SendWithRetry writes data to conn, making at most maxSendRetries attempts
// in total before giving up (§7, §9).
func SendWithRetry(conn *net.UDPConn, data []byte) error {
	var lastErr error
	for i := 0; i < maxSendRetries; i++ {
		_, err := conn.Write(data)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return errors.Wrap(lastErr, "send failed after retries")
}
