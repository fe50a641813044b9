package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/voteboard/voteboard/internal/domain"
	"github.com/voteboard/voteboard/internal/metrics"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// viewer is one connected client's push session. It owns all writes to its
// connection: snapshot messages, pings, and the final close frame.
type viewer struct {
	conn     *websocket.Conn
	clock    clockwork.Clock
	tallies  domain.TallyReader
	interval time.Duration

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newViewer(conn *websocket.Conn, tallies domain.TallyReader, interval time.Duration, clock clockwork.Clock) *viewer {
	v := &viewer{
		conn:     conn,
		clock:    clock,
		tallies:  tallies,
		interval: interval,
		done:     make(chan struct{}),
	}
	v.configurePongHandler()
	v.wg.Add(1)
	go v.run()
	return v
}

func (v *viewer) run() {
	defer v.wg.Done()

	ticker := v.clock.NewTicker(v.interval)
	defer ticker.Stop()

	pinger := v.clock.NewTicker(pingInterval)
	defer pinger.Stop()

	// A fresh viewer gets the current snapshot unconditionally, so it has a
	// complete picture before the first change.
	lastSent := v.tallies.Current()
	if !v.send(lastSent) {
		return
	}

	for {
		select {
		case <-ticker.Chan():
			current := v.tallies.Current()
			if current == lastSent {
				continue
			}
			if !v.send(current) {
				return
			}
			lastSent = current
		case <-pinger.Chan():
			v.updateWriteDeadline()
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-v.done:
			return
		}
	}
}

// send transmits one complete snapshot; false means the connection is gone.
func (v *viewer) send(tally domain.Tally) bool {
	data, err := json.Marshal(tally)
	if err != nil {
		return false
	}

	v.updateWriteDeadline()
	if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}

	metrics.BroadcasterMessagesSentTotal.Inc()
	return true
}

func (v *viewer) stop() {
	v.stopOnce.Do(func() {
		close(v.done)
		_ = v.conn.Close()
	})
	v.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing. The session
// goroutine exits first so the close frame is never a concurrent write.
func (v *viewer) stopGraceful(reason string) {
	v.stopOnce.Do(func() {
		close(v.done)
		v.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		v.updateWriteDeadline()
		_ = v.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = v.conn.Close()
	})
}

func (v *viewer) configurePongHandler() {
	v.updateReadDeadline()
	v.conn.SetPongHandler(func(string) error {
		v.updateReadDeadline()
		return nil
	})
}

func (v *viewer) updateWriteDeadline() {
	_ = v.conn.SetWriteDeadline(v.clock.Now().Add(writeDeadline))
}

func (v *viewer) updateReadDeadline() {
	_ = v.conn.SetReadDeadline(v.clock.Now().Add(pongDeadline))
}
