package broadcast

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/voteboard/voteboard/internal/domain"
	"github.com/voteboard/voteboard/internal/metrics"
)

// Broadcaster tracks connected viewers so shutdown can close every stream
// with a proper close frame. Sessions themselves run independently; the
// registry lock is held only for map updates.
type Broadcaster struct {
	tallies    domain.TallyReader
	clock      clockwork.Clock
	interval   time.Duration
	maxClients int

	mu      sync.Mutex
	viewers map[*viewer]struct{}
	stopped bool
}

func NewBroadcaster(tallies domain.TallyReader, interval time.Duration, maxClients int, clock clockwork.Clock) *Broadcaster {
	return &Broadcaster{
		tallies:    tallies,
		clock:      clock,
		interval:   interval,
		maxClients: maxClients,
		viewers:    make(map[*viewer]struct{}),
	}
}

// ServeConn runs a push session on conn. It blocks until the viewer
// disconnects or the broadcaster stops, and always closes the connection.
func (b *Broadcaster) ServeConn(conn *websocket.Conn) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("broadcaster is shutting down")
	}
	if len(b.viewers) >= b.maxClients {
		b.mu.Unlock()
		_ = conn.Close()
		metrics.BroadcasterConnectionsRejected.Inc()
		return fmt.Errorf("max stream clients (%d) reached", b.maxClients)
	}

	v := newViewer(conn, b.tallies, b.interval, b.clock)
	b.viewers[v] = struct{}{}
	clientCount := len(b.viewers)
	b.mu.Unlock()

	metrics.BroadcasterConnectedClients.Set(float64(clientCount))
	slog.Debug("Viewer connected", "total_clients", clientCount)

	// Block reading until the client goes away. Incoming payloads are
	// ignored; the read loop exists to process pongs and detect disconnect.
	b.readUntilClosed(conn)

	b.mu.Lock()
	delete(b.viewers, v)
	remaining := len(b.viewers)
	b.mu.Unlock()

	v.stop()
	metrics.BroadcasterConnectedClients.Set(float64(remaining))
	slog.Debug("Viewer disconnected", "total_clients", remaining)
	return nil
}

func (b *Broadcaster) readUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount returns the number of connected viewers.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.viewers)
}

// Stop closes every viewer stream with a close frame. New connections are
// rejected afterwards.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	b.stopped = true
	viewers := make([]*viewer, 0, len(b.viewers))
	for v := range b.viewers {
		viewers = append(viewers, v)
	}
	b.viewers = make(map[*viewer]struct{})
	b.mu.Unlock()

	slog.Info("Broadcaster shutting down", "clients", len(viewers))
	for _, v := range viewers {
		v.stopGraceful("Server shutting down")
	}
	metrics.BroadcasterConnectedClients.Set(0)
	slog.Info("Broadcaster shutdown complete", "disconnected_clients", len(viewers))
}
