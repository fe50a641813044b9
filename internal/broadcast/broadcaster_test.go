package broadcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voteboard/voteboard/internal/domain"
)

type stubTallies struct {
	mu    sync.Mutex
	tally domain.Tally
}

func (s *stubTallies) Current() domain.Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tally
}

func (s *stubTallies) set(tally domain.Tally) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tally = tally
}

var testUpgrader = websocket.Upgrader{}

func newTestServer(t *testing.T, b *Broadcaster) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = b.ServeConn(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readTally(t *testing.T, conn *websocket.Conn, timeout time.Duration) (domain.Tally, error) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return domain.Tally{}, err
	}
	var tally domain.Tally
	require.NoError(t, json.Unmarshal(data, &tally))
	return tally, nil
}

func TestBroadcaster_NewViewerGetsInitialSnapshot(t *testing.T) {
	tallies := &stubTallies{}
	tallies.set(domain.NewTally(0, 0))
	b := NewBroadcaster(tallies, 10*time.Millisecond, 10, clockwork.NewRealClock())
	defer b.Stop()

	conn := dial(t, newTestServer(t, b))

	tally, err := readTally(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{CountA: 0, CountB: 0, Total: 0}, tally,
		"a fresh viewer receives the complete current snapshot, even all-zero")
}

func TestBroadcaster_ChangeOnlyPush(t *testing.T) {
	tallies := &stubTallies{}
	tallies.set(domain.NewTally(1, 0))
	b := NewBroadcaster(tallies, 10*time.Millisecond, 10, clockwork.NewRealClock())
	defer b.Stop()

	conn := dial(t, newTestServer(t, b))

	first, err := readTally(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, domain.NewTally(1, 0), first)

	// Snapshot unchanged: nothing arrives within several cadence windows.
	_, err = readTally(t, conn, 100*time.Millisecond)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline"),
		"expected a read timeout while the tally is unchanged, got: %v", err)

	tallies.set(domain.NewTally(1, 1))
	second, err := readTally(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, domain.NewTally(1, 1), second)
}

func TestBroadcaster_MessagesAreSelfContained(t *testing.T) {
	tallies := &stubTallies{}
	tallies.set(domain.NewTally(4, 2))
	b := NewBroadcaster(tallies, 10*time.Millisecond, 10, clockwork.NewRealClock())
	defer b.Stop()

	conn := dial(t, newTestServer(t, b))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"count_a":4,"count_b":2,"total":6}`, string(data))
}

func TestBroadcaster_StopClosesViewers(t *testing.T) {
	tallies := &stubTallies{}
	b := NewBroadcaster(tallies, 10*time.Millisecond, 10, clockwork.NewRealClock())

	conn := dial(t, newTestServer(t, b))

	// Drain the initial snapshot first.
	_, err := readTally(t, conn, 2*time.Second)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return b.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	b.Stop()
	assert.Equal(t, 0, b.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
		"expected a normal close frame, got: %v", err)
}

func TestBroadcaster_RejectsWhenFull(t *testing.T) {
	tallies := &stubTallies{}
	b := NewBroadcaster(tallies, 10*time.Millisecond, 1, clockwork.NewRealClock())
	defer b.Stop()
	srv := newTestServer(t, b)

	first := dial(t, srv)
	_, err := readTally(t, first, 2*time.Second)
	require.NoError(t, err)

	second := dial(t, srv)
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = second.ReadMessage()
	assert.Error(t, err, "second viewer should be disconnected immediately")

	assert.Equal(t, 1, b.ClientCount())
}
