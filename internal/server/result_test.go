package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voteboard/voteboard/internal/broadcast"
	"github.com/voteboard/voteboard/internal/config"
	"github.com/voteboard/voteboard/internal/domain"
)

type stubTallyReader struct {
	mu    sync.Mutex
	tally domain.Tally
}

func (s *stubTallyReader) Current() domain.Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tally
}

func (s *stubTallyReader) set(tally domain.Tally) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tally = tally
}

type stubStoragePinger struct {
	err error
}

func (s *stubStoragePinger) Ping(context.Context) error { return s.err }

func testResultConfig() *config.Config {
	return &config.Config{
		AppEnv:            "development",
		ResultPort:        "0",
		BroadcastInterval: 10 * time.Millisecond,
		MaxStreamClients:  10,
	}
}

func newTestResultServer(tallies *stubTallyReader, storage storageHealthChecker) *ResultServer {
	cfg := testResultConfig()
	clock := clockwork.NewRealClock()
	broadcaster := broadcast.NewBroadcaster(tallies, cfg.BroadcastInterval, cfg.MaxStreamClients, clock)
	return NewResultServer(cfg, tallies, broadcaster, storage, clock)
}

func TestResultServer_Results(t *testing.T) {
	tallies := &stubTallyReader{}
	tallies.set(domain.NewTally(2, 3))
	srv := newTestResultServer(tallies, &stubStoragePinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count_a":2,"count_b":3,"total":5}`, rec.Body.String())
}

func TestResultServer_Health(t *testing.T) {
	srv := newTestResultServer(&stubTallyReader{}, &stubStoragePinger{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	unhealthy := newTestResultServer(&stubTallyReader{}, &stubStoragePinger{err: errors.New("connection refused")})
	rec = httptest.NewRecorder()
	unhealthy.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// streamMessages pumps SSE data payloads from body into a channel so tests
// can assert both "a message arrived" and "no message arrived".
func streamMessages(body io.Reader) <-chan string {
	ch := make(chan string, 16)
	go func() {
		defer close(ch)
		reader := bufio.NewReader(body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "data: ") {
				ch <- strings.TrimPrefix(line, "data: ")
			}
		}
	}()
	return ch
}

func expectMessage(t *testing.T, ch <-chan string, timeout time.Duration) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "stream closed before a message arrived")
		return msg
	case <-time.After(timeout):
		t.Fatal("timed out waiting for SSE message")
		return ""
	}
}

func expectNoMessage(t *testing.T, ch <-chan string, window time.Duration) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if ok {
			t.Fatalf("unexpected SSE message %q", msg)
		}
	case <-time.After(window):
	}
}

func TestResultServer_StreamSendsInitialAndChangedSnapshots(t *testing.T) {
	tallies := &stubTallyReader{}
	tallies.set(domain.NewTally(1, 0))
	srv := newTestResultServer(tallies, &stubStoragePinger{})

	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	messages := streamMessages(resp.Body)

	first := expectMessage(t, messages, 2*time.Second)
	assert.JSONEq(t, `{"count_a":1,"count_b":0,"total":1}`, first)

	// Unchanged tally: nothing should arrive within several cadence windows.
	expectNoMessage(t, messages, 100*time.Millisecond)

	tallies.set(domain.NewTally(1, 2))
	second := expectMessage(t, messages, 2*time.Second)
	assert.JSONEq(t, `{"count_a":1,"count_b":2,"total":3}`, second)
}

func TestResultServer_StreamEndsOnShutdown(t *testing.T) {
	tallies := &stubTallyReader{}
	srv := newTestResultServer(tallies, &stubStoragePinger{})

	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	messages := streamMessages(resp.Body)
	expectMessage(t, messages, 2*time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(shutdownCtx))
}
