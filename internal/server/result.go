package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/voteboard/voteboard/internal/broadcast"
	"github.com/voteboard/voteboard/internal/config"
	"github.com/voteboard/voteboard/internal/domain"
)

// storageHealthChecker is the minimal storage surface the health probe needs.
type storageHealthChecker interface {
	Ping(ctx context.Context) error
}

// ResultServer serves the read path: the current tally as JSON, a
// server-sent-events stream, and a websocket stream. Both streams push
// complete snapshots and only on change.
type ResultServer struct {
	echo        *echo.Echo
	config      *config.Config
	tallies     domain.TallyReader
	broadcaster *broadcast.Broadcaster
	storage     storageHealthChecker
	clock       clockwork.Clock
	upgrader    websocket.Upgrader

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewResultServer(
	cfg *config.Config,
	tallies domain.TallyReader,
	broadcaster *broadcast.Broadcaster,
	storage storageHealthChecker,
	clock clockwork.Clock,
) *ResultServer {
	s := &ResultServer{
		echo:        newEcho(),
		config:      cfg,
		tallies:     tallies,
		broadcaster: broadcaster,
		storage:     storage,
		clock:       clock,
		stopCh:      make(chan struct{}),
	}

	s.echo.GET("/api/results", s.handleResults)
	s.echo.GET("/stream", s.handleStream)
	s.echo.GET("/ws", s.handleWebSocket)
	s.echo.GET("/healthz", s.handleHealth)

	return s
}

func (s *ResultServer) Start() error {
	return s.echo.Start(listenAddr(s.config.ResultPort))
}

// Shutdown ends the long-lived streams first so echo's graceful shutdown is
// not held open by viewers that never disconnect on their own.
func (s *ResultServer) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return s.echo.Shutdown(ctx)
}

func (s *ResultServer) handleResults(c echo.Context) error {
	return c.JSON(http.StatusOK, s.tallies.Current())
}

// handleStream implements the SSE push: a sequence of discrete messages, each
// a complete snapshot, transmitted only when the value changed for this
// viewer. The stream ends only on client disconnect or server shutdown.
func (s *ResultServer) handleStream(c echo.Context) error {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	ticker := s.clock.NewTicker(s.config.BroadcastInterval)
	defer ticker.Stop()

	lastSent := s.tallies.Current()
	if err := s.writeEvent(c, lastSent); err != nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return nil
		case <-ticker.Chan():
			current := s.tallies.Current()
			if current == lastSent {
				continue
			}
			if err := s.writeEvent(c, current); err != nil {
				return nil
			}
			lastSent = current
		}
	}
}

func (s *ResultServer) writeEvent(c echo.Context, tally domain.Tally) error {
	data, err := json.Marshal(tally)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "data: %s\n\n", data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}

func (s *ResultServer) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	if err := s.broadcaster.ServeConn(conn); err != nil {
		slog.Warn("Viewer session rejected", "error", err)
	}
	return nil
}

func (s *ResultServer) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.storage.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"postgres": "disconnected",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "healthy",
		"postgres": "connected",
	})
}
