package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/voteboard/voteboard/internal/config"
	"github.com/voteboard/voteboard/internal/domain"
)

const (
	voterSessionName  = "voter"
	voterSessionKey   = "voter_id"
	voterCookieMaxAge = 86400 * 365
)

// queueHealthChecker is the minimal Redis surface the health probe needs.
type queueHealthChecker interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

// VoteServer accepts vote submissions and enqueues them. It issues each
// client a stable, opaque voter identity via a session cookie; the pipeline
// treats that identity string as authoritative.
type VoteServer struct {
	echo         *echo.Echo
	config       *config.Config
	producer     domain.VoteQueue
	sessionStore *sessions.CookieStore
	redisClient  queueHealthChecker
}

func NewVoteServer(cfg *config.Config, producer domain.VoteQueue, redisClient queueHealthChecker) *VoteServer {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   voterCookieMaxAge,
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	s := &VoteServer{
		echo:         newEcho(),
		config:       cfg,
		producer:     producer,
		sessionStore: sessionStore,
		redisClient:  redisClient,
	}

	s.echo.POST("/vote", s.handleVote)
	s.echo.GET("/api/options", s.handleOptions)
	s.echo.GET("/healthz", s.handleHealth)

	return s
}

func (s *VoteServer) Start() error {
	return s.echo.Start(listenAddr(s.config.VotePort))
}

func (s *VoteServer) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type voteRequest struct {
	Vote string `json:"vote" form:"vote"`
}

func (s *VoteServer) handleVote(c echo.Context) error {
	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	choice, err := domain.ParseChoice(req.Vote)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "vote must be one of \"a\" or \"b\""})
	}

	voterID, err := s.ensureVoterID(c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to establish voter identity"})
	}

	event := domain.VoteEvent{VoterID: voterID, Choice: choice}
	if err := s.producer.Enqueue(c.Request().Context(), event); err != nil {
		if errors.Is(err, domain.ErrQueueUnavailable) {
			slog.Error("Vote rejected, queue unavailable", "voter_id", voterID, "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "vote queue unavailable, try again"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to record vote"})
	}

	slog.Info("Vote recorded", "voter_id", voterID, "vote", string(choice))
	return c.JSON(http.StatusAccepted, map[string]string{
		"voter_id": voterID,
		"vote":     string(choice),
	})
}

// ensureVoterID returns the voter identity from the session cookie, minting
// and persisting a fresh one on first contact.
func (s *VoteServer) ensureVoterID(c echo.Context) (string, error) {
	session, _ := s.sessionStore.Get(c.Request(), voterSessionName)

	if id, ok := session.Values[voterSessionKey].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.NewString()
	session.Values[voterSessionKey] = id
	if err := session.Save(c.Request(), c.Response()); err != nil {
		return "", err
	}
	return id, nil
}

func (s *VoteServer) handleOptions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"a": s.config.OptionA,
		"b": s.config.OptionB,
	})
}

func (s *VoteServer) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"redis":  "disconnected",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
		"redis":  "connected",
	})
}
