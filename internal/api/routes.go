package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/zinohome/cozychat-voice/adapters/openai"
	"github.com/zinohome/cozychat-voice/domain/entities"
	"github.com/zinohome/cozychat-voice/domain/repositories"
	"github.com/zinohome/cozychat-voice/internal/audio"
	"github.com/zinohome/cozychat-voice/internal/auth"
	"github.com/zinohome/cozychat-voice/usecase"
)

// maxClipSize bounds uploaded voice clips at roughly two minutes of
// mono PCM16 at 24 kHz.
const maxClipSize = 6 << 20

// Server holds the gateway's dependencies and registers its routes
type Server struct {
	users         repositories.UserRepository
	personalities repositories.PersonalityRepository
	sessions      repositories.SessionRepository
	clips         *usecase.VoiceClipService
	authenticator *auth.Authenticator
	realtime      *openai.RealtimeSessions
	logger        *zap.Logger
}

func NewServer(
	users repositories.UserRepository,
	personalities repositories.PersonalityRepository,
	sessions repositories.SessionRepository,
	clips *usecase.VoiceClipService,
	authenticator *auth.Authenticator,
	realtime *openai.RealtimeSessions,
	logger *zap.Logger,
) *Server {
	return &Server{
		users:         users,
		personalities: personalities,
		sessions:      sessions,
		clips:         clips,
		authenticator: authenticator,
		realtime:      realtime,
		logger:        logger,
	}
}

// InitRoutes initializes all API routes
func (s *Server) InitRoutes(e *echo.Echo) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "cozychat-gateway",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// User Management APIs
	v1.POST("/users/register", s.userRegister)
	v1.POST("/users/login", s.userLogin)

	// Authenticated APIs
	authed := v1.Group("", s.requireUser)
	authed.GET("/personalities", s.listPersonalities)
	authed.GET("/sessions", s.listSessions)
	authed.GET("/sessions/:id", s.getSession)
	authed.DELETE("/sessions/:id", s.deleteSession)
	authed.POST("/sessions/:id/voice-clips", s.uploadVoiceClip)
	authed.POST("/realtime/sessions", s.mintRealtimeSession)
}

// requireUser validates the bearer token and stores the user id on the
// request context.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var token string
		authHeader := c.Request().Header.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
		if token == "" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "JWT token is required in Authorization header",
			})
		}

		claims, err := s.authenticator.ValidateToken(token)
		if err != nil {
			s.logger.Warn("Request rejected: invalid token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired JWT token",
			})
		}

		c.Set("userID", claims.UserID)
		return next(c)
	}
}

func (s *Server) userRegister(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Email == "" || req.Name == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Email and name are required",
		})
	}

	user := &entities.User{Email: req.Email, Name: req.Name}
	if err := s.users.Create(c.Request().Context(), user); err != nil {
		s.logger.Warn("User registration failed", zap.String("email", req.Email), zap.Error(err))
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "registration_failed",
			Message: err.Error(),
		})
	}

	return s.respondWithToken(c, user)
}

func (s *Server) userLogin(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	user, err := s.users.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Unknown account",
		})
	}

	return s.respondWithToken(c, user)
}

func (s *Server) respondWithToken(c echo.Context, user *entities.User) error {
	token, expiresAt, err := s.authenticator.GenerateUserToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("Failed to generate user token", zap.String("userID", user.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}
	return c.JSON(http.StatusOK, AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
	})
}

func (s *Server) listPersonalities(c echo.Context) error {
	personalities, err := s.personalities.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error",
		})
	}
	return c.JSON(http.StatusOK, personalities)
}

func (s *Server) listSessions(c echo.Context) error {
	userID := c.Get("userID").(string)

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	sessions, err := s.sessions.ListByUserID(c.Request().Context(), userID, limit)
	if err != nil {
		s.logger.Error("Failed to list sessions", zap.String("userID", userID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error",
		})
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) getSession(c echo.Context) error {
	session, err := s.loadOwnedSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) deleteSession(c echo.Context) error {
	session, err := s.loadOwnedSession(c)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(c.Request().Context(), session.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error",
		})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) uploadVoiceClip(c echo.Context) error {
	session, err := s.loadOwnedSession(c)
	if err != nil {
		return err
	}

	durationMs, _ := strconv.ParseInt(c.QueryParam("duration_ms"), 10, 64)
	sampleRate, _ := strconv.Atoi(c.QueryParam("sample_rate"))
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	wav, err := io.ReadAll(io.LimitReader(c.Request().Body, maxClipSize))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Could not read clip body",
		})
	}

	clip := &audio.Clip{
		WAV:        wav,
		Duration:   time.Duration(durationMs) * time.Millisecond,
		SampleRate: sampleRate,
	}

	message, err := s.clips.SendClip(c.Request().Context(), session.ID, clip)
	if err != nil {
		s.logger.Warn("Voice clip rejected", zap.String("sessionID", session.ID), zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "clip_rejected",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, VoiceClipResponse{
		MessageID:  message.ID,
		Content:    message.Content,
		DurationMs: message.DurationMs,
	})
}

func (s *Server) mintRealtimeSession(c echo.Context) error {
	var req RealtimeSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	mint := openai.MintRequest{}
	if req.PersonalityID != "" {
		personality, err := s.personalities.GetByID(c.Request().Context(), req.PersonalityID)
		if err != nil {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "unknown_personality",
				Message: "Personality not found",
			})
		}
		mint.Voice = personality.Voice
		mint.Instructions = personality.SystemPrompt
	}

	secret, err := s.realtime.Mint(c.Request().Context(), mint)
	if err != nil {
		s.logger.Error("Failed to mint realtime session", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "realtime_unavailable",
			Message: "Could not create a realtime session",
		})
	}

	return c.JSON(http.StatusOK, RealtimeSessionResponse{
		ClientSecret: secret.Value,
		ExpiresAt:    secret.ExpiresAt,
		BaseURL:      secret.BaseURL,
	})
}

// loadOwnedSession fetches the :id session and verifies it belongs to
// the authenticated user.
func (s *Server) loadOwnedSession(c echo.Context) (*entities.Session, error) {
	userID := c.Get("userID").(string)

	session, err := s.sessions.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	if session.UserID != userID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "Session belongs to another user")
	}
	return session, nil
}
