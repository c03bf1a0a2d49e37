package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/entities"
	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
	"github.com/aiandbotsgalore/bigsnuggles-voice/internal/auth"
	"github.com/aiandbotsgalore/bigsnuggles-voice/internal/websocket"
	"github.com/aiandbotsgalore/bigsnuggles-voice/usecase"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, registry *usecase.Registry, store repositories.VoiceSessionStore, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "bigsnuggles-voice",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Development token issuance. A real deployment would put a proper
	// login flow in front of this.
	v1.POST("/auth/token", func(c echo.Context) error {
		return issueToken(c, logger)
	})

	// Voice session APIs
	v1.POST("/voice-sessions", func(c echo.Context) error {
		return createVoiceSession(c, registry, store, logger)
	})
	v1.GET("/voice-sessions/:id", func(c echo.Context) error {
		return getVoiceSession(c, store, logger)
	})

	// WebSocket endpoint. Authentication happens in-protocol via the
	// auth message, so the upgrade itself is open.
	e.GET("/ws", func(c echo.Context) error {
		return websocket.Serve(hub, c, logger)
	})
}

func issueToken(c echo.Context, logger *zap.Logger) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "User ID is required",
		})
	}

	token, err := auth.GenerateUserToken(req.UserID)
	if err != nil {
		logger.Error("Failed to generate user token",
			zap.String("userID", req.UserID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		UserID:    req.UserID,
	})
}

func createVoiceSession(c echo.Context, registry *usecase.Registry, store repositories.VoiceSessionStore, logger *zap.Logger) error {
	userID, errResp := authenticatedUser(c)
	if errResp != nil {
		return c.JSON(http.StatusUnauthorized, *errResp)
	}

	var req CreateVoiceSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	mode := entities.PersonalityMode(req.PersonalityMode)
	if req.PersonalityMode == "" {
		mode = entities.PersonalityCuddly
	}

	session := entities.NewVoiceSession(userID, mode)
	if err := session.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_session",
			Message: err.Error(),
		})
	}

	if store != nil {
		if err := store.Create(c.Request().Context(), session); err != nil {
			logger.Error("Failed to persist voice session",
				zap.String("sessionID", session.ID),
				zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "persistence_failed",
				Message: "Failed to store voice session",
			})
		}
	}

	if _, err := registry.Register(c.Request().Context(), session); err != nil {
		logger.Error("Failed to register voice session",
			zap.String("sessionID", session.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "registration_failed",
			Message: "Failed to register voice session",
		})
	}

	logger.Info("Voice session created",
		zap.String("sessionID", session.ID),
		zap.String("userID", userID),
		zap.String("personalityMode", string(mode)))

	return c.JSON(http.StatusCreated, toSessionResponse(session))
}

func getVoiceSession(c echo.Context, store repositories.VoiceSessionStore, logger *zap.Logger) error {
	userID, errResp := authenticatedUser(c)
	if errResp != nil {
		return c.JSON(http.StatusUnauthorized, *errResp)
	}

	if store == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Voice session not found",
		})
	}

	session, err := store.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Voice session not found",
		})
	}

	// Sessions are only visible to their owner
	if session.OwnerUserID != userID {
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Voice session belongs to another user",
		})
	}

	return c.JSON(http.StatusOK, toSessionResponse(session))
}

// authenticatedUser extracts and validates the bearer token, returning the
// user ID or an error response to send back.
func authenticatedUser(c echo.Context) (string, *ErrorResponse) {
	authHeader := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", &ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		}
	}

	claims, err := auth.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return "", &ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		}
	}

	return claims.UserID, nil
}

func toSessionResponse(session *entities.VoiceSession) VoiceSessionResponse {
	return VoiceSessionResponse{
		ID:              session.ID,
		OwnerUserID:     session.OwnerUserID,
		PersonalityMode: string(session.PersonalityMode),
		Status:          string(session.Status),
		Audio:           session.Audio,
		CreatedAt:       session.CreatedAt,
	}
}
