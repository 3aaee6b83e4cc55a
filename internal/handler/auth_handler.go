package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/tradeflow/internal/middleware"
	"github.com/suteetoe/tradeflow/internal/service"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"github.com/suteetoe/tradeflow/prometheus"
	"go.uber.org/zap"
)

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register handles user sign-up
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromContext(c)
	log.Info("Registering new user")

	var req service.RegisterInput
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	user, err := h.auth.Register(requestContext(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

// Login exchanges credentials for an access token
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordAuthAttempt()

	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	result, err := h.auth.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		prometheus.RecordAuthError("login_failed")
		log.Warn("Login failed", zap.String("email", req.Email))
		return respondError(c, err)
	}
	prometheus.RecordAuthSuccess()

	log.Info("User logged in", zap.String("user_id", result.User.ID))
	return c.JSON(http.StatusOK, result)
}

// Me returns the caller's profile
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.auth.Profile(requestContext(c), callerFrom(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// Logout revokes the token used for this request
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, ok := middleware.GetClaimsFromContext(c)
	if !ok {
		return respondError(c, service.Unauthorized("Not authenticated"))
	}
	if err := h.auth.Logout(requestContext(c), claims); err != nil {
		return respondError(c, err)
	}
	logger.FromContext(c).Info("User logged out")
	return c.JSON(http.StatusOK, echo.Map{"message": "Successfully logged out"})
}
