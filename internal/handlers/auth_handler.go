package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/chatbro/backend/internal/models"
	"github.com/anonto42/chatbro/backend/internal/registry"
	"github.com/anonto42/chatbro/backend/internal/services"
	"github.com/anonto42/chatbro/backend/internal/session"
)

// AuthHandler handles authentication and profile HTTP requests for the
// local session
type AuthHandler struct {
	identity *services.IdentityService
	session  *session.Session
	registry *registry.Registry
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(identity *services.IdentityService, sess *session.Session, reg *registry.Registry) *AuthHandler {
	return &AuthHandler{identity: identity, session: sess, registry: reg}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/signin", h.SignIn)
	g.POST("/logout", h.Logout)
}

// RegisterProfileRoutes registers profile-related routes
func (h *AuthHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
}

// SignIn establishes the anonymous session for the given display name
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req models.SignInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.identity.SignIn(c.Request().Context(), req.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Logout tears down every live subscription, then ends the session.
// The ordering matters: no listener may outlive the session boundary.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.registry.UnregisterAll()
	if err := h.identity.Logout(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// GetProfile returns the signed-in user's profile
func (h *AuthHandler) GetProfile(c echo.Context) error {
	user := h.session.User()
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not signed in")
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the signed-in user's name and icon
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.identity.UpdateProfile(c.Request().Context(), req.Name, req.IconID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}
