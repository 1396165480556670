package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/chatbro/backend/internal/models"
	"github.com/anonto42/chatbro/backend/internal/registry"
	"github.com/anonto42/chatbro/backend/internal/services"
)

// FriendsHandler handles HTTP requests related to friends and friend
// requests
type FriendsHandler struct {
	pairing  *services.PairingService
	registry *registry.Registry
}

// NewFriendsHandler creates a new FriendsHandler
func NewFriendsHandler(pairing *services.PairingService, reg *registry.Registry) *FriendsHandler {
	return &FriendsHandler{pairing: pairing, registry: reg}
}

// RegisterFriendRoutes registers friend-related routes
func (h *FriendsHandler) RegisterFriendRoutes(g *echo.Group) {
	g.POST("/friends/request", h.SendFriendRequest)
	g.POST("/friends/requests/:id/accept", h.AcceptFriendRequest)
	g.DELETE("/friends/requests/:id", h.RejectFriendRequest)
	g.GET("/friends/requests/stream", h.StreamFriendRequests)
	g.GET("/friends/stream", h.StreamFriendsList)
}

// SendFriendRequest files a friend request against a 4-digit code
func (h *FriendsHandler) SendFriendRequest(c echo.Context) error {
	var req models.SendFriendRequestBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	target, err := h.pairing.SendFriendRequest(c.Request().Context(), req.Code)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"name": target.Name})
}

// AcceptFriendRequest materializes the friendship and removes the request
func (h *FriendsHandler) AcceptFriendRequest(c echo.Context) error {
	var req models.AcceptFriendRequestBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.pairing.AcceptFriendRequest(c.Request().Context(), c.Param("id"), req.FromUID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "friend request accepted"})
}

// RejectFriendRequest removes the request without creating a friendship
func (h *FriendsHandler) RejectFriendRequest(c echo.Context) error {
	if err := h.pairing.RejectFriendRequest(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "friend request rejected"})
}

// StreamFriendRequests streams the pending-request set over SSE
func (h *FriendsHandler) StreamFriendRequests(c echo.Context) error {
	return streamEvents(c, func(send func(any)) (func(), error) {
		token, err := h.pairing.WatchFriendRequests(c.Request().Context(), func(requests []models.FriendRequest) {
			send(requests)
		})
		if err != nil {
			return nil, err
		}
		return func() { h.registry.UnregisterToken(registry.KeyFriendRequests, token) }, nil
	})
}

// StreamFriendsList streams the hydrated friends list over SSE
func (h *FriendsHandler) StreamFriendsList(c echo.Context) error {
	return streamEvents(c, func(send func(any)) (func(), error) {
		token, err := h.pairing.WatchFriendsList(c.Request().Context(), func(friends []models.Friend) {
			send(friends)
		})
		if err != nil {
			return nil, err
		}
		return func() { h.registry.UnregisterToken(registry.KeyFriendsList, token) }, nil
	})
}
