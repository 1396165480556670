package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/chatbro/backend/internal/localstore"
	"github.com/anonto42/chatbro/backend/internal/models"
	"github.com/anonto42/chatbro/backend/internal/registry"
	"github.com/anonto42/chatbro/backend/internal/services"
)

// ChatHandler handles HTTP requests related to the open chat
type ChatHandler struct {
	chat     *services.ChatService
	identity *services.IdentityService
	registry *registry.Registry
	local    *localstore.Store
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chat *services.ChatService, identity *services.IdentityService,
	reg *registry.Registry, local *localstore.Store) *ChatHandler {
	return &ChatHandler{chat: chat, identity: identity, registry: reg, local: local}
}

// RegisterChatRoutes registers chat-related routes
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.POST("/chats/open", h.OpenChat)
	g.POST("/chats/close", h.CloseChat)
	g.POST("/chats/message", h.SendMessage)
	g.GET("/chats/messages/stream", h.StreamMessages)
	g.GET("/chats/current", h.CurrentChat)
	g.GET("/chats/last", h.LastChat)
	g.PUT("/chats/:id/scroll", h.SaveScrollPos)
	g.GET("/chats/:id/scroll", h.GetScrollPos)
}

// OpenChat resolves the friend's profile and opens (or reuses) the chat
func (h *ChatHandler) OpenChat(c echo.Context) error {
	var req models.OpenChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	friend, err := h.identity.GetUser(c.Request().Context(), req.FriendUID)
	if err != nil {
		return httpError(err)
	}

	chatID, err := h.chat.Open(c.Request().Context(), req.FriendUID, friend)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"chatId": chatID, "friend": friend})
}

// CloseChat tears down the message subscription and clears the context
func (h *ChatHandler) CloseChat(c echo.Context) error {
	h.chat.Close()
	return c.JSON(http.StatusOK, echo.Map{"message": "chat closed"})
}

// SendMessage appends a message to the open chat
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req models.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.chat.Send(c.Request().Context(), req.Text); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "sent"})
}

// StreamMessages streams the open chat's ordered message list over SSE
func (h *ChatHandler) StreamMessages(c echo.Context) error {
	return streamEvents(c, func(send func(any)) (func(), error) {
		token, err := h.chat.WatchMessages(c.Request().Context(), func(messages []models.Message) {
			send(messages)
		})
		if err != nil {
			return nil, err
		}
		return func() { h.registry.UnregisterToken(registry.KeyChatMessages, token) }, nil
	})
}

// CurrentChat returns the open chat context, if any
func (h *ChatHandler) CurrentChat(c echo.Context) error {
	chatID, friend := h.chat.Current()
	if chatID == "" {
		return echo.NewHTTPError(http.StatusNotFound, "No active chat")
	}
	return c.JSON(http.StatusOK, echo.Map{"chatId": chatID, "friend": friend})
}

// LastChat returns the locally remembered last-active chat id
func (h *ChatHandler) LastChat(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"chatId": h.local.LastChat()})
}

// SaveScrollPos remembers the scroll position for a chat
func (h *ChatHandler) SaveScrollPos(c echo.Context) error {
	pos, err := strconv.Atoi(c.QueryParam("pos"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid scroll position")
	}
	h.local.SetScrollPos(c.Param("id"), pos)
	return c.JSON(http.StatusOK, echo.Map{"message": "saved"})
}

// GetScrollPos returns the remembered scroll position for a chat
func (h *ChatHandler) GetScrollPos(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"pos": h.local.ScrollPos(c.Param("id"))})
}
