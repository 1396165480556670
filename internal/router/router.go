package router

import (
	"log"

	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/anonto42/chatbro/backend/internal/handlers"
	"github.com/anonto42/chatbro/backend/internal/localstore"
	"github.com/anonto42/chatbro/backend/internal/registry"
	"github.com/anonto42/chatbro/backend/internal/services"
	"github.com/anonto42/chatbro/backend/internal/session"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, identity *services.IdentityService, pairing *services.PairingService,
	chat *services.ChatService, sess *session.Session, reg *registry.Registry, local *localstore.Store) {

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	authHandler := handlers.NewAuthHandler(identity, sess, reg)
	friendsHandler := handlers.NewFriendsHandler(pairing, reg)
	chatHandler := handlers.NewChatHandler(chat, identity, reg, local)

	authGroup := e.Group("/api/v1/auth")
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	api := e.Group("/api/v1")

	authHandler.RegisterProfileRoutes(api)
	log.Println("Profile routes configured.")

	friendsHandler.RegisterFriendRoutes(api)
	log.Println("Friend routes configured.")

	chatHandler.RegisterChatRoutes(api)
	log.Println("Chat routes configured.")

	log.Println("All routes configured.")
}
