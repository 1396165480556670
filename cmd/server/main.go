package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/chatbro/backend/internal/backend"
	"github.com/anonto42/chatbro/backend/internal/localstore"
	"github.com/anonto42/chatbro/backend/internal/models"
	"github.com/anonto42/chatbro/backend/internal/registry"
	"github.com/anonto42/chatbro/backend/internal/router"
	"github.com/anonto42/chatbro/backend/internal/services"
	"github.com/anonto42/chatbro/backend/internal/session"
	"github.com/anonto42/chatbro/backend/pkg/config"
	"github.com/anonto42/chatbro/backend/pkg/firebase"
	"github.com/anonto42/chatbro/backend/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()
	ctx := context.Background()

	// Local persistence: best-effort cache of the session blob
	local := localstore.New(cfg.StateDir)
	restoredUID := ""
	if cached := local.Session(); cached != nil {
		restoredUID = cached.UID
	}

	// Select the document backend
	var store backend.Store
	var authn backend.Authenticator
	switch cfg.Backend {
	case "firestore":
		fbApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirestoreProjectID)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		defer fbApp.Close()
		store = backend.NewFirestoreStore(fbApp.FirestoreClient)
		authn = backend.NewFirebaseAuthenticator(fbApp.AuthClient, restoredUID)
	case "mongo":
		ms, err := backend.NewMongoStore(cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatalf("Failed to initialize MongoDB: %v", err)
		}
		defer ms.Close()
		store = ms
		// Mongo carries the documents; session uids stay locally minted.
		authn = backend.NewMemoryAuthenticator(restoredUID)
	case "memory":
		store = backend.NewMemoryStore()
		authn = backend.NewMemoryAuthenticator(restoredUID)
	default:
		log.Fatalf("Unknown backend %q (want firestore, mongo or memory)", cfg.Backend)
	}

	// Wire the session, registry and services
	sess := session.New()
	reg := registry.New()
	codes := services.NewCodeGenerator(store)
	identity := services.NewIdentityService(authn, store, codes, local, sess, reg)
	pairing := services.NewPairingService(store, sess, reg)
	chat := services.NewChatService(store, sess, reg, local)

	// The auth-state listener is the source of truth for a live session;
	// it fires once at startup with the restored session, if any.
	identity.WatchAuthState(ctx, func(user *models.User) {
		if user != nil {
			log.Printf("Session active for %s (code %s)\n", user.Name, user.Code)
		} else {
			log.Println("No active session")
		}
	})

	// Create Echo instance
	e := echo.New()
	router.SetupMiddleware(e)
	router.SetupRoutes(e, identity, pairing, chat, sess, reg, local)
	e.Validator = validators.NewValidator()

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
