package firebase

import (
	"context"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// App holds the initialized Firebase app, auth client and Firestore client
type App struct {
	FirebaseApp     *firebase.App
	AuthClient      *auth.Client
	FirestoreClient *firestore.Client
}

// InitFirebase initializes the Firebase application, authentication client
// and Firestore client
func InitFirebase(ctx context.Context, credentialsPath, projectID string) (*App, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("Firebase credentials path not provided")
	}

	// Check if the credentials file exists
	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("Firebase credentials file not found at %s", credentialsPath)
	}

	opt := option.WithCredentialsFile(credentialsPath)

	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	firebaseApp, err := firebase.NewApp(ctx, conf, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	firestoreClient, err := firebaseApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	log.Println("Firebase app, auth and Firestore clients initialized successfully!")
	return &App{
		FirebaseApp:     firebaseApp,
		AuthClient:      authClient,
		FirestoreClient: firestoreClient,
	}, nil
}

// Close releases the Firestore client connection
func (a *App) Close() {
	if a.FirestoreClient != nil {
		if err := a.FirestoreClient.Close(); err != nil {
			log.Printf("Error closing Firestore client: %v\n", err)
		} else {
			log.Println("Firestore client closed.")
		}
	}
}
