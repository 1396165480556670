package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	Env                     string
	Backend                 string // "firestore", "mongo" or "memory"
	FirebaseCredentialsPath string
	FirestoreProjectID      string
	MongoURI                string
	MongoDatabase           string
	StateDir                string
}

func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		Backend:                 getEnv("BACKEND", "firestore"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json"),
		FirestoreProjectID:      getEnv("FIRESTORE_PROJECT_ID", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "chatbro"),
		StateDir:                getEnv("STATE_DIR", "./.chatbro"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
