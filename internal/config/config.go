package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSystemMessage is the system-prompt text assigned to a profile
// on first sign-up, and the local fallback when no profile is readable.
const DefaultSystemMessage = "Explain all concepts like I am 10 years old."

// Config holds application configuration values loaded from environment variables.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	HTTPPort        string
	TokenExpiration time.Duration

	// Completion provider
	OpenAIAPIURL string
	OpenAIAPIKey string
	LLMModel     string

	// TypingDelay is the per-character reveal delay for assistant
	// replies. Purely cosmetic.
	TypingDelay time.Duration
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file (useful for development)
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.", err)
		// Don't fail if .env is not present, might be in production
	}

	port := getEnv("HTTP_PORT", "8080")
	jwtSecret := getEnv("JWT_SECRET", "default-super-secret-key") // CHANGE THIS IN PRODUCTION!
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set.")
	}

	tokenExpStr := getEnv("JWT_EXPIRATION_HOURS", "24")
	tokenExpHours, err := strconv.Atoi(tokenExpStr)
	if err != nil {
		log.Printf("Warning: Invalid JWT_EXPIRATION_HOURS '%s', using default 24h. Error: %v", tokenExpStr, err)
		tokenExpHours = 24
	}

	openAIKey := getEnv("OPENAI_API_KEY", "")
	if openAIKey == "" {
		log.Fatal("FATAL: OPENAI_API_KEY environment variable is not set.")
	}
	openAIURL := getEnv("OPENAI_API_URL", "https://api.openai.com/v1/chat/completions")
	llmModel := getEnv("LLM_MODEL", "gpt-3.5-turbo")

	typingDelayStr := getEnv("TYPING_DELAY_MS", "5")
	typingDelayMs, err := strconv.Atoi(typingDelayStr)
	if err != nil || typingDelayMs < 0 {
		log.Printf("Warning: Invalid TYPING_DELAY_MS '%s', using default 5ms.", typingDelayStr)
		typingDelayMs = 5
	}

	cfg := &Config{
		HTTPPort:        port,
		JWTSecret:       jwtSecret,
		DatabaseURL:     dbURL,
		TokenExpiration: time.Hour * time.Duration(tokenExpHours),
		OpenAIAPIURL:    openAIURL,
		OpenAIAPIKey:    openAIKey,
		LLMModel:        llmModel,
		TypingDelay:     time.Duration(typingDelayMs) * time.Millisecond,
	}

	log.Printf("Loaded config: Port=%s, DB_URL=***, TokenExp=%s, Model=%s, TypingDelay=%s", cfg.HTTPPort, cfg.TokenExpiration, cfg.LLMModel, cfg.TypingDelay)

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
