package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	Amazon    AmazonConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// AmazonConfig holds Selling Partner API credentials and endpoints
type AmazonConfig struct {
	SellerID      string
	ClientID      string
	ClientSecret  string
	RefreshToken  string
	MarketplaceID string
	Endpoint      string // SP-API endpoint, e.g. https://sellingpartnerapi-na.amazon.com
	AuthEndpoint  string // LWA token exchange endpoint
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3001"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "inventory_advisor"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Amazon: AmazonConfig{
			SellerID:      os.Getenv("AMAZON_SELLER_ID"),
			ClientID:      os.Getenv("AMAZON_CLIENT_ID"),
			ClientSecret:  os.Getenv("AMAZON_CLIENT_SECRET"),
			RefreshToken:  os.Getenv("AMAZON_REFRESH_TOKEN"),
			MarketplaceID: getEnv("AMAZON_MARKETPLACE_ID", "ATVPDKIKX0DER"),
			Endpoint:      getEnv("AMAZON_SP_API_ENDPOINT", "https://sellingpartnerapi-na.amazon.com"),
			AuthEndpoint:  getEnv("AMAZON_AUTH_ENDPOINT", "https://api.amazon.com/auth/o2/token"),
		},
	}, nil
}

// Validate checks that the credentials required for a sync run are present
func (a AmazonConfig) Validate() error {
	if a.ClientID == "" || a.ClientSecret == "" {
		return fmt.Errorf("AMAZON_CLIENT_ID and AMAZON_CLIENT_SECRET are required")
	}
	if a.RefreshToken == "" {
		return fmt.Errorf("AMAZON_REFRESH_TOKEN is required")
	}
	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
