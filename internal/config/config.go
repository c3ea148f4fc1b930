package config

import (
	"os"
	"strings"
)

// Store captures how the contacts database is reached.
type Store struct {
	// Driver is "sqlite" for the embedded file store or "mysql".
	Driver   string
	Path     string
	User     string
	Password string
	Host     string
	Name     string
}

// Config is the configuration of the contacts service.
type Config struct {
	Port        string
	Store       Store
	LogLevel    string
	SeedSamples bool
	GinLogging  bool
}

// FromEnv builds a Config from environment variables, falling back to defaults for a local
// embedded store.
//
// Usage example:
// > STORE_DRIVER=mysql DBHOST=localhost DBUSER=dirk DBPWD=bullo92 PORT=8080 go run main.go
func FromEnv() Config {
	return Config{
		Port: getenv("PORT", "8080"),
		Store: Store{
			Driver:   strings.ToLower(getenv("STORE_DRIVER", "sqlite")),
			Path:     getenv("STORE_PATH", "Database.sqlite"),
			User:     os.Getenv("DBUSER"),
			Password: os.Getenv("DBPWD"),
			Host:     os.Getenv("DBHOST"),
			Name:     getenv("DBNAME", "test"),
		},
		LogLevel:    getenv("LOG_LEVEL", "info"),
		SeedSamples: !strings.EqualFold(os.Getenv("SEED_SAMPLES"), "false"),
		GinLogging:  !strings.EqualFold(os.Getenv("GIN_LOGGING"), "off"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
