package secretwall

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-provided configuration surface.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `env:"SECRETWALL_ADDR" envDefault:":3000"`

	// SessionSecret signs the auth token cookie issued next to the session.
	SessionSecret string `env:"SECRETWALL_SESSION_SECRET"`

	// SessionTimeoutInSeconds bounds both the server-side session and the
	// auth token cookie. Defaults to one day.
	SessionTimeoutInSeconds int `env:"SECRETWALL_SESSION_TIMEOUT" envDefault:"86400"`

	// Store selects the user record backend: memory, postgres or datastore.
	Store string `env:"SECRETWALL_STORE" envDefault:"memory"`

	// DatabaseURL is the connection address for the postgres backend.
	DatabaseURL string `env:"SECRETWALL_DATABASE_URL"`

	// DatastoreProject is the project id for the datastore backend.
	DatastoreProject string `env:"SECRETWALL_DATASTORE_PROJECT"`

	// Federated provider credentials.
	GoogleClientID     string `env:"SECRETWALL_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"SECRETWALL_GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"SECRETWALL_GOOGLE_CALLBACK_URL" envDefault:"http://localhost:3000/auth/google/secrets"`
}

// LoadConfig parses the configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
