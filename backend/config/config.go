// Copyright (C) 2025 Jobathon
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"8081"`

	// StorageBackend selects "postgres" (production) or "memory" (local).
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"postgres"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`

	// RedisURL enables cross-instance message fan-out; empty runs
	// single-instance.
	RedisURL string `envconfig:"REDIS_URL"`

	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"jobathon"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// UserAPIURL points at the host platform's user API for directory
	// lookups; empty falls back to an empty static directory.
	UserAPIURL   string `envconfig:"USER_API_URL"`
	UserAPIToken string `envconfig:"USER_API_TOKEN"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads .env (when present) and the environment, then validates the
// combinations that cannot work.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.StorageBackend != "postgres" && cfg.StorageBackend != "memory" {
		return nil, errors.New("STORAGE_BACKEND must be postgres or memory")
	}
	if cfg.StorageBackend == "postgres" && cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required with the postgres backend")
	}
	return &cfg, nil
}
