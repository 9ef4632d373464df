// Package config loads the service settings.
//
// LOAD ORDER (later wins):
//  1. Defaults below
//  2. A .env file in the working directory, if there is one
//  3. Real environment variables
//
// godotenv.Load never overwrites a variable that is already set, which is
// what gives the real environment priority over the .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Store drivers accepted in DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds every setting the server needs.
type Config struct {
	Port            int
	DBDriver        string
	DBPath          string // SQLite file, used when DBDriver is sqlite
	DatabaseURL     string // Postgres DSN, used when DBDriver is postgres
	BcryptCost      int
	LogLevel        slog.Level
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:            3000,
		DBDriver:        DriverSQLite,
		DBPath:          "data/users.db",
		BcryptCost:      bcrypt.DefaultCost,
		LogLevel:        slog.LevelInfo,
		AllowedOrigins:  []string{"*"},
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load reads .env (if present) and the environment on top of Default.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an error.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return fromEnv()
}

func fromEnv() (Config, error) {
	cfg := Default()

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return Config{}, fmt.Errorf("config: invalid PORT %q", v)
		}
		cfg.Port = port
	}

	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.DBDriver = strings.ToLower(v)
	}
	switch cfg.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return Config{}, fmt.Errorf("config: unsupported DB_DRIVER %q (want %s or %s)",
			cfg.DBDriver, DriverSQLite, DriverPostgres)
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DBDriver == DriverPostgres && cfg.DatabaseURL == "" {
		return Config{}, errors.New("config: DATABASE_URL is required when DB_DRIVER is postgres")
	}

	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return Config{}, fmt.Errorf("config: invalid BCRYPT_COST %q (want %d..%d)",
				v, bcrypt.MinCost, bcrypt.MaxCost)
		}
		cfg.BcryptCost = cost
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		// slog.Level understands "debug", "info", "warn", "error" (any case).
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("config: invalid LOG_LEVEL %q: %w", v, err)
		}
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) == 0 {
			return Config{}, fmt.Errorf("config: invalid CORS_ALLOWED_ORIGINS %q", v)
		}
		cfg.AllowedOrigins = origins
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("config: invalid SHUTDOWN_TIMEOUT %q", v)
		}
		cfg.ShutdownTimeout = d
	}

	return cfg, nil
}
