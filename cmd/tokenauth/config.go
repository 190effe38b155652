package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/tokenauth/internal/handlers"
	"github.com/nkiryanov/tokenauth/internal/logger"
)

// Storage backends
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

// Secure cookie modes. Auto means secure in production only
const (
	SecureCookieAuto = "auto"
	SecureCookieOn   = "true"
	SecureCookieOff  = "false"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultStorage      = BackendPostgres
	defaultSessionStore = BackendPostgres
	defaultSigningAlg   = "HS256"
	defaultAccessTTL    = 30 * time.Minute
	defaultRefreshTTL   = 24 * time.Hour
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Environment: dev or prod
	Environment string

	// Database to connect to
	DatabaseDSN string

	// Where users are kept: postgres or memory
	Storage string

	// Where refresh session ids are kept: postgres, redis or memory
	SessionStore string

	// Redis address, used if session store is redis
	RedisAddr string

	// Secret key
	// Tokens are signed with it and subject reference key is derived from it
	SecretKey string

	// JWT MAC algorithm: HS256, HS384 or HS512
	SigningAlg string

	// Access and refresh token lifetimes
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Refresh token cookie
	CookieName   string
	SecureCookie string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:     defaultLoggingLevel,
		ListenAddr:   defaultListenAddr,
		Environment:  defaultEnvironment,
		Storage:      defaultStorage,
		SessionStore: defaultSessionStore,
		SigningAlg:   defaultSigningAlg,
		AccessTTL:    defaultAccessTTL,
		RefreshTTL:   defaultRefreshTTL,
		CookieName:   handlers.DefaultSessionCookieName,
		SecureCookie: SecureCookieAuto,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":   setString(&c.ListenAddr),
		"DATABASE_URI":  setString(&c.DatabaseDSN),
		"SECRET_KEY":    setString(&c.SecretKey),
		"LOG_LEVEL":     setString(&c.LogLevel),
		"ENVIRONMENT":   setString(&c.Environment),
		"STORAGE":       setString(&c.Storage),
		"SESSION_STORE": setString(&c.SessionStore),
		"REDIS_ADDRESS": setString(&c.RedisAddr),
		"SIGNING_ALG":   setString(&c.SigningAlg),
		"ACCESS_TTL":    setDuration(&c.AccessTTL),
		"REFRESH_TTL":   setDuration(&c.RefreshTTL),
		"COOKIE_NAME":   setString(&c.CookieName),
		"SECURE_COOKIE": setString(&c.SecureCookie),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("tokenauth", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.Storage, "storage", c.Storage, "User storage (postgres, memory)")
	fs.StringVar(&c.SessionStore, "session-store", c.SessionStore, "Refresh session store (postgres, redis, memory)")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address")
	fs.StringVar(&c.SigningAlg, "signing-alg", c.SigningAlg, "Token signing algorithm (HS256, HS384, HS512)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.StringVar(&c.CookieName, "cookie-name", c.CookieName, "Refresh token cookie name")
	fs.StringVar(&c.SecureCookie, "secure-cookie", c.SecureCookie, "Send refresh cookie over https only (auto, true, false)")

	return fs.Parse(args)
}

// Validate checks options combination is usable
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.SecretKey != "", "secret key must be set")
	check(slices.Contains([]string{logger.EnvDev, logger.EnvProduction}, c.Environment), "unknown environment %q", c.Environment)
	check(slices.Contains([]string{BackendPostgres, BackendMemory}, c.Storage), "unknown storage %q", c.Storage)
	check(slices.Contains([]string{BackendPostgres, BackendRedis, BackendMemory}, c.SessionStore), "unknown session store %q", c.SessionStore)
	check(c.Storage == BackendPostgres || c.SessionStore != BackendPostgres, "postgres session store requires postgres storage")
	check(c.DatabaseDSN != "" || c.Storage != BackendPostgres, "database DSN must be set for postgres storage")
	check(c.RedisAddr != "" || c.SessionStore != BackendRedis, "redis address must be set for redis session store")
	check(slices.Contains([]string{"HS256", "HS384", "HS512"}, c.SigningAlg), "unsupported signing algorithm %q", c.SigningAlg)
	check(c.AccessTTL > 0 && c.RefreshTTL > 0, "token lifetimes must be positive")
	check(c.CookieName != "", "cookie name must be set")
	check(slices.Contains([]string{SecureCookieAuto, SecureCookieOn, SecureCookieOff}, c.SecureCookie), "unknown secure cookie mode %q", c.SecureCookie)

	return errors.Join(errs...)
}

func (c *Config) CookieSecure() bool {
	switch c.SecureCookie {
	case SecureCookieOn:
		return true
	case SecureCookieOff:
		return false
	default:
		return c.Environment == logger.EnvProduction
	}
}
