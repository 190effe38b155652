package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/tokenauth/internal/db"
	"github.com/nkiryanov/tokenauth/internal/handlers"
	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/repository"
	"github.com/nkiryanov/tokenauth/internal/repository/memory"
	"github.com/nkiryanov/tokenauth/internal/repository/postgres"
	"github.com/nkiryanov/tokenauth/internal/repository/redisstore"
	"github.com/nkiryanov/tokenauth/internal/service/auth"
	"github.com/nkiryanov/tokenauth/internal/service/auth/tokenmanager"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger

	// Release connections on shutdown
	closers []func()
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	app := &ServerApp{ListenAddr: c.ListenAddr}

	handler, err := app.build(ctx, c)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Handler = handler

	return app, nil
}

func (s *ServerApp) build(ctx context.Context, c *Config) (http.Handler, error) {
	var err error

	// Initialize logger
	s.logger, err = logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Initialize repositories
	storage, err := s.openStorage(ctx, c)
	if err != nil {
		return nil, err
	}
	sessions, err := s.openSessionStore(ctx, c, storage)
	if err != nil {
		return nil, err
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(
		tokenmanager.Config{
			SecretKey:  c.SecretKey,
			Alg:        c.SigningAlg,
			AccessTTL:  c.AccessTTL,
			RefreshTTL: c.RefreshTTL,
		},
		storage.User(),
		sessions,
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	authService, err := auth.NewService(auth.Config{Logger: s.logger}, tokenManager, storage.User(), sessions)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	return handlers.NewRouter(
		authService,
		handlers.SessionCookie{Name: c.CookieName, Secure: c.CookieSecure()},
		s.logger,
	), nil
}

func (s *ServerApp) openStorage(ctx context.Context, c *Config) (repository.Storage, error) {
	switch c.Storage {
	case BackendMemory:
		s.logger.Warn("memory storage is used, all data is lost on restart")
		return memory.NewStorage(), nil
	case BackendPostgres:
		// Connect to the database and run migrations
		pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		return postgres.NewStorage(pool), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", c.Storage)
	}
}

func (s *ServerApp) openSessionStore(ctx context.Context, c *Config, storage repository.Storage) (repository.SessionRepo, error) {
	switch c.SessionStore {
	case BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		s.closers = append(s.closers, func() { _ = rdb.Close() })

		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		return redisstore.NewSessionRepo(rdb, storage.User()), nil
	case c.Storage:
		// Sessions are kept next to users
		return storage.Session(), nil
	default:
		return nil, fmt.Errorf("session store %q can't be used with storage %q", c.SessionStore, c.Storage)
	}
}

// Close releases db and redis connections
func (s *ServerApp) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
