// Package server wires configuration, storage, the authentication service
// and both transports into a runnable application with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/memberauth/internal/logging"
	"github.com/dmitrijs2005/memberauth/internal/server/auth"
	"github.com/dmitrijs2005/memberauth/internal/server/config"
	"github.com/dmitrijs2005/memberauth/internal/server/httpapi"
	"github.com/dmitrijs2005/memberauth/internal/server/password"
	"github.com/dmitrijs2005/memberauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/memberauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/memberauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/memberauth/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/memberauth/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

// seams for tests
var (
	sqlOpen        = sql.Open
	newRedisClient = func(addr string) redis.UniversalClient {
		return redis.NewClient(&redis.Options{Addr: addr})
	}
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       redis.UniversalClient
	manager     repomanager.RepositoryManager
	tokens      refreshtokens.Repository
	authService *services.AuthService
}

// NewApp validates c and builds every dependency. Log output goes to w.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger, err := logging.NewJSONLogger(w, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger}

	if err := app.initStorage(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.tokens, err = app.refreshTokenRepository(ctx)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	hasher, err := password.New(c.PasswordHashAlgorithm, c.PasswordHashCost)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("password hasher init error: %w", err)
	}

	issuer, err := auth.NewIssuer([]byte(c.SecretKey), c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("token issuer init error: %w", err)
	}

	app.authService = services.NewAuthService(app.manager.Members(app.db), app.tokens, issuer, hasher, logger)
	return app, nil
}

// initStorage opens PostgreSQL and applies migrations, or falls back to
// in-process stores when no DSN is configured.
func (app *App) initStorage(ctx context.Context) error {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database DSN, members are kept in memory")
		app.manager = repomanager.NewInMemoryRepositoryManager()
		return nil
	}

	db, err := sqlOpen("pgx", app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}

	app.manager = repomanager.NewPostgresRepositoryManager()
	if err := app.manager.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}
	return nil
}

func (app *App) refreshTokenRepository(ctx context.Context) (refreshtokens.Repository, error) {
	switch app.config.RefreshStore {
	case config.RefreshStoreRedis:
		client := newRedisClient(app.config.RedisAddr)
		app.redis = client
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping error: %w", err)
		}
		return refreshtokens.NewRedisRepository(client), nil
	case config.RefreshStoreMemory:
		if app.db == nil {
			return app.manager.RefreshTokens(nil), nil
		}
		return memory.NewRefreshTokenRepository(), nil
	default:
		return app.manager.RefreshTokens(app.db), nil
	}
}

// Reset removes every refresh token and member. Tokens go first so that a
// token store outside the database is never left pointing at deleted members.
func (app *App) Reset(ctx context.Context) error {
	if err := app.tokens.DeleteAll(ctx); err != nil {
		return fmt.Errorf("reset refresh tokens: %w", err)
	}
	return app.manager.Reset(ctx, app.db)
}

func (app *App) AuthService() *services.AuthService {
	return app.authService
}

func (app *App) Close() error {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) error {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
		return err
	}
	return nil
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) error {

	h := httpapi.NewHandler(app.authService, app.logger, app.config.SecureCookies)
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, h, app.logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		app.logger.Info(ctx, "Stopping HTTP server...")
		if err := s.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	if err := s.ListenAndServe(); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
		return err
	}
	return nil
}

// Run serves both transports until ctx is cancelled, a termination signal
// arrives or one of the servers fails. Storage is closed before it returns.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(start func(context.Context, context.CancelFunc) error) {
		defer wg.Done()
		if err := start(ctx, cancelFunc); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	wg.Add(2)
	go run(app.startGRPCServer)
	go run(app.startHTTPServer)

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
	errs = append(errs, app.Close())
	return errors.Join(errs...)
}
