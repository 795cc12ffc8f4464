// Package server initializes and runs the credential service: it selects the
// storage backends, applies database migrations, wires the session service
// into the HTTP API and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/dkuzmenko/authd/internal/logging"
	"github.com/dkuzmenko/authd/internal/server/config"
	"github.com/dkuzmenko/authd/internal/server/httpapi"
	"github.com/dkuzmenko/authd/internal/server/migrations"
	"github.com/dkuzmenko/authd/internal/server/password"
	"github.com/dkuzmenko/authd/internal/server/repositories/sessions"
	"github.com/dkuzmenko/authd/internal/server/repositories/users"
	"github.com/dkuzmenko/authd/internal/server/services"
	"github.com/dkuzmenko/authd/internal/server/token"
)

type App struct {
	config *config.Config
	logger logging.Logger
	server *httpapi.Server
	db     *sql.DB
	redis  *redis.Client
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if cfg.SecretKey == config.DefaultSecretKey {
		logger.Warn(context.Background(), "running with the default signing secret; set -s in production")
	}

	app := &App{config: cfg, logger: logger}

	userRepo, sessionRepo, err := app.initStorage()
	if err != nil {
		return nil, err
	}

	codec := token.NewCodec([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)
	svc := services.NewSessionService(userRepo, sessionRepo, codec, password.NewBcryptHasher(cfg.BcryptCost), logger)

	metrics := httpapi.NewMetrics()
	handler := httpapi.NewHandler(svc, metrics, logger, cfg.SecureCookies)
	app.server = httpapi.NewServer(cfg.EndpointAddr, httpapi.NewRouter(handler, metrics), logger)

	return app, nil
}

// initStorage opens the backends the configured store mode needs. The user
// table always lives in Postgres except in the all-in-memory dev mode; the
// refresh ledger backend is what the store flag actually selects.
func (app *App) initStorage() (users.Repository, sessions.Repository, error) {
	if app.config.SessionStore == config.StoreMemory {
		return users.NewMemoryRepository(), sessions.NewMemoryRepository(), nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}
	if err := app.migrate(db); err != nil {
		return nil, nil, fmt.Errorf("db migration error: %w", err)
	}
	app.db = db

	userRepo := users.NewPostgresRepository(db)

	if app.config.SessionStore == config.StoreRedis {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     app.config.RedisAddr,
			Password: app.config.RedisPassword,
		})
		return userRepo, sessions.NewRedisRepository(app.redis), nil
	}

	return userRepo, sessions.NewPostgresRepository(db), nil
}

func (app *App) migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, ".")
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "store", app.config.SessionStore)

	app.initSignalHandler(cancelFunc)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server failed", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown error", "error", err)
	}
	<-done

	app.close()
	app.logger.Info(context.Background(), "app stopped")
}

func (app *App) close() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "closing db", "error", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(context.Background(), "closing redis", "error", err)
		}
	}
}
