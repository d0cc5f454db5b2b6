package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-strideup/internal/config"
	"backend-strideup/internal/db"
	"backend-strideup/internal/events"
	"backend-strideup/internal/logger"
	"backend-strideup/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	newLogger       func(mode string) (*logger.Logger, error)
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	migrate         func(context.Context, db.Querier, *logger.Logger) error
	connectRedis    func(config.Config) *redis.Client
	connectEvents   func(config.Config, *logger.Logger) (events.Publisher, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, events.Publisher, *logger.Logger, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		newLogger:       logger.New,
		connectPostgres: db.ConnectPostgres,
		migrate:         db.Migrate,
		connectRedis:    db.ConnectRedis,
		connectEvents:   connectEvents,
		notify:          signal.Notify,
		run:             Run,
	}
}

// connectEvents falls back to dropping events when no broker is configured.
func connectEvents(cfg config.Config, l *logger.Logger) (events.Publisher, error) {
	if cfg.RabbitMQURL == "" {
		return events.Noop{}, nil
	}
	return events.Dial(cfg.RabbitMQURL, events.DefaultExchange, l)
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	l, err := deps.newLogger(cfg.LogMode)
	if err != nil {
		log.Printf("logger init failed: %v", err)
		l = logger.Nop()
	}
	defer l.Sync()

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		l.Error("postgres connection failed", "error", err)
	}
	if pg != nil && cfg.RunMigrations {
		if err := deps.migrate(context.Background(), pg, l); err != nil {
			l.Error("migrations failed", "error", err)
		}
	}

	rdb := deps.connectRedis(cfg)

	pub, err := deps.connectEvents(cfg, l)
	if err != nil {
		l.Warn("event broker unavailable, events disabled", "error", err)
		pub = events.Noop{}
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, pub, l, signals, nil); err != nil {
		l.Error("server exited with error", "error", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

type closer interface {
	Close() error
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, pub events.Publisher, l *logger.Logger, signals <-chan os.Signal, listen ListenFunc) error {
	l = logger.OrNop(l)
	srv := server.NewServer(cfg, pg, rdb, pub, l)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	_ = srv.Stream.Close()
	if c, ok := pub.(closer); ok {
		if err := c.Close(); err != nil {
			l.Warn("close event publisher", "error", err)
		}
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	l.Info("server stopped")
	return nil
}
