package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/reviserx/internal/api"
	"github.com/p-n-ai/reviserx/internal/catalog"
	"github.com/p-n-ai/reviserx/internal/chat"
	"github.com/p-n-ai/reviserx/internal/engine"
	"github.com/p-n-ai/reviserx/internal/platform/cache"
	"github.com/p-n-ai/reviserx/internal/platform/config"
	"github.com/p-n-ai/reviserx/internal/platform/database"
	"github.com/p-n-ai/reviserx/internal/search"
	"github.com/p-n-ai/reviserx/internal/study"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Database.Driver())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	a.shutdown(shutdownCtx)
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// app holds the wired server components.
type app struct {
	engine  *engine.Engine
	gateway *chat.Gateway
	handler http.Handler
	closers []func()
}

// newApp builds the catalog, stores and engine described by cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{gateway: chat.NewGateway()}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	cat, err := loadCatalog(cfg.Catalog.Dir)
	if err != nil {
		return nil, err
	}
	for _, w := range cat.Warnings() {
		slog.Warn("catalog warning", "warning", w)
	}

	checks := map[string]api.HealthCheck{}
	loggers := study.MultiEventLogger{}

	var store study.ProgressStore
	switch cfg.Database.Driver() {
	case config.DriverPostgres:
		db, err := database.New(ctx, cfg.Database.URL, database.Options{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		pg, err := study.NewPostgresStore(ctx, db.Pool)
		if err != nil {
			return nil, err
		}
		store = pg
		loggers = append(loggers, study.NewPostgresEventLogger(db.Pool))
		checks["database"] = db.HealthCheck
	case config.DriverSQLite:
		lite, err := study.OpenSQLite(ctx, cfg.Database.SQLitePath())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { lite.Close() })
		store = lite
		checks["database"] = lite.HealthCheck
	default:
		store = study.NewMemoryStore()
	}

	var searchCache search.Cache = search.NewMemoryCache(cfg.Cache.TTL)
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL, cfg.Cache.Prefix)
		if err != nil {
			return nil, fmt.Errorf("connecting to cache: %w", err)
		}
		a.closers = append(a.closers, func() { c.Close() })
		searchCache = search.NewRedisCache(c, cfg.Cache.TTL)
		checks["cache"] = c.HealthCheck
	}

	if cfg.NATS.URL != "" {
		nc, err := study.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, nc.Close)
		loggers = append(loggers, study.NewNATSEventLogger(nc, cfg.NATS.SubjectPrefix))
		checks["nats"] = func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
	}

	policy, err := study.ParseRestartPolicy(cfg.Study.RestartPolicy)
	if err != nil {
		return nil, err
	}

	var events study.EventLogger = study.NopEventLogger{}
	if len(loggers) > 0 {
		events = loggers
	}

	userID := cfg.Study.UserID
	a.engine, err = engine.NewEngine(engine.EngineConfig{
		Catalog:              cat,
		MinQuestionsPerTopic: cfg.Catalog.MinQuestionsPerTopic,
		Store:                store,
		EventLogger:          events,
		UserID:               userID,
		RestartPolicy:        policy,
		ReplyDelay:           cfg.Chat.ReplyDelay,
		SearchCache:          searchCache,
		OnMessage: func(m chat.Message) {
			bctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.gateway.Broadcast(bctx, userID, m); err != nil {
				slog.Warn("chat broadcast failed", "message_id", m.ID, "error", err)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	var ws http.Handler
	if cfg.Chat.WebSocketEnabled {
		wsChannel := chat.NewWebSocketChannel(userID, originPatterns(cfg.Server.CORSOrigins))
		a.gateway.Register(chat.WebSocketChannelName, wsChannel)
		ws = wsChannel
	}
	if err := a.gateway.StartAll(ctx, a.engine.HandleInbound); err != nil {
		return nil, err
	}

	a.handler = api.NewHandler(api.Config{
		Engine:      a.engine,
		WebSocket:   ws,
		CORSOrigins: cfg.Server.CORSOrigins,
		Checks:      checks,
	})
	ok = true
	return a, nil
}

func loadCatalog(dir string) (*catalog.Catalog, error) {
	if dir == "" {
		return catalog.Seed()
	}
	slog.Info("loading catalog", "dir", dir)
	return catalog.LoadDir(dir)
}

// originPatterns converts CORS origins into host patterns for the WebSocket origin check.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		out = append(out, o)
	}
	return out
}

// shutdown waits for pending assistant replies and disconnects chat clients.
func (a *app) shutdown(ctx context.Context) {
	if err := a.engine.Drain(ctx); err != nil {
		slog.Warn("pending chat replies dropped", "error", err)
	}
	if err := a.gateway.StopAll(); err != nil {
		slog.Warn("stopping chat channels", "error", err)
	}
}

// close releases backing connections in reverse order of creation.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
