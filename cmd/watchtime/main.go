package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/watchtime/internal/events"
	"github.com/example/watchtime/internal/handlers"
	"github.com/example/watchtime/internal/platform/auth"
	"github.com/example/watchtime/internal/platform/config"
	"github.com/example/watchtime/internal/platform/db"
	"github.com/example/watchtime/internal/platform/httpserver"
	"github.com/example/watchtime/internal/platform/logging"
	"github.com/example/watchtime/internal/platform/natsconn"
	"github.com/example/watchtime/internal/platform/run"
	"github.com/example/watchtime/internal/playback"
	"github.com/example/watchtime/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	st, pool := initStore(cfg, log)
	ev := initEvents(cfg, log)

	mgr := playback.NewManager(playback.ManagerOptions{
		Store:         st,
		Events:        ev,
		Log:           log,
		TickInterval:  cfg.Engine.TickInterval,
		FlushDebounce: cfg.Engine.FlushDebounce,
	})

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: readyFunc(pool)})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))

		r.Get("/v1/playback", handlers.GetPlayback(mgr))
		r.Post("/v1/playback/play", handlers.Play(mgr))
		r.Post("/v1/playback/pause", handlers.Pause(mgr))
		r.Post("/v1/playback/resume", handlers.Resume(mgr))
		r.Post("/v1/playback/stop", handlers.Stop(mgr))
		r.Post("/v1/playback/next", handlers.Next(mgr))
		r.Post("/v1/playback/prev", handlers.Prev(mgr))
		r.Post("/v1/playback/heartbeat", handlers.Heartbeat(mgr))
		r.Post("/v1/playback/rate", handlers.SetRate(mgr))
		r.Post("/v1/playback/seek", handlers.Seek(mgr))

		r.Get("/v1/queue", handlers.GetQueue(mgr))
		r.Post("/v1/queue/next", handlers.EnqueueNext(mgr))
		r.Post("/v1/queue/last", handlers.EnqueueLast(mgr))
		r.Put("/v1/queue", handlers.ReorderQueue(mgr))
		r.Delete("/v1/queue", handlers.ClearQueue(mgr))
		r.Delete("/v1/queue/{kind}/{media_id}", handlers.RemoveFromQueue(mgr))

		r.Get("/v1/stats", handlers.GetStats(mgr, st))
		r.Put("/v1/stats/goal", handlers.SetGoal(mgr, st))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		return srv.Start(log)
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	mgr.Shutdown(shutdownCtx)
	if pool != nil {
		pool.Close()
	}
	_ = log.Sync()
	run.Exit(code)
}

// initStore opens Postgres when DATABASE_URL is set and degrades to the
// in-memory store otherwise.
func initStore(cfg config.AppConfig, log *zap.Logger) (store.Store, *pgxpool.Pool) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connect", zap.Error(err))
		run.Exit(1)
	}
	return store.NewPostgresStore(pool), pool
}

// initEvents connects to NATS; without it the publisher is a no-op stub.
func initEvents(cfg config.AppConfig, log *zap.Logger) *events.Publisher {
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		var err error
		nc, err = natsconn.Connect(natsconn.Options{URL: cfg.NATSURL})
		if err != nil {
			log.Warn("nats connect failed, events disabled", zap.Error(err))
			nc = nil
		}
	} else {
		log.Warn("NATS_URL not set, events disabled")
	}
	ev, err := events.New(nc, log)
	if err != nil {
		log.Warn("events publisher init", zap.Error(err))
	}
	return ev
}

func readyFunc(pool *pgxpool.Pool) func() error {
	if pool == nil {
		return nil
	}
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}
}
