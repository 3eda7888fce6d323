package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"ms-autobook/internal/analytics"
	"ms-autobook/internal/auth"
	"ms-autobook/internal/autobook"
	autobook_api "ms-autobook/internal/autobook/api"
	"ms-autobook/internal/autobook/db"
	autobookredis "ms-autobook/internal/autobook/redis"
	"ms-autobook/internal/clock"
	"ms-autobook/internal/config"
	"ms-autobook/internal/database"
	"ms-autobook/internal/database/migrations"
	"ms-autobook/internal/events"
	events_api "ms-autobook/internal/events/api"
	"ms-autobook/internal/kafka"
	"ms-autobook/internal/logger"
	"ms-autobook/internal/notify"
	"ms-autobook/internal/scheduler"
	"ms-autobook/internal/sse"
)

const shutdownTimeout = 5 * time.Second

func NewServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the pass scheduler and the event-status consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logger.NewLogger(serviceName)
			defer log.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, migrate || cfg.Migrations.AutoMigrate, log)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before starting")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool, log *logger.Logger) error {
	log.Info("APP", "Starting auto-book service")

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer bunDB.Close()

	if migrate {
		runner := migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.Migrations.Dir}, log)
		err := runner.Up()
		runner.Close()
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	verify, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
	if err != nil {
		return fmt.Errorf("user auth: %w", err)
	}
	if cfg.Auth.TriggerSecret == "" {
		log.Warn("CONFIG", "TRIGGER_SECRET not set, operator endpoints will reject every request")
	}

	deps := connectDependencies(ctx, cfg, log)
	defer deps.Close()

	store := db.New(bunDB)
	emitter := sse.NewResultEmitter()
	processor := newProcessor(cfg, store, store, deps.notifier(cfg, emitter, log), log)

	var lease scheduler.Lease
	if deps.redis != nil {
		lease = autobookredis.NewPassLease(deps.redis, cfg.AutoBook.PassLeaseTTL, log)
		go func() {
			if err := notify.Relay(ctx, deps.redis, emitter, log); err != nil {
				log.Error("REDIS", fmt.Sprintf("Result relay stopped: %v", err))
			}
		}()
	}
	sched := scheduler.New(processor, lease, clock.Real(), cfg.AutoBook.PollInterval, cfg.AutoBook.PassTimeout, log)

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.EventStatus, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx, sched.OnEventStatusChange); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Event-status consumer stopped: %v", err))
			}
		}()
	}

	router := newRouter(bunDB, store, sched, emitter, auth.Middleware(verify, log), auth.TriggerMiddleware(cfg.Auth.TriggerSecret, log), log)
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go sched.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Auto-book service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
		return err
	}
	log.Info("HTTP", "✅ Auto-book service shutdown complete")
	return nil
}

func newRouter(bunDB *bun.DB, store *db.DB, sched *scheduler.Scheduler, emitter *sse.ResultEmitter,
	userAuth, triggerAuth func(http.Handler) http.Handler, log *logger.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	eventsHandler := events_api.NewHandler(events.NewService(store, log), clock.Real(), log)
	eventsHandler.RegisterRoutes(r, userAuth)
	log.Info("ROUTER", "Event routes registered under /api/events")

	autoBookHandler := autobook_api.NewHandler(
		autobook.NewService(store, store, clock.Real(), log),
		sched,
		analytics.NewService(bunDB),
		emitter,
		log,
	)
	autoBookHandler.RegisterRoutes(r, userAuth, triggerAuth)
	log.Info("ROUTER", "Auto-book routes registered under /api/autobooks")

	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", ww.Status()), time.Since(start).String())
		})
	}
}
