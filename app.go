package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gitlab.com/yelinaung/expense-claims/internal/analytics"
	"gitlab.com/yelinaung/expense-claims/internal/api"
	"gitlab.com/yelinaung/expense-claims/internal/audit"
	"gitlab.com/yelinaung/expense-claims/internal/auth"
	"gitlab.com/yelinaung/expense-claims/internal/config"
	"gitlab.com/yelinaung/expense-claims/internal/database"
	"gitlab.com/yelinaung/expense-claims/internal/expense"
	"gitlab.com/yelinaung/expense-claims/internal/gemini"
	"gitlab.com/yelinaung/expense-claims/internal/logger"
	"gitlab.com/yelinaung/expense-claims/internal/memstore"
	"gitlab.com/yelinaung/expense-claims/internal/notify"
	"gitlab.com/yelinaung/expense-claims/internal/repository"
	"gitlab.com/yelinaung/expense-claims/internal/telemetry"
)

// sessionPruneInterval is how often expired sessions are deleted.
const sessionPruneInterval = time.Hour

type expenseStore interface {
	expense.Store
	analytics.Source
}

type userStore interface {
	auth.UserStore
	expense.UserDirectory
	api.ChatLinker
}

// backend is the storage selected by DATABASE_URL.
type backend struct {
	expenses  expenseStore
	auditLogs audit.Store
	users     userStore
	sessions  auth.SessionStore
	db        database.Pinger
	close     func()
}

// services are the domain services shared by every command.
type services struct {
	recorder  *audit.Recorder
	auth      *auth.Service
	expenses  *expense.Service
	analytics *analytics.Aggregator
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

// openBackend connects to PostgreSQL and applies migrations, or creates
// the in-memory stores for memory://.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.UsesMemoryStore() {
		logger.Log.Warn().Msg("Using in-memory storage; data is lost on exit")
		store := memstore.New()
		return &backend{
			expenses:  store.Expenses,
			auditLogs: store.AuditLogs,
			users:     store.Users,
			sessions:  store.Sessions,
			close:     func() {},
		}, nil
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Log.Info().Msg("Database initialized successfully")

	return &backend{
		expenses:  repository.NewExpenseRepository(pool),
		auditLogs: repository.NewAuditLogRepository(pool),
		users:     repository.NewUserRepository(pool),
		sessions:  repository.NewSessionRepository(pool),
		db:        pool,
		close:     pool.Close,
	}, nil
}

func newServices(b *backend, cfg *config.Config, opts ...expense.Option) *services {
	recorder := audit.NewRecorder(b.auditLogs, b.users)
	return &services{
		recorder: recorder,
		auth: auth.NewService(b.users, b.sessions, recorder, auth.Config{
			SessionTTL:        cfg.SessionTTL,
			AllowRegistration: cfg.AllowRegistration,
		}),
		expenses:  expense.NewService(b.expenses, recorder, b.users, opts...),
		analytics: analytics.NewAggregator(b.expenses),
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Exporter:    cfg.OTelExporter,
		ServiceName: cfg.OTelServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	var opts []expense.Option
	var notifier *notify.TelegramNotifier
	if cfg.NotificationsEnabled() {
		notifier, err = notify.NewTelegram(cfg.TelegramBotToken)
		if err != nil {
			return err
		}
		opts = append(opts, expense.WithNotifier(notifier))
		go notifier.Start(ctx)
		logger.Log.Info().Msg("Telegram status notifications enabled")
	}
	svc := newServices(b, cfg, opts...)

	deps := api.Deps{
		Expenses:  svc.expenses,
		Auth:      svc.auth,
		Audit:     svc.recorder,
		Analytics: svc.analytics,
		DB:        b.db,
	}
	if notifier != nil {
		deps.Chats = b.users
		deps.LinkCodes = notifier.LinkCodes()
	}
	if cfg.SuggestionsEnabled() {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return err
		}
		deps.Suggester = client
		logger.Log.Info().Msg("Gemini category suggestions enabled")
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(api.NewRouter(deps), "expense-claims"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go pruneSessions(ctx, svc.auth, sessionPruneInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Log.Info().Msg("Shutting down...")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// pruneSessions deletes expired sessions until ctx is done.
func pruneSessions(ctx context.Context, svc *auth.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PruneSessions(ctx)
			if err != nil {
				logger.Log.Warn().Err(err).Msg("Failed to prune sessions")
				continue
			}
			if n > 0 {
				logger.Log.Debug().Int64("count", n).Msg("Pruned expired sessions")
			}
		}
	}
}

func migrate(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	if cfg.UsesMemoryStore() {
		return errors.New("migrate requires a PostgreSQL DATABASE_URL")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	fmt.Fprintln(stdout, "Migrations applied")
	return nil
}
