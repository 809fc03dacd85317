package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"quizforge/internal/app"
	"quizforge/internal/auth"
	"quizforge/internal/bank"
	"quizforge/internal/db"
	"quizforge/internal/logger"
	"quizforge/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "quizforge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := bank.NewRegistry(log)
	sources, err := bank.DiscoverDir(cfg.BankDir)
	if err != nil {
		log.Warn("bank directory unavailable", zap.String("dir", cfg.BankDir), zap.Error(err))
	}
	for name, src := range sources {
		registry.Register(name, src)
	}

	var dbConn *sql.DB
	if cfg.DBDSN != "" {
		dbConn, err = db.OpenPostgres(ctx, cfg.DBDSN, db.PostgresConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
		})
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer dbConn.Close()

		n, err := bank.RegisterPostgresBanks(ctx, registry, dbConn)
		if err != nil {
			return fmt.Errorf("register database banks: %w", err)
		}
		log.Info("database banks registered", zap.Int("banks", n))
	}

	var store session.Store = session.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()
		store = session.NewRedisStore(client)
	}

	admin, err := auth.NewAdminGuard(cfg.AdminTokenHash, log)
	if err != nil {
		return err
	}
	if !admin.Enabled() {
		log.Info("admin api disabled; set ADMIN_TOKEN_HASH to enable")
	}

	if _, err := registry.Reload(ctx); err != nil {
		log.Warn("some question banks failed to load", zap.Error(err))
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: app.NewRouter(cfg, app.Deps{
			DB:     dbConn,
			Banks:  registry,
			Store:  store,
			Admin:  admin,
			Logger: log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("quizforge web listening", zap.String("addr", cfg.HTTPAddr), zap.Int("banks", len(registry.List())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
