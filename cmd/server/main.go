package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/matchmaking-client/internal/config"
	"github.com/DoyleJ11/matchmaking-client/internal/countdown"
	"github.com/DoyleJ11/matchmaking-client/internal/httpapi"
	"github.com/DoyleJ11/matchmaking-client/internal/hub"
	"github.com/DoyleJ11/matchmaking-client/internal/journal"
	"github.com/DoyleJ11/matchmaking-client/internal/mmapi"
	"github.com/DoyleJ11/matchmaking-client/internal/optimistic"
	"github.com/DoyleJ11/matchmaking-client/internal/router"
	"github.com/DoyleJ11/matchmaking-client/internal/session"
	"github.com/DoyleJ11/matchmaking-client/internal/upstream"
	"github.com/DoyleJ11/matchmaking-client/pkg/logger"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("daemon exited with error", zap.Error(err))
	}
	lg.Info("daemon exited")
}

func run(cfg *config.Config, lg *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("starting matchmaking client",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("upstream", cfg.UpstreamWSURL))

	clock := clockwork.NewRealClock()

	h := hub.NewHub(ctx, session.Snapshot{}, logger.Component(lg, "hub"))
	store := session.NewStore(h)

	// Journal: Postgres when configured, otherwise outcomes are dropped.
	var (
		journalStore journal.Store = journal.Discard{}
		history      httpapi.History
		repo         *journal.Repository
		retention    gocron.Scheduler
	)
	if cfg.DatabaseURL != "" {
		db, err := journal.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		repo = journal.NewRepository(db)
		journalStore, history = repo, repo

		retention, err = journal.StartRetention(repo, cfg.JournalPruneEvery, cfg.JournalRetention, clock, logger.Component(lg, "journal"))
		if err != nil {
			return multierr.Append(fmt.Errorf("start journal retention: %w", err), repo.Close())
		}
		lg.Info("journal enabled", zap.Duration("retention", cfg.JournalRetention))
	}
	defer func() {
		if retention != nil {
			err = multierr.Append(err, retention.Shutdown())
		}
		if repo != nil {
			err = multierr.Append(err, repo.Close())
		}
	}()
	recorder := journal.NewRecorder(journalStore, clock, logger.Component(lg, "journal"))

	actions := mmapi.NewClient(cfg.UpstreamAPIURL, cfg.AuthToken, logger.Component(lg, "mmapi"))
	ctrl := optimistic.NewController(actions, store, h, clock, logger.Component(lg, "optimistic"), optimistic.Options{
		LockInTimeout:    cfg.LockInTimeout,
		AcceptAttempts:   cfg.AcceptAttempts,
		AcceptRetryDelay: cfg.AcceptRetryDelay,
	})

	rt := router.New(ctx, store, router.Options{
		Clock:       clock,
		Logger:      logger.Component(lg, "router"),
		Notifier:    h,
		AcceptTimer: countdown.NewAccept(clock, store, h, logger.Component(lg, "countdown")),
		PickTimer:   countdown.NewPick(clock, store, cfg.DraftPickTime, cfg.OvertimeGrace),
		Pending:     ctrl,
		Journal:     recorder,
		SelfUserID:  cfg.UserID,
		SelfName:    cfg.UserName,
	})

	conn := upstream.New(cfg.UpstreamWSURL, rt, upstream.Options{
		Token:      cfg.AuthToken,
		Clock:      clock,
		Logger:     logger.Component(lg, "upstream"),
		MaxBackoff: cfg.ReconnectMax,
	})

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Store:   store,
		Hub:     h,
		Actions: ctrl,
		History: history,
		Logger:  logger.Component(lg, "httpapi"),
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := conn.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return recorder.Run(gctx)
	})

	return g.Wait()
}
