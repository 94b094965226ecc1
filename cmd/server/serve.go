package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/dexrush-backend/internal/catalog"
	"github.com/DoyleJ11/dexrush-backend/internal/config"
	"github.com/DoyleJ11/dexrush-backend/internal/httpapi"
	"github.com/DoyleJ11/dexrush-backend/internal/hub"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	timeout         = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

func serve(ctx context.Context, cfg *config.Config) (err error) {
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer func() {
		// Sync on a terminal stderr reports ENOTTY/EINVAL; that is not a failure.
		if serr := logger.Sync(); serr != nil && !errors.Is(serr, syscall.ENOTTY) && !errors.Is(serr, syscall.EINVAL) {
			err = multierr.Append(err, serr)
		}
	}()

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}

	h := hub.NewHub(hub.Options{
		Catalog:     cat,
		Duration:    cfg.Duration,
		MaxLog:      cfg.MaxLog,
		CodeLength:  cfg.CodeLength,
		IdleTimeout: cfg.IdleTimeout,
		Logger:      logger,
	})

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, httpapi.Options{
		Logger:     logger,
		GuessRate:  cfg.GuessRate,
		GuessBurst: cfg.GuessBurst,
		Profile:    cfg.Profile,
		Version:    releaseVersion,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("version", releaseVersion),
			zap.Int("species", cat.Len()),
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return h.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	h.Close()
	return err
}
