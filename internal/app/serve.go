package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hectronix2005/Mejor-Inversion/internal/api"
)

// Serve runs the HTTP API, with the periodic refresh loop when the
// scheduler is enabled, until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := a.newService(st)
	if err != nil {
		return err
	}

	server := api.New(svc, svc, api.Options{
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		TopN:           a.Config.Scraper.TopN,
	}, a.Logger)

	addr := fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	schedErr := make(chan error, 1)
	if a.Config.Scheduler.Enabled {
		go func() {
			schedErr <- svc.Run(ctx)
		}()
	} else {
		a.Logger.Info().Msg("scheduler disabled, rates refresh only via POST /api/scrape")
	}

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", addr).Msg("starting HTTP API")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case err := <-schedErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("refresh loop terminated with error")
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	a.Logger.Info().Msg("server stopped")
	return nil
}
