package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/ai-saas-backend/internal/config"
	"github.com/sandeepkv93/ai-saas-backend/internal/health"
	"github.com/sandeepkv93/ai-saas-backend/internal/observability"
	"github.com/sandeepkv93/ai-saas-backend/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Janitor       service.TokenJanitor
	Readiness     *health.ProbeRunner

	CleanupInterval              time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	closers []func() error
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	janitor service.TokenJanitor,
	readiness *health.ProbeRunner,
	closers ...func() error,
) *App {
	return &App{
		Config:                       cfg,
		Logger:                       logger,
		Server:                       server,
		Observability:                runtime,
		Janitor:                      janitor,
		Readiness:                    readiness,
		CleanupInterval:              cfg.RefreshTokenCleanupInterval,
		ShutdownTimeout:              cfg.ShutdownTimeout,
		ShutdownHTTPDrainTimeout:     cfg.ShutdownHTTPDrainTimeout,
		ShutdownObservabilityTimeout: cfg.ShutdownObservabilityTimeout,
		closers:                      closers,
	}
}

// Run serves until ctx is cancelled or the listener fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", ln.Addr().String())
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if a.Janitor != nil && a.CleanupInterval > 0 {
		g.Go(func() error {
			a.runJanitor(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

func (a *App) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(a.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Janitor.CleanupExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					a.Logger.Warn("refresh token cleanup failed", "error", err)
				}
				continue
			}
			if n > 0 {
				a.Logger.Info("expired refresh tokens removed", "count", n)
			}
		}
	}
}

func (a *App) shutdown() error {
	total := a.ShutdownTimeout
	if total <= 0 {
		total = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), total)
	defer cancel()

	drain := a.ShutdownHTTPDrainTimeout
	if drain <= 0 || drain > total {
		drain = total
	}
	httpCtx, httpCancel := context.WithTimeout(ctx, drain)
	defer httpCancel()

	a.Logger.Info("shutting down")
	var errs []error
	if err := a.Server.Shutdown(httpCtx); err != nil {
		errs = append(errs, err)
	}

	obsTimeout := a.ShutdownObservabilityTimeout
	if obsTimeout <= 0 || obsTimeout > total {
		obsTimeout = total
	}
	obsCtx, obsCancel := context.WithTimeout(ctx, obsTimeout)
	defer obsCancel()
	if a.Observability != nil {
		if err := a.Observability.Shutdown(obsCtx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
