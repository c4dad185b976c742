package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	transporthttp "github.com/vovakirdan/linechat-server/internal/transport/http"
	"github.com/vovakirdan/linechat-server/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	cfg   *config.Config
	hub   *core.Hub
	lines *tcp.Server
	http  *stdhttp.Server
	log   *zerolog.Logger

	// lineAddr carries the bound chat address once Run has listened.
	lineAddr chan net.Addr
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	hub := core.NewHub(logger)
	lines := tcp.NewServer(hub, tcp.Options{
		IdleTimeout:  cfg.IdleTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxLineBytes: cfg.MaxLineBytes,
	}, logger)

	a := &App{
		cfg:      cfg,
		hub:      hub,
		lines:    lines,
		log:      logger,
		lineAddr: make(chan net.Addr, 1),
	}
	if cfg.HTTPAddr != "" {
		a.http = transporthttp.NewServer(hub, lines, cfg, logger)
	}
	return a, nil
}

// Hub returns the chat room served by the app.
func (a *App) Hub() *core.Hub {
	return a.hub
}

// Run binds the listeners and serves until ctx is cancelled or a listener
// fails. A bind failure is returned as a startup error before anything is
// served.
func (a *App) Run(ctx context.Context) error {
	lineLn, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return core.StartupError(fmt.Errorf("listen %s: %w", a.cfg.Addr, err))
	}
	a.lineAddr <- lineLn.Addr()

	var httpLn net.Listener
	if a.http != nil {
		httpLn, err = net.Listen("tcp", a.cfg.HTTPAddr)
		if err != nil {
			_ = lineLn.Close()
			return core.StartupError(fmt.Errorf("listen %s: %w", a.cfg.HTTPAddr, err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", lineLn.Addr().String()).Msg("chat server listening")
		if err := a.lines.Serve(lineLn); err != nil && !errors.Is(err, tcp.ErrServerClosed) {
			return fmt.Errorf("serve chat: %w", err)
		}
		return nil
	})

	if httpLn != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", httpLn.Addr().String()).Msg("admin http server listening")
			if err := a.http.Serve(httpLn); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("serve http: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

// LineAddr blocks until Run has bound the chat listener and returns its address.
func (a *App) LineAddr(ctx context.Context) (net.Addr, error) {
	select {
	case addr := <-a.lineAddr:
		a.lineAddr <- addr
		return addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.log.Info().Msg("shutting down")

	var errs []error
	if a.http != nil {
		if err := a.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http: %w", err))
		}
	}
	if err := a.lines.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown chat: %w", err))
	}
	return errors.Join(errs...)
}
