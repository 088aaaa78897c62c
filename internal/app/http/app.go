package httpapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"iam/internal/config"
)

type App struct {
	log    *slog.Logger
	server *http.Server
	port   int
}

// New creates new HTTP server app serving handler
func New(log *slog.Logger, conf config.HTTPConfig, handler http.Handler) *App {
	return &App{
		log: log,
		server: &http.Server{
			Handler:      handler,
			ReadTimeout:  conf.ReadTimeout,
			WriteTimeout: conf.WriteTimeout,
		},
		port: conf.Port,
	}
}

// MustRun runs HTTP server and panic if any occurs
func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

// Run http server
func (a *App) Run() error {
	const op = "httpapp.Run"

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", a.port))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return a.Serve(l)
}

// Serve accepts connections on l until Stop
func (a *App) Serve(l net.Listener) error {
	const op = "httpapp.Serve"

	a.log.With(slog.String("op", op)).Info("starting HTTP server", slog.String("addr", l.Addr().String()))

	if err := a.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Stop waits for in-flight requests until ctx is done
func (a *App) Stop(ctx context.Context) {
	const op = "httpapp.Stop"
	log := a.log.With(slog.String("op", op))

	log.Info("stopping HTTP server", slog.Int("port", a.port))
	if err := a.server.Shutdown(ctx); err != nil {
		log.Error("failed to stop HTTP server gracefully", slog.String("error", err.Error()))
	}
}
