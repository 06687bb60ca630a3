// Package fixture is a reference server under test. It consumes request
// bodies in each of the ways the harness exercises and reports its own
// resident memory on /report.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/and161185/bodyleak/internal/config"
	"github.com/and161185/bodyleak/internal/fixture/middleware"
	"github.com/and161185/bodyleak/internal/target"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

// Server serves the body-handling endpoints.
type Server struct {
	Config   *config.FixtureConfig
	Memory   MemoryFunc
	retained *retainer
}

// NewServer returns a Server measuring its own process RSS.
func NewServer(cfg *config.FixtureConfig) *Server {
	return &Server{
		Config:   cfg,
		Memory:   ProcessRSS(cfg.Logger),
		retained: &retainer{},
	}
}

// Router wires every endpoint.
func (srv *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(chimw.Recoverer)
	router.Use(chiMiddleware.StripSlashes)
	router.Use(middleware.LogMiddleware(srv.Config.Logger))

	router.Get("/report", srv.ReportHandler)
	router.Post("/", srv.IgnoreHandler)
	router.Post("/buffering", srv.BufferingHandler)
	router.Post("/json-buffering", srv.JSONBufferingHandler)
	router.Post("/buffering+body-getter", srv.BufferingBodyGetterHandler)
	router.Post("/streaming", srv.StreamingHandler)
	router.Post("/incomplete-streaming", srv.IncompleteStreamingHandler)
	router.Post("/streaming-echo", srv.StreamingEchoHandler)
	router.Post("/leaking", srv.LeakingHandler)

	return router
}

// Run listens on the configured address, announces the base URL to the
// harness and serves until ctx is done.
func (srv *Server) Run(ctx context.Context) error {
	logger := srv.Config.Logger

	ln, err := net.Listen("tcp", srv.Config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.Config.Addr, err)
	}

	httpSrv := &http.Server{
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/"
	announced, err := target.Announce(url)
	if err != nil {
		_ = httpSrv.Close()
		return err
	}
	logger.Infow("fixture listening", "url", url, "announced", announced)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
