// Package server exposes the receive loop over HTTP: health, prometheus
// metrics, channel snapshots and open/close commands.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/serialmux/internal/auth"
	"github.com/danmuck/serialmux/internal/bridge"
	"github.com/danmuck/serialmux/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Controller is the part of a bridge.Service the status server drives.
type Controller interface {
	Snapshot() bridge.Snapshot
	SetChannelOpen(ch int, open bool) error
}

type Status struct {
	ID       string
	Addr     string
	Appeared time.Time

	ctl    Controller
	auth   auth.Validator
	router *gin.Engine
}

type Option func(*Status)

// WithAuth requires a bearer token accepted by v on channel commands.
func WithAuth(v auth.Validator) Option {
	return func(s *Status) { s.auth = v }
}

func New(id, addr string, ctl Controller, corsOrigins []string, opts ...Option) *Status {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Status{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		ctl:      ctl,
		router:   r,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.RegisterRoutes()
	return s
}

func (s *Status) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve listens on Addr until ctx is done, then shuts down gracefully.
func (s *Status) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info().Str("addr", s.Addr).Msg("status server listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
