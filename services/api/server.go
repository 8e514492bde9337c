// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the active session over a localhost HTTP and
// WebSocket surface for the CLI and editor integrations.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianConnect/services/api/observability"
	"github.com/AleutianAI/AleutianConnect/services/modelsync"
	"github.com/AleutianAI/AleutianConnect/services/session"
	"github.com/AleutianAI/AleutianConnect/services/settings"
)

// DefaultAddr is where the daemon binds when no address is configured.
const DefaultAddr = "127.0.0.1:7821"

// DefaultShutdownTimeout bounds connection draining on shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// Config configures the daemon API server.
type Config struct {
	// Addr is the host:port to bind. Default: DefaultAddr.
	Addr string

	// Manager is the session manager the API fronts. Required, and must
	// be started before Run is called.
	Manager *session.Manager

	// Models backs GET /v1/models. Optional.
	Models *modelsync.Syncer

	// Settings backs the endpoint history API. Optional.
	Settings settings.Store

	// Metrics enables request and sign-in metrics. Optional.
	Metrics *observability.Metrics

	// ShutdownTimeout bounds connection draining. Default:
	// DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Debug keeps gin in debug mode with request logging.
	Debug bool

	// Logger for server operations. Default: slog.Default().
	Logger *slog.Logger
}

// Server is the daemon API server.
type Server struct {
	cfg         Config
	engine      *gin.Engine
	httpServer  *http.Server
	logger      *slog.Logger
	unsubscribe func()
}

// NewServer builds the router and wires the handler set. No sockets are
// opened until Run.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Manager == nil {
		return nil, errors.New("api: Manager is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With(slog.String("component", "api"))

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("connectd"))
	if cfg.Metrics != nil {
		engine.Use(requestMetrics(cfg.Metrics))
	}

	handlers := NewHandlers(cfg.Manager).
		WithModels(cfg.Models).
		WithSettings(cfg.Settings).
		WithMetrics(cfg.Metrics).
		WithLogger(logger)
	SetupRoutes(engine, handlers)

	s := &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger,
		httpServer: &http.Server{
			Addr:    cfg.Addr,
			Handler: engine,
			// No WriteTimeout: /v1/session/events holds its connection open.
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
	if cfg.Metrics != nil {
		s.unsubscribe = cfg.Manager.Subscribe(cfg.Metrics.ObserveStatus)
	}
	return s, nil
}

// Run serves until ctx is cancelled, then drains connections and returns.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("daemon API listening", slog.String("addr", s.cfg.Addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.httpServer.SetKeepAlivesEnabled(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("daemon API shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Router returns the underlying gin engine for testing.
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// requestMetrics records per-route request counts and latency.
func requestMetrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
