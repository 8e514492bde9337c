// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway is the REST client for the Aleutian platform's session
// surface. One call, Validate, answers the only question the session layer
// asks: who does this endpoint+token pair authenticate as, and what does
// that deployment offer.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Validation endpoints, relative to the normalized platform endpoint.
const (
	pathSite   = "/.api/site"
	pathModels = "/.api/settings/models"
	pathViewer = "/.api/viewer"
)

const (
	// DefaultTimeout bounds each validation request.
	DefaultTimeout = 10 * time.Second

	defaultUserAgent = "aleutian-connect"
)

var gatewayTracer = otel.Tracer("gateway")

// =============================================================================
// Configuration
// =============================================================================

// Config configures the platform client.
type Config struct {
	// Timeout bounds each request. Default: DefaultTimeout.
	Timeout time.Duration

	// RateLimitRPS is the client-side request budget per second.
	// 0 disables client-side limiting.
	RateLimitRPS float64

	// RateLimitBurst is the limiter burst size. Default: 3, so one
	// validation fan-out never waits on its own budget.
	RateLimitBurst int

	// UserAgent identifies this client to the platform.
	UserAgent string

	// Logger receives request diagnostics. If nil, uses slog.Default().
	Logger *slog.Logger
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 3
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.RateLimitRPS < 0 {
		return errors.New("rate limit rps must not be negative")
	}
	if c.RateLimitBurst < 0 {
		return errors.New("rate limit burst must not be negative")
	}
	return nil
}

// =============================================================================
// Client
// =============================================================================

// Client talks to one or more platform deployments. It holds no endpoint
// state; the endpoint travels with each call so a single client serves
// whichever endpoint the user signs in to next.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a platform client.
func NewClient(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		userAgent:  cfg.UserAgent,
		logger:     cfg.Logger.With(slog.String("component", "gateway")),
	}, nil
}

// Validate resolves an endpoint+token pair against the platform.
//
// # Description
//
// Issues the three validation requests concurrently (site description,
// model defaults, viewer) sharing one context: the first failure cancels
// its siblings. On success all three answers are aggregated into a
// ValidationResult.
//
// # Inputs
//
//   - ctx: Cancel to abandon the validation.
//   - endpoint: Normalized endpoint, no trailing slash.
//   - token: Access token, sent as a Bearer credential. Must not be empty;
//     anonymous states never reach the network.
//   - headers: Optional custom headers (enterprise proxies). Standard
//     headers win on conflict.
//
// # Outputs
//
//   - *ValidationResult: Non-nil on success.
//   - error: A *RequestError classified per ErrorClass, or a plain error
//     for invalid inputs.
//
// # Thread Safety
//
// Safe for concurrent use.
func (c *Client) Validate(ctx context.Context, endpoint, token string, headers map[string]string) (*ValidationResult, error) {
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if token == "" {
		return nil, errors.New("token is required")
	}

	ctx, span := gatewayTracer.Start(ctx, "gateway.Validate",
		trace.WithAttributes(attribute.String("endpoint", endpoint)),
	)
	defer span.End()

	var result ValidationResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getJSON(gctx, endpoint, token, headers, pathSite, &result.Site)
	})
	g.Go(func() error {
		return c.getJSON(gctx, endpoint, token, headers, pathModels, &result.Models)
	})
	g.Go(func() error {
		return c.getJSON(gctx, endpoint, token, headers, pathViewer, &result.Viewer)
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		c.logger.Debug("validation failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("site_version", result.Site.Version),
		attribute.Bool("assistant_enabled", result.Site.AssistantEnabled),
	)
	return &result, nil
}

// getJSON performs one rate-limited GET and decodes the JSON answer.
func (c *Client) getJSON(ctx context.Context, endpoint, token string, headers map[string]string, path string, out any) error {
	ctx, span := gatewayTracer.Start(ctx, "gateway.get",
		trace.WithAttributes(attribute.String("path", path)),
	)
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return failSpan(span, &RequestError{Class: classifyTransport(err), Path: path, Err: err})
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+path, nil)
	if err != nil {
		return failSpan(span, &RequestError{Class: ClassRemote, Path: path, Err: err})
	}

	// Custom headers first so the standard ones cannot be shadowed.
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failSpan(span, &RequestError{Class: classifyTransport(err), Path: path, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return failSpan(span, &RequestError{Class: classifyStatus(resp.StatusCode), Path: path, StatusCode: resp.StatusCode})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return failSpan(span, &RequestError{Class: ClassRemote, Path: path, Err: fmt.Errorf("decode response: %w", err)})
	}
	return nil
}

func failSpan(span trace.Span, reqErr *RequestError) error {
	span.RecordError(reqErr)
	span.SetStatus(codes.Error, reqErr.Class.String())
	return reqErr
}
