// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embeddings keeps the workspace vector store ready for the active
// session. On sign-in it connects to Weaviate, verifies readiness, and
// ensures the workspace class exists; on sign-out the client is released.
// Vectors themselves are produced by the platform, so the store runs with
// Vectorizer "none" and objects are scoped to the endpoint they came from.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianConnect/services/session"
)

var embeddingsTracer = otel.Tracer("embeddings")

// ErrStoreNotReady is returned when the vector store has not been prepared,
// either because nobody is signed in or because the last preparation failed.
var ErrStoreNotReady = errors.New("embeddings store is not ready")

// WorkspaceClass is the Weaviate class holding workspace embeddings.
const WorkspaceClass = "WorkspaceEmbedding"

// DefaultReadyTimeout bounds the readiness probe during Prepare.
const DefaultReadyTimeout = 5 * time.Second

// Config configures the readiness controller.
type Config struct {
	// Host is the Weaviate host:port, e.g. "localhost:8080".
	Host string

	// Scheme is "http" or "https". Default: "http".
	Scheme string

	// APIKey authenticates against a protected instance. Empty means the
	// store is open, which is the usual local-sidecar deployment.
	APIKey string

	// ReadyTimeout bounds the readiness probe. Default: DefaultReadyTimeout.
	ReadyTimeout time.Duration

	// Logger for controller operations. Default: slog.Default().
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Scheme == "" {
		c.Scheme = "http"
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller tracks whether the workspace vector store is usable for the
// current session. Prepare and Teardown race safely: a Prepare that was
// started before a Teardown (or a newer Prepare) cannot reinstall its client.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	gen      uint64
	endpoint string
	client   *weaviate.Client
}

// NewController creates a readiness controller. Construction performs no
// network I/O; the store is contacted on the first Prepare.
func NewController(cfg Config) (*Controller, error) {
	cfg.applyDefaults()
	if cfg.Host == "" {
		return nil, errors.New("embeddings: Host is required")
	}
	return &Controller{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "embeddings")),
	}, nil
}

// OnStatus reacts to a session status change. Suitable for passing to the
// session manager's Subscribe: preparation runs on its own goroutine since
// subscribers execute inside the manager's commit section.
func (c *Controller) OnStatus(status session.AuthStatus) {
	if !status.SignedIn {
		c.Teardown()
		return
	}
	endpoint := status.Endpoint
	go func() {
		if err := c.Prepare(context.Background(), endpoint); err != nil {
			c.logger.Warn("workspace embeddings store unavailable",
				slog.String("endpoint", endpoint),
				slog.String("error", err.Error()))
		}
	}()
}

// Prepare connects to the store, verifies it answers the readiness probe,
// and ensures the workspace class exists. On success the client becomes
// available through Client until the next Teardown.
func (c *Controller) Prepare(ctx context.Context, endpoint string) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	ctx, span := embeddingsTracer.Start(ctx, "embeddings.prepare")
	defer span.End()
	span.SetAttributes(attribute.String("embeddings.host", c.cfg.Host))

	wcfg := weaviate.Config{
		Host:   c.cfg.Host,
		Scheme: c.cfg.Scheme,
	}
	if c.cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: c.cfg.APIKey}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("create weaviate client: %w", err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()
	isReady, err := client.Misc().ReadyChecker().Do(readyCtx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("readiness probe: %w", err)
	}
	if !isReady {
		return ErrStoreNotReady
	}

	if err := c.ensureSchema(ctx, client); err != nil {
		span.RecordError(err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// A teardown or newer preparation won while we were probing.
		return nil
	}
	c.client = client
	c.endpoint = endpoint
	c.logger.Info("workspace embeddings store ready",
		slog.String("host", c.cfg.Host),
		slog.String("endpoint", endpoint))
	return nil
}

// ensureSchema creates the workspace class if the store does not have it yet.
func (c *Controller) ensureSchema(ctx context.Context, client *weaviate.Client) error {
	_, err := client.Schema().ClassGetter().WithClassName(WorkspaceClass).Do(ctx)
	if err == nil {
		c.logger.Debug("workspace class already exists", slog.String("class", WorkspaceClass))
		return nil
	}
	if err := client.Schema().ClassCreator().WithClass(workspaceSchema()).Do(ctx); err != nil {
		return fmt.Errorf("creating %s schema: %w", WorkspaceClass, err)
	}
	c.logger.Info("workspace class created", slog.String("class", WorkspaceClass))
	return nil
}

// Teardown releases the client. Data in the store is left untouched; use
// Purge to delete it.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.client != nil {
		c.logger.Info("workspace embeddings store released",
			slog.String("endpoint", c.endpoint))
	}
	c.client = nil
	c.endpoint = ""
}

// Purge deletes the workspace class and every object in it. Irreversible.
func (c *Controller) Purge(ctx context.Context) error {
	client, err := c.Client()
	if err != nil {
		return err
	}
	if err := client.Schema().ClassDeleter().WithClassName(WorkspaceClass).Do(ctx); err != nil {
		return fmt.Errorf("deleting %s schema: %w", WorkspaceClass, err)
	}
	c.logger.Info("workspace class deleted", slog.String("class", WorkspaceClass))
	return nil
}

// Ready reports whether a prepared client is available.
func (c *Controller) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil
}

// Client returns the prepared store client, or ErrStoreNotReady.
func (c *Controller) Client() (*weaviate.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, ErrStoreNotReady
	}
	return c.client, nil
}

// Endpoint returns the platform endpoint the store was prepared for.
func (c *Controller) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// workspaceSchema describes the class holding workspace embeddings. Vectors
// are computed by the platform, never by the store.
func workspaceSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       WorkspaceClass,
		Description: "A chunk of workspace content with its platform-provided embedding.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "path",
				DataType:        []string{"text"},
				Description:     "Workspace-relative path of the source file.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The embedded chunk of file content.",
				Tokenization: "word",
			},
			{
				Name:            "endpoint",
				DataType:        []string{"text"},
				Description:     "Platform endpoint whose models produced the vector.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "revision",
				DataType:        []string{"text"},
				Description:     "Source control revision the chunk was taken from.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
		},
	}
}
