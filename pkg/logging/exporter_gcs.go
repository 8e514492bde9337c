// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// ---------------------------------------------------------------------------
// GCS Exporter
// ---------------------------------------------------------------------------

const (
	// defaultGCSBatchSize is the buffered entry count that triggers an
	// asynchronous upload.
	defaultGCSBatchSize = 256

	// defaultGCSFlushInterval bounds how long an entry can sit in the
	// buffer before the background flusher ships it.
	defaultGCSFlushInterval = 30 * time.Second

	// gcsUploadTimeout caps a single batch upload.
	gcsUploadTimeout = 15 * time.Second
)

// GCSExporterConfig configures a GCSExporter.
type GCSExporterConfig struct {
	// Bucket is the destination bucket name. Required.
	Bucket string

	// Prefix is prepended to every object name. Default "logs/connect".
	Prefix string

	// CredentialsFile is a service account JSON key path. When empty,
	// Application Default Credentials are used.
	CredentialsFile string

	// BatchSize is the entry count that triggers an upload.
	// Default defaultGCSBatchSize.
	BatchSize int

	// FlushInterval is the background flush period.
	// Default defaultGCSFlushInterval.
	FlushInterval time.Duration
}

// applyDefaults fills zero-value fields.
func (c *GCSExporterConfig) applyDefaults() {
	if c.Prefix == "" {
		c.Prefix = "logs/connect"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultGCSBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultGCSFlushInterval
	}
}

// validate checks required fields.
func (c *GCSExporterConfig) validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs exporter: bucket is required")
	}
	return nil
}

// GCSExporter uploads log entries to Google Cloud Storage as JSON Lines
// objects, one object per batch, named
// "{prefix}/{YYYY-MM-DD}/{unix-nanos}_{uuid}.jsonl".
//
// Entries are buffered in memory and shipped when the batch fills or the
// flush interval elapses. Upload failures drop the batch; log export is
// best-effort and must never back-pressure the process.
type GCSExporter struct {
	client *storage.Client
	config GCSExporterConfig

	mu  sync.Mutex
	buf []LogEntry

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Ensure GCSExporter implements LogExporter.
var _ LogExporter = (*GCSExporter)(nil)

// NewGCSExporter creates the storage client and starts the background
// flusher. The context is used only for client construction.
func NewGCSExporter(ctx context.Context, config GCSExporterConfig) (*GCSExporter, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(expandHome(config.CredentialsFile)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs exporter: create storage client: %w", err)
	}

	e := &GCSExporter{
		client: client,
		config: config,
		buf:    make([]LogEntry, 0, config.BatchSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go e.flushLoop()
	return e, nil
}

// Export buffers the entry and triggers an asynchronous upload when the
// batch is full.
func (e *GCSExporter) Export(ctx context.Context, entry LogEntry) error {
	e.mu.Lock()
	e.buf = append(e.buf, entry)
	var batch []LogEntry
	if len(e.buf) >= e.config.BatchSize {
		batch = e.takeLocked()
	}
	e.mu.Unlock()

	if batch != nil {
		go e.upload(batch)
	}
	return nil
}

// Flush synchronously uploads everything buffered.
func (e *GCSExporter) Flush(ctx context.Context) error {
	e.mu.Lock()
	batch := e.takeLocked()
	e.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return e.uploadCtx(ctx, batch)
}

// Close stops the background flusher and closes the storage client.
// Call Flush first; Close does not upload remaining entries.
func (e *GCSExporter) Close() error {
	e.stopOnce.Do(func() {
		close(e.stop)
		<-e.done
	})
	return e.client.Close()
}

// takeLocked detaches the current buffer. Caller holds e.mu.
func (e *GCSExporter) takeLocked() []LogEntry {
	if len(e.buf) == 0 {
		return nil
	}
	batch := e.buf
	e.buf = make([]LogEntry, 0, e.config.BatchSize)
	return batch
}

// flushLoop ships partial batches on a timer so entries do not linger.
func (e *GCSExporter) flushLoop() {
	defer close(e.done)
	ticker := time.NewTicker(e.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.mu.Lock()
			batch := e.takeLocked()
			e.mu.Unlock()
			if batch != nil {
				e.upload(batch)
			}
		case <-e.stop:
			return
		}
	}
}

// upload ships a batch with a bounded background context.
func (e *GCSExporter) upload(batch []LogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), gcsUploadTimeout)
	defer cancel()
	_ = e.uploadCtx(ctx, batch)
}

// uploadCtx writes the batch as one JSON Lines object.
func (e *GCSExporter) uploadCtx(ctx context.Context, batch []LogEntry) error {
	name := fmt.Sprintf("%s/%s/%d_%s.jsonl",
		e.config.Prefix,
		time.Now().Format("2006-01-02"),
		time.Now().UnixNano(),
		uuid.New().String()[:8],
	)

	w := e.client.Bucket(e.config.Bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"

	enc := json.NewEncoder(w)
	for _, entry := range batch {
		if err := enc.Encode(exportRecord{
			Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
			Level:     entry.Level.String(),
			Message:   entry.Message,
			Service:   entry.Service,
			Attrs:     entry.Attrs,
		}); err != nil {
			_ = w.Close()
			return fmt.Errorf("gcs exporter: encode entry: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs exporter: upload %s: %w", name, err)
	}
	return nil
}

// exportRecord is the wire form of a LogEntry in uploaded objects.
type exportRecord struct {
	Timestamp string         `json:"ts"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Service   string         `json:"service,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}
