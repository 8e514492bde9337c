// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// connectd is the AleutianConnect daemon: it owns the authenticated session
// and exposes it to the CLI and editor integrations over localhost HTTP and
// WebSocket.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/AleutianConnect/pkg/config"
	"github.com/AleutianAI/AleutianConnect/pkg/logging"
	"github.com/AleutianAI/AleutianConnect/services/daemon"
)

const serviceName = "connectd"

func initTracer(cfg config.TracingConfig) (func(context.Context), error) {
	ctx := context.Background()

	var traceExporter sdktrace.SpanExporter
	if cfg.Stdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		traceExporter = exp
	} else {
		conn, err := grpc.NewClient(cfg.OTLPEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, err
		}
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, err
		}
		traceExporter = exp
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown the trace exporter", "error", err)
		}
	}, nil
}

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("failed to load the config: %v", err)
	}
	cfg := config.Global

	logger := newLogger(cfg.Logging)
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if cfg.Tracing.Enabled {
		cleanup, err := initTracer(cfg.Tracing)
		if err != nil {
			log.Fatalf("failed to setup the tracer: %v", err)
		}
		defer cleanup(context.Background())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := daemon.Run(ctx, cfg, logger.Slog()); err != nil {
		slog.Error("daemon exited with an error", "error", err)
		os.Exit(1)
	}
}

// newLogger builds the daemon logger: JSON always, optional file sink, and
// the GCS exporter when a bucket is configured.
func newLogger(cfg config.LoggingConfig) *logging.Logger {
	logCfg := logging.Config{
		Level:   logging.ParseLevel(cfg.Level),
		LogDir:  cfg.Dir,
		Service: serviceName,
		JSON:    true,
	}
	if cfg.GCS.Bucket != "" {
		exporter, err := logging.NewGCSExporter(context.Background(), logging.GCSExporterConfig{
			Bucket:          cfg.GCS.Bucket,
			Prefix:          cfg.GCS.Prefix,
			CredentialsFile: cfg.GCS.CredentialsFile,
		})
		if err != nil {
			slog.Warn("GCS log export disabled", "bucket", cfg.GCS.Bucket, "error", err)
		} else {
			logCfg.Exporter = exporter
		}
	}
	return logging.New(logCfg)
}
