// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog assembles the field catalog service: storage, registry,
// merge engine, query engine, watch feed and HTTP transport.
//
// # Description
//
// The catalog discovers which document fields a pass-through integration
// actually uses. Integrations submit field observations per business
// context; the service accumulates presence, cardinality, nullability and
// casing statistics and answers search, suggest and watch queries over
// them.
//
// This package owns process lifecycle only. Domain behavior lives in the
// subpackages (registry, engine, query, watch); transport in handlers and
// routes.
//
// # Import Path
//
// Enterprise imports this package as:
//
//	import "github.com/AleutianAI/FieldScope/services/catalog"
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
	"github.com/AleutianAI/FieldScope/services/catalog/engine"
	"github.com/AleutianAI/FieldScope/services/catalog/middleware"
	"github.com/AleutianAI/FieldScope/services/catalog/observability"
	"github.com/AleutianAI/FieldScope/services/catalog/query"
	"github.com/AleutianAI/FieldScope/services/catalog/registry"
	"github.com/AleutianAI/FieldScope/services/catalog/routes"
	badgerstore "github.com/AleutianAI/FieldScope/services/catalog/storage/badger"
	"github.com/AleutianAI/FieldScope/services/catalog/watch"
)

// serviceName identifies this service in traces and spans.
const serviceName = "catalog-service"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the catalog service lifecycle.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for integration testing.
	// Callers must not modify the routes.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds catalog service configuration.
//
// All fields are optional; New() applies defaults for zero values. The
// inverted Disable* flags exist so the zero-value Config enables the
// full ambient stack.
//
// # Examples
//
//	// Minimal config (uses all defaults)
//	cfg := Config{}
//
//	// Custom port and data directory
//	cfg := Config{
//	    Port:    8080,
//	    DataDir: "/var/lib/fieldscope",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// DataDir is the BadgerDB directory. Default: "./fieldscope-data"
	// Ignored when InMemory is true.
	DataDir string

	// InMemory stores the catalog in memory only. Data is lost on exit.
	// Intended for tests and throwaway runs.
	InMemory bool

	// SeedFile is an optional YAML file of contexts to register at
	// startup. When set, the file is also watched for edits and
	// re-applied on change.
	SeedFile string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "fieldscope-otel-collector:4317"
	OTelEndpoint string

	// IngestRate is the sustained observation-batch rate in requests
	// per second. IngestBurst is the burst allowance. Non-positive
	// values use the middleware defaults.
	IngestRate  float64
	IngestBurst int

	// DisableMetrics skips Prometheus metric registration. Metrics use
	// the process-global registry, so a test that constructs more than
	// one Service must disable them.
	DisableMetrics bool

	// GinMode sets the Gin framework mode: "debug", "release", "test".
	// Empty leaves Gin's environment-based default in place.
	GinMode string
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./fieldscope-data"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "fieldscope-otel-collector:4317"
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// All fields are read-only after New() returns.
type service struct {
	config Config
	opts   extensions.ServiceOptions

	router  *gin.Engine
	db      *badgerstore.DB
	store   *badgerstore.Store
	reg     *registry.Registry
	eng     *engine.Engine
	queries *query.Engine
	hub     *watch.Hub

	seedWatcher   *registry.SeedWatcher
	tracerCleanup func(context.Context)
}

// New creates a catalog Service with the given configuration.
//
// # Description
//
// New initializes every component:
//  1. Applies configuration defaults
//  2. Initializes OpenTelemetry tracing
//  3. Registers Prometheus metrics (unless disabled)
//  4. Opens the BadgerDB store (with its GC runner)
//  5. Builds the registry, merge engine, query engine and watch hub
//  6. Applies the seed file and starts its watcher, when configured
//  7. Sets up HTTP routes with the extension options
//
// If opts is nil, DefaultOptions() is used (no-op implementations
// suitable for a single-user workstation deployment).
//
// # Outputs
//
//   - Service: Ready-to-run catalog service
//   - error: Non-nil if any component fails to initialize
//
// # Examples
//
//	svc, err := catalog.New(catalog.Config{Port: 12310}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if !s.config.DisableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the catalog")
	}

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := s.initDomain(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize catalog components: %w", err)
	}

	if err := s.initSeed(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to apply seed file: %w", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
// Cleanup is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting catalog server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for integration testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing.
//
// Uses an insecure gRPC connection, appropriate for the internal
// networks the collector lives on. The connection is lazy, so an
// unreachable collector does not block startup; spans are simply
// dropped until it appears.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStore opens the BadgerDB database and the typed store over it.
func (s *service) initStore() error {
	dbCfg := badgerstore.DefaultConfig()
	dbCfg.Path = s.config.DataDir
	dbCfg.Logger = slog.Default()
	if s.config.InMemory {
		dbCfg = badgerstore.InMemoryConfig()
	}

	db, err := badgerstore.OpenDB(dbCfg)
	if err != nil {
		return err
	}
	s.db = db

	store, err := badgerstore.NewStore(db)
	if err != nil {
		return err
	}
	s.store = store

	if s.config.InMemory {
		slog.Info("Catalog store opened in memory; data will not survive restart")
	} else {
		slog.Info("Catalog store opened", "path", s.config.DataDir)
	}
	return nil
}

// initDomain builds the registry, engines and watch hub over the store.
func (s *service) initDomain() error {
	reg, err := registry.New(s.store, s.store, slog.Default())
	if err != nil {
		return err
	}
	s.reg = reg

	s.hub = watch.NewHub(slog.Default())

	eng, err := engine.New(reg, s.store, s.hub, slog.Default())
	if err != nil {
		return err
	}
	s.eng = eng

	queries, err := query.New(s.store, s.store, slog.Default())
	if err != nil {
		return err
	}
	s.queries = queries

	if !s.config.DisableMetrics {
		hub := s.hub
		observability.RegisterWatchFeed(
			func() float64 { return float64(hub.SubscriberCount()) },
			func() float64 { return float64(hub.Dropped()) },
		)
	}
	return nil
}

// initSeed applies the configured seed file and starts its watcher.
//
// The watcher keeps a workstation deployment's contexts in sync with
// the checked-in YAML: edit the file and the registry follows, no
// restart needed.
func (s *service) initSeed() error {
	if s.config.SeedFile == "" {
		return nil
	}

	seed, err := registry.LoadSeedFile(s.config.SeedFile)
	if err != nil {
		return err
	}
	created, updated, err := s.reg.ApplySeed(context.Background(), seed)
	if err != nil {
		return err
	}
	slog.Info("Seed file applied",
		"path", s.config.SeedFile,
		"created", created,
		"updated", updated)

	watcher, err := registry.NewSeedWatcher(s.reg, s.config.SeedFile, slog.Default())
	if err != nil {
		return err
	}
	if err := watcher.Start(context.Background()); err != nil {
		return err
	}
	s.seedWatcher = watcher
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware(serviceName))

	limiter := middleware.NewIngestLimiter(s.config.IngestRate, s.config.IngestBurst)
	routes.SetupRoutes(s.router, s.reg, s.eng, s.queries, s.hub, limiter, s.opts)
}

// cleanup releases all resources held by the service.
//
// Called when Run() exits or on initialization failure, so every step
// tolerates the ones after it never having run.
func (s *service) cleanup() {
	if s.seedWatcher != nil {
		s.seedWatcher.Stop()
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Warn("catalog store close error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
