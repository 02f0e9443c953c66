// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator provides the chat orchestrator service for TellerGate.
//
// This package contains the main service type that wires every component of
// a conversational turn: intent classification, the deterministic fee,
// location, and directory collaborators, knowledge retrieval with its Redis
// cache, the generative backend, transcript persistence, the pending
// disambiguation store, and observability infrastructure.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := orchestrator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
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

	"github.com/AleutianAI/TellerGate/services/llm"
	"github.com/AleutianAI/TellerGate/services/orchestrator/classifier"
	"github.com/AleutianAI/TellerGate/services/orchestrator/config"
	"github.com/AleutianAI/TellerGate/services/orchestrator/directory"
	"github.com/AleutianAI/TellerGate/services/orchestrator/disambiguation"
	"github.com/AleutianAI/TellerGate/services/orchestrator/fees"
	"github.com/AleutianAI/TellerGate/services/orchestrator/handlers"
	"github.com/AleutianAI/TellerGate/services/orchestrator/locations"
	"github.com/AleutianAI/TellerGate/services/orchestrator/memory"
	"github.com/AleutianAI/TellerGate/services/orchestrator/middleware"
	"github.com/AleutianAI/TellerGate/services/orchestrator/observability"
	"github.com/AleutianAI/TellerGate/services/orchestrator/retrieval"
	"github.com/AleutianAI/TellerGate/services/orchestrator/routes"
	"github.com/AleutianAI/TellerGate/services/orchestrator/services"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the orchestrator service.
//
// # Description
//
// Service abstracts the orchestrator lifecycle, enabling testing and
// alternative implementations. Run() blocks until the process receives a
// termination signal or the listener fails; Router() exposes the configured
// gin engine for integration tests.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() should only be
// called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	//
	// # Outputs
	//
	//   - error: Non-nil if the server fails to start or dies abnormally.
	//     A signal-initiated shutdown returns nil.
	Run() error

	// Router returns the underlying gin engine for testing.
	//
	// # Outputs
	//
	//   - *gin.Engine: The configured router with all routes registered.
	Router() *gin.Engine
}

// =============================================================================
// Implementation
// =============================================================================

// shutdownTimeout bounds the drain of in-flight streams on termination.
const shutdownTimeout = 15 * time.Second

// service implements Service for production use.
//
// All fields are read-only after New() returns. The owned stores and the
// tracer are released by cleanup(), which Run() defers.
type service struct {
	cfg    config.Config
	router *gin.Engine
	logger *slog.Logger

	turns *services.TurnService

	// Owned resources, closed in cleanup.
	cache          retrieval.Cache
	memoryStore    *memory.Memory
	directoryStore *directory.SQLStore
	pendingStore   disambiguation.Store
	analytics      *observability.Analytics
	tracerCleanup  func(context.Context)
	stopVocabWatch func()
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new orchestrator Service with the given configuration.
//
// # Description
//
// New initializes all orchestrator components in dependency order:
//
//  1. OpenTelemetry tracing and Prometheus metrics
//  2. Classifier vocabulary (with optional hot-reload watcher)
//  3. Redis answer cache and the retrieval client
//  4. Fee, location, and directory collaborators
//  5. Transcript memory (Postgres with in-process ring fallback)
//  6. Pending disambiguation store (Redis with Badger fallback)
//  7. Generative backend, turn service, HTTP routes
//
// The fee, location, and retrieval service URLs and the directory database
// URL are required; everything else degrades. A missing transcript database
// falls back to the in-process ring, a missing cache address disables
// caching, and a missing Redis address leaves disambiguation on the local
// Badger store.
//
// # Inputs
//
//   - cfg: Full configuration tree, normally from config.Load().
//
// # Outputs
//
//   - Service: Ready-to-run orchestrator service.
//   - error: Non-nil if a required component fails to initialize. Partially
//     constructed resources are released before returning.
func New(cfg config.Config) (Service, error) {
	s := &service{
		cfg:    cfg,
		logger: slog.Default().With("service", "tellergate-orchestrator"),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	metrics := observability.InitMetrics()
	s.analytics = observability.NewAnalytics(observability.AnalyticsConfig{
		URL:    cfg.Analytics.URL,
		Token:  cfg.Analytics.Token,
		Org:    cfg.Analytics.Org,
		Bucket: cfg.Analytics.Bucket,
	}, s.logger)

	cls, err := s.initClassifier()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize classifier: %w", err)
	}

	retriever, err := s.initRetrieval()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize retrieval: %w", err)
	}

	feeClient, err := fees.NewClient(fees.ClientConfig{
		ServiceURL: cfg.Fees.ServiceURL,
		APIKey:     cfg.Fees.APIKey,
		Timeout:    cfg.Server.PerCallTimeout,
	}, s.logger)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize fee client: %w", err)
	}

	locationClient, err := locations.NewClient(locations.ClientConfig{
		ServiceURL: cfg.Locations.ServiceURL,
		APIKey:     cfg.Locations.APIKey,
		BankName:   cfg.Server.BankName,
		Timeout:    cfg.Server.PerCallTimeout,
	}, s.logger)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize location client: %w", err)
	}

	directoryEngine, err := s.initDirectory()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize directory: %w", err)
	}

	s.initMemory()

	if err := s.initPendingStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize disambiguation store: %w", err)
	}

	generative, err := s.initGenerative()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize generative backend: %w", err)
	}

	temperature := cfg.Generative.Temperature
	s.turns = services.NewTurnService(services.TurnServiceConfig{
		BankName:             cfg.Server.BankName,
		DefaultKnowledgeBase: cfg.Retrieval.DefaultKB,
		MaxHistoryTurns:      cfg.Server.MaxHistoryTurns,
		PerCallTimeout:       cfg.Server.PerCallTimeout,
		Generation:           llm.GenerationParams{Temperature: &temperature},
	}, services.TurnServiceDeps{
		Classifier: cls,
		Fees:       feeClient,
		Locations:  locationClient,
		Directory:  directoryEngine,
		Retriever:  retriever,
		Generative: generative,
		Memory:     s.memoryStore,
		Pending:    s.pendingStore,
		Metrics:    metrics,
		Analytics:  s.analytics,
		Logger:     s.logger,
	})

	s.initRouter(retriever, feeClient, locationClient, generative)

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
//
// SIGINT and SIGTERM trigger a graceful drain: the listener stops accepting,
// in-flight streams get shutdownTimeout to finish, then resources are
// released. Run returns nil on a signal-initiated shutdown.
func (s *service) Run() error {
	defer s.cleanup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting orchestrator server", "port", s.cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	s.logger.Info("shutdown signal received, draining")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Router returns the underlying gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing.
//
// Uses an insecure gRPC connection, appropriate for collectors on internal
// networks. The returned cleanup flushes and shuts the exporter down.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	endpoint := s.cfg.Tracing.OTLPEndpoint
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("tellergate-orchestrator")))
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
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initClassifier builds the intent classifier, applies the vocabulary file
// overlay when configured, and starts the hot-reload watcher so cue edits
// land without a restart.
func (s *service) initClassifier() (*classifier.Classifier, error) {
	cls := classifier.New()

	path := s.cfg.Server.VocabularyFile
	if path == "" {
		return cls, nil
	}

	vocab, err := config.LoadVocabulary(path)
	if err != nil {
		return nil, fmt.Errorf("vocabulary file %s: %w", path, err)
	}
	cls.ReloadVocabulary(vocab)

	stop, err := config.WatchVocabulary(path, cls.ReloadVocabulary, s.logger)
	if err != nil {
		// The initial load succeeded; run with a static vocabulary.
		s.logger.Warn("vocabulary watcher unavailable, hot reload disabled",
			"path", path, "error", err)
		return cls, nil
	}
	s.stopVocabWatch = stop
	s.logger.Info("vocabulary hot reload enabled", "path", path)

	return cls, nil
}

// initRetrieval wires the answer cache and the retrieval client. A missing
// Redis address disables caching rather than failing startup.
func (s *service) initRetrieval() (*retrieval.Client, error) {
	if s.cfg.Cache.RedisAddr == "" {
		s.logger.Info("retrieval cache not configured, every lookup goes upstream")
		s.cache = retrieval.NopCache{}
	} else {
		cache, err := retrieval.NewRedisCache(
			s.cfg.Cache.RedisAddr, s.cfg.Cache.RedisPassword, s.cfg.Cache.TTL, s.logger)
		if err != nil {
			return nil, fmt.Errorf("retrieval cache: %w", err)
		}
		s.cache = cache
	}

	return retrieval.NewClient(retrieval.ClientConfig{
		ServiceURL: s.cfg.Retrieval.ServiceURL,
		APIKey:     s.cfg.Retrieval.APIKey,
		Timeout:    s.cfg.Retrieval.Timeout,
		RetryCount: s.cfg.Server.RetryCount,
	}, s.cache, s.logger)
}

// initDirectory connects the employee directory database.
func (s *service) initDirectory() (*directory.Engine, error) {
	if s.cfg.Directory.DatabaseURL == "" {
		return nil, fmt.Errorf("directory database URL is required")
	}
	store, err := directory.NewSQLStore(s.cfg.Directory.DatabaseURL, s.logger)
	if err != nil {
		return nil, err
	}
	s.directoryStore = store
	return directory.NewEngine(store, s.logger), nil
}

// initMemory wires transcript persistence. Without a database URL the
// orchestrator keeps history in the in-process ring only, which survives
// the process lifetime but not a restart.
func (s *service) initMemory() {
	ring := memory.NewRingStore(s.cfg.Memory.FallbackCapacity)

	if s.cfg.Memory.DatabaseURL == "" {
		s.logger.Warn("transcript database not configured, history is in-process only")
		s.memoryStore = memory.New(nil, ring, s.logger)
		return
	}

	primary, err := memory.NewSQLStore(s.cfg.Memory.DatabaseURL, s.logger)
	if err != nil {
		s.logger.Warn("transcript database unavailable, history is in-process only",
			"error", err)
		s.memoryStore = memory.New(nil, ring, s.logger)
		return
	}
	s.memoryStore = memory.New(primary, ring, s.logger)
}

// initPendingStore wires the pending disambiguation store: Redis when
// configured, with a local Badger store absorbing Redis outages. Without
// Redis the Badger store serves alone.
func (s *service) initPendingStore() error {
	fallback, err := disambiguation.NewBadgerStore(s.cfg.Disambiguation.TTL, s.logger)
	if err != nil {
		return fmt.Errorf("badger store: %w", err)
	}

	if s.cfg.Disambiguation.RedisAddr == "" {
		s.logger.Info("disambiguation store running on local badger only")
		s.pendingStore = fallback
		return nil
	}

	primary, err := disambiguation.NewRedisStore(
		s.cfg.Disambiguation.RedisAddr, s.cfg.Disambiguation.RedisPassword,
		s.cfg.Disambiguation.TTL, s.logger)
	if err != nil {
		return fmt.Errorf("redis store: %w", err)
	}
	s.pendingStore = disambiguation.NewResilientStore(primary, fallback, s.logger)
	return nil
}

// initGenerative creates the generative backend client.
//
// Supported backends: "openai" (hosted, also serves compatible gateways via
// LLM_BASE_URL) and "raw" (a bare completion endpoint, e.g. llama.cpp or
// vLLM without the OpenAI shim).
func (s *service) initGenerative() (llm.Client, error) {
	switch s.cfg.Generative.BackendType {
	case "raw":
		s.logger.Info("using raw generative backend", "url", s.cfg.Generative.BaseURL)
		return llm.NewRawClient(llm.RawConfig{
			BaseURL: s.cfg.Generative.BaseURL,
			Model:   s.cfg.Generative.Model,
		})
	case "openai", "":
		s.logger.Info("using OpenAI generative backend", "model", s.cfg.Generative.Model)
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			Model:   s.cfg.Generative.Model,
			BaseURL: s.cfg.Generative.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown generative backend %q", s.cfg.Generative.BackendType)
	}
}

// initRouter sets up the gin HTTP router with middleware and all routes.
func (s *service) initRouter(retriever *retrieval.Client, feeClient *fees.Client, locationClient *locations.Client, generative llm.Client) {
	if s.cfg.Server.GinMode != "" {
		gin.SetMode(s.cfg.Server.GinMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("tellergate-orchestrator"))
	s.router.Use(middleware.Correlation())

	probes := []handlers.Probe{
		{Name: "retrieval", Check: retriever.Ping},
		{Name: "fee_service", Check: feeClient.Ping},
		{Name: "location_service", Check: locationClient.Ping},
		{Name: "directory_db", Check: s.directoryStore.Ping},
		{Name: "memory", Check: s.memoryStore.Ping},
		{Name: "pending_store", Check: s.pendingStore.Ping},
		{Name: "cache", Check: s.cache.Ping},
	}
	if pinger, ok := generative.(interface{ Ping(context.Context) error }); ok {
		probes = append(probes, handlers.Probe{Name: "generative", Check: pinger.Ping})
	}

	chat := handlers.NewChatHandler(s.turns, s.logger)
	health := handlers.NewHealthHandler(probes, 0, s.logger)
	routes.SetupRoutes(s.router, chat, health)
}

// cleanup releases all resources held by the service. Called when Run()
// exits or on a mid-construction failure, so every field may be nil.
func (s *service) cleanup() {
	if s.stopVocabWatch != nil {
		s.stopVocabWatch()
	}
	if s.pendingStore != nil {
		if err := s.pendingStore.Close(); err != nil {
			s.logger.Warn("pending store close error", "error", err)
		}
	}
	if s.memoryStore != nil {
		if err := s.memoryStore.Close(); err != nil {
			s.logger.Warn("memory close error", "error", err)
		}
	}
	if s.directoryStore != nil {
		if err := s.directoryStore.Close(); err != nil {
			s.logger.Warn("directory store close error", "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("cache close error", "error", err)
		}
	}
	s.analytics.Close()
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
