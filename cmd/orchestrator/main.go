// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command orchestrator starts the TellerGate chat orchestrator HTTP server.
//
// Configuration comes from the environment (optionally seeded from a .env
// file and a CONFIG_FILE YAML overlay). The important variables:
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 12210)
//   - BANK_NAME: Bank name used in prompts and answers (default: EBL)
//   - RETRIEVAL_SERVICE_URL, FEE_SERVICE_URL, LOCATION_SERVICE_URL:
//     Required collaborator endpoints
//   - DIRECTORY_DATABASE_URL: Required employee directory database
//   - MEMORY_DATABASE_URL: Transcript database (optional, degrades to ring)
//   - CACHE_REDIS_ADDR, DISAMBIGUATION_REDIS_ADDR: Optional Redis stores
//   - LLM_BACKEND_TYPE: "openai" or "raw" (default: openai)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: Trace collector (default: localhost:4317)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// # Usage
//
//	go build -o orchestrator ./cmd/orchestrator
//	./orchestrator
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/AleutianAI/TellerGate/pkg/logging"
	"github.com/AleutianAI/TellerGate/services/orchestrator"
	"github.com/AleutianAI/TellerGate/services/orchestrator/config"
)

func main() {
	// A missing .env file is the normal container case.
	_ = godotenv.Load()

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		Service: "tellergate-orchestrator",
		JSON:    true,
		Console: os.Stdout,
		LogDir:  os.Getenv("LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slog.Info("starting orchestrator",
		"port", cfg.Server.Port,
		"bank", cfg.Server.BankName,
		"generative_backend", cfg.Generative.BackendType,
		"default_kb", cfg.Retrieval.DefaultKB,
	)

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}
