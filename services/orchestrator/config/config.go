// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the orchestrator configuration.
//
// Precedence, lowest to highest: built-in defaults, the optional YAML file
// named by CONFIG_FILE, then environment variables. Deployments override a
// handful of env vars; the YAML overlay exists for dev setups that want the
// whole picture in one reviewable file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the full orchestrator configuration tree.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Retrieval      RetrievalConfig      `yaml:"retrieval"`
	Cache          CacheConfig          `yaml:"cache"`
	Disambiguation DisambiguationConfig `yaml:"disambiguation"`
	Memory         MemoryConfig         `yaml:"memory"`
	Generative     GenerativeConfig     `yaml:"generative"`
	Fees           FeeConfig            `yaml:"fees"`
	Locations      LocationConfig       `yaml:"locations"`
	Directory      DirectoryConfig      `yaml:"directory"`
	Analytics      AnalyticsConfig      `yaml:"analytics"`
	Tracing        TracingConfig        `yaml:"tracing"`
}

// ServerConfig holds the HTTP server and turn-pipeline knobs.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	BankName        string        `yaml:"bank_name"`
	MaxHistoryTurns int           `yaml:"max_history_turns"`
	PerCallTimeout  time.Duration `yaml:"per_call_timeout"`
	RetryCount      int           `yaml:"retry_count"`
	VocabularyFile  string        `yaml:"vocabulary_file"`
	GinMode         string        `yaml:"gin_mode"`
}

// RetrievalConfig points at the knowledge-base retrieval service.
type RetrievalConfig struct {
	ServiceURL string        `yaml:"service_url"`
	APIKey     string        `yaml:"api_key"`
	DefaultKB  string        `yaml:"default_kb"`
	Timeout    time.Duration `yaml:"timeout"`
}

// CacheConfig holds the retrieval answer cache settings.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	TTL           time.Duration `yaml:"ttl"`
}

// DisambiguationConfig holds the pending-selection store settings.
type DisambiguationConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	TTL           time.Duration `yaml:"ttl"`
}

// MemoryConfig holds transcript persistence settings.
type MemoryConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	FallbackCapacity int    `yaml:"fallback_capacity"`
}

// GenerativeConfig selects and tunes the generative backend.
type GenerativeConfig struct {
	BackendType string  `yaml:"backend_type"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	Stream      bool    `yaml:"stream"`
}

// FeeConfig points at the fee calculation service.
type FeeConfig struct {
	ServiceURL string `yaml:"service_url"`
	APIKey     string `yaml:"api_key"`
}

// LocationConfig points at the locations service.
type LocationConfig struct {
	ServiceURL string `yaml:"service_url"`
	APIKey     string `yaml:"api_key"`
}

// DirectoryConfig holds the employee directory database settings.
type DirectoryConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

// AnalyticsConfig holds the optional InfluxDB sink.
type AnalyticsConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// TracingConfig holds the OTLP exporter settings.
type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// =============================================================================
// Loading
// =============================================================================

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            12210,
			BankName:        "EBL",
			MaxHistoryTurns: 20,
			PerCallTimeout:  10 * time.Second,
			RetryCount:      1,
		},
		Retrieval: RetrievalConfig{
			DefaultKB: "ebl_general",
			Timeout:   20 * time.Second,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Disambiguation: DisambiguationConfig{
			TTL: 10 * time.Minute,
		},
		Memory: MemoryConfig{
			FallbackCapacity: 200,
		},
		Generative: GenerativeConfig{
			BackendType: "openai",
			Temperature: 0.2,
			Stream:      true,
		},
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE YAML
// overlay, and environment variables, in that order of precedence.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// overlayFile merges a YAML file over the current configuration. Absent keys
// keep their values; yaml.Unmarshal only touches fields the file names.
func overlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides configuration from environment variables. Env always
// wins; it is the deployment surface.
func applyEnv(cfg *Config) {
	envString(&cfg.Retrieval.ServiceURL, "RETRIEVAL_SERVICE_URL")
	envString(&cfg.Retrieval.APIKey, "RETRIEVAL_API_KEY")
	envString(&cfg.Retrieval.DefaultKB, "RETRIEVAL_DEFAULT_KB")
	envMillis(&cfg.Retrieval.Timeout, "RETRIEVAL_TIMEOUT_MS")

	envString(&cfg.Cache.RedisAddr, "CACHE_REDIS_ADDR")
	envString(&cfg.Cache.RedisPassword, "CACHE_REDIS_PASSWORD")
	envSeconds(&cfg.Cache.TTL, "CACHE_TTL_SECONDS")

	envString(&cfg.Disambiguation.RedisAddr, "DISAMBIGUATION_REDIS_ADDR")
	envString(&cfg.Disambiguation.RedisPassword, "DISAMBIGUATION_REDIS_PASSWORD")
	envSeconds(&cfg.Disambiguation.TTL, "DISAMBIGUATION_TTL_SECONDS")

	envString(&cfg.Memory.DatabaseURL, "MEMORY_DATABASE_URL")
	envInt(&cfg.Memory.FallbackCapacity, "MEMORY_FALLBACK_CAPACITY")

	envString(&cfg.Generative.BackendType, "LLM_BACKEND_TYPE")
	envString(&cfg.Generative.BaseURL, "LLM_BASE_URL")
	envString(&cfg.Generative.Model, "GENERATIVE_MODEL")
	envFloat32(&cfg.Generative.Temperature, "GENERATIVE_TEMPERATURE")
	envBool(&cfg.Generative.Stream, "GENERATIVE_STREAM")

	envString(&cfg.Fees.ServiceURL, "FEE_SERVICE_URL")
	envString(&cfg.Fees.APIKey, "FEE_SERVICE_API_KEY")
	envString(&cfg.Locations.ServiceURL, "LOCATION_SERVICE_URL")
	envString(&cfg.Locations.APIKey, "LOCATION_SERVICE_API_KEY")
	envString(&cfg.Directory.DatabaseURL, "DIRECTORY_DATABASE_URL")

	envInt(&cfg.Server.Port, "ORCHESTRATOR_PORT")
	envInt(&cfg.Server.MaxHistoryTurns, "ORCHESTRATOR_MAX_HISTORY_TURNS")
	envMillis(&cfg.Server.PerCallTimeout, "ORCHESTRATOR_PER_CALL_TIMEOUT_MS")
	envInt(&cfg.Server.RetryCount, "ORCHESTRATOR_RETRY_COUNT")
	envString(&cfg.Server.BankName, "BANK_NAME")
	envString(&cfg.Server.VocabularyFile, "VOCABULARY_FILE")
	envString(&cfg.Server.GinMode, "GIN_MODE")

	envString(&cfg.Analytics.URL, "INFLUXDB_URL")
	envString(&cfg.Analytics.Token, "INFLUXDB_TOKEN")
	envString(&cfg.Analytics.Org, "INFLUXDB_ORG")
	envString(&cfg.Analytics.Bucket, "INFLUXDB_BUCKET")

	envString(&cfg.Tracing.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// =============================================================================
// Env Helpers
// =============================================================================

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

func envFloat32(dst *float32, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return
	}
	*dst = float32(f)
}

func envBool(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return
	}
	*dst = b
}

func envMillis(dst *time.Duration, key string) {
	var ms int
	envInt(&ms, key)
	if ms > 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

func envSeconds(dst *time.Duration, key string) {
	var s int
	envInt(&s, key)
	if s > 0 {
		*dst = time.Duration(s) * time.Second
	}
}
