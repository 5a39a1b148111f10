package core

import "time"

// Environment Variables
const (
	EnvPrefix = "WEEKORDER_"

	// Standard variables honoured alongside the prefixed ones
	EnvPort         = "PORT"
	EnvRedisURL     = "REDIS_URL"
	EnvDatabaseURL  = "DATABASE_URL"
	EnvJWTSecret    = "JWT_SECRET"
	EnvOTELEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTELService  = "OTEL_SERVICE_NAME"
	EnvKubernetes   = "KUBERNETES_SERVICE_HOST"
)

// Database drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Telemetry exporters
const (
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
	ExporterStdout   = "stdout"
)

// Redis defaults
const (
	// DefaultRedisNamespace prefixes every key written by the service
	// Format: <namespace>:<purpose>:<id>
	// Example: weekorder:submit:12:2024-03-04
	DefaultRedisNamespace = "weekorder"

	// DefaultSubmitLockTTL bounds how long a crashed submitter can block its store
	DefaultSubmitLockTTL = 10 * time.Second

	// RedisDBLocks is the Redis DB used for submission locks
	RedisDBLocks = 0
)

// HeaderRequestID carries the per-request correlation id
const HeaderRequestID = "X-Request-ID"
