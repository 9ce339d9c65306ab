// Package infra holds the adapters behind the core interfaces: the zerolog
// logger, metric and setpoint sinks, the Sentry monitor and CSV ingestion.
package infra
