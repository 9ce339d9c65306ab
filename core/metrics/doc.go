// Package metrics defines the sink interfaces used to publish dispatch
// results. A sink receives every allocated period of a run in one batch and
// may additionally implement TotalsRecorder, ShortfallRecorder or
// InvalidPeriodRecorder. Concrete sinks (Prometheus, InfluxDB, MQTT) live in
// infra/metrics and register themselves with RegisterMetricsSink; the
// factory returns a MultiSink when several sinks are configured.
package metrics
