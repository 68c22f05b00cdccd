// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var SettingsReads = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "cosconsole_settings_reads_total",
		Help: "Settings records loaded from durable storage",
	},
)

var SettingsDecryptFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "cosconsole_settings_decrypt_failures_total",
		Help: "Credential fields that failed to decrypt on read",
	},
)

var SettingsDefaultsSubstituted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cosconsole_settings_defaults_substituted_total",
		Help: "Reads that fell back to default settings, by reason",
	},
	[]string{"reason"},
)

var SettingsWrites = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cosconsole_settings_writes_total",
		Help: "Settings writes, by result",
	},
	[]string{"result"},
)

var StorageOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cosconsole_storage_operations_total",
		Help: "Bucket operations, by operation and result",
	},
	[]string{"op", "result"},
)

var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cosconsole_http_requests_total",
		Help: "HTTP requests served, by method, route pattern and status",
	},
	[]string{"method", "route", "status"},
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SettingsReads,
			SettingsDecryptFailures,
			SettingsDefaultsSubstituted,
			SettingsWrites,
			StorageOperations,
			HTTPRequests,
		)
		slog.Debug("metrics: collectors registered")
	})
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
