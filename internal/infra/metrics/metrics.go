// Package metrics registers the node's Prometheus gauges and counters,
// exposed opt-in via the portal's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var SpoolBatchDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "greenhouse",
	Name:      "spool_batch_depth",
	Help:      "Number of telemetry records currently buffered in RAM.",
})

var CrashCount = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "greenhouse",
	Name:      "crash_count",
	Help:      "Consecutive unverified boots since the last successful MQTT connection.",
})

var MqttUp = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "greenhouse",
	Name:      "mqtt_up",
	Help:      "1 if the MQTT session is connected, 0 otherwise.",
})

var WifiUp = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "greenhouse",
	Name:      "wifi_up",
	Help:      "1 if WiFi is associated, 0 otherwise.",
})

var TelemetryPublished = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "greenhouse",
	Name:      "telemetry_published_total",
	Help:      "Total telemetry records successfully published to the broker.",
})

var TelemetryDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "greenhouse",
	Name:      "telemetry_dropped_total",
	Help:      "Total telemetry records dropped (spool disabled and RAM batch overflowed).",
})

var RollbacksExecuted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "greenhouse",
	Name:      "rollbacks_executed_total",
	Help:      "Total firmware rollbacks executed by the boot-verification protocol.",
})

var WatchdogExpirations = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "greenhouse",
	Name:      "watchdog_expirations_total",
	Help:      "Total missed-pet events observed across all registered tasks.",
})
