// Package metric records what a command did as Prometheus metrics.
//
// The CLI is short lived, so nothing is served over HTTP. Instead the
// registry is written once at exit when --metrics-file is set, in the format
// read by the node_exporter textfile collector:
//
//	reg := metric.NewRegistry()
//	producer, _ := broker.NewProducer(cfg, broker.WithMetrics(reg.CoreMetrics()))
//	...
//	_ = reg.WriteTextfile("/var/lib/node_exporter/exchange.prom")
//
// Record methods on *Metrics are nil-safe, so packages take a *Metrics and
// callers that do not want metrics pass nil.
package metric
