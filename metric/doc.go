// Package metric provides Prometheus metrics for the TeleLog SDK.
//
// The Registry owns a dedicated Prometheus registry pre-populated with the
// SDK's core metrics (channel creation, message throughput, staging buffer
// activity) plus Go runtime collectors. Applications embedding the SDK can
// register their own collectors through RegisterCollector and expose the
// whole registry on their metrics endpoint.
//
// Metric collection is optional: contexts and buffers only update metrics
// when a Metrics instance is attached to them.
package metric
