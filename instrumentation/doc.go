// Package instrumentation provides optional OpenTelemetry metrics and
// tracing for the gateway. When disabled, no-op providers are used and the
// recording helpers cost nothing; all helpers are safe on a nil receiver
// so callers never need to guard their call sites.
package instrumentation
