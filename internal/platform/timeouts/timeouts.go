// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// Processor caps the wait time for a single payment-processor call
// (checkout creation, session lookup, refund, transfer). A timed-out call
// is a retryable-unknown outcome, never a confirmed failure.
const Processor = 10 * time.Second

// ReadHeader limits how long the HTTP server waits while reading a request.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
