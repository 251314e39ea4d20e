// Package telemetry wires OpenTelemetry tracing and metrics for genetix.
//
// Export is off by default; New then returns an instance whose Tracer and
// Meter fall back to the global no-op providers. NewTestTelemetry gives
// tests in-memory span and metric readers.
package telemetry
