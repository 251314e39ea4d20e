// Package logging provides structured, context-aware logging on top of zap.
//
// Every method takes a context.Context and prefixes the entry with the
// correlation fields found in it: trace and span IDs, the run and project an
// agent run belongs to, the durable step label and the HTTP request ID.
//
//	ctx = logging.WithRun(ctx, runID, projectID)
//	logger.Info(ctx, "tick finished", zap.Int("iteration", n))
//
// String fields that look like credentials are redacted by the encoder before
// they reach stdout. Use NewTestLogger in tests to assert on emitted entries.
package logging
