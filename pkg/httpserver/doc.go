// Package httpserver runs HTTP handlers for the lifetime of a context and
// serves the liveness and readiness probes.
//
//	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))
//	err := srv.Run(ctx, router)
//
// Run returns once ctx is done and in-flight requests have drained, or the
// shutdown timeout has passed. Signal handling is left to the caller.
package httpserver
