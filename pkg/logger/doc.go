// Package logger builds *slog.Logger instances from functional options.
//
// New defaults to JSON at info level on stdout. WithEnvironment picks the
// per-environment preset and tags every record with service and env.
// Context extractors add request-scoped attributes, such as the request ID,
// at the moment a record is written:
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Production, "storefront"),
//		logger.WithContextExtractors(requestid.Extractor),
//	)
//	log.InfoContext(ctx, "job submitted", logger.JobID(id), logger.Operation(op))
//
// The attribute helpers keep key names consistent across packages. Error
// returns an empty attribute for a nil error, so it can be passed
// unconditionally.
package logger
