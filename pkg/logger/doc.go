// Package logger builds the process *slog.Logger.
//
// New picks a text or JSON handler and wraps it in ContextHandler, which
// runs every registered ContextExtractor on each record. Request-scoped
// packages expose extractors so request id, client, tenant, correlation ids
// and environment land on every line logged with a request context:
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "stockline"),
//	    logger.WithContextExtractors(
//	        requestid.LoggerExtractor(),
//	        tenant.LoggerExtractor(),
//	        audit.LoggerExtractor(),
//	    ),
//	)
//	logger.SetAsDefault(log)
//
// WithEnvironment selects per-environment defaults: text at debug level in
// development, JSON at info level in staging and production.
//
// The attribute helpers in attr.go keep key names consistent. Error and
// Errors return an empty attribute for nil errors, so
//
//	log.WarnContext(ctx, "tenant cache write failed", logger.Error(err))
//
// needs no nil check.
package logger
