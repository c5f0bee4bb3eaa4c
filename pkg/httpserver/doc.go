// Package httpserver runs the service's HTTP listener with graceful
// shutdown.
//
// Run blocks until its context is cancelled (typically by
// signal.NotifyContext), drains in-flight requests within the shutdown
// timeout and then runs the shutdown hooks in registration order. The
// service uses the hooks to flush queued audit records and close routed
// tenant pools after the last request has finished:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP,
//		httpserver.WithLogger(log),
//		httpserver.WithShutdownHook("tenant pools", router.Shutdown),
//	)
//	err := srv.Run(ctx, handler)
//
// LivenessHandler and ReadinessHandler serve the probe endpoints.
package httpserver
