// Package httpserver runs the daemon's ops endpoints: a net/http server with
// graceful shutdown tied to a context, plus liveness, readiness and JSON
// report handlers.
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.HealthCheckHandler(log))
//	r.Get("/readyz", httpserver.HealthCheckHandler(log, pg.Healthcheck(pool)))
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, r); err != nil {
//		return err
//	}
//
// Run wraps listen errors with ErrStart; Shutdown wraps shutdown errors with
// ErrShutdown.
package httpserver
