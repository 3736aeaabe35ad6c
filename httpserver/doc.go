/*
Package httpserver implements the key server's operational HTTP surface.

It is separate from the issuing protocol, which is served by package reactor
over raw TCP. The admin server exposes:

  - GET /livez - Liveness check
  - GET /readyz - Readiness check, 503 while drained
  - GET /drain - Mark the server as not ready
  - GET /undrain - Mark the server as ready
  - GET /api/stats - Active connections, cache entries, workers and queued tasks
  - /debug/* - pprof, when EnablePprof is set

When MetricsAddr is configured, a Prometheus endpoint is started alongside on
its own listener.

# Example Usage

	cfg := &httpserver.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:8091",
		MetricsAddr:              "127.0.0.1:8090",
		Log:                      logger,
		DrainDuration:            45 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
	}

	admin, err := httpserver.New(cfg, func() httpserver.Stats {
		return httpserver.Stats{Connections: srv.Connections(), CacheEntries: cache.Len()}
	}, m)
	if err != nil {
		return err
	}
	admin.RunInBackground()
	defer admin.Shutdown()
*/
package httpserver
